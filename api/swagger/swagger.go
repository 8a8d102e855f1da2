package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Presenca API",
        "description": "Attendance tracking and student roster administration",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "auth", "description": "Authentication and account lifecycle"},
        {"name": "users", "description": "Staff account administration"},
        {"name": "units", "description": "Unit catalogue"},
        {"name": "courses", "description": "Course catalogue and weekday schedules"},
        {"name": "students", "description": "Student roster and bulk import"},
        {"name": "classes", "description": "Class lifecycle and enrollment"},
        {"name": "attendance", "description": "Daily attendance ledger and pending calls"},
        {"name": "dropouts", "description": "Withdrawal lifecycle"},
        {"name": "justifications", "description": "Absence justifications"},
        {"name": "reports", "description": "Asynchronous report generation"},
        {"name": "dashboard", "description": "Landing screen counters"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Authenticate a user",
                "responses": {
                    "200": {"description": "Token pair issued"},
                    "401": {"description": "Invalid credentials or inactive account"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["auth"],
                "summary": "Rotate the refresh token",
                "responses": {
                    "200": {"description": "New token pair"},
                    "401": {"description": "Unknown, expired or revoked token"}
                }
            }
        },
        "/auth/first-access": {
            "post": {
                "tags": ["auth"],
                "summary": "Request a staff account (stays pending until approved)",
                "responses": {
                    "201": {"description": "Pending account created"},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/auth/approve/{id}": {
            "post": {
                "tags": ["auth"],
                "summary": "Approve a pending account (admin)",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Account activated"},
                    "403": {"description": "Caller is not an admin"}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["users"],
                "summary": "List accounts (admin)",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Paginated accounts"}}
            },
            "post": {
                "tags": ["users"],
                "summary": "Create an account (admin)",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Account created"}}
            }
        },
        "/units": {
            "get": {
                "tags": ["units"],
                "summary": "List units",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Paginated units"}}
            },
            "post": {
                "tags": ["units"],
                "summary": "Create a unit (admin)",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Unit created"}}
            }
        },
        "/courses": {
            "get": {
                "tags": ["courses"],
                "summary": "List courses",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Paginated courses"}}
            },
            "post": {
                "tags": ["courses"],
                "summary": "Create a course (admin)",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Course created"}}
            }
        },
        "/students": {
            "get": {
                "tags": ["students"],
                "summary": "List students visible to the caller",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Students in scope"}}
            },
            "post": {
                "tags": ["students"],
                "summary": "Register a student",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Student created"},
                    "409": {"description": "CPF already registered"}
                }
            }
        },
        "/students/import": {
            "post": {
                "tags": ["students"],
                "summary": "Bulk import students from a CSV spreadsheet",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Per-row import summary"}}
            }
        },
        "/classes": {
            "get": {
                "tags": ["classes"],
                "summary": "List classes visible to the caller",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Classes in scope"}}
            },
            "post": {
                "tags": ["classes"],
                "summary": "Create a class",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Class created"}}
            }
        },
        "/classes/{id}/students/{studentId}": {
            "post": {
                "tags": ["classes"],
                "summary": "Enroll a student",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Enrolled"},
                    "409": {"description": "Class full or already enrolled"}
                }
            },
            "delete": {
                "tags": ["classes"],
                "summary": "Remove a student from the roster",
                "security": [{"BearerAuth": []}],
                "responses": {"204": {"description": "Removed"}}
            }
        },
        "/attendance": {
            "post": {
                "tags": ["attendance"],
                "summary": "File the daily attendance call",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Call filed"},
                    "409": {"description": "A call already exists for the date"}
                }
            }
        },
        "/attendance/pending": {
            "get": {
                "tags": ["attendance"],
                "summary": "List unfiled calls over the last three scheduled days",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Pending calls ranked by urgency"}}
            }
        },
        "/dropouts": {
            "post": {
                "tags": ["dropouts"],
                "summary": "Withdraw a student",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Dropout recorded"},
                    "409": {"description": "Student already withdrawn"}
                }
            }
        },
        "/justifications": {
            "post": {
                "tags": ["justifications"],
                "summary": "Register an absence justification with optional attachment",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Justification registered"}}
            }
        },
        "/reports": {
            "post": {
                "tags": ["reports"],
                "summary": "Queue a CSV or PDF attendance report",
                "security": [{"BearerAuth": []}],
                "responses": {"202": {"description": "Job accepted"}}
            }
        },
        "/reports/{id}/download": {
            "get": {
                "tags": ["reports"],
                "summary": "Issue a signed download link for a completed report",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Signed token and expiry"}}
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["dashboard"],
                "summary": "Dashboard counters scoped to the caller",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Counters"}}
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}

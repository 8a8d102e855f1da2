package models

// ImportRequest configures one bulk student import run.
type ImportRequest struct {
	Data           []byte
	Filename       string
	CourseID       string
	ClassID        string
	UpdateExisting bool
}

// ImportRowError records why a single spreadsheet row was rejected.
type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportSummary reports the outcome of a bulk import. Counts always
// reflect true totals for the rows that were processed, even when the
// Errors list is truncated. RowsTruncated is set when the file had
// more rows than the configured limit and the tail was not consumed.
type ImportSummary struct {
	TotalRows       int              `json:"total_rows"`
	Inserted        int              `json:"inserted"`
	Updated         int              `json:"updated"`
	Skipped         int              `json:"skipped"`
	Enrolled        int              `json:"enrolled"`
	ErrorCount      int              `json:"error_count"`
	Errors          []ImportRowError `json:"errors"`
	ErrorsTruncated bool             `json:"errors_truncated"`
	RowsTruncated   bool             `json:"rows_truncated"`
}

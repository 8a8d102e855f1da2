package models

import "time"

// JustificationStatus tracks the review lifecycle of a justification.
type JustificationStatus string

const (
	JustificationRegistered JustificationStatus = "registered"
	JustificationReviewed   JustificationStatus = "reviewed"
	JustificationRejected   JustificationStatus = "rejected"
)

// JustificationReasonCustom requires a non-empty free-text reason.
const JustificationReasonCustom = "CUSTOM"

// JustificationReasons is the fixed catalogue of absence reason codes.
var JustificationReasons = map[string]string{
	"NOT_IDENTIFIED_WITH_COURSE":  "Não se identificou com o curso",
	"DIFFICULTY_FOLLOWING_COURSE": "Dificuldade para acompanhar o curso",
	"OPTED_OTHER_COURSE":          "Optou por outro curso",
	"NO_TRANSPORT_FUNDS":          "Falta de recursos para transporte",
	"MOVED_ADDRESS":               "Mudança de endereço",
	"NEEDS_TO_CARE_FOR_FAMILY":    "Necessidade de cuidar da família",
	"NO_CONTACT_RETURN":           "Não retornou contato",
	"HEALTH_PROBLEMS":             "Problemas de saúde",
	"GOT_A_JOB":                   "Conseguiu emprego",
	"PREGNANCY_OR_LACTATION":      "Gravidez ou lactação",
	JustificationReasonCustom:     "Outro motivo (especificar)",
}

// ValidJustificationReason reports whether the code is in the catalogue.
func ValidJustificationReason(code string) bool {
	_, ok := JustificationReasons[code]
	return ok
}

// Justification is a documented excuse for a student's absence, with an
// optional file attachment held in the blob store.
type Justification struct {
	ID           string              `db:"id" json:"id"`
	StudentID    string              `db:"student_id" json:"student_id"`
	AttendanceID *string             `db:"attendance_id" json:"attendance_id,omitempty"`
	ReasonCode   string              `db:"reason_code" json:"reason_code"`
	ReasonText   *string             `db:"reason_text" json:"reason_text,omitempty"`
	FileID       *string             `db:"file_id" json:"file_id,omitempty"`
	FileName     *string             `db:"file_name" json:"file_name,omitempty"`
	FileMIME     *string             `db:"file_mime" json:"file_mime,omitempty"`
	FileSize     *int64              `db:"file_size" json:"file_size,omitempty"`
	Status       JustificationStatus `db:"status" json:"status"`
	Visible      bool                `db:"visible" json:"visible"`
	UploadedByID string              `db:"uploaded_by_id" json:"uploaded_by_id"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updated_at"`
}

package models

import "time"

// DropoutReasonCustom requires a non-empty free-text reason.
const DropoutReasonCustom = "outro"

// DropoutReasons is the fixed catalogue of withdrawal reason codes.
var DropoutReasons = map[string]string{
	"conflito_horario_escola":      "Conflito entre o horário do curso e escola",
	"conflito_curso_trabalho":      "Conflito entre curso e trabalho",
	"problemas_saude":              "Problemas de saúde (aluno ou familiar)",
	"sem_retorno_contato":          "Sem retorno de contato",
	"conseguiu_trabalho":           "Conseguiu um trabalho",
	"lactantes_gestantes":          "Lactantes, gestantes ou em início de gestação",
	"nao_identificou_curso":        "Não se identificou com o curso",
	"dificuldades_acompanhamento":  "Dificuldades de acompanhamento do curso",
	"curso_fora_ios":               "Optou por um curso fora da instituição",
	"sem_recursos_transporte":      "Sem recursos financeiros para o transporte",
	"mudou_endereco":               "Mudou de endereço",
	"cuidar_familiar":              "Precisou cuidar de um familiar",
	"servico_militar":              "Convocação do serviço militar",
	DropoutReasonCustom:            "Outro (preenchimento personalizado)",
}

// ValidDropoutReason reports whether the code is in the catalogue.
func ValidDropoutReason(code string) bool {
	_, ok := DropoutReasons[code]
	return ok
}

// DropoutRecord captures a student's withdrawal. The student name is
// denormalized so the record survives later roster changes.
type DropoutRecord struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	StudentName    string    `db:"student_name" json:"student_name"`
	ClassID        *string   `db:"class_id" json:"class_id,omitempty"`
	WithdrawalDate time.Time `db:"withdrawal_date" json:"withdrawal_date"`
	ReasonCode     string    `db:"reason_code" json:"reason_code"`
	ReasonText     *string   `db:"reason_text" json:"reason_text,omitempty"`
	RecordedByID   string    `db:"recorded_by_id" json:"recorded_by_id"`
	RecordedByName string    `db:"recorded_by_name" json:"recorded_by_name"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

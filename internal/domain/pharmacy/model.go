package pharmacy

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockItem is a drug held by a branch pharmacy. Its unit price is the
// pharmacy's cost price; billing applies the markup.
type StockItem struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	BranchID  uuid.UUID       `db:"branch_id" json:"branchId"`
	Name      string          `db:"name" json:"name"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unitPrice"`
	Quantity  int             `db:"quantity" json:"quantity"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

type PrescriptionStatus string

const (
	PrescriptionPending   PrescriptionStatus = "PENDING"
	PrescriptionDispensed PrescriptionStatus = "DISPENSED"
)

type PrescriptionItem struct {
	DrugName  string `json:"drugName"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Quantity  int    `json:"quantity"`
}

type Prescription struct {
	ID           uuid.UUID          `db:"id" json:"id"`
	VisitID      uuid.UUID          `db:"visit_id" json:"visitId"`
	PatientID    uuid.UUID          `db:"patient_id" json:"patientId"`
	BranchID     uuid.UUID          `db:"branch_id" json:"branchId"`
	Items        []PrescriptionItem `db:"items" json:"items"`
	PrescribedBy uuid.UUID          `db:"prescribed_by" json:"prescribedBy"`
	Status       PrescriptionStatus `db:"status" json:"status"`
	DispensedBy  *uuid.UUID         `db:"dispensed_by" json:"dispensedBy,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updatedAt"`
}

package laboratory

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusOrdered    Status = "ORDERED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// LabTest is one test ordered against a visit. ServiceChargeID links the test
// to its catalog price when the ordering clinician picked it from the catalog.
type LabTest struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	VisitID         uuid.UUID  `db:"visit_id" json:"visitId"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patientId"`
	BranchID        uuid.UUID  `db:"branch_id" json:"branchId"`
	Name            string     `db:"name" json:"name"`
	Category        string     `db:"category" json:"category,omitempty"`
	ServiceChargeID *uuid.UUID `db:"service_charge_id" json:"serviceChargeId,omitempty"`
	Status          Status     `db:"status" json:"status"`
	Result          *string    `db:"result" json:"result,omitempty"`
	OrderedBy       uuid.UUID  `db:"ordered_by" json:"orderedBy"`
	CompletedBy     *uuid.UUID `db:"completed_by" json:"completedBy,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
	CompletedAt     *time.Time `db:"completed_at" json:"completedAt,omitempty"`
}

type OrderRequest struct {
	Name            string     `json:"name"`
	Category        string     `json:"category,omitempty"`
	ServiceChargeID *uuid.UUID `json:"serviceChargeId,omitempty"`
}

package patient

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientNumber string     `db:"patient_number" json:"patientNumber"`
	FirstName     string     `db:"first_name" json:"firstName"`
	LastName      string     `db:"last_name" json:"lastName"`
	Email         *string    `db:"email" json:"email,omitempty"`
	Phone         *string    `db:"phone" json:"phone,omitempty"`
	BranchID      uuid.UUID  `db:"branch_id" json:"branchId"`
	Insurance     *Insurance `db:"insurance" json:"insurance,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// Insurance is stored as a JSONB document on the patient row.
type Insurance struct {
	Provider     string `json:"provider"`
	PolicyNumber string `json:"policyNumber"`
	CoverageType string `json:"coverageType,omitempty"`
}

func (p *Patient) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Insured reports whether the patient has a usable insurance policy on file.
func (p *Patient) Insured() bool {
	return p.Insurance != nil && p.Insurance.Provider != "" && p.Insurance.PolicyNumber != ""
}

package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusCheckedIn Status = "CHECKED_IN"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

type Appointment struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patientId"`
	BranchID    uuid.UUID  `db:"branch_id" json:"branchId"`
	DoctorID    *uuid.UUID `db:"doctor_id" json:"doctorId,omitempty"`
	ScheduledAt time.Time  `db:"scheduled_at" json:"scheduledAt"`
	Status      Status     `db:"status" json:"status"`
	Reason      *string    `db:"reason" json:"reason,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

var transitions = map[Status][]Status{
	StatusScheduled: {StatusCheckedIn, StatusCompleted, StatusCancelled},
	StatusCheckedIn: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether an appointment in status from may move to to.
// Completed and cancelled appointments are final.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func ValidStatus(s Status) bool {
	switch s {
	case StatusScheduled, StatusCheckedIn, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Filter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	BranchID  *uuid.UUID
	Status    Status
	From, To  *time.Time
}

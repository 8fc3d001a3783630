package visit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/appointment"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/refnum"
)

// Transactor runs fn inside a single database transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type PatientGetter interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type AppointmentTracker interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	CheckIn(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo         Repository
	patients     PatientGetter
	appointments AppointmentTracker
	tx           Transactor
	now          func() time.Time
}

func NewService(repo Repository, patients PatientGetter, appointments AppointmentTracker, tx Transactor) *Service {
	return &Service{
		repo:         repo,
		patients:     patients,
		appointments: appointments,
		tx:           tx,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type CheckInRequest struct {
	PatientID     uuid.UUID  `json:"patientId"`
	BranchID      *uuid.UUID `json:"branchId,omitempty"`
	AppointmentID *uuid.UUID `json:"appointmentId,omitempty"`
	LabOnly       bool       `json:"labOnly"`
	Notes         string     `json:"notes,omitempty"`
}

// CheckIn opens a visit at the front desk, clocked in by the caller. A linked
// appointment is marked checked in within the same transaction.
func (s *Service) CheckIn(ctx context.Context, actor auth.Actor, req CheckInRequest) (*Visit, error) {
	if req.PatientID == uuid.Nil {
		return nil, apperr.Validation("patientId is required")
	}
	p, err := s.patients.GetPatient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}

	branchID := p.BranchID
	switch {
	case req.BranchID != nil:
		branchID = *req.BranchID
	case actor.BranchID != nil:
		branchID = *actor.BranchID
	}

	if req.AppointmentID != nil {
		a, err := s.appointments.GetAppointment(ctx, *req.AppointmentID)
		if err != nil {
			return nil, err
		}
		if a.PatientID != p.ID {
			return nil, apperr.Validation("appointment %s belongs to another patient", a.ID)
		}
	}

	now := s.now()
	v := &Visit{
		VisitNumber:   refnum.Daily("VIS", now),
		PatientID:     p.ID,
		BranchID:      branchID,
		AppointmentID: req.AppointmentID,
		CurrentStage:  StageFrontDesk,
		Status:        StatusInProgress,
		LabOnly:       req.LabOnly,
		Stages:        StageLog{},
		CreatedBy:     actor.StaffID,
	}
	if err := v.ClockIn(actor.StaffID, now, req.Notes); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, v); err != nil {
			return apperr.Wrap(err, "create visit")
		}
		if v.AppointmentID != nil {
			return s.appointments.CheckIn(ctx, *v.AppointmentID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Lookup(err, "visit not found")
	}
	return v, nil
}

func (s *Service) ListVisits(ctx context.Context, f Filter, limit, offset int) ([]*Visit, int, error) {
	items, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap(err, "list visits")
	}
	return items, total, nil
}

// ClockIn records the caller starting work on the visit's current stage.
// Billing has its own clock-in that also takes payment.
func (s *Service) ClockIn(ctx context.Context, actor auth.Actor, visitID uuid.UUID, notes string) (*Visit, error) {
	v, err := s.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if !v.InProgress() {
		return nil, apperr.Conflict("visit is %s, not in_progress", v.Status)
	}
	if v.CurrentStage == StageBilling {
		return nil, apperr.Validation("billing is clocked in through the billing clock-in with a payment")
	}
	if !CanWorkStage(actor, v.CurrentStage) {
		return nil, apperr.Forbidden("role %v cannot clock in at %s", actor.Roles, v.CurrentStage)
	}
	if err := v.ClockIn(actor.StaffID, s.now(), notes); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) Cancel(ctx context.Context, actor auth.Actor, visitID uuid.UUID, reason string) (*Visit, error) {
	v, err := s.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if err := v.Cancel(actor.StaffID, s.now(), reason); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Save persists a mutated visit under its optimistic version check.
func (s *Service) Save(ctx context.Context, v *Visit) error {
	if err := s.repo.Update(ctx, v); err != nil {
		if errors.Is(err, apperr.ErrVersionConflict) {
			return apperr.VersionConflict("visit " + v.VisitNumber)
		}
		return apperr.Wrap(err, "update visit")
	}
	return nil
}

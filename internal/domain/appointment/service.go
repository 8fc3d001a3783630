package appointment

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return apperr.Validation("patientId is required")
	}
	if a.BranchID == uuid.Nil {
		return apperr.Validation("branchId is required")
	}
	if a.ScheduledAt.IsZero() {
		return apperr.Validation("scheduledAt is required")
	}
	a.Status = StatusScheduled
	if err := s.repo.Create(ctx, a); err != nil {
		return apperr.Wrap(err, "create appointment")
	}
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Lookup(err, "appointment not found")
	}
	return a, nil
}

func (s *Service) ListAppointments(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, 0, apperr.Validation("invalid status: %s", f.Status)
	}
	items, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap(err, "list appointments")
	}
	return items, total, nil
}

// UpdateStatus moves an appointment along its lifecycle. Setting the status it
// already has is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error) {
	if !ValidStatus(status) {
		return nil, apperr.Validation("invalid status: %s", status)
	}
	a, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == status {
		return a, nil
	}
	if !CanTransition(a.Status, status) {
		return nil, apperr.Conflict("appointment cannot move from %s to %s", a.Status, status)
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, apperr.Wrap(err, "update appointment status")
	}
	a.Status = status
	return a, nil
}

// CheckIn marks the appointment as arrived when a visit is opened for it.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) error {
	_, err := s.UpdateStatus(ctx, id, StatusCheckedIn)
	return err
}

// Complete closes the appointment once its visit has completed.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) error {
	_, err := s.UpdateStatus(ctx, id, StatusCompleted)
	return err
}

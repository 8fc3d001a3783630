package visit

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// HandoffInput is the clock-out payload for the stage being left.
type HandoffInput struct {
	TargetStage Stage
	Notes       string
	NextAction  string
	VitalSigns  *VitalSigns
	Diagnosis   string
}

// Transition describes a completed stage move.
type Transition struct {
	From Stage
	To   Stage
	// Completed is set when the visit reached its terminal stage.
	Completed bool
}

// ClockIn records staffID starting work on the visit's current stage.
func (v *Visit) ClockIn(staffID uuid.UUID, at time.Time, notes string) error {
	if !v.InProgress() {
		return apperr.Conflict("visit is %s, not in_progress", v.Status)
	}
	rec := v.Record(v.CurrentStage)
	if rec.ClockedIn() {
		return apperr.Conflict("%s stage is already clocked in", v.CurrentStage)
	}
	rec.ClockedInBy = &staffID
	rec.ClockedInAt = &at
	if notes != "" {
		rec.Notes = notes
	}
	v.log(Event{Stage: v.CurrentStage, Action: ActionClockIn, StaffID: staffID, At: at})
	return nil
}

// Handoff clocks out the current stage and moves the visit to the resolved
// target. Entering a stage replaces its record with an empty one so a
// revisited stage never shows the earlier occupancy.
func (v *Visit) Handoff(in HandoffInput, staffID uuid.UUID, at time.Time) (Transition, error) {
	if !v.InProgress() {
		return Transition{}, apperr.Conflict("visit is %s, not in_progress", v.Status)
	}
	from := v.CurrentStage
	target, err := ResolveTarget(from, v.LabOnly, in.TargetStage)
	if err != nil {
		return Transition{}, err
	}

	rec := v.Record(from)
	rec.ClockedOutBy = &staffID
	rec.ClockedOutAt = &at
	if in.Notes != "" {
		rec.Notes = in.Notes
	}
	if in.NextAction != "" {
		rec.NextAction = in.NextAction
	}
	if from == StageNurse && in.VitalSigns != nil {
		rec.VitalSigns = in.VitalSigns
	}
	if from == StageDoctor && in.Diagnosis != "" {
		rec.Diagnosis = in.Diagnosis
	}
	v.log(Event{Stage: from, Action: ActionClockOut, StaffID: staffID, At: at})

	v.enter(target, staffID, at)
	return Transition{From: from, To: target, Completed: target == StageCompleted}, nil
}

// SettleBilling closes the billing stage in one step once payment has been
// taken. Billing is clocked in and out by the same staff member at the same
// instant, the visit returns to the front desk, and the returned stage is
// opened under that staff member.
func (v *Visit) SettleBilling(staffID uuid.UUID, at time.Time, notes string) (Transition, error) {
	if !v.InProgress() {
		return Transition{}, apperr.Conflict("visit is %s, not in_progress", v.Status)
	}
	if v.CurrentStage != StageBilling {
		return Transition{}, apperr.Conflict("visit is at %s, not billing", v.CurrentStage)
	}
	rec := v.Record(StageBilling)
	if rec.ClockedIn() {
		return Transition{}, apperr.Conflict("billing stage is already clocked in")
	}
	rec.ClockedInBy = &staffID
	rec.ClockedInAt = &at
	rec.ClockedOutBy = &staffID
	rec.ClockedOutAt = &at
	if notes != "" {
		rec.Notes = notes
	}
	v.log(Event{Stage: StageBilling, Action: ActionClockIn, StaffID: staffID, At: at})
	v.log(Event{Stage: StageBilling, Action: ActionClockOut, StaffID: staffID, At: at})

	v.enter(StageReturned, staffID, at)
	ret := v.Record(StageReturned)
	ret.ClockedInBy = &staffID
	ret.ClockedInAt = &at
	v.log(Event{Stage: StageReturned, Action: ActionClockIn, StaffID: staffID, At: at})
	return Transition{From: StageBilling, To: StageReturned}, nil
}

// Cancel ends an in-progress visit without completing it.
func (v *Visit) Cancel(staffID uuid.UUID, at time.Time, reason string) error {
	if !v.InProgress() {
		return apperr.Conflict("visit is %s, not in_progress", v.Status)
	}
	v.Status = StatusCancelled
	if reason != "" {
		v.CancelReason = &reason
	}
	v.log(Event{Stage: v.CurrentStage, Action: ActionCancel, StaffID: staffID, At: at})
	return nil
}

func (v *Visit) enter(target Stage, staffID uuid.UUID, at time.Time) {
	v.log(Event{Stage: v.CurrentStage, Action: ActionHandoff, StaffID: staffID, At: at, FromStage: v.CurrentStage, ToStage: target})
	if target == StageCompleted {
		v.Status = StatusCompleted
		v.CompletedAt = &at
		return
	}
	v.CurrentStage = target
	v.Stages[target] = &StageRecord{}
}

package visit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/staff"
)

type StaffGetter interface {
	GetStaff(ctx context.Context, id uuid.UUID) (*staff.Staff, error)
}

type StaffRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name,omitempty"`
	Role string    `json:"role,omitempty"`
}

type PatientRef struct {
	ID            uuid.UUID `json:"id"`
	PatientNumber string    `json:"patientNumber,omitempty"`
	Name          string    `json:"name,omitempty"`
	Insured       bool      `json:"insured"`
}

type StageView struct {
	ClockedInBy  *StaffRef   `json:"clockedInBy"`
	ClockedInAt  *time.Time  `json:"clockedInAt"`
	ClockedOutBy *StaffRef   `json:"clockedOutBy"`
	ClockedOutAt *time.Time  `json:"clockedOutAt"`
	Notes        string      `json:"notes,omitempty"`
	NextAction   string      `json:"nextAction,omitempty"`
	VitalSigns   *VitalSigns `json:"vitalSigns,omitempty"`
	Diagnosis    string      `json:"diagnosis,omitempty"`
}

// View is a visit with its patient and stage staff expanded for display.
// AllowedTargets is empty once the visit is no longer in progress.
type View struct {
	*Visit
	Patient        *PatientRef          `json:"patient"`
	Stages         map[Stage]*StageView `json:"stages"`
	AllowedTargets []Stage              `json:"allowedTargets"`
}

// Assembler expands references after a visit has been written. Lookups that
// fail leave the reference with only its id.
type Assembler struct {
	patients PatientGetter
	staff    StaffGetter
}

func NewAssembler(patients PatientGetter, staff StaffGetter) *Assembler {
	return &Assembler{patients: patients, staff: staff}
}

func (a *Assembler) View(ctx context.Context, v *Visit) *View {
	out := &View{
		Visit:   v,
		Patient: &PatientRef{ID: v.PatientID},
		Stages:  make(map[Stage]*StageView, len(WorkStages)),
	}
	out.AllowedTargets = []Stage{}
	if v.InProgress() {
		out.AllowedTargets = AllowedTargets(v.CurrentStage)
	}
	if p, err := a.patients.GetPatient(ctx, v.PatientID); err == nil {
		out.Patient.PatientNumber = p.PatientNumber
		out.Patient.Name = p.FullName()
		out.Patient.Insured = p.Insured()
	}

	refs := make(map[uuid.UUID]*StaffRef)
	ref := func(id *uuid.UUID) *StaffRef {
		if id == nil {
			return nil
		}
		if r, ok := refs[*id]; ok {
			return r
		}
		r := &StaffRef{ID: *id}
		if st, err := a.staff.GetStaff(ctx, *id); err == nil {
			r.Name, r.Role = st.Name, st.Role
		}
		refs[*id] = r
		return r
	}

	for _, s := range WorkStages {
		rec := v.Stages[s]
		if rec == nil {
			out.Stages[s] = nil
			continue
		}
		out.Stages[s] = &StageView{
			ClockedInBy:  ref(rec.ClockedInBy),
			ClockedInAt:  rec.ClockedInAt,
			ClockedOutBy: ref(rec.ClockedOutBy),
			ClockedOutAt: rec.ClockedOutAt,
			Notes:        rec.Notes,
			NextAction:   rec.NextAction,
			VitalSigns:   rec.VitalSigns,
			Diagnosis:    rec.Diagnosis,
		}
	}
	return out
}

func (a *Assembler) Views(ctx context.Context, vs []*Visit) []*View {
	out := make([]*View, len(vs))
	for i, v := range vs {
		out[i] = a.View(ctx, v)
	}
	return out
}

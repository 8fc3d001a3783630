package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/visit"
)

type VisitRef struct {
	ID           uuid.UUID    `json:"id"`
	VisitNumber  string       `json:"visitNumber,omitempty"`
	CurrentStage visit.Stage  `json:"currentStage,omitempty"`
	Status       visit.Status `json:"status,omitempty"`
}

// InvoiceView is an invoice with its patient and visit expanded.
type InvoiceView struct {
	*Invoice
	Patient *visit.PatientRef `json:"patient"`
	Visit   *VisitRef         `json:"encounter"`
}

type Assembler struct {
	visits   VisitReader
	patients PatientReader
}

func NewAssembler(visits VisitReader, patients PatientReader) *Assembler {
	return &Assembler{visits: visits, patients: patients}
}

func (a *Assembler) View(ctx context.Context, inv *Invoice) *InvoiceView {
	if inv == nil {
		return nil
	}
	out := &InvoiceView{
		Invoice: inv,
		Patient: &visit.PatientRef{ID: inv.PatientID},
		Visit:   &VisitRef{ID: inv.EncounterID},
	}
	if p, err := a.patients.GetPatient(ctx, inv.PatientID); err == nil {
		out.Patient.PatientNumber = p.PatientNumber
		out.Patient.Name = p.FullName()
		out.Patient.Insured = p.Insured()
	}
	if v, err := a.visits.GetVisit(ctx, inv.EncounterID); err == nil {
		out.Visit.VisitNumber = v.VisitNumber
		out.Visit.CurrentStage = v.CurrentStage
		out.Visit.Status = v.Status
	}
	return out
}

func (a *Assembler) Views(ctx context.Context, invs []*Invoice) []*InvoiceView {
	out := make([]*InvoiceView, len(invs))
	for i, inv := range invs {
		out[i] = a.View(ctx, inv)
	}
	return out
}

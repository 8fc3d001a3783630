package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/domain/laboratory"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/pharmacy"
	"github.com/clinic/clinic/internal/domain/visit"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/metrics"
	"github.com/clinic/clinic/pkg/refnum"
)

type VisitReader interface {
	GetVisit(ctx context.Context, id uuid.UUID) (*visit.Visit, error)
}

type PatientReader interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type LabTestLister interface {
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*laboratory.LabTest, error)
}

type PrescriptionLister interface {
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*pharmacy.Prescription, error)
}

// DrugPricer looks up a branch stock price by prescribed drug name.
type DrugPricer interface {
	PriceFor(ctx context.Context, branchID uuid.UUID, name string) (decimal.Decimal, bool, error)
}

// GenerateResult carries the invoice and whether this call created it.
type GenerateResult struct {
	Invoice *Invoice
	Created bool
}

type Generator struct {
	visits        VisitReader
	patients      PatientReader
	labs          LabTestLister
	prescriptions PrescriptionLister
	drugs         DrugPricer
	charges       ServiceChargeRepository
	invoices      InvoiceRepository
	pricing       Pricing
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	now           func() time.Time
}

type GeneratorDeps struct {
	Visits        VisitReader
	Patients      PatientReader
	Labs          LabTestLister
	Prescriptions PrescriptionLister
	Drugs         DrugPricer
	Charges       ServiceChargeRepository
	Invoices      InvoiceRepository
	Metrics       *metrics.Metrics
	Logger        zerolog.Logger
}

func NewGenerator(deps GeneratorDeps, pricing Pricing) *Generator {
	return &Generator{
		visits:        deps.Visits,
		patients:      deps.Patients,
		labs:          deps.Labs,
		prescriptions: deps.Prescriptions,
		drugs:         deps.Drugs,
		charges:       deps.Charges,
		invoices:      deps.Invoices,
		pricing:       pricing,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (g *Generator) Pricing() Pricing { return g.pricing }

// Generate builds the invoice for a visit from its consultation, prescriptions
// and lab tests. A visit that already has an invoice gets it back unchanged.
func (g *Generator) Generate(ctx context.Context, visitID, staffID uuid.UUID, overrides *PricingOverrides) (*GenerateResult, error) {
	res, err := g.generate(ctx, visitID, staffID, overrides)
	switch {
	case err != nil:
		g.metrics.InvoiceGenerated("failed")
	case res.Created:
		g.metrics.InvoiceGenerated("created")
	default:
		g.metrics.InvoiceGenerated("existing")
	}
	return res, err
}

func (g *Generator) generate(ctx context.Context, visitID, staffID uuid.UUID, overrides *PricingOverrides) (*GenerateResult, error) {
	pricing, err := g.pricing.With(overrides)
	if err != nil {
		return nil, err
	}

	v, err := g.visits.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if v.Status == visit.StatusCancelled {
		return nil, apperr.Conflict("visit %s is cancelled", v.VisitNumber)
	}

	existing, err := g.invoices.GetByEncounter(ctx, v.ID)
	switch {
	case err == nil:
		return &GenerateResult{Invoice: existing}, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, apperr.Wrap(err, "load existing invoice")
	}

	p, err := g.patients.GetPatient(ctx, v.PatientID)
	if err != nil {
		return nil, err
	}

	var items []LineItem
	if v.EverClockedIn(visit.StageDoctor) {
		items = append(items, NewLineItem("Consultation fee", CategoryConsultation, 1, pricing.ConsultationFee))
	}

	drugItems, err := g.drugItems(ctx, v, pricing)
	if err != nil {
		return nil, err
	}
	items = append(items, drugItems...)

	labItems, err := g.labItems(ctx, v, pricing)
	if err != nil {
		return nil, err
	}
	items = append(items, labItems...)

	if len(items) == 0 {
		return nil, apperr.Validation("visit %s has no billable items", v.VisitNumber)
	}

	now := g.now()
	inv := &Invoice{
		InvoiceNumber: refnum.Stamped("INV", now),
		EncounterID:   v.ID,
		PatientID:     p.ID,
		BranchID:      v.BranchID,
		Items:         items,
		Discount:      decimal.Zero,
		PaidAmount:    decimal.Zero,
		Status:        InvoicePending,
		GeneratedBy:   staffID,
	}
	inv.Recalculate(pricing.TaxRate)

	if p.Insured() {
		inv.InsuranceClaim = &InsuranceClaim{
			Provider:     p.Insurance.Provider,
			PolicyNumber: p.Insurance.PolicyNumber,
			ClaimAmount:  inv.GrandTotal.Mul(pricing.InsuranceClaimRatio).Round(2),
			Status:       "PENDING",
			CreatedAt:    now,
		}
	}

	created, err := g.invoices.CreateForEncounter(ctx, inv)
	if err != nil {
		return nil, apperr.Wrap(err, "save invoice")
	}
	if !created {
		// Lost the insert race to a concurrent generation for the same visit.
		inv, err = g.invoices.GetByEncounter(ctx, v.ID)
		if err != nil {
			return nil, apperr.Wrap(err, "load existing invoice")
		}
		return &GenerateResult{Invoice: inv}, nil
	}

	g.logger.Info().
		Str("visit_id", v.ID.String()).
		Str("invoice_number", inv.InvoiceNumber).
		Str("grand_total", inv.GrandTotal.StringFixed(2)).
		Int("items", len(inv.Items)).
		Msg("invoice generated")
	return &GenerateResult{Invoice: inv, Created: true}, nil
}

func (g *Generator) drugItems(ctx context.Context, v *visit.Visit, pricing Pricing) ([]LineItem, error) {
	rxs, err := g.prescriptions.ListByVisit(ctx, v.ID)
	if err != nil {
		return nil, apperr.Wrap(err, "load prescriptions")
	}
	var items []LineItem
	for _, rx := range rxs {
		for _, it := range rx.Items {
			if it.Quantity <= 0 || strings.TrimSpace(it.DrugName) == "" {
				continue
			}
			base, ok, err := g.drugs.PriceFor(ctx, v.BranchID, it.DrugName)
			if err != nil {
				return nil, err
			}
			if !ok {
				base = pricing.DefaultDrugPrice
			}
			unit := base.Mul(pricing.PharmacyMarkup).Round(2)
			li := NewLineItem(drugDescription(it), CategoryPharmacy, it.Quantity, unit)
			li.SourceID = ptr(rx.ID)
			items = append(items, li)
		}
	}
	return items, nil
}

func drugDescription(it pharmacy.PrescriptionItem) string {
	if it.Dosage == "" {
		return it.DrugName
	}
	return fmt.Sprintf("%s %s", it.DrugName, it.Dosage)
}

func (g *Generator) labItems(ctx context.Context, v *visit.Visit, pricing Pricing) ([]LineItem, error) {
	tests, err := g.labs.ListByVisit(ctx, v.ID)
	if err != nil {
		return nil, apperr.Wrap(err, "load lab tests")
	}
	var items []LineItem
	for _, t := range tests {
		charge, err := g.labCharge(ctx, v.BranchID, t)
		if err != nil {
			return nil, err
		}
		li := NewLineItem(t.Name, CategoryLaboratory, 1, pricing.DefaultLabPrice)
		if charge != nil {
			li = NewLineItem(t.Name, CategoryLaboratory, 1, charge.Price)
			li.ServiceChargeID = ptr(charge.ID)
		}
		li.SourceID = ptr(t.ID)
		items = append(items, li)
	}
	return items, nil
}

// labCharge resolves the price record for a lab test: its linked charge, then
// a catalog match by name. A nil charge means the default price applies.
func (g *Generator) labCharge(ctx context.Context, branchID uuid.UUID, t *laboratory.LabTest) (*ServiceCharge, error) {
	if t.ServiceChargeID != nil {
		sc, err := g.charges.GetByID(ctx, *t.ServiceChargeID)
		switch {
		case err == nil && sc.Active:
			return sc, nil
		case err != nil && !errors.Is(err, apperr.ErrNotFound):
			return nil, apperr.Wrap(err, "load lab service charge")
		}
	}
	sc, err := g.charges.FindByName(ctx, branchID, t.Name, CategoryLaboratory)
	if err == nil {
		return sc, nil
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return nil, apperr.Wrap(err, "look up lab service charge")
}

func ptr[T any](v T) *T { return &v }

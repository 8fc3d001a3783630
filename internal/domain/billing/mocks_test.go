package billing

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/domain/laboratory"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/pharmacy"
	"github.com/clinic/clinic/internal/domain/visit"
	"github.com/clinic/clinic/internal/platform/apperr"
)

// -- Invoice repo --

type mockInvoiceRepo struct {
	store   map[uuid.UUID]*Invoice
	updates int
}

func newMockInvoiceRepo() *mockInvoiceRepo {
	return &mockInvoiceRepo{store: make(map[uuid.UUID]*Invoice)}
}

func cloneInvoice(inv *Invoice) *Invoice {
	c := *inv
	c.Items = append([]LineItem(nil), inv.Items...)
	if inv.InsuranceClaim != nil {
		claim := *inv.InsuranceClaim
		c.InsuranceClaim = &claim
	}
	return &c
}

func (m *mockInvoiceRepo) CreateForEncounter(_ context.Context, inv *Invoice) (bool, error) {
	for _, existing := range m.store {
		if existing.EncounterID == inv.EncounterID {
			return false, nil
		}
	}
	inv.ID = uuid.New()
	inv.Version = 1
	m.store[inv.ID] = cloneInvoice(inv)
	return true, nil
}

func (m *mockInvoiceRepo) GetByID(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.store[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return cloneInvoice(inv), nil
}

func (m *mockInvoiceRepo) GetByEncounter(_ context.Context, visitID uuid.UUID) (*Invoice, error) {
	for _, inv := range m.store {
		if inv.EncounterID == visitID {
			return cloneInvoice(inv), nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *mockInvoiceRepo) Update(_ context.Context, inv *Invoice) error {
	stored, ok := m.store[inv.ID]
	if !ok || stored.Version != inv.Version {
		return apperr.ErrVersionConflict
	}
	inv.Version++
	m.store[inv.ID] = cloneInvoice(inv)
	m.updates++
	return nil
}

func (m *mockInvoiceRepo) List(_ context.Context, f InvoiceFilter, limit, offset int) ([]*Invoice, int, error) {
	var out []*Invoice
	for _, inv := range m.store {
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		if f.PatientID != nil && inv.PatientID != *f.PatientID {
			continue
		}
		out = append(out, cloneInvoice(inv))
	}
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

// -- Payment repo --

type mockPaymentRepo struct {
	items []*Payment
}

func (m *mockPaymentRepo) Create(_ context.Context, p *Payment) error {
	p.ID = uuid.New()
	m.items = append(m.items, p)
	return nil
}

func (m *mockPaymentRepo) ListByInvoice(_ context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	var out []*Payment
	for _, p := range m.items {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

// -- Service charge repo --

type mockChargeRepo struct {
	store map[uuid.UUID]*ServiceCharge
}

func newMockChargeRepo(charges ...*ServiceCharge) *mockChargeRepo {
	m := &mockChargeRepo{store: make(map[uuid.UUID]*ServiceCharge)}
	for _, sc := range charges {
		if sc.ID == uuid.Nil {
			sc.ID = uuid.New()
		}
		m.store[sc.ID] = sc
	}
	return m
}

func (m *mockChargeRepo) Create(_ context.Context, sc *ServiceCharge) error {
	sc.ID = uuid.New()
	m.store[sc.ID] = sc
	return nil
}

func (m *mockChargeRepo) GetByID(_ context.Context, id uuid.UUID) (*ServiceCharge, error) {
	sc, ok := m.store[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	c := *sc
	return &c, nil
}

func (m *mockChargeRepo) Update(_ context.Context, sc *ServiceCharge) error {
	if _, ok := m.store[sc.ID]; !ok {
		return apperr.ErrNotFound
	}
	m.store[sc.ID] = sc
	return nil
}

func (m *mockChargeRepo) List(_ context.Context, f ChargeFilter, limit, offset int) ([]*ServiceCharge, int, error) {
	var out []*ServiceCharge
	for _, sc := range m.store {
		if f.BranchID != nil && sc.BranchID != *f.BranchID {
			continue
		}
		if f.Category != "" && sc.Category != f.Category {
			continue
		}
		if f.ActiveOnly && !sc.Active {
			continue
		}
		out = append(out, sc)
	}
	return out, len(out), nil
}

func (m *mockChargeRepo) FindByName(_ context.Context, branchID uuid.UUID, name string, _ Category) (*ServiceCharge, error) {
	for _, sc := range m.store {
		if sc.BranchID == branchID && sc.Active && strings.EqualFold(sc.Name, name) {
			c := *sc
			return &c, nil
		}
	}
	return nil, apperr.ErrNotFound
}

// -- Collaborators --

type fakeVisits map[uuid.UUID]*visit.Visit

func (f fakeVisits) GetVisit(_ context.Context, id uuid.UUID) (*visit.Visit, error) {
	v, ok := f[id]
	if !ok {
		return nil, apperr.NotFound("visit not found")
	}
	return v, nil
}

type fakePatients map[uuid.UUID]*patient.Patient

func (f fakePatients) GetPatient(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := f[id]
	if !ok {
		return nil, apperr.NotFound("patient not found")
	}
	return p, nil
}

type fakeLabs map[uuid.UUID][]*laboratory.LabTest

func (f fakeLabs) ListByVisit(_ context.Context, visitID uuid.UUID) ([]*laboratory.LabTest, error) {
	return f[visitID], nil
}

type fakePrescriptions map[uuid.UUID][]*pharmacy.Prescription

func (f fakePrescriptions) ListByVisit(_ context.Context, visitID uuid.UUID) ([]*pharmacy.Prescription, error) {
	return f[visitID], nil
}

type fakeDrugPrices map[string]decimal.Decimal

func (f fakeDrugPrices) PriceFor(_ context.Context, _ uuid.UUID, name string) (decimal.Decimal, bool, error) {
	p, ok := f[strings.ToLower(name)]
	return p, ok, nil
}

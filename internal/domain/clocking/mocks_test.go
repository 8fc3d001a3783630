package clocking

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/billing"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/staff"
	"github.com/clinic/clinic/internal/domain/visit"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/notification"
)

type noTx struct{}

func (noTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

// -- Visits --

// mockVisits keeps visits serialized so callers never share state with the
// store, like a database row.
type mockVisits struct {
	rows  map[uuid.UUID][]byte
	saves int
}

func newMockVisits() *mockVisits {
	return &mockVisits{rows: make(map[uuid.UUID][]byte)}
}

func (m *mockVisits) put(v *visit.Visit) {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	m.rows[v.ID] = b
}

func (m *mockVisits) GetVisit(_ context.Context, id uuid.UUID) (*visit.Visit, error) {
	b, ok := m.rows[id]
	if !ok {
		return nil, apperr.NotFound("visit not found")
	}
	var v visit.Visit
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	for s, rec := range v.Stages {
		if rec == nil {
			delete(v.Stages, s)
		}
	}
	return &v, nil
}

func (m *mockVisits) Save(ctx context.Context, v *visit.Visit) error {
	stored, err := m.GetVisit(ctx, v.ID)
	if err != nil {
		return err
	}
	if stored.Version != v.Version {
		return apperr.VersionConflict("visit " + v.VisitNumber)
	}
	v.Version++
	m.put(v)
	m.saves++
	return nil
}

func (m *mockVisits) ClockIn(ctx context.Context, actor auth.Actor, visitID uuid.UUID, notes string) (*visit.Visit, error) {
	v, err := m.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if !visit.CanWorkStage(actor, v.CurrentStage) {
		return nil, apperr.Forbidden("role cannot clock in at %s", v.CurrentStage)
	}
	if err := v.ClockIn(actor.StaffID, v.CreatedAt, notes); err != nil {
		return nil, err
	}
	return v, m.Save(ctx, v)
}

// -- People --

type fakePatients map[uuid.UUID]*patient.Patient

func (f fakePatients) GetPatient(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := f[id]
	if !ok {
		return nil, apperr.NotFound("patient not found")
	}
	return p, nil
}

type fakeStaff struct {
	members []*staff.Staff
	err     error
}

func (f *fakeStaff) ActiveForRole(_ context.Context, role string, branchID *uuid.UUID) ([]*staff.Staff, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*staff.Staff
	for _, m := range f.members {
		if m.Active && m.Role == role && (branchID == nil || (m.BranchID != nil && *m.BranchID == *branchID)) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStaff) GetStaff(_ context.Context, id uuid.UUID) (*staff.Staff, error) {
	for _, m := range f.members {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, apperr.NotFound("staff not found")
}

type fakeAppointments struct {
	completed []uuid.UUID
}

func (f *fakeAppointments) Complete(_ context.Context, id uuid.UUID) error {
	f.completed = append(f.completed, id)
	return nil
}

// -- Side-effect collaborators --

type recordingNotifier struct {
	alerts []notification.Alert
	fail   error
}

func (n *recordingNotifier) Notify(_ context.Context, a notification.Alert) notification.Report {
	n.alerts = append(n.alerts, a)
	if n.fail != nil {
		return notification.Report{EmailsFailed: len(a.Recipients), Errors: []error{n.fail}}
	}
	return notification.Report{EmailsSent: len(a.Recipients), InAppCreated: len(a.Recipients)}
}

type fakeGenerator struct {
	calls    []uuid.UUID
	invoices *mockInvoices
	fail     error
}

func (g *fakeGenerator) Generate(ctx context.Context, visitID, staffID uuid.UUID, _ *billing.PricingOverrides) (*billing.GenerateResult, error) {
	g.calls = append(g.calls, visitID)
	if g.fail != nil {
		return nil, g.fail
	}
	if inv, err := g.invoices.GetByEncounter(ctx, visitID); err == nil {
		return &billing.GenerateResult{Invoice: inv}, nil
	}
	inv := &billing.Invoice{
		InvoiceNumber: "INV-GEN",
		EncounterID:   visitID,
		Items:         []billing.LineItem{billing.NewLineItem("Consultation fee", billing.CategoryConsultation, 1, dec("5000"))},
		Status:        billing.InvoicePending,
		GeneratedBy:   staffID,
	}
	inv.Recalculate(billing.DefaultPricing().TaxRate)
	if _, err := g.invoices.CreateForEncounter(ctx, inv); err != nil {
		return nil, err
	}
	return &billing.GenerateResult{Invoice: inv, Created: true}, nil
}

// -- Billing repositories --

type mockInvoices struct {
	rows map[uuid.UUID][]byte
}

func newMockInvoices() *mockInvoices {
	return &mockInvoices{rows: make(map[uuid.UUID][]byte)}
}

func (m *mockInvoices) load(id uuid.UUID) (*billing.Invoice, error) {
	b, ok := m.rows[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	var inv billing.Invoice
	return &inv, json.Unmarshal(b, &inv)
}

func (m *mockInvoices) store(inv *billing.Invoice) {
	b, err := json.Marshal(inv)
	if err != nil {
		panic(err)
	}
	m.rows[inv.ID] = b
}

func (m *mockInvoices) CreateForEncounter(ctx context.Context, inv *billing.Invoice) (bool, error) {
	if _, err := m.GetByEncounter(ctx, inv.EncounterID); err == nil {
		return false, nil
	}
	inv.ID = uuid.New()
	inv.Version = 1
	m.store(inv)
	return true, nil
}

func (m *mockInvoices) GetByID(_ context.Context, id uuid.UUID) (*billing.Invoice, error) {
	return m.load(id)
}

func (m *mockInvoices) GetByEncounter(_ context.Context, visitID uuid.UUID) (*billing.Invoice, error) {
	for id := range m.rows {
		inv, err := m.load(id)
		if err != nil {
			return nil, err
		}
		if inv.EncounterID == visitID {
			return inv, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *mockInvoices) Update(_ context.Context, inv *billing.Invoice) error {
	stored, err := m.load(inv.ID)
	if err != nil {
		return err
	}
	if stored.Version != inv.Version {
		return apperr.ErrVersionConflict
	}
	inv.Version++
	m.store(inv)
	return nil
}

func (m *mockInvoices) List(context.Context, billing.InvoiceFilter, int, int) ([]*billing.Invoice, int, error) {
	return nil, 0, errors.New("not used")
}

type mockPayments struct {
	items []*billing.Payment
}

func (m *mockPayments) Create(_ context.Context, p *billing.Payment) error {
	p.ID = uuid.New()
	m.items = append(m.items, p)
	return nil
}

func (m *mockPayments) ListByInvoice(context.Context, uuid.UUID) ([]*billing.Payment, error) {
	return m.items, nil
}

type mockCharges map[uuid.UUID]*billing.ServiceCharge

func (m mockCharges) Create(_ context.Context, sc *billing.ServiceCharge) error {
	sc.ID = uuid.New()
	m[sc.ID] = sc
	return nil
}

func (m mockCharges) GetByID(_ context.Context, id uuid.UUID) (*billing.ServiceCharge, error) {
	sc, ok := m[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	c := *sc
	return &c, nil
}

func (m mockCharges) Update(_ context.Context, sc *billing.ServiceCharge) error {
	m[sc.ID] = sc
	return nil
}

func (m mockCharges) List(context.Context, billing.ChargeFilter, int, int) ([]*billing.ServiceCharge, int, error) {
	return nil, 0, errors.New("not used")
}

func (m mockCharges) FindByName(_ context.Context, branchID uuid.UUID, name string, _ billing.Category) (*billing.ServiceCharge, error) {
	for _, sc := range m {
		if sc.BranchID == branchID && strings.EqualFold(sc.Name, name) {
			return sc, nil
		}
	}
	return nil, apperr.ErrNotFound
}

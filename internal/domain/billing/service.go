package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/metrics"
	"github.com/clinic/clinic/pkg/refnum"
)

type Service struct {
	invoices InvoiceRepository
	payments PaymentRepository
	charges  ServiceChargeRepository
	pricing  Pricing
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(invoices InvoiceRepository, payments PaymentRepository, charges ServiceChargeRepository, pricing Pricing, m *metrics.Metrics) *Service {
	return &Service{
		invoices: invoices,
		payments: payments,
		charges:  charges,
		pricing:  pricing,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// -- Service charges --

func (s *Service) CreateCharge(ctx context.Context, sc *ServiceCharge) error {
	if err := validateCharge(sc); err != nil {
		return err
	}
	if err := s.charges.Create(ctx, sc); err != nil {
		return apperr.Wrap(err, "create service charge")
	}
	return nil
}

func (s *Service) GetCharge(ctx context.Context, id uuid.UUID) (*ServiceCharge, error) {
	sc, err := s.charges.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Lookup(err, "service charge %s not found", id)
	}
	return sc, nil
}

func (s *Service) UpdateCharge(ctx context.Context, sc *ServiceCharge) error {
	if err := validateCharge(sc); err != nil {
		return err
	}
	if err := s.charges.Update(ctx, sc); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.NotFound("service charge %s not found", sc.ID)
		}
		return apperr.Wrap(err, "update service charge")
	}
	return nil
}

func (s *Service) ListCharges(ctx context.Context, f ChargeFilter, limit, offset int) ([]*ServiceCharge, int, error) {
	items, total, err := s.charges.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap(err, "list service charges")
	}
	return items, total, nil
}

func validateCharge(sc *ServiceCharge) error {
	sc.Name = strings.TrimSpace(sc.Name)
	if sc.Name == "" {
		return apperr.Validation("name is required")
	}
	if sc.BranchID == uuid.Nil {
		return apperr.Validation("branchId is required")
	}
	if sc.Category == "" {
		sc.Category = CategoryOther
	}
	if !ValidCategory(sc.Category) {
		return apperr.Validation("invalid category %q", sc.Category)
	}
	if sc.Price.IsNegative() {
		return apperr.Validation("price must not be negative")
	}
	return nil
}

// -- Invoices --

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Lookup(err, "invoice not found")
	}
	return inv, nil
}

func (s *Service) GetInvoiceByVisit(ctx context.Context, visitID uuid.UUID) (*Invoice, error) {
	inv, err := s.invoices.GetByEncounter(ctx, visitID)
	if err != nil {
		return nil, apperr.Lookup(err, "no invoice for visit %s", visitID)
	}
	return inv, nil
}

func (s *Service) ListInvoices(ctx context.Context, f InvoiceFilter, limit, offset int) ([]*Invoice, int, error) {
	items, total, err := s.invoices.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap(err, "list invoices")
	}
	return items, total, nil
}

// CancelInvoice voids an invoice nothing has been paid against.
func (s *Service) CancelInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != InvoicePending {
		return nil, apperr.Conflict("only PENDING invoices can be cancelled, invoice %s is %s", inv.InvoiceNumber, inv.Status)
	}
	inv.Status = InvoiceCancelled
	if err := s.save(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	if _, err := s.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	items, err := s.payments.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, apperr.Wrap(err, "list payments")
	}
	return items, nil
}

func (s *Service) save(ctx context.Context, inv *Invoice) error {
	if err := inv.CheckTotals(); err != nil {
		return apperr.Wrap(err, "invoice totals")
	}
	if err := s.invoices.Update(ctx, inv); err != nil {
		if errors.Is(err, apperr.ErrVersionConflict) {
			return apperr.VersionConflict("invoice " + inv.InvoiceNumber)
		}
		return apperr.Wrap(err, "update invoice")
	}
	return nil
}

// -- Settlement --

// AdditionalItem is an ad-hoc charge added at the billing desk. Only the
// charge id and quantity are read; the price comes from the catalog.
type AdditionalItem struct {
	ServiceChargeID uuid.UUID `json:"serviceChargeId"`
	Quantity        int       `json:"quantity"`
}

type SettleRequest struct {
	VisitID         uuid.UUID
	StaffID         uuid.UUID
	Amount          decimal.Decimal
	Method          PaymentMethod
	AdditionalItems []AdditionalItem
	Notes           string
}

// Settle appends verified catalog items to inv, recomputes its totals from the
// full item list, applies the payment and records it. Callers run it inside
// the transaction that also advances the visit.
func (s *Service) Settle(ctx context.Context, inv *Invoice, req SettleRequest) (*Payment, error) {
	if !ValidMethod(req.Method) {
		return nil, apperr.Validation("invalid paymentMethod %q", req.Method)
	}
	if req.Amount.IsNegative() {
		return nil, apperr.Validation("paymentAmount must not be negative")
	}
	if inv.Status == InvoiceCancelled {
		return nil, apperr.Conflict("invoice %s is cancelled", inv.InvoiceNumber)
	}

	added, err := s.verifyItems(ctx, inv.BranchID, req.AdditionalItems)
	if err != nil {
		return nil, err
	}
	inv.Items = append(inv.Items, added...)
	inv.Recalculate(s.pricing.TaxRate)

	if err := inv.ApplyPayment(req.Amount); err != nil {
		return nil, err
	}

	p := &Payment{
		InvoiceID:  inv.ID,
		VisitID:    req.VisitID,
		Amount:     req.Amount,
		Method:     req.Method,
		Reference:  refnum.Stamped("PAY", s.now()),
		ReceivedBy: req.StaffID,
		Status:     PaymentCompleted,
	}
	if n := strings.TrimSpace(req.Notes); n != "" {
		p.Notes = &n
	}
	if err := s.save(ctx, inv); err != nil {
		return nil, err
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, apperr.Wrap(err, "record payment")
	}
	s.metrics.Payment(string(p.Method), p.Amount)
	return p, nil
}

func (s *Service) verifyItems(ctx context.Context, branchID uuid.UUID, reqs []AdditionalItem) ([]LineItem, error) {
	items := make([]LineItem, 0, len(reqs))
	for i, r := range reqs {
		if r.ServiceChargeID == uuid.Nil {
			return nil, apperr.Validation("additionalItems[%d].serviceChargeId is required", i)
		}
		if r.Quantity <= 0 {
			return nil, apperr.Validation("additionalItems[%d].quantity must be a positive integer", i)
		}
		sc, err := s.GetCharge(ctx, r.ServiceChargeID)
		if err != nil {
			return nil, err
		}
		if !sc.Active {
			return nil, apperr.Validation("service charge %q is not active", sc.Name)
		}
		if sc.BranchID != branchID {
			return nil, apperr.Validation("service charge %q belongs to another branch", sc.Name)
		}
		li := NewLineItem(sc.Name, sc.Category, r.Quantity, sc.Price)
		li.ServiceChargeID = ptr(sc.ID)
		items = append(items, li)
	}
	return items, nil
}

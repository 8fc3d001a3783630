package pharmacy

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/domain/visit"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

type VisitGetter interface {
	GetVisit(ctx context.Context, id uuid.UUID) (*visit.Visit, error)
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	stock         StockRepository
	prescriptions PrescriptionRepository
	visits        VisitGetter
	tx            Transactor
}

func NewService(stock StockRepository, prescriptions PrescriptionRepository, visits VisitGetter, tx Transactor) *Service {
	return &Service{stock: stock, prescriptions: prescriptions, visits: visits, tx: tx}
}

// -- Stock --

func (s *Service) UpsertStock(ctx context.Context, item *StockItem) error {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return apperr.Validation("name is required")
	}
	if item.BranchID == uuid.Nil {
		return apperr.Validation("branchId is required")
	}
	if item.UnitPrice.IsNegative() {
		return apperr.Validation("unitPrice must not be negative")
	}
	if item.Quantity < 0 {
		return apperr.Validation("quantity must not be negative")
	}
	if err := s.stock.Upsert(ctx, item); err != nil {
		return apperr.Wrap(err, "save stock item")
	}
	return nil
}

func (s *Service) ListStock(ctx context.Context, branchID uuid.UUID) ([]*StockItem, error) {
	items, err := s.stock.ListByBranch(ctx, branchID)
	if err != nil {
		return nil, apperr.Wrap(err, "list stock")
	}
	return items, nil
}

// PriceFor returns the branch's stock price for a prescribed drug name. The
// boolean is false when no stock item matches.
func (s *Service) PriceFor(ctx context.Context, branchID uuid.UUID, name string) (decimal.Decimal, bool, error) {
	items, err := s.stock.ListByBranch(ctx, branchID)
	if err != nil {
		return decimal.Zero, false, apperr.Wrap(err, "load stock prices")
	}
	price, ok := priceOf(name, items)
	return price, ok, nil
}

// -- Prescriptions --

func (s *Service) Prescribe(ctx context.Context, actor auth.Actor, visitID uuid.UUID, items []PrescriptionItem) (*Prescription, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("at least one item is required")
	}
	for i := range items {
		items[i].DrugName = strings.TrimSpace(items[i].DrugName)
		if items[i].DrugName == "" {
			return nil, apperr.Validation("items[%d].drugName is required", i)
		}
		if items[i].Quantity <= 0 {
			return nil, apperr.Validation("items[%d].quantity must be a positive integer", i)
		}
	}
	v, err := s.visits.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if !v.InProgress() {
		return nil, apperr.Conflict("cannot prescribe on a %s visit", v.Status)
	}
	p := &Prescription{
		VisitID:      v.ID,
		PatientID:    v.PatientID,
		BranchID:     v.BranchID,
		Items:        items,
		PrescribedBy: actor.StaffID,
		Status:       PrescriptionPending,
	}
	if err := s.prescriptions.Create(ctx, p); err != nil {
		return nil, apperr.Wrap(err, "create prescription")
	}
	return p, nil
}

func (s *Service) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Prescription, error) {
	items, err := s.prescriptions.ListByVisit(ctx, visitID)
	if err != nil {
		return nil, apperr.Wrap(err, "list prescriptions")
	}
	return items, nil
}

// Dispense marks a pending prescription as handed over and takes the drugs
// out of the branch stock, all or nothing.
func (s *Service) Dispense(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Lookup(err, "prescription not found")
	}
	if p.Status != PrescriptionPending {
		return nil, apperr.Conflict("prescription is already %s", p.Status)
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		for _, it := range p.Items {
			if err := s.stock.Decrement(ctx, p.BranchID, it.DrugName, it.Quantity); err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					return apperr.Conflict("insufficient stock for %s", it.DrugName)
				}
				return apperr.Wrap(err, "update stock")
			}
		}
		if err := s.prescriptions.MarkDispensed(ctx, p.ID, actor.StaffID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.VersionConflict("prescription")
			}
			return apperr.Wrap(err, "update prescription")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.Status = PrescriptionDispensed
	p.DispensedBy = &actor.StaffID
	return p, nil
}

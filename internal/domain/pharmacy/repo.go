package pharmacy

import (
	"context"

	"github.com/google/uuid"
)

type StockRepository interface {
	// Upsert inserts the item or, when the branch already stocks a drug of
	// the same name, replaces its price and quantity.
	Upsert(ctx context.Context, s *StockItem) error
	ListByBranch(ctx context.Context, branchID uuid.UUID) ([]*StockItem, error)
	// Decrement removes qty units, failing with apperr.ErrNotFound when the
	// item is missing or short.
	Decrement(ctx context.Context, branchID uuid.UUID, name string, qty int) error
}

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Prescription, error)
	MarkDispensed(ctx context.Context, id, staffID uuid.UUID) error
}

package billing

import (
	"context"

	"github.com/google/uuid"
)

type InvoiceRepository interface {
	// CreateForEncounter inserts inv unless the visit already has an invoice.
	// It reports whether a row was inserted.
	CreateForEncounter(ctx context.Context, inv *Invoice) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetByEncounter(ctx context.Context, visitID uuid.UUID) (*Invoice, error)
	// Update writes inv under its version and bumps inv.Version.
	Update(ctx context.Context, inv *Invoice) error
	List(ctx context.Context, f InvoiceFilter, limit, offset int) ([]*Invoice, int, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)
}

type ServiceChargeRepository interface {
	Create(ctx context.Context, sc *ServiceCharge) error
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceCharge, error)
	Update(ctx context.Context, sc *ServiceCharge) error
	List(ctx context.Context, f ChargeFilter, limit, offset int) ([]*ServiceCharge, int, error)
	// FindByName returns the branch's active charge with the given name,
	// preferring one in category when category is set.
	FindByName(ctx context.Context, branchID uuid.UUID, name string, category Category) (*ServiceCharge, error)
}

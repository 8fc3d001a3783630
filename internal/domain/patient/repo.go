package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	ListByBranch(ctx context.Context, branchID *uuid.UUID, query string, limit, offset int) ([]*Patient, int, error)
}

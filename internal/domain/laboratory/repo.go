package laboratory

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, t *LabTest) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabTest, error)
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*LabTest, error)
	Update(ctx context.Context, t *LabTest) error
}

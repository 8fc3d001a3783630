package visit

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	// Update writes v if its version is still current and bumps v.Version.
	// A stale version yields apperr.ErrVersionConflict.
	Update(ctx context.Context, v *Visit) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Visit, int, error)
}

package staff

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Staff) error
	GetByID(ctx context.Context, id uuid.UUID) (*Staff, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Staff, int, error)
	// ListActiveByRoleAndBranch returns active staff holding role. A nil
	// branch matches staff of every branch.
	ListActiveByRoleAndBranch(ctx context.Context, role string, branchID *uuid.UUID) ([]*Staff, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

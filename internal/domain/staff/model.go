package staff

import (
	"time"

	"github.com/google/uuid"
)

// Staff is a clinic employee who can be assigned to visit stages.
type Staff struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Email     string     `db:"email" json:"email"`
	Role      string     `db:"role" json:"role"`
	BranchID  *uuid.UUID `db:"branch_id" json:"branchId,omitempty"`
	Active    bool       `db:"active" json:"active"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Role       string
	BranchID   *uuid.UUID
	ActiveOnly bool
}

package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

// Store persists in-app notifications.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	ListByRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error)
	// MarkRead fails with apperr.ErrNotFound when id is not addressed to recipientID.
	MarkRead(ctx context.Context, id, recipientID uuid.UUID, at time.Time) (*Notification, error)
}

type storePG struct {
	pool *pgxpool.Pool
}

func NewStorePG(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

func (s *storePG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, s.pool)
}

const notifCols = `id, recipient_id, title, body, visit_id, read, created_at, read_at`

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	if err := row.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Body, &n.VisitID, &n.Read, &n.CreatedAt, &n.ReadAt); err != nil {
		return nil, db.NoRows(err)
	}
	return &n, nil
}

func (s *storePG) Create(ctx context.Context, n *Notification) error {
	n.ID = uuid.New()
	return s.conn(ctx).QueryRow(ctx, `
		INSERT INTO notifications (id, recipient_id, title, body, visit_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		n.ID, n.RecipientID, n.Title, n.Body, n.VisitID,
	).Scan(&n.CreatedAt)
}

func (s *storePG) ListByRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	where := ` WHERE recipient_id = $1`
	if unreadOnly {
		where += ` AND NOT read`
	}
	var total int
	if err := s.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM notifications`+where, recipientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.conn(ctx).Query(ctx, `SELECT `+notifCols+` FROM notifications`+where+`
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, recipientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

func (s *storePG) MarkRead(ctx context.Context, id, recipientID uuid.UUID, at time.Time) (*Notification, error) {
	return scanNotification(s.conn(ctx).QueryRow(ctx, `
		UPDATE notifications SET read = TRUE, read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND recipient_id = $2
		RETURNING `+notifCols, id, recipientID, at))
}

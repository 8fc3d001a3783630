package pharmacy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
)

// -- Stock --

type stockRepoPG struct {
	pool *pgxpool.Pool
}

func NewStockRepo(pool *pgxpool.Pool) StockRepository {
	return &stockRepoPG{pool: pool}
}

func (r *stockRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const stockCols = `id, branch_id, name, unit_price, quantity, created_at, updated_at`

func (r *stockRepoPG) Upsert(ctx context.Context, s *StockItem) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO pharmacy_stock (id, branch_id, name, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (branch_id, lower(name)) DO UPDATE
			SET unit_price = EXCLUDED.unit_price, quantity = EXCLUDED.quantity, updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		s.ID, s.BranchID, s.Name, s.UnitPrice, s.Quantity,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *stockRepoPG) ListByBranch(ctx context.Context, branchID uuid.UUID) ([]*StockItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+stockCols+` FROM pharmacy_stock WHERE branch_id = $1 ORDER BY name`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*StockItem
	for rows.Next() {
		var s StockItem
		if err := rows.Scan(&s.ID, &s.BranchID, &s.Name, &s.UnitPrice, &s.Quantity, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}

func (r *stockRepoPG) Decrement(ctx context.Context, branchID uuid.UUID, name string, qty int) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE pharmacy_stock SET quantity = quantity - $3, updated_at = NOW()
		WHERE branch_id = $1 AND lower(name) = lower($2) AND quantity >= $3`,
		branchID, name, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// -- Prescriptions --

type prescriptionRepoPG struct {
	pool *pgxpool.Pool
}

func NewPrescriptionRepo(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const rxCols = `id, visit_id, patient_id, branch_id, items, prescribed_by, status, dispensed_by, created_at, updated_at`

func (r *prescriptionRepoPG) scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	var items []byte
	err := row.Scan(&p.ID, &p.VisitID, &p.PatientID, &p.BranchID, &items, &p.PrescribedBy,
		&p.Status, &p.DispensedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, db.NoRows(err)
	}
	if err := json.Unmarshal(items, &p.Items); err != nil {
		return nil, fmt.Errorf("decode items of prescription %s: %w", p.ID, err)
	}
	return &p, nil
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	items, err := json.Marshal(p.Items)
	if err != nil {
		return fmt.Errorf("encode prescription items: %w", err)
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (id, visit_id, patient_id, branch_id, items, prescribed_by, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		p.ID, p.VisitID, p.PatientID, p.BranchID, items, p.PrescribedBy, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return r.scanPrescription(r.conn(ctx).QueryRow(ctx, `SELECT `+rxCols+` FROM prescriptions WHERE id = $1`, id))
}

func (r *prescriptionRepoPG) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+rxCols+` FROM prescriptions WHERE visit_id = $1 ORDER BY created_at`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Prescription
	for rows.Next() {
		p, err := r.scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *prescriptionRepoPG) MarkDispensed(ctx context.Context, id, staffID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescriptions SET status = $2, dispensed_by = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4`,
		id, PrescriptionDispensed, staffID, PrescriptionPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
)

// -- Invoice --

type invoiceRepoPG struct{ pool *pgxpool.Pool }

func NewInvoiceRepoPG(pool *pgxpool.Pool) InvoiceRepository { return &invoiceRepoPG{pool: pool} }

func (r *invoiceRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const invCols = `id, invoice_number, encounter_id, patient_id, branch_id, items,
	subtotal, tax, discount, grand_total, paid_amount, balance,
	status, insurance_claim, generated_by, version, created_at, updated_at`

func (r *invoiceRepoPG) scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var items, claim []byte
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.EncounterID, &inv.PatientID, &inv.BranchID, &items,
		&inv.Subtotal, &inv.Tax, &inv.Discount, &inv.GrandTotal, &inv.PaidAmount, &inv.Balance,
		&inv.Status, &claim, &inv.GeneratedBy, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, db.NoRows(err)
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return nil, fmt.Errorf("decode items of invoice %s: %w", inv.ID, err)
	}
	if len(claim) > 0 && string(claim) != "null" {
		inv.InsuranceClaim = &InsuranceClaim{}
		if err := json.Unmarshal(claim, inv.InsuranceClaim); err != nil {
			return nil, fmt.Errorf("decode insurance claim of invoice %s: %w", inv.ID, err)
		}
	}
	return &inv, nil
}

func encodeInvoiceDocs(inv *Invoice) (items, claim []byte, err error) {
	if inv.Items == nil {
		inv.Items = []LineItem{}
	}
	if items, err = json.Marshal(inv.Items); err != nil {
		return nil, nil, fmt.Errorf("encode invoice items: %w", err)
	}
	if inv.InsuranceClaim != nil {
		if claim, err = json.Marshal(inv.InsuranceClaim); err != nil {
			return nil, nil, fmt.Errorf("encode insurance claim: %w", err)
		}
	}
	return items, claim, nil
}

func (r *invoiceRepoPG) CreateForEncounter(ctx context.Context, inv *Invoice) (bool, error) {
	inv.ID = uuid.New()
	inv.Version = 1
	items, claim, err := encodeInvoiceDocs(inv)
	if err != nil {
		return false, err
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO invoices (id, invoice_number, encounter_id, patient_id, branch_id, items,
			subtotal, tax, discount, grand_total, paid_amount, balance,
			status, insurance_claim, generated_by, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (encounter_id) DO NOTHING
		RETURNING created_at, updated_at`,
		inv.ID, inv.InvoiceNumber, inv.EncounterID, inv.PatientID, inv.BranchID, items,
		inv.Subtotal, inv.Tax, inv.Discount, inv.GrandTotal, inv.PaidAmount, inv.Balance,
		inv.Status, claim, inv.GeneratedBy, inv.Version,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return r.scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invCols+` FROM invoices WHERE id = $1`, id))
}

func (r *invoiceRepoPG) GetByEncounter(ctx context.Context, visitID uuid.UUID) (*Invoice, error) {
	return r.scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invCols+` FROM invoices WHERE encounter_id = $1`, visitID))
}

func (r *invoiceRepoPG) Update(ctx context.Context, inv *Invoice) error {
	items, claim, err := encodeInvoiceDocs(inv)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	err = db.CheckVersion(r.conn(ctx).Exec(ctx, `
		UPDATE invoices SET items = $3, subtotal = $4, tax = $5, discount = $6, grand_total = $7,
			paid_amount = $8, balance = $9, status = $10, insurance_claim = $11,
			version = version + 1, updated_at = $12
		WHERE id = $1 AND version = $2`,
		inv.ID, inv.Version, items, inv.Subtotal, inv.Tax, inv.Discount, inv.GrandTotal,
		inv.PaidAmount, inv.Balance, inv.Status, claim, now))
	if err != nil {
		return err
	}
	inv.Version++
	inv.UpdatedAt = now
	return nil
}

func (r *invoiceRepoPG) List(ctx context.Context, f InvoiceFilter, limit, offset int) ([]*Invoice, int, error) {
	var where []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.PatientID != nil {
		add("patient_id = $%d", *f.PatientID)
	}
	if f.BranchID != nil {
		add("branch_id = $%d", *f.BranchID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoices`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT %s FROM invoices%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		invCols, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Invoice
	for rows.Next() {
		inv, err := r.scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	return items, total, rows.Err()
}

// -- Payment --

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository { return &paymentRepoPG{pool: pool} }

func (r *paymentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const payCols = `id, invoice_id, visit_id, amount, method, reference, received_by, status, notes, created_at`

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO payments (id, invoice_id, visit_id, amount, method, reference, received_by, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		p.ID, p.InvoiceID, p.VisitID, p.Amount, p.Method, p.Reference, p.ReceivedBy, p.Status, p.Notes,
	).Scan(&p.CreatedAt)
}

func (r *paymentRepoPG) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+payCols+` FROM payments WHERE invoice_id = $1 ORDER BY created_at`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.VisitID, &p.Amount, &p.Method, &p.Reference,
			&p.ReceivedBy, &p.Status, &p.Notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// -- ServiceCharge --

type chargeRepoPG struct{ pool *pgxpool.Pool }

func NewServiceChargeRepoPG(pool *pgxpool.Pool) ServiceChargeRepository {
	return &chargeRepoPG{pool: pool}
}

func (r *chargeRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const chargeCols = `id, branch_id, name, category, price, active, created_at, updated_at`

func (r *chargeRepoPG) scanCharge(row pgx.Row) (*ServiceCharge, error) {
	var sc ServiceCharge
	err := row.Scan(&sc.ID, &sc.BranchID, &sc.Name, &sc.Category, &sc.Price, &sc.Active, &sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		return nil, db.NoRows(err)
	}
	return &sc, nil
}

func (r *chargeRepoPG) Create(ctx context.Context, sc *ServiceCharge) error {
	sc.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO service_charges (id, branch_id, name, category, price, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		sc.ID, sc.BranchID, sc.Name, sc.Category, sc.Price, sc.Active,
	).Scan(&sc.CreatedAt, &sc.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("service charge %q already exists in this branch", sc.Name)
	}
	return err
}

func (r *chargeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ServiceCharge, error) {
	return r.scanCharge(r.conn(ctx).QueryRow(ctx, `SELECT `+chargeCols+` FROM service_charges WHERE id = $1`, id))
}

func (r *chargeRepoPG) Update(ctx context.Context, sc *ServiceCharge) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE service_charges SET name = $2, category = $3, price = $4, active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		sc.ID, sc.Name, sc.Category, sc.Price, sc.Active,
	).Scan(&sc.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("service charge %q already exists in this branch", sc.Name)
	}
	return db.NoRows(err)
}

func (r *chargeRepoPG) List(ctx context.Context, f ChargeFilter, limit, offset int) ([]*ServiceCharge, int, error) {
	var where []string
	var args []interface{}
	if f.BranchID != nil {
		args = append(args, *f.BranchID)
		where = append(where, fmt.Sprintf("branch_id = $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.ActiveOnly {
		where = append(where, "active")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM service_charges`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT %s FROM service_charges%s ORDER BY category, name LIMIT $%d OFFSET $%d`,
		chargeCols, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*ServiceCharge
	for rows.Next() {
		sc, err := r.scanCharge(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, sc)
	}
	return out, total, rows.Err()
}

func (r *chargeRepoPG) FindByName(ctx context.Context, branchID uuid.UUID, name string, category Category) (*ServiceCharge, error) {
	return r.scanCharge(r.conn(ctx).QueryRow(ctx, `
		SELECT `+chargeCols+` FROM service_charges
		WHERE branch_id = $1 AND active AND lower(name) = lower($2)
		ORDER BY (category = $3) DESC, updated_at DESC
		LIMIT 1`,
		branchID, strings.TrimSpace(name), category))
}

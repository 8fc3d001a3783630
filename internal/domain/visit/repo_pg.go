package visit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const visitCols = `id, visit_number, patient_id, branch_id, appointment_id, current_stage, status, lab_only,
	stages, history, cancel_reason, created_by, version, created_at, updated_at, completed_at`

func (r *repoPG) scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	var stages, history []byte
	err := row.Scan(&v.ID, &v.VisitNumber, &v.PatientID, &v.BranchID, &v.AppointmentID,
		&v.CurrentStage, &v.Status, &v.LabOnly, &stages, &history, &v.CancelReason,
		&v.CreatedBy, &v.Version, &v.CreatedAt, &v.UpdatedAt, &v.CompletedAt)
	if err != nil {
		return nil, db.NoRows(err)
	}
	if err := json.Unmarshal(stages, &v.Stages); err != nil {
		return nil, fmt.Errorf("decode stages of visit %s: %w", v.ID, err)
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &v.History); err != nil {
			return nil, fmt.Errorf("decode history of visit %s: %w", v.ID, err)
		}
	}
	for s, rec := range v.Stages {
		if rec == nil {
			delete(v.Stages, s)
		}
	}
	return &v, nil
}

func encodeDocs(v *Visit) (stages, history []byte, err error) {
	if stages, err = json.Marshal(v.Stages); err != nil {
		return nil, nil, fmt.Errorf("encode stages: %w", err)
	}
	if v.History == nil {
		v.History = []Event{}
	}
	if history, err = json.Marshal(v.History); err != nil {
		return nil, nil, fmt.Errorf("encode history: %w", err)
	}
	return stages, history, nil
}

func (r *repoPG) Create(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()
	v.Version = 1
	stages, history, err := encodeDocs(v)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO visits (id, visit_number, patient_id, branch_id, appointment_id, current_stage,
			status, lab_only, stages, history, created_by, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		v.ID, v.VisitNumber, v.PatientID, v.BranchID, v.AppointmentID, v.CurrentStage,
		v.Status, v.LabOnly, stages, history, v.CreatedBy, v.Version,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return r.scanVisit(r.conn(ctx).QueryRow(ctx, `SELECT `+visitCols+` FROM visits WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, v *Visit) error {
	stages, history, err := encodeDocs(v)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	err = db.CheckVersion(r.conn(ctx).Exec(ctx, `
		UPDATE visits SET current_stage = $3, status = $4, stages = $5, history = $6,
			cancel_reason = $7, completed_at = $8, version = version + 1, updated_at = $9
		WHERE id = $1 AND version = $2`,
		v.ID, v.Version, v.CurrentStage, v.Status, stages, history,
		v.CancelReason, v.CompletedAt, now))
	if err != nil {
		return err
	}
	v.Version++
	v.UpdatedAt = now
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Visit, int, error) {
	var where []string
	var args []interface{}
	add := func(cond string, val interface{}) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Stage != "" {
		add("current_stage = $%d", f.Stage)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.BranchID != nil {
		add("branch_id = $%d", *f.BranchID)
	}
	if f.PatientID != nil {
		add("patient_id = $%d", *f.PatientID)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM visits`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT %s FROM visits%s ORDER BY updated_at LIMIT $%d OFFSET $%d`,
		visitCols, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Visit
	for rows.Next() {
		v, err := r.scanVisit(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}

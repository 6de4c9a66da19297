package examination

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eyecare/eyecare/internal/domain/exam"
	"github.com/eyecare/eyecare/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type examinationRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &examinationRepoPG{pool: pool}
}

func (r *examinationRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const examinationCols = `id, kind, recorded_at, form, bundles, warnings, created_by, created_at`

func (r *examinationRepoPG) scan(row pgx.Row) (*Examination, error) {
	var e Examination
	var form, bundles, warnings []byte
	if err := row.Scan(&e.ID, &e.Kind, &e.RecordedAt, &form, &bundles, &warnings, &e.CreatedBy, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Form = form
	if err := decodeColumns(&e, bundles, warnings); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *examinationRepoPG) Create(ctx context.Context, e *Examination) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	enc, err := encode(e)
	if err != nil {
		return err
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO examination (id, kind, recorded_at, form, bundles, warnings, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		e.ID, e.Kind, e.RecordedAt, []byte(e.Form), enc.bundles, enc.warnings, e.CreatedBy,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert examination: %w", err)
	}
	return nil
}

func (r *examinationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Examination, error) {
	e, err := r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+examinationCols+` FROM examination WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get examination %s: %w", id, err)
	}
	return e, nil
}

func (r *examinationRepoPG) List(ctx context.Context, kind exam.Kind, limit, offset int) ([]*Examination, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM examination WHERE $1 = '' OR kind = $1`, string(kind),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count examinations: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+examinationCols+` FROM examination
		WHERE $1 = '' OR kind = $1
		ORDER BY recorded_at DESC, created_at DESC
		LIMIT $2 OFFSET $3`, string(kind), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list examinations: %w", err)
	}
	defer rows.Close()

	var items []*Examination
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

func (r *examinationRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM examination WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete examination %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

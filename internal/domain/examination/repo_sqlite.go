package examination

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eyecare/eyecare/internal/domain/exam"
)

// SQLite stores timestamps as RFC 3339 text in UTC so that they sort
// lexically.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

type examinationRepoSQLite struct{ db *sql.DB }

func NewRepoSQLite(db *sql.DB) Repository {
	return &examinationRepoSQLite{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *examinationRepoSQLite) scan(row rowScanner) (*Examination, error) {
	var e Examination
	var id, kind, recordedAt, createdAt string
	var form, bundles, warnings string
	if err := row.Scan(&id, &kind, &recordedAt, &form, &bundles, &warnings, &e.CreatedBy, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if e.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse examination id %q: %w", id, err)
	}
	e.Kind = exam.Kind(kind)
	if e.RecordedAt, err = time.Parse(sqliteTime, recordedAt); err != nil {
		return nil, fmt.Errorf("parse recorded_at of %s: %w", id, err)
	}
	if e.CreatedAt, err = time.Parse(sqliteTime, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at of %s: %w", id, err)
	}
	e.Form = []byte(form)
	if err := decodeColumns(&e, []byte(bundles), []byte(warnings)); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *examinationRepoSQLite) Create(ctx context.Context, e *Examination) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	enc, err := encode(e)
	if err != nil {
		return err
	}
	e.CreatedAt = time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO examination (id, kind, recorded_at, form, bundles, warnings, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), string(e.Kind), e.RecordedAt.UTC().Format(sqliteTime), string(e.Form),
		string(enc.bundles), string(enc.warnings), e.CreatedBy, e.CreatedAt.Format(sqliteTime),
	)
	if err != nil {
		return fmt.Errorf("insert examination: %w", err)
	}
	return nil
}

func (r *examinationRepoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*Examination, error) {
	e, err := r.scan(r.db.QueryRowContext(ctx, `SELECT `+examinationCols+` FROM examination WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get examination %s: %w", id, err)
	}
	return e, nil
}

func (r *examinationRepoSQLite) List(ctx context.Context, kind exam.Kind, limit, offset int) ([]*Examination, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM examination WHERE ? = '' OR kind = ?`, string(kind), string(kind),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count examinations: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+examinationCols+` FROM examination
		WHERE ? = '' OR kind = ?
		ORDER BY recorded_at DESC, created_at DESC
		LIMIT ? OFFSET ?`, string(kind), string(kind), limit, offset)
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

func (r *examinationRepoSQLite) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM examination WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete examination %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete examination %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

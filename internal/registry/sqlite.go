// Package registry persists the widget instances the refresh cycle paints.
// It never stores weather data.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/i474232898/tempwidget/internal/widget"
)

var ErrNotFound = errors.New("widget instance not found")

// Record is a registered instance.
type Record struct {
	widget.Instance
	CreatedAt time.Time `json:"createdAt"`
}

// SQLiteRegistry keeps instances in a sqlite database (pure Go driver).
type SQLiteRegistry struct {
	db  *sql.DB
	log *zap.Logger
}

const schema = `CREATE TABLE IF NOT EXISTS instances (
	id TEXT PRIMARY KEY,
	min_width_dp REAL NOT NULL,
	created_at TEXT NOT NULL
);`

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, log *zap.Logger) (*SQLiteRegistry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		log.Warn("could not set WAL mode", zap.Error(err))
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteRegistry{db: db, log: log.Named("registry")}, nil
}

// Add registers a new instance with a generated id.
func (r *SQLiteRegistry) Add(ctx context.Context, minWidthDp float64) (Record, error) {
	rec := Record{
		Instance:  widget.Instance{ID: uuid.NewString(), MinWidthDp: minWidthDp},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO instances(id, min_width_dp, created_at) VALUES(?,?,?)`,
		rec.ID, rec.MinWidthDp, rec.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return Record{}, fmt.Errorf("insert instance: %w", err)
	}
	r.log.Info("instance added", zap.String("id", rec.ID), zap.Float64("minWidthDp", minWidthDp))
	return rec, nil
}

// Remove deletes an instance.
func (r *SQLiteRegistry) Remove(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM instances WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	r.log.Info("instance removed", zap.String("id", id))
	return nil
}

func (r *SQLiteRegistry) Get(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, min_width_dp, created_at FROM instances WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// List returns every instance, oldest first.
func (r *SQLiteRegistry) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, min_width_dp, created_at FROM instances ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListInstances implements widget.InstanceLister.
func (r *SQLiteRegistry) ListInstances(ctx context.Context) ([]widget.Instance, error) {
	recs, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]widget.Instance, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Instance)
	}
	return out, nil
}

func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec Record
		ts  string
	)
	if err := s.Scan(&rec.ID, &rec.MinWidthDp, &ts); err != nil {
		return Record{}, err
	}
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		rec.CreatedAt = t
	}
	return rec, nil
}

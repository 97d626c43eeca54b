package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"waste-report-service/internal/model"

	_ "github.com/lib/pq"
)

const defaultCollection = "reports"

const createCollectionsTable = `
	CREATE TABLE IF NOT EXISTS report_collections (
		name       TEXT PRIMARY KEY,
		reports    JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PostgresReportStore keeps the whole collection in a single JSONB row.
// Update locks that row for the duration of the read-modify-write.
type PostgresReportStore struct {
	db   *sql.DB
	name string
}

func NewPostgresReportStore(db *sql.DB) *PostgresReportStore {
	return &PostgresReportStore{db: db, name: defaultCollection}
}

func (r *PostgresReportStore) GetDB() *sql.DB {
	return r.db
}

func (r *PostgresReportStore) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createCollectionsTable); err != nil {
		return fmt.Errorf("create report_collections: %w: %w", model.ErrStorageWrite, err)
	}
	return nil
}

func (r *PostgresReportStore) Load(ctx context.Context) ([]model.Report, error) {
	reports, found, err := r.selectReports(ctx, r.db, false)
	if err != nil {
		return nil, err
	}
	if found {
		return reports, nil
	}

	if err := r.seed(ctx, r.db); err != nil {
		return nil, err
	}

	reports, found, err = r.selectReports(ctx, r.db, false)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("collection %q missing after seed: %w", r.name, model.ErrStorageRead)
	}
	return reports, nil
}

func (r *PostgresReportStore) Save(ctx context.Context, reports []model.Report) error {
	return r.upsert(ctx, r.db, reports)
}

func (r *PostgresReportStore) Update(ctx context.Context, fn func([]model.Report) ([]model.Report, error)) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w: %w", model.ErrStorageWrite, err)
	}
	defer tx.Rollback()

	reports, found, err := r.selectReports(ctx, tx, true)
	if err != nil {
		return err
	}
	if !found {
		// Nothing to lock yet: create the row, then lock it.
		if err := r.seed(ctx, tx); err != nil {
			return err
		}
		reports, found, err = r.selectReports(ctx, tx, true)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("collection %q missing after seed: %w", r.name, model.ErrStorageRead)
		}
	}

	next, err := fn(reports)
	if err != nil {
		return err
	}

	if err := r.upsert(ctx, tx, next); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w: %w", model.ErrStorageWrite, err)
	}
	return nil
}

func (r *PostgresReportStore) selectReports(ctx context.Context, q querier, forUpdate bool) ([]model.Report, bool, error) {
	query := `SELECT reports FROM report_collections WHERE name = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var payload []byte
	err := q.QueryRowContext(ctx, query, r.name).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("select collection: %w: %w", model.ErrStorageRead, err)
	}

	var reports []model.Report
	if err := json.Unmarshal(payload, &reports); err != nil {
		return nil, false, fmt.Errorf("decode collection: %w: %w", model.ErrStorageRead, err)
	}
	if reports == nil {
		reports = []model.Report{}
	}
	return reports, true, nil
}

// seed inserts the seed collection unless a row already exists.
func (r *PostgresReportStore) seed(ctx context.Context, q querier) error {
	payload, err := encodeReports(SeedReports())
	if err != nil {
		return err
	}

	query := `
		INSERT INTO report_collections (name, reports, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO NOTHING
	`
	if _, err := q.ExecContext(ctx, query, r.name, payload); err != nil {
		return fmt.Errorf("seed collection: %w: %w", model.ErrStorageWrite, err)
	}
	return nil
}

func (r *PostgresReportStore) upsert(ctx context.Context, q querier, reports []model.Report) error {
	payload, err := encodeReports(reports)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO report_collections (name, reports, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE
		SET reports = EXCLUDED.reports, updated_at = NOW()
	`
	if _, err := q.ExecContext(ctx, query, r.name, payload); err != nil {
		return fmt.Errorf("save collection: %w: %w", model.ErrStorageWrite, err)
	}
	return nil
}

// encodeReports returns a string because lib/pq sends []byte as bytea,
// which JSONB columns reject.
func encodeReports(reports []model.Report) (string, error) {
	if reports == nil {
		reports = []model.Report{}
	}
	data, err := json.Marshal(reports)
	if err != nil {
		return "", fmt.Errorf("encode collection: %w: %w", model.ErrStorageWrite, err)
	}
	return string(data), nil
}

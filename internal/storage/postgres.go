package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/avivheldman/WorkFlow/migrations"
	"github.com/avivheldman/WorkFlow/pkg/models"
	"github.com/avivheldman/WorkFlow/pkg/storage"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

var _ storage.Store = (*PostgresStore)(nil)

// DBInterface is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
type DBInterface interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PostgresStore keeps one row per workflow with the full snapshot as JSONB.
type PostgresStore struct {
	db DBInterface
}

// snapshotRow mirrors the workflow_snapshots table.
type snapshotRow struct {
	ID       string `db:"id"`
	Snapshot []byte `db:"snapshot"`
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, errors.Wrap(err, "storage/postgres: open")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "storage/postgres: ping")
	}
	return &PostgresStore{db: db}, nil
}

// Migrate applies the embedded schema migrations to connStr.
func Migrate(connStr string) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return errors.Wrap(err, "storage/postgres: load migrations")
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, connStr)
	if err != nil {
		return errors.Wrap(err, "storage/postgres: init migrations")
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "storage/postgres: apply migrations")
	}
	return nil
}

// Begin returns a store bound to a new transaction. The engine never needs
// multi-statement writes; integration tests use it to roll back fixtures.
func (s *PostgresStore) Begin() (*PostgresStore, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, errors.New("storage/postgres: cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return errors.New("storage/postgres: cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return errors.New("storage/postgres: cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.GetContext(ctx, &one, "SELECT 1"); err != nil {
		return errors.Wrap(err, "storage/postgres: ping")
	}
	return nil
}

// SaveWorkflow upserts the snapshot of w.
func (s *PostgresStore) SaveWorkflow(ctx context.Context, w models.Workflow) error {
	if w.ID == "" {
		return errors.New("storage/postgres: workflow ID is required")
	}
	data, err := json.Marshal(w)
	if err != nil {
		return errors.Wrap(err, "storage/postgres: encode workflow")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_snapshots (id, name, status, snapshot, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		status = EXCLUDED.status,
		snapshot = EXCLUDED.snapshot,
		updated_at = EXCLUDED.updated_at`,
		w.ID, w.Name, w.Status, string(data), w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "storage/postgres: save workflow %s", w.ID)
	}
	return nil
}

func (s *PostgresStore) GetWorkflow(ctx context.Context, id string) (models.Workflow, error) {
	var row snapshotRow
	err := s.db.GetContext(ctx, &row, "SELECT id, snapshot FROM workflow_snapshots WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Workflow{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Workflow{}, errors.Wrapf(err, "storage/postgres: get workflow %s", id)
	}
	return decodeSnapshot(row)
}

func (s *PostgresStore) ListWorkflows(ctx context.Context) ([]models.Workflow, error) {
	var rows []snapshotRow
	err := s.db.SelectContext(ctx, &rows, "SELECT id, snapshot FROM workflow_snapshots ORDER BY created_at DESC, id")
	if err != nil {
		return nil, errors.Wrap(err, "storage/postgres: list workflows")
	}
	workflows := make([]models.Workflow, 0, len(rows))
	for _, row := range rows {
		wf, err := decodeSnapshot(row)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	storage.SortNewestFirst(workflows)
	return workflows, nil
}

func (s *PostgresStore) DeleteWorkflow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM workflow_snapshots WHERE id = $1", id)
	if err != nil {
		return errors.Wrapf(err, "storage/postgres: delete workflow %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "storage/postgres: delete workflow %s", id)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func decodeSnapshot(row snapshotRow) (models.Workflow, error) {
	var wf models.Workflow
	if err := json.Unmarshal(row.Snapshot, &wf); err != nil {
		return models.Workflow{}, errors.Wrapf(err, "storage/postgres: decode workflow %s", row.ID)
	}
	return wf, nil
}

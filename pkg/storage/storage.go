package storage

import (
	"context"

	"github.com/avivheldman/WorkFlow/pkg/models"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when no snapshot exists for an identifier.
var ErrNotFound = errors.New("workflow not found")

// Store persists whole workflow snapshots keyed by workflow ID.
// Writes are last-write-wins; there are no partial updates.
type Store interface {
	// SaveWorkflow overwrites the snapshot stored under w.ID.
	SaveWorkflow(ctx context.Context, w models.Workflow) error
	GetWorkflow(ctx context.Context, id string) (models.Workflow, error)
	// ListWorkflows returns every snapshot, newest first.
	ListWorkflows(ctx context.Context) ([]models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close() error
}

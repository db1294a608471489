package store

import (
	"context"
	"time"

	"github.com/starford/tribuna/internal/models"
	"github.com/starford/tribuna/internal/movement"
)

// Repository is the persistence surface used by the service layer.
// Consumers depend on it rather than on *DB so tests can swap it.
type Repository interface {
	movement.Store

	CreateCase(ctx context.Context, c models.Case) error
	GetCase(ctx context.Context, id string) (*models.Case, error)
	CaseByNumber(ctx context.Context, number string) (*models.Case, error)
	ListCases(ctx context.Context, limit, offset int) ([]models.Case, int, error)
	DueCases(ctx context.Context, now time.Time) ([]models.Case, error)
	SetMonitoring(ctx context.Context, id string, enabled bool, freq models.Frequency) error
	RecordCheck(ctx context.Context, id string, at time.Time, seen int, payloadChecksum string) error
	UnreadCounts(ctx context.Context) (map[string]int, error)
	SearchMovements(ctx context.Context, query string, limit int) ([]movement.Movement, error)
	Close() error
}

// Verify *DB satisfies Repository at compile time.
var _ Repository = (*DB)(nil)

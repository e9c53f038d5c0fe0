package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"LegisImport/internal/domain"
)

// Store opens per-file write sessions and answers cheap read-only queries.
type Store interface {
	Begin(ctx context.Context) (Session, error)
	CompletedFilenames(ctx context.Context, names []string) (map[string]bool, error)
}

// Session is the unit-of-work one file's writes go through. The engine
// never owns a connection; the caller supplies and disposes the session.
type Session interface {
	TermStore
	RecordStore
	BatchStore

	Commit() error
	Rollback() error
}

// TermStore persists legislative terms keyed by ordinal.
type TermStore interface {
	TermByOrdinal(ctx context.Context, ordinal int) (domain.LegislativeTerm, bool, error)
	// CreateTerm returns domain.ErrPersistenceConflict when the ordinal
	// already exists; callers fall back to re-reading.
	CreateTerm(ctx context.Context, term domain.LegislativeTerm) error
}

// RecordStore persists mapped parent records and their child collections.
type RecordStore interface {
	FindRecord(ctx context.Context, table, externalID string, termID uuid.UUID) (uuid.UUID, bool, error)
	// InsertRecord returns domain.ErrPersistenceConflict on a natural-key race.
	InsertRecord(ctx context.Context, table string, id uuid.UUID, externalID string, termID, batchID uuid.UUID, fields map[string]any) error
	UpdateRecord(ctx context.Context, table string, id uuid.UUID, fields map[string]any) error
	DeleteChildren(ctx context.Context, table string, parentID uuid.UUID) error
	InsertChild(ctx context.Context, table string, id, parentID uuid.UUID, fields map[string]any) error
}

// BatchStore records ingestion runs and serves their metadata.
type BatchStore interface {
	CreateBatch(ctx context.Context, batch domain.BatchMeta) error
	CompleteBatch(ctx context.Context, id uuid.UUID, at time.Time) error
	BatchMeta(ctx context.Context, id uuid.UUID) (domain.BatchMeta, bool, error)
}

// BatchMetaSource is the read-only slice of BatchStore the provenance
// tracker consumes outside any write session.
type BatchMetaSource interface {
	BatchMeta(ctx context.Context, id uuid.UUID) (domain.BatchMeta, bool, error)
}

// Enricher resolves referenced entities against a remote registry.
type Enricher interface {
	DeputyExists(ctx context.Context, deputyID string) (bool, error)
}

// IndexSource lists downloadable record files published by the legislature.
type IndexSource interface {
	List(ctx context.Context, category, indexURL string) ([]domain.RemoteFile, error)
}

// Notifier delivers post-run summaries to operators.
type Notifier interface {
	PublishSummary(ctx context.Context, summary string) error
}

// Scheduler controls when recurring refresh imports execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// LegislativeTerm is a fixed, time-boxed sitting of the legislature,
// identified by ordinal number and traditional designation.
type LegislativeTerm struct {
	ID          uuid.UUID
	Ordinal     int
	Designation string
	StartDate   time.Time
	EndDate     time.Time
	Active      bool
}

// TermRef is the resolved term context handed to mappers.
type TermRef struct {
	ID      uuid.UUID
	Ordinal int
}

// BatchMeta identifies one ingestion run of a single source file.
type BatchMeta struct {
	ID          uuid.UUID
	Filename    string
	Category    string
	CompletedAt time.Time
	SourceURL   string
	TermOrdinal int // 0 when the batch carries no term hint
}

// FileMeta describes one input file queued for import.
type FileMeta struct {
	Path           string
	Category       string
	TermOrdinal    int // declared term, 0 when unknown
	SourceURL      string
	SkipEnrichment bool
}

// RecordRef points at one persisted parent record after an upsert.
type RecordRef struct {
	ID      uuid.UUID
	Created bool
}

// Result aggregates per-file import counters.
type Result struct {
	Processed int
	Imported  int
	Errors    []error
}

// RemoteFile is a downloadable record file discovered on the source index.
type RemoteFile struct {
	Name     string
	URL      string
	Category string
}

// Package mapper defines the per-document-family driver contract the
// import engine composes over one parsed document.
package mapper

import (
	"context"
	"fmt"
	"log/slog"

	"LegisImport/internal/coverage"
	"LegisImport/internal/document"
	"LegisImport/internal/domain"
	"LegisImport/internal/ports"
	"LegisImport/internal/upsert"
)

// Run carries the resolved per-file context a mapper works within.
type Run struct {
	Term    domain.TermRef
	Batch   domain.BatchMeta
	Meta    domain.FileMeta
	Upserts *upsert.Processor
	// Enricher is nil when the file suppresses enrichment side-calls.
	Enricher ports.Enricher
	Logger   *slog.Logger
}

// Mapper converts one document family's records into persisted rows.
type Mapper interface {
	// Family identifies the driver inside the registry; it matches the
	// file's declared category.
	Family() string
	// ExpectedPaths declares every field path the driver accounts for,
	// the input to the schema coverage check.
	ExpectedPaths() coverage.PathSet
	// Records selects the top-level logical records of a parsed document.
	Records(doc document.Node) []document.Node
	// MapRecord extracts one record's scalar and child data and upserts
	// it. A RecordIntegrityError aborts the remaining records unless the
	// family opts into skip-and-continue.
	MapRecord(ctx context.Context, rec document.Node, run *Run) error
	// SkipFailedRecords opts the family into the narrower skip-and-
	// continue failure mode. Never implicit; most families return false.
	SkipFailedRecords() bool
}

// Registry keeps a mapping from family names to their drivers.
type Registry struct {
	mappers map[string]Mapper
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{mappers: map[string]Mapper{}}
}

// Register adds or replaces a family driver.
func (r *Registry) Register(m Mapper) {
	if r.mappers == nil {
		r.mappers = map[string]Mapper{}
	}
	r.mappers[m.Family()] = m
}

// Resolve returns a driver by family name or an error if it is absent.
func (r *Registry) Resolve(family string) (Mapper, error) {
	if m, ok := r.mappers[family]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("family %s is not registered", family)
}

// Families lists the registered family names.
func (r *Registry) Families() []string {
	names := make([]string, 0, len(r.mappers))
	for name := range r.mappers {
		names = append(names, name)
	}
	return names
}

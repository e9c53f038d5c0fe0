// Package provenance attributes served rows to the import batches that
// created them. Consumed only by the read side as opt-in response
// enrichment; the import engine itself never invokes it.
package provenance

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"LegisImport/internal/domain"
	"LegisImport/internal/ports"
)

// Source accumulates one contributing batch's metadata and row count.
type Source struct {
	Category    string
	Filename    string
	TermOrdinal int
	CompletedAt string
	SourceURL   string
	Rows        int
}

// TraceEntry records one Track call for the detailed mode.
type TraceEntry struct {
	Entity    string
	Purpose   string
	Rows      int
	Filenames []string
}

// Summary is the aggregated attribution for one request.
type Summary struct {
	Sources            []Source
	DistinctCategories int
	DistinctTerms      int
	TotalBatches       int
	Trace              []TraceEntry
}

// Tracker groups rows by originating batch. Batch metadata is fetched
// once per tracker instance; build one tracker per request and discard
// it, the memo must not outlive the request.
type Tracker struct {
	source   ports.BatchMetaSource
	detailed bool

	metaCache map[uuid.UUID]cachedMeta
	sources   map[uuid.UUID]*Source
	trace     []TraceEntry
}

// cachedMeta memoizes lookups including misses, so each distinct batch is
// fetched at most once per tracker.
type cachedMeta struct {
	meta  domain.BatchMeta
	found bool
}

// NewTracker builds a per-request tracker; detailed enables the trace.
func NewTracker(source ports.BatchMetaSource, detailed bool) *Tracker {
	return &Tracker{
		source:    source,
		detailed:  detailed,
		metaCache: map[uuid.UUID]cachedMeta{},
		sources:   map[uuid.UUID]*Source{},
	}
}

// Track attributes a set of served rows, given their originating-batch
// foreign keys. Rows without a batch (nil uuid) predate provenance
// stamping and are skipped.
func (t *Tracker) Track(ctx context.Context, entity string, batchIDs []uuid.UUID, purpose string) error {
	entry := TraceEntry{Entity: entity, Purpose: purpose}
	seen := map[string]struct{}{}

	for _, id := range batchIDs {
		if id == uuid.Nil {
			continue
		}
		meta, ok, err := t.meta(ctx, id)
		if err != nil {
			return fmt.Errorf("track %s: %w", entity, err)
		}
		if !ok {
			continue
		}

		src, exists := t.sources[id]
		if !exists {
			src = &Source{
				Category:    meta.Category,
				Filename:    meta.Filename,
				TermOrdinal: meta.TermOrdinal,
				CompletedAt: meta.CompletedAt.Format("2006-01-02 15:04:05"),
				SourceURL:   meta.SourceURL,
			}
			t.sources[id] = src
		}
		src.Rows++
		entry.Rows++

		if _, dup := seen[meta.Filename]; !dup {
			seen[meta.Filename] = struct{}{}
			entry.Filenames = append(entry.Filenames, meta.Filename)
		}
	}

	if t.detailed {
		sort.Strings(entry.Filenames)
		t.trace = append(t.trace, entry)
	}
	return nil
}

// Summarize returns the accumulated attribution.
func (t *Tracker) Summarize() Summary {
	summary := Summary{TotalBatches: len(t.sources)}

	categories := map[string]struct{}{}
	terms := map[int]struct{}{}
	for _, src := range t.sources {
		summary.Sources = append(summary.Sources, *src)
		categories[src.Category] = struct{}{}
		if src.TermOrdinal != 0 {
			terms[src.TermOrdinal] = struct{}{}
		}
	}
	sort.Slice(summary.Sources, func(i, j int) bool {
		return summary.Sources[i].Filename < summary.Sources[j].Filename
	})

	summary.DistinctCategories = len(categories)
	summary.DistinctTerms = len(terms)
	if t.detailed {
		summary.Trace = t.trace
	}
	return summary
}

func (t *Tracker) meta(ctx context.Context, id uuid.UUID) (domain.BatchMeta, bool, error) {
	if cached, ok := t.metaCache[id]; ok {
		return cached.meta, cached.found, nil
	}
	meta, ok, err := t.source.BatchMeta(ctx, id)
	if err != nil {
		return domain.BatchMeta{}, false, fmt.Errorf("batch metadata %s: %w", id, err)
	}
	t.metaCache[id] = cachedMeta{meta: meta, found: ok}
	return meta, ok, nil
}

// Package upsert finds-or-creates logical records by natural key and
// replaces their nested child collections.
package upsert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"LegisImport/internal/domain"
	"LegisImport/internal/ports"
)

// NaturalKey is the (external id, legislative term) pair governing all
// upsert lookups; surrogate ids never participate in matching.
type NaturalKey struct {
	ExternalID string
	TermID     uuid.UUID
}

// ChildRow is one row of a child collection, keyed by column name.
type ChildRow map[string]any

// Processor performs idempotent upserts within one file's session. The
// batch id is stamped on every insert and never touched on update.
type Processor struct {
	records ports.RecordStore
	batchID uuid.UUID
	logger  *slog.Logger
}

// NewProcessor binds the processor to one session and import batch.
func NewProcessor(records ports.RecordStore, batchID uuid.UUID, logger *slog.Logger) *Processor {
	return &Processor{records: records, batchID: batchID, logger: logger}
}

// Upsert updates the row matching the natural key in place, or inserts a
// new row under a client-assigned identifier generated before any write
// round-trip, so children can reference the parent immediately.
func (p *Processor) Upsert(ctx context.Context, table string, key NaturalKey, fields map[string]any) (domain.RecordRef, error) {
	if key.ExternalID == "" {
		return domain.RecordRef{}, fmt.Errorf("upsert %s: empty external id", table)
	}

	id, found, err := p.records.FindRecord(ctx, table, key.ExternalID, key.TermID)
	if err != nil {
		return domain.RecordRef{}, fmt.Errorf("find %s %s: %w", table, key.ExternalID, err)
	}

	if found {
		if err := p.records.UpdateRecord(ctx, table, id, fields); err != nil {
			return domain.RecordRef{}, fmt.Errorf("update %s %s: %w", table, key.ExternalID, err)
		}
		return domain.RecordRef{ID: id}, nil
	}

	id = uuid.New()
	err = p.records.InsertRecord(ctx, table, id, key.ExternalID, key.TermID, p.batchID, fields)
	if errors.Is(err, domain.ErrPersistenceConflict) {
		// A concurrent worker inserted the same natural key first; fall
		// back to updating the now-existing row.
		p.debug("natural-key race, re-reading", "table", table, "external_id", key.ExternalID)
		id, found, err = p.records.FindRecord(ctx, table, key.ExternalID, key.TermID)
		if err != nil {
			return domain.RecordRef{}, fmt.Errorf("re-read %s %s: %w", table, key.ExternalID, err)
		}
		if !found {
			return domain.RecordRef{}, fmt.Errorf("%s %s vanished after conflict", table, key.ExternalID)
		}
		if err := p.records.UpdateRecord(ctx, table, id, fields); err != nil {
			return domain.RecordRef{}, fmt.Errorf("update %s %s: %w", table, key.ExternalID, err)
		}
		return domain.RecordRef{ID: id}, nil
	}
	if err != nil {
		return domain.RecordRef{}, fmt.Errorf("insert %s %s: %w", table, key.ExternalID, err)
	}

	return domain.RecordRef{ID: id, Created: true}, nil
}

// ReplaceChildren deletes every previously-persisted child of the parent
// in the given table, then inserts the current document's rows. Child
// identity across re-imports is deliberately not preserved; the source
// does not guarantee stable child identifiers either.
func (p *Processor) ReplaceChildren(ctx context.Context, table string, parentID uuid.UUID, rows []ChildRow) error {
	if err := p.records.DeleteChildren(ctx, table, parentID); err != nil {
		return fmt.Errorf("delete children %s of %s: %w", table, parentID, err)
	}
	for _, row := range rows {
		if err := p.records.InsertChild(ctx, table, uuid.New(), parentID, row); err != nil {
			return fmt.Errorf("insert child %s of %s: %w", table, parentID, err)
		}
	}
	return nil
}

func (p *Processor) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

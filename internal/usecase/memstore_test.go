package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"LegisImport/internal/domain"
	"LegisImport/internal/ports"
)

// memStore is an in-memory ports.Store with copy-on-write sessions, so
// rollback semantics behave like the real transaction-scoped store.
type memStore struct {
	state *memState
}

type memState struct {
	terms    map[int]domain.LegislativeTerm
	records  map[string][]memRecord
	children map[string][]memChild
	batches  map[uuid.UUID]domain.BatchMeta
}

type memRecord struct {
	id         uuid.UUID
	externalID string
	termID     uuid.UUID
	batchID    uuid.UUID
	fields     map[string]any
}

type memChild struct {
	id       uuid.UUID
	parentID uuid.UUID
	fields   map[string]any
}

func newMemStore() *memStore {
	return &memStore{state: newMemState()}
}

func newMemState() *memState {
	return &memState{
		terms:    map[int]domain.LegislativeTerm{},
		records:  map[string][]memRecord{},
		children: map[string][]memChild{},
		batches:  map[uuid.UUID]domain.BatchMeta{},
	}
}

func (s *memState) clone() *memState {
	next := newMemState()
	for ordinal, term := range s.terms {
		next.terms[ordinal] = term
	}
	for table, records := range s.records {
		for _, rec := range records {
			fields := make(map[string]any, len(rec.fields))
			for k, v := range rec.fields {
				fields[k] = v
			}
			rec.fields = fields
			next.records[table] = append(next.records[table], rec)
		}
	}
	for table, children := range s.children {
		for _, child := range children {
			fields := make(map[string]any, len(child.fields))
			for k, v := range child.fields {
				fields[k] = v
			}
			child.fields = fields
			next.children[table] = append(next.children[table], child)
		}
	}
	for id, batch := range s.batches {
		next.batches[id] = batch
	}
	return next
}

var _ ports.Store = (*memStore)(nil)

func (m *memStore) Begin(context.Context) (ports.Session, error) {
	return &memSession{store: m, work: m.state.clone()}, nil
}

func (m *memStore) CompletedFilenames(_ context.Context, names []string) (map[string]bool, error) {
	completed := map[string]bool{}
	for _, batch := range m.state.batches {
		if !batch.CompletedAt.IsZero() {
			completed[batch.Filename] = true
		}
	}
	result := map[string]bool{}
	for _, name := range names {
		if completed[name] {
			result[name] = true
		}
	}
	return result, nil
}

func (m *memStore) recordCount(table string) int {
	return len(m.state.records[table])
}

func (m *memStore) childCount(table string) int {
	return len(m.state.children[table])
}

func (m *memStore) recordByExternalID(table, externalID string) (memRecord, bool) {
	for _, rec := range m.state.records[table] {
		if rec.externalID == externalID {
			return rec, true
		}
	}
	return memRecord{}, false
}

type memSession struct {
	store     *memStore
	work      *memState
	committed bool
}

var _ ports.Session = (*memSession)(nil)

func (s *memSession) Commit() error {
	s.store.state = s.work
	s.committed = true
	return nil
}

func (s *memSession) Rollback() error {
	return nil
}

func (s *memSession) TermByOrdinal(_ context.Context, ordinal int) (domain.LegislativeTerm, bool, error) {
	term, ok := s.work.terms[ordinal]
	return term, ok, nil
}

func (s *memSession) CreateTerm(_ context.Context, term domain.LegislativeTerm) error {
	if _, ok := s.work.terms[term.Ordinal]; ok {
		return domain.ErrPersistenceConflict
	}
	s.work.terms[term.Ordinal] = term
	return nil
}

func (s *memSession) FindRecord(_ context.Context, table, externalID string, termID uuid.UUID) (uuid.UUID, bool, error) {
	for _, rec := range s.work.records[table] {
		if rec.externalID == externalID && rec.termID == termID {
			return rec.id, true, nil
		}
	}
	return uuid.Nil, false, nil
}

func (s *memSession) InsertRecord(_ context.Context, table string, id uuid.UUID, externalID string, termID, batchID uuid.UUID, fields map[string]any) error {
	for _, rec := range s.work.records[table] {
		if rec.externalID == externalID && rec.termID == termID {
			return domain.ErrPersistenceConflict
		}
	}
	s.work.records[table] = append(s.work.records[table], memRecord{
		id:         id,
		externalID: externalID,
		termID:     termID,
		batchID:    batchID,
		fields:     fields,
	})
	return nil
}

func (s *memSession) UpdateRecord(_ context.Context, table string, id uuid.UUID, fields map[string]any) error {
	for i, rec := range s.work.records[table] {
		if rec.id == id {
			s.work.records[table][i].fields = fields
			return nil
		}
	}
	return nil
}

func (s *memSession) DeleteChildren(_ context.Context, table string, parentID uuid.UUID) error {
	var kept []memChild
	for _, child := range s.work.children[table] {
		if child.parentID != parentID {
			kept = append(kept, child)
		}
	}
	s.work.children[table] = kept
	return nil
}

func (s *memSession) InsertChild(_ context.Context, table string, id, parentID uuid.UUID, fields map[string]any) error {
	s.work.children[table] = append(s.work.children[table], memChild{id: id, parentID: parentID, fields: fields})
	return nil
}

func (s *memSession) CreateBatch(_ context.Context, batch domain.BatchMeta) error {
	s.work.batches[batch.ID] = batch
	return nil
}

func (s *memSession) CompleteBatch(_ context.Context, id uuid.UUID, at time.Time) error {
	batch, ok := s.work.batches[id]
	if !ok {
		return nil
	}
	batch.CompletedAt = at
	s.work.batches[id] = batch
	return nil
}

func (s *memSession) BatchMeta(_ context.Context, id uuid.UUID) (domain.BatchMeta, bool, error) {
	batch, ok := s.work.batches[id]
	return batch, ok, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"LegisImport/internal/domain"
	"LegisImport/internal/ports"
)

const uniqueViolation = "23505"

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore opens per-file sessions against Postgres.
type PostgresStore struct {
	db *sql.DB
}

var _ ports.Store = (*PostgresStore)(nil)
var _ ports.BatchMetaSource = (*PostgresStore)(nil)

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*PostgresStore, *sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStore(db), db, nil
}

// Begin starts one file's transaction-scoped session.
func (s *PostgresStore) Begin(ctx context.Context) (ports.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Session{tx: tx}, nil
}

// CompletedFilenames returns which of the given filenames already have a
// completed import batch.
func (s *PostgresStore) CompletedFilenames(ctx context.Context, names []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(names) == 0 {
		return result, nil
	}

	query, args, err := builder.
		Select("filename").
		From("import_batches").
		Where("filename = ANY(?)", pq.StringArray(names)).
		Where(sq.NotEq{"completed_at": nil}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build completed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query completed imports: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan filename: %w", err)
		}
		result[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return result, nil
}

// BatchMeta serves batch metadata outside any write session, for the
// provenance tracker.
func (s *PostgresStore) BatchMeta(ctx context.Context, id uuid.UUID) (domain.BatchMeta, bool, error) {
	return scanBatchMeta(ctx, s.db, id)
}

// Session is one file's unit of work on a single transaction.
type Session struct {
	tx *sql.Tx
}

var _ ports.Session = (*Session)(nil)

// Commit makes the file's writes visible.
func (s *Session) Commit() error {
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the file's writes; safe after commit.
func (s *Session) Rollback() error {
	err := s.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// TermByOrdinal looks up a legislative term by its unique ordinal.
func (s *Session) TermByOrdinal(ctx context.Context, ordinal int) (domain.LegislativeTerm, bool, error) {
	query, args, err := builder.
		Select("id", "ordinal", "designation", "start_date", "end_date", "active").
		From("legislative_terms").
		Where(sq.Eq{"ordinal": ordinal}).
		ToSql()
	if err != nil {
		return domain.LegislativeTerm{}, false, fmt.Errorf("build term query: %w", err)
	}

	var (
		term       domain.LegislativeTerm
		start, end sql.NullTime
	)
	row := s.tx.QueryRowContext(ctx, query, args...)
	err = row.Scan(&term.ID, &term.Ordinal, &term.Designation, &start, &end, &term.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LegislativeTerm{}, false, nil
	}
	if err != nil {
		return domain.LegislativeTerm{}, false, fmt.Errorf("scan term: %w", err)
	}
	term.StartDate = start.Time
	term.EndDate = end.Time
	return term, true, nil
}

// CreateTerm inserts a term; the ordinal unique constraint guards
// concurrent first-touch races.
func (s *Session) CreateTerm(ctx context.Context, term domain.LegislativeTerm) error {
	query, args, err := builder.
		Insert("legislative_terms").
		Columns("id", "ordinal", "designation", "start_date", "end_date", "active").
		Values(term.ID, term.Ordinal, term.Designation, nullTime(term.StartDate), nullTime(term.EndDate), term.Active).
		ToSql()
	if err != nil {
		return fmt.Errorf("build term insert: %w", err)
	}

	if _, err := s.tx.ExecContext(ctx, query, args...); err != nil {
		return wrapConflict("insert term", err)
	}
	return nil
}

// FindRecord looks a parent record up by its natural key.
func (s *Session) FindRecord(ctx context.Context, table, externalID string, termID uuid.UUID) (uuid.UUID, bool, error) {
	query, args, err := builder.
		Select("id").
		From(table).
		Where(sq.Eq{"external_id": externalID, "term_id": termID}).
		ToSql()
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("build find query: %w", err)
	}

	var id uuid.UUID
	err = s.tx.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("scan record id: %w", err)
	}
	return id, true, nil
}

// InsertRecord persists a new parent row; the batch foreign key is set
// here once and never touched on update.
func (s *Session) InsertRecord(ctx context.Context, table string, id uuid.UUID, externalID string, termID, batchID uuid.UUID, fields map[string]any) error {
	row := sq.Eq{
		"id":              id,
		"external_id":     externalID,
		"term_id":         termID,
		"import_batch_id": batchID,
	}
	for column, value := range fields {
		row[column] = value
	}

	query, args, err := builder.Insert(table).SetMap(row).ToSql()
	if err != nil {
		return fmt.Errorf("build insert %s: %w", table, err)
	}

	if _, err := s.tx.ExecContext(ctx, query, args...); err != nil {
		return wrapConflict("insert "+table, err)
	}
	return nil
}

// UpdateRecord updates a parent row's scalar fields in place.
func (s *Session) UpdateRecord(ctx context.Context, table string, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	query, args, err := builder.
		Update(table).
		SetMap(fields).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update %s: %w", table, err)
	}

	if _, err := s.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

// DeleteChildren removes every child row owned by the parent.
func (s *Session) DeleteChildren(ctx context.Context, table string, parentID uuid.UUID) error {
	query, args, err := builder.Delete(table).Where(sq.Eq{"parent_id": parentID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete %s: %w", table, err)
	}

	if _, err := s.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete children %s: %w", table, err)
	}
	return nil
}

// InsertChild persists one child row under its parent.
func (s *Session) InsertChild(ctx context.Context, table string, id, parentID uuid.UUID, fields map[string]any) error {
	row := sq.Eq{"id": id, "parent_id": parentID}
	for column, value := range fields {
		row[column] = value
	}

	query, args, err := builder.Insert(table).SetMap(row).ToSql()
	if err != nil {
		return fmt.Errorf("build insert %s: %w", table, err)
	}

	if _, err := s.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert child %s: %w", table, err)
	}
	return nil
}

// CreateBatch records the start of one ingestion run.
func (s *Session) CreateBatch(ctx context.Context, batch domain.BatchMeta) error {
	query, args, err := builder.
		Insert("import_batches").
		Columns("id", "filename", "category", "source_url", "term_ordinal").
		Values(batch.ID, batch.Filename, batch.Category, batch.SourceURL, nullInt(batch.TermOrdinal)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build batch insert: %w", err)
	}

	if _, err := s.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// CompleteBatch stamps the batch's completion time.
func (s *Session) CompleteBatch(ctx context.Context, id uuid.UUID, at time.Time) error {
	query, args, err := builder.
		Update("import_batches").
		Set("completed_at", at).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build batch update: %w", err)
	}

	if _, err := s.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("complete batch: %w", err)
	}
	return nil
}

// BatchMeta serves batch metadata inside the session.
func (s *Session) BatchMeta(ctx context.Context, id uuid.UUID) (domain.BatchMeta, bool, error) {
	return scanBatchMeta(ctx, s.tx, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanBatchMeta(ctx context.Context, q queryer, id uuid.UUID) (domain.BatchMeta, bool, error) {
	query, args, err := builder.
		Select("id", "filename", "category", "completed_at", "source_url", "term_ordinal").
		From("import_batches").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.BatchMeta{}, false, fmt.Errorf("build batch query: %w", err)
	}

	var (
		meta      domain.BatchMeta
		completed sql.NullTime
		ordinal   sql.NullInt64
	)
	row := q.QueryRowContext(ctx, query, args...)
	err = row.Scan(&meta.ID, &meta.Filename, &meta.Category, &completed, &meta.SourceURL, &ordinal)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BatchMeta{}, false, nil
	}
	if err != nil {
		return domain.BatchMeta{}, false, fmt.Errorf("scan batch: %w", err)
	}
	meta.CompletedAt = completed.Time
	meta.TermOrdinal = int(ordinal.Int64)
	return meta, true, nil
}

// wrapConflict maps unique-constraint violations onto the domain conflict
// error so callers can fall back to re-reading.
func wrapConflict(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%s: %w", op, domain.ErrPersistenceConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

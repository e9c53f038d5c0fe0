package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"LegisImport/internal/coverage"
	"LegisImport/internal/document"
	"LegisImport/internal/domain"
	"LegisImport/internal/mapper"
	"LegisImport/internal/ports"
	"LegisImport/internal/termctx"
	"LegisImport/internal/upsert"
)

// RunnerDeps wires all driven adapters into the import runner.
type RunnerDeps struct {
	Store     ports.Store
	Registry  *mapper.Registry
	Validator *coverage.Validator
	Enricher  ports.Enricher
	Notifier  ports.Notifier
	Logger    *slog.Logger
}

// Options control one batch run.
type Options struct {
	// Strict converts schema/integrity warnings into fatal errors that
	// halt the entire run, not only the offending file.
	Strict bool
	// ReportOnly processes every file but rolls back instead of
	// committing.
	ReportOnly bool
	// ForceRefresh re-imports files whose batch already completed.
	ForceRefresh bool
	// TermFilter restricts the run to files carrying this term ordinal
	// in their name or path; 0 disables the filter.
	TermFilter int
}

// FileReport is the per-file outcome of a run.
type FileReport struct {
	Path    string
	Family  string
	Skipped bool
	Result  domain.Result
	Err     error
}

// RunSummary aggregates a whole batch run.
type RunSummary struct {
	Files     int
	Skipped   int
	Processed int
	Imported  int
	Failed    int
	Reports   []FileReport
}

// Runner drives the import of record files: one transaction per file,
// schema coverage and term resolution up front, family-specific mapping
// per top-level record.
type Runner struct {
	store     ports.Store
	registry  *mapper.Registry
	validator *coverage.Validator
	enricher  ports.Enricher
	notifier  ports.Notifier
	logger    *slog.Logger
}

// NewRunner constructs the orchestration component.
func NewRunner(deps RunnerDeps) *Runner {
	return &Runner{
		store:     deps.Store,
		registry:  deps.Registry,
		validator: deps.Validator,
		enricher:  deps.Enricher,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
	}
}

// Run imports a set of files. Lenient runs continue past failed files and
// report them; in strict mode the first fatal error halts the whole run,
// since schema drift detected late may already have affected earlier
// files of the same run.
func (r *Runner) Run(ctx context.Context, files []domain.FileMeta, opts Options) (RunSummary, error) {
	summary := RunSummary{Files: len(files)}

	done, err := r.completed(ctx, files, opts)
	if err != nil {
		return summary, err
	}

	for _, meta := range files {
		if opts.TermFilter != 0 && pathOrdinal(meta) != 0 && pathOrdinal(meta) != opts.TermFilter {
			summary.Skipped++
			summary.Reports = append(summary.Reports, FileReport{Path: meta.Path, Family: meta.Category, Skipped: true})
			continue
		}
		if done[filepath.Base(meta.Path)] {
			r.debug("file already imported", "path", meta.Path)
			summary.Skipped++
			summary.Reports = append(summary.Reports, FileReport{Path: meta.Path, Family: meta.Category, Skipped: true})
			continue
		}

		result, fileErr := r.ProcessFile(ctx, meta, opts)
		summary.Processed += result.Processed
		summary.Imported += result.Imported
		summary.Reports = append(summary.Reports, FileReport{
			Path:   meta.Path,
			Family: meta.Category,
			Result: result,
			Err:    fileErr,
		})

		if fileErr != nil {
			summary.Failed++
			r.logger.Error("file import failed", "path", meta.Path, "error", fileErr)
			if opts.Strict {
				r.notify(ctx, summary, opts)
				return summary, fmt.Errorf("strict run halted at %s: %w", meta.Path, fileErr)
			}
		}
	}

	r.notify(ctx, summary, opts)
	return summary, nil
}

// ProcessFile imports one file inside its own transaction: either all of
// the file's writes land, or none do.
func (r *Runner) ProcessFile(ctx context.Context, meta domain.FileMeta, opts Options) (domain.Result, error) {
	var result domain.Result

	m, err := r.registry.Resolve(meta.Category)
	if err != nil {
		return result, err
	}

	doc, err := parseFile(meta.Path)
	if err != nil {
		return result, err
	}

	session, err := r.store.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin session: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := session.Rollback(); rbErr != nil {
				r.logger.Error("rollback failed", "path", meta.Path, "error", rbErr)
			}
		}
	}()

	resolver := termctx.NewResolver(session, r.logger)
	term, err := resolver.Resolve(ctx, doc, meta)
	if err != nil {
		return result, err
	}

	unmapped, err := r.validator.Validate(doc, m.Family(), m.ExpectedPaths(), opts.Strict)
	if err != nil {
		return result, err
	}
	if len(unmapped) > 0 {
		result.Errors = append(result.Errors, &domain.SchemaCoverageError{Family: m.Family(), Paths: unmapped})
	}

	batch := domain.BatchMeta{
		ID:          uuid.New(),
		Filename:    filepath.Base(meta.Path),
		Category:    meta.Category,
		SourceURL:   meta.SourceURL,
		TermOrdinal: term.Ordinal,
	}
	if err := session.CreateBatch(ctx, batch); err != nil {
		return result, fmt.Errorf("create batch: %w", err)
	}

	run := &mapper.Run{
		Term:    term,
		Batch:   batch,
		Meta:    meta,
		Upserts: upsert.NewProcessor(session, batch.ID, r.logger),
		Logger:  r.logger,
	}
	if !meta.SkipEnrichment {
		run.Enricher = r.enricher
	}

	for _, rec := range m.Records(doc) {
		result.Processed++
		if err := m.MapRecord(ctx, rec, run); err != nil {
			var integrity *domain.RecordIntegrityError
			if errors.As(err, &integrity) && m.SkipFailedRecords() && !opts.Strict {
				result.Errors = append(result.Errors, err)
				continue
			}
			// A structural-assumption violation is assumed likely to
			// recur; abandon the remaining records of this file.
			result.Errors = append(result.Errors, err)
			return result, err
		}
		result.Imported++
	}

	if err := session.CompleteBatch(ctx, batch.ID, time.Now().UTC()); err != nil {
		return result, fmt.Errorf("complete batch: %w", err)
	}

	if opts.ReportOnly {
		r.debug("report-only, discarding writes", "path", meta.Path)
		return result, nil
	}

	if err := session.Commit(); err != nil {
		return result, fmt.Errorf("commit %s: %w", meta.Path, err)
	}
	committed = true

	r.logger.Info("file imported",
		"path", meta.Path,
		"family", m.Family(),
		"term", term.Ordinal,
		"processed", result.Processed,
		"imported", result.Imported,
		"warnings", len(result.Errors))
	return result, nil
}

func (r *Runner) completed(ctx context.Context, files []domain.FileMeta, opts Options) (map[string]bool, error) {
	if opts.ForceRefresh || len(files) == 0 {
		return map[string]bool{}, nil
	}
	names := make([]string, len(files))
	for i, meta := range files {
		names[i] = filepath.Base(meta.Path)
	}
	done, err := r.store.CompletedFilenames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("load completed imports: %w", err)
	}
	return done, nil
}

func (r *Runner) notify(ctx context.Context, summary RunSummary, opts Options) {
	if r.notifier == nil || opts.ReportOnly {
		return
	}
	if err := r.notifier.PublishSummary(ctx, buildSummaryMessage(summary)); err != nil {
		r.logger.Warn("publish run summary", "error", err)
	}
}

func (r *Runner) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func parseFile(path string) (document.Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := document.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func pathOrdinal(meta domain.FileMeta) int {
	if meta.TermOrdinal != 0 {
		return meta.TermOrdinal
	}
	base := strings.TrimSuffix(filepath.Base(meta.Path), filepath.Ext(meta.Path))
	if ord := termctx.ScanForToken(base); ord != 0 {
		return ord
	}
	dir := strings.NewReplacer("/", " ", "\\", " ").Replace(filepath.Dir(meta.Path))
	return termctx.ScanForToken(dir)
}

func buildSummaryMessage(summary RunSummary) string {
	msg := fmt.Sprintf("import run: %d file(s), %d skipped, %d failed, %d record(s) processed, %d imported",
		summary.Files, summary.Skipped, summary.Failed, summary.Processed, summary.Imported)
	for _, report := range summary.Reports {
		if report.Err != nil {
			msg += fmt.Sprintf("\n- %s: %v", report.Path, report.Err)
		}
	}
	return msg
}

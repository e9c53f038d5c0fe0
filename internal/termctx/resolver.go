// Package termctx resolves the legislative-term context governing one
// record file from whichever hint the file carries.
package termctx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"LegisImport/internal/document"
	"LegisImport/internal/domain"
	"LegisImport/internal/ports"
)

// contentHintPaths lists the tag locations a term token may appear at
// inside a record document, tried in order.
var contentHintPaths = []string{
	"header.term",
	"term",
	"header.convocation",
}

// Resolver determines the governing legislative term for one file. Hint
// sources are tried in strict precedence order: batch metadata, filename
// token, document content, directory path. Construct one resolver per
// file; its memo must never outlive the file.
type Resolver struct {
	terms  ports.TermStore
	logger *slog.Logger
	memo   map[int]domain.TermRef
}

// NewResolver wires a term store; the memo starts empty.
func NewResolver(terms ports.TermStore, logger *slog.Logger) *Resolver {
	return &Resolver{
		terms:  terms,
		logger: logger,
		memo:   map[int]domain.TermRef{},
	}
}

// Resolve finds the term ordinal from the file's hints and returns the
// persisted term, creating it when first seen.
func (r *Resolver) Resolve(ctx context.Context, doc document.Node, meta domain.FileMeta) (domain.TermRef, error) {
	ordinal := r.ordinalFromHints(doc, meta)
	if ordinal == 0 {
		return domain.TermRef{}, &domain.ContextResolutionError{Path: meta.Path}
	}
	return r.ensure(ctx, ordinal)
}

func (r *Resolver) ordinalFromHints(doc document.Node, meta domain.FileMeta) int {
	if meta.TermOrdinal != 0 {
		r.debug("term from batch metadata", "ordinal", meta.TermOrdinal)
		return meta.TermOrdinal
	}

	base := filepath.Base(meta.Path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if ordinal := ScanForToken(base); ordinal != 0 {
		r.debug("term from filename", "ordinal", ordinal, "filename", base)
		return ordinal
	}

	if ordinal := contentHint(doc); ordinal != 0 {
		r.debug("term from document content", "ordinal", ordinal)
		return ordinal
	}

	dir := filepath.Dir(meta.Path)
	if ordinal := ScanForToken(strings.ReplaceAll(dir, string(filepath.Separator), " ")); ordinal != 0 {
		r.debug("term from directory path", "ordinal", ordinal, "dir", dir)
		return ordinal
	}

	return 0
}

// contentHint accepts either a literal convocation token or a plain
// integer at any of the known tag locations.
func contentHint(doc document.Node) int {
	for _, path := range contentHintPaths {
		value := strings.TrimSpace(document.TextAt(doc, path))
		if value == "" {
			continue
		}
		if ordinal, ok := OrdinalForToken(value); ok {
			return ordinal
		}
		if number, err := strconv.Atoi(value); err == nil {
			if _, ok := TokenForOrdinal(number); ok {
				return number
			}
		}
	}
	return 0
}

// ensure performs the uniqueness-guarded get-or-create and memoizes the
// result for the remainder of the current file.
func (r *Resolver) ensure(ctx context.Context, ordinal int) (domain.TermRef, error) {
	if ref, ok := r.memo[ordinal]; ok {
		return ref, nil
	}

	term, found, err := r.terms.TermByOrdinal(ctx, ordinal)
	if err != nil {
		return domain.TermRef{}, fmt.Errorf("look up term %d: %w", ordinal, err)
	}

	if !found {
		term = domain.LegislativeTerm{
			ID:          uuid.New(),
			Ordinal:     ordinal,
			Designation: Designation(ordinal),
		}
		err = r.terms.CreateTerm(ctx, term)
		if errors.Is(err, domain.ErrPersistenceConflict) {
			// Another worker first-touched the same term; re-read it.
			term, found, err = r.terms.TermByOrdinal(ctx, ordinal)
			if err != nil {
				return domain.TermRef{}, fmt.Errorf("re-read term %d: %w", ordinal, err)
			}
			if !found {
				return domain.TermRef{}, fmt.Errorf("term %d vanished after conflict", ordinal)
			}
		} else if err != nil {
			return domain.TermRef{}, fmt.Errorf("create term %d: %w", ordinal, err)
		}
	}

	ref := domain.TermRef{ID: term.ID, Ordinal: term.Ordinal}
	r.memo[ordinal] = ref
	return ref, nil
}

func (r *Resolver) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPersistenceConflict marks a natural-key race on a concurrent create.
// The store wraps unique-constraint violations with it; callers retry once
// via re-read and never surface it.
var ErrPersistenceConflict = errors.New("persistence conflict")

// ContextResolutionError means no legislative term could be determined for
// a file. Fatal: the file is aborted without a partial commit.
type ContextResolutionError struct {
	Path string
}

func (e *ContextResolutionError) Error() string {
	return fmt.Sprintf("no legislative term resolvable for %s", e.Path)
}

// SchemaCoverageError reports document field paths the mapper does not
// declare. Fatal only in strict mode; lenient runs attach it as a warning.
type SchemaCoverageError struct {
	Family string
	Paths  []string
}

func (e *SchemaCoverageError) Error() string {
	return fmt.Sprintf("family %s: %d unmapped field path(s): %s",
		e.Family, len(e.Paths), strings.Join(e.Paths, ", "))
}

// RecordIntegrityError means a mandated field is missing or a referenced
// entity does not exist. Always fatal to the current record; by default
// also to the remaining records in the file.
type RecordIntegrityError struct {
	Family     string
	ExternalID string
	Reason     string
}

func (e *RecordIntegrityError) Error() string {
	return fmt.Sprintf("family %s record %s: %s", e.Family, e.ExternalID, e.Reason)
}

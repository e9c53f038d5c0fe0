// Package coverage checks that every field path present in a source
// document is accounted for by the mapper's declared set. Each document
// family has evolved independently for decades; this is the single
// checkpoint that catches an upstream-introduced field being silently
// dropped.
package coverage

import (
	"log/slog"
	"sort"

	"LegisImport/internal/document"
	"LegisImport/internal/domain"
)

// PathSet is a set of dot-joined field paths relative to the document
// root. Attribute entries carry an "@" prefix on the final segment.
type PathSet map[string]struct{}

// NewPathSet builds a set from declared path literals.
func NewPathSet(paths ...string) PathSet {
	set := make(PathSet, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}

// CollectFieldPaths walks every node of the document, regardless of depth
// or repetition, and returns the dot-joined paths found under the root.
func CollectFieldPaths(root document.Node) PathSet {
	found := PathSet{}
	if root == nil {
		return found
	}
	for _, name := range root.AttrNames() {
		found["@"+name] = struct{}{}
	}
	for _, child := range root.All() {
		walk(child, "", found)
	}
	return found
}

func walk(n document.Node, prefix string, found PathSet) {
	path := n.Tag()
	if prefix != "" {
		path = prefix + "." + path
	}
	found[path] = struct{}{}

	for _, name := range n.AttrNames() {
		found[path+".@"+name] = struct{}{}
	}
	for _, child := range n.All() {
		walk(child, path, found)
	}
}

// Diff returns found-minus-expected, sorted for stable reporting.
func Diff(found, expected PathSet) []string {
	var unmapped []string
	for path := range found {
		if _, ok := expected[path]; !ok {
			unmapped = append(unmapped, path)
		}
	}
	sort.Strings(unmapped)
	return unmapped
}

// Validator applies the coverage check in either lenient or strict mode.
// The mode is always a caller-supplied flag, never validator state.
type Validator struct {
	logger *slog.Logger
	// maxLogged caps warning lines per file in lenient mode; strict mode
	// always logs every unmapped path before failing.
	maxLogged int
}

// NewValidator builds a validator; maxLogged defaults to 20.
func NewValidator(logger *slog.Logger, maxLogged int) *Validator {
	if maxLogged <= 0 {
		maxLogged = 20
	}
	return &Validator{logger: logger, maxLogged: maxLogged}
}

// Validate diffs the document against the family's declared set. Lenient
// mode logs up to maxLogged unmapped paths and returns them with a nil
// error; strict mode logs all of them and returns a SchemaCoverageError
// that terminates the whole batch run.
func (v *Validator) Validate(root document.Node, family string, expected PathSet, strict bool) ([]string, error) {
	unmapped := Diff(CollectFieldPaths(root), expected)
	if len(unmapped) == 0 {
		return nil, nil
	}

	logged := len(unmapped)
	if !strict && logged > v.maxLogged {
		logged = v.maxLogged
	}
	for _, path := range unmapped[:logged] {
		v.warn("unmapped field path", "family", family, "path", path)
	}
	if !strict && logged < len(unmapped) {
		v.warn("more unmapped field paths suppressed", "family", family, "count", len(unmapped)-logged)
	}

	if strict {
		return unmapped, &domain.SchemaCoverageError{Family: family, Paths: unmapped}
	}
	return unmapped, nil
}

func (v *Validator) warn(msg string, args ...any) {
	if v.logger != nil {
		v.logger.Warn(msg, args...)
	}
}

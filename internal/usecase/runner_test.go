package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"LegisImport/internal/coverage"
	"LegisImport/internal/domain"
	"LegisImport/internal/infrastructure/mappers"
	"LegisImport/internal/mapper"
	"LegisImport/internal/ports"
)

const petitionsFixture = `
<petitions>
  <header><term>VIII</term></header>
  <petition id="P-1">
    <title>Road repairs</title>
    <status>open</status>
    <submittedOn>2023-04-01</submittedOn>
    <documents>
      <document><title>Cover letter</title><url>https://example.org/a.pdf</url><kind>pdf</kind></document>
      <document><title>Signatures</title><url>https://example.org/b.pdf</url><kind>pdf</kind></document>
      <document><title>Map</title><url>https://example.org/c.pdf</url><kind>pdf</kind></document>
    </documents>
  </petition>
  <petition id="P-2">
    <title>School funding</title>
    <status>closed</status>
  </petition>
</petitions>`

type fakeEnricher struct {
	unknown map[string]bool
	calls   int
}

func (f *fakeEnricher) DeputyExists(_ context.Context, deputyID string) (bool, error) {
	f.calls++
	return !f.unknown[deputyID], nil
}

func newTestRunner(store ports.Store, enricher ports.Enricher) *Runner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := mapper.NewRegistry()
	mappers.RegisterAll(registry)

	return NewRunner(RunnerDeps{
		Store:     store,
		Registry:  registry,
		Validator: coverage.NewValidator(logger, 0),
		Enricher:  enricher,
		Logger:    logger,
	})
}

func writeFixture(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func discover(t *testing.T, dir string) []domain.FileMeta {
	t.Helper()
	files, err := DiscoverFiles(dir)
	if err != nil {
		t.Fatalf("DiscoverFiles: %v", err)
	}
	return files
}

func TestImportFileScenario(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixture(t, dir, "petitions/petitions_VIII_a.xml", petitionsFixture)

	store := newMemStore()
	runner := newTestRunner(store, nil)
	ctx := context.Background()

	summary, err := runner.Run(ctx, discover(t, dir), Options{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	report := summary.Reports[0]
	if report.Err != nil {
		t.Fatalf("unexpected file error: %v", report.Err)
	}
	if report.Result.Processed != 2 || report.Result.Imported != 2 || len(report.Result.Errors) != 0 {
		t.Fatalf("unexpected result: %+v", report.Result)
	}

	if store.recordCount("petitions") != 2 {
		t.Fatalf("expected 2 petitions, got %d", store.recordCount("petitions"))
	}
	if store.childCount("petition_documents") != 3 {
		t.Fatalf("expected 3 documents, got %d", store.childCount("petition_documents"))
	}

	rec, ok := store.recordByExternalID("petitions", "P-1")
	if !ok {
		t.Fatal("petition P-1 missing")
	}
	if rec.fields["title"] != "Road repairs" || rec.fields["status"] != "open" {
		t.Fatalf("unexpected fields: %v", rec.fields)
	}
	if rec.batchID == uuid.Nil {
		t.Fatal("expected batch foreign key stamped at insert")
	}
}

func TestReimportIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixture(t, dir, "petitions/petitions_VIII_a.xml", petitionsFixture)

	store := newMemStore()
	runner := newTestRunner(store, nil)
	ctx := context.Background()

	if _, err := runner.Run(ctx, discover(t, dir), Options{}); err != nil {
		t.Fatalf("first Run error: %v", err)
	}
	first, _ := store.recordByExternalID("petitions", "P-1")

	summary, err := runner.Run(ctx, discover(t, dir), Options{ForceRefresh: true})
	if err != nil {
		t.Fatalf("second Run error: %v", err)
	}

	report := summary.Reports[0]
	if report.Result.Processed != 2 || report.Result.Imported != 2 || len(report.Result.Errors) != 0 {
		t.Fatalf("unexpected re-import result: %+v", report.Result)
	}

	if store.recordCount("petitions") != 2 {
		t.Fatalf("re-import duplicated parents: %d rows", store.recordCount("petitions"))
	}
	if store.childCount("petition_documents") != 3 {
		t.Fatalf("expected 3 documents after re-import (not 6), got %d", store.childCount("petition_documents"))
	}

	second, _ := store.recordByExternalID("petitions", "P-1")
	if second.id != first.id {
		t.Fatal("re-import must update the same row, not insert")
	}
	if second.fields["title"] != first.fields["title"] {
		t.Fatal("re-import changed field values of an unchanged document")
	}
	if second.batchID != first.batchID {
		t.Fatal("batch foreign key must never be touched on update")
	}
}

func TestCompletedFilesSkippedUnlessForced(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixture(t, dir, "petitions/petitions_VIII_a.xml", petitionsFixture)

	store := newMemStore()
	runner := newTestRunner(store, nil)
	ctx := context.Background()

	if _, err := runner.Run(ctx, discover(t, dir), Options{}); err != nil {
		t.Fatalf("first Run error: %v", err)
	}

	summary, err := runner.Run(ctx, discover(t, dir), Options{})
	if err != nil {
		t.Fatalf("second Run error: %v", err)
	}
	if summary.Skipped != 1 || summary.Processed != 0 {
		t.Fatalf("expected completed file skipped, got %+v", summary)
	}
}

func TestReimportDropsDisappearedChild(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFixture(t, dir, "petitions/petitions_VIII_a.xml", petitionsFixture)

	store := newMemStore()
	runner := newTestRunner(store, nil)
	ctx := context.Background()

	if _, err := runner.Run(ctx, discover(t, dir), Options{}); err != nil {
		t.Fatalf("first Run error: %v", err)
	}

	trimmed := `
<petitions>
  <header><term>VIII</term></header>
  <petition id="P-1">
    <title>Road repairs</title>
    <documents>
      <document><title>Cover letter</title><url>https://example.org/a.pdf</url><kind>pdf</kind></document>
    </documents>
  </petition>
  <petition id="P-2"><title>School funding</title></petition>
</petitions>`
	if err := os.WriteFile(path, []byte(trimmed), 0o644); err != nil {
		t.Fatalf("rewrite fixture: %v", err)
	}

	if _, err := runner.Run(ctx, discover(t, dir), Options{ForceRefresh: true}); err != nil {
		t.Fatalf("second Run error: %v", err)
	}

	if store.childCount("petition_documents") != 1 {
		t.Fatalf("expected 1 document after replace, got %d", store.childCount("petition_documents"))
	}
}

func TestMissingMandatedFieldAbortsFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixture(t, dir, "petitions/petitions_VIII_a.xml", `
<petitions>
  <header><term>VIII</term></header>
  <petition id="P-1"><status>open</status></petition>
</petitions>`)

	store := newMemStore()
	runner := newTestRunner(store, nil)

	summary, err := runner.Run(context.Background(), discover(t, dir), Options{Strict: true})
	if err == nil {
		t.Fatal("expected strict run to halt")
	}

	var integrity *domain.RecordIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected RecordIntegrityError, got %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("expected 1 failed file, got %d", summary.Failed)
	}
	if store.recordCount("petitions") != 0 {
		t.Fatalf("expected zero partial rows, got %d", store.recordCount("petitions"))
	}
}

func TestLenientRunContinuesPastFailedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixture(t, dir, "petitions/petitions_VIII_a.xml", `
<petitions>
  <header><term>VIII</term></header>
  <petition id="P-1"><status>open</status></petition>
</petitions>`)
	writeFixture(t, dir, "petitions/petitions_VIII_b.xml", `
<petitions>
  <header><term>VIII</term></header>
  <petition id="P-9"><title>Bridge lighting</title></petition>
</petitions>`)

	store := newMemStore()
	runner := newTestRunner(store, nil)

	summary, err := runner.Run(context.Background(), discover(t, dir), Options{})
	if err != nil {
		t.Fatalf("lenient Run error: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("expected 1 failed file, got %d", summary.Failed)
	}
	if _, ok := store.recordByExternalID("petitions", "P-9"); !ok {
		t.Fatal("second file should have imported")
	}
	if _, ok := store.recordByExternalID("petitions", "P-1"); ok {
		t.Fatal("failed file must not commit partial rows")
	}
}

func TestSkipAndContinueFamilyRecordsErrorAndProceeds(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixture(t, dir, "delegations/delegations_VIII.xml", `
<delegations>
  <header><term>VIII</term></header>
  <delegation id="D-1">
    <name>Visit to Vienna</name>
    <members><member deputyId="DP-1"><name>A. Kovacs</name><role>head</role></member></members>
  </delegation>
  <delegation id="D-2"><destination>Prague</destination></delegation>
  <delegation id="D-3"><name>Visit to Warsaw</name></delegation>
</delegations>`)

	store := newMemStore()
	runner := newTestRunner(store, nil)

	summary, err := runner.Run(context.Background(), discover(t, dir), Options{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	report := summary.Reports[0]
	if report.Err != nil {
		t.Fatalf("skip-and-continue family must not fail the file: %v", report.Err)
	}
	if report.Result.Processed != 3 || report.Result.Imported != 2 || len(report.Result.Errors) != 1 {
		t.Fatalf("unexpected result: %+v", report.Result)
	}

	var integrity *domain.RecordIntegrityError
	if !errors.As(report.Result.Errors[0], &integrity) {
		t.Fatalf("expected RecordIntegrityError, got %v", report.Result.Errors[0])
	}
	if store.recordCount("delegations") != 2 {
		t.Fatalf("expected siblings committed, got %d", store.recordCount("delegations"))
	}
	if store.childCount("delegation_members") != 1 {
		t.Fatalf("expected 1 member, got %d", store.childCount("delegation_members"))
	}
}

func TestStrictModeDisablesSkipAndContinue(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixture(t, dir, "delegations/delegations_VIII.xml", `
<delegations>
  <header><term>VIII</term></header>
  <delegation id="D-2"><destination>Prague</destination></delegation>
</delegations>`)

	store := newMemStore()
	runner := newTestRunner(store, nil)

	if _, err := runner.Run(context.Background(), discover(t, dir), Options{Strict: true}); err == nil {
		t.Fatal("expected strict run to halt on integrity error")
	}
	if store.recordCount("delegations") != 0 {
		t.Fatal("strict failure must not commit rows")
	}
}

func TestUndeclaredTagIsWarningWhenLenientFatalWhenStrict(t *testing.T) {
	t.Parallel()

	fixture := `
<petitions>
  <header><term>VIII</term></header>
  <petition id="P-1"><title>Road repairs</title><urgency>high</urgency></petition>
</petitions>`

	dir := t.TempDir()
	writeFixture(t, dir, "petitions/petitions_VIII_a.xml", fixture)

	store := newMemStore()
	runner := newTestRunner(store, nil)
	ctx := context.Background()

	summary, err := runner.Run(ctx, discover(t, dir), Options{})
	if err != nil {
		t.Fatalf("lenient Run error: %v", err)
	}
	report := summary.Reports[0]
	if report.Err != nil {
		t.Fatalf("lenient coverage violation must not fail the file: %v", report.Err)
	}
	if len(report.Result.Errors) != 1 {
		t.Fatalf("expected coverage warning attached to result, got %v", report.Result.Errors)
	}
	var coverageErr *domain.SchemaCoverageError
	if !errors.As(report.Result.Errors[0], &coverageErr) {
		t.Fatalf("expected SchemaCoverageError, got %v", report.Result.Errors[0])
	}
	if len(coverageErr.Paths) != 1 || coverageErr.Paths[0] != "petition.urgency" {
		t.Fatalf("expected exactly petition.urgency, got %v", coverageErr.Paths)
	}
	if store.recordCount("petitions") != 1 {
		t.Fatal("lenient run should still import the file")
	}

	strictStore := newMemStore()
	strictRunner := newTestRunner(strictStore, nil)
	_, err = strictRunner.Run(ctx, discover(t, dir), Options{Strict: true})
	if !errors.As(err, &coverageErr) {
		t.Fatalf("expected strict SchemaCoverageError, got %v", err)
	}
	if strictStore.recordCount("petitions") != 0 {
		t.Fatal("strict coverage violation must not commit rows")
	}
}

func TestStrictHaltsRemainingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixture(t, dir, "petitions/petitions_VIII_a.xml", `
<petitions>
  <header><term>VIII</term></header>
  <petition id="P-1"><title>x</title><urgency>high</urgency></petition>
</petitions>`)
	writeFixture(t, dir, "petitions/petitions_VIII_b.xml", `
<petitions>
  <header><term>VIII</term></header>
  <petition id="P-2"><title>y</title></petition>
</petitions>`)

	store := newMemStore()
	runner := newTestRunner(store, nil)

	summary, err := runner.Run(context.Background(), discover(t, dir), Options{Strict: true})
	if err == nil {
		t.Fatal("expected strict run to halt")
	}
	if len(summary.Reports) != 1 {
		t.Fatalf("expected the run to stop before later files, got %d reports", len(summary.Reports))
	}
	if _, ok := store.recordByExternalID("petitions", "P-2"); ok {
		t.Fatal("later file must not be processed after strict halt")
	}
}

func TestTermFilterSkipsOtherTerms(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixture(t, dir, "petitions/petitions_VIII_a.xml", petitionsFixture)

	store := newMemStore()
	runner := newTestRunner(store, nil)

	summary, err := runner.Run(context.Background(), discover(t, dir), Options{TermFilter: 5})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if summary.Skipped != 1 || store.recordCount("petitions") != 0 {
		t.Fatalf("expected term-filtered skip, got %+v", summary)
	}
}

func TestReportOnlyDiscardsWrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixture(t, dir, "petitions/petitions_VIII_a.xml", petitionsFixture)

	store := newMemStore()
	runner := newTestRunner(store, nil)

	summary, err := runner.Run(context.Background(), discover(t, dir), Options{ReportOnly: true})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if summary.Processed != 2 || summary.Imported != 2 {
		t.Fatalf("report-only must still process records: %+v", summary)
	}
	if store.recordCount("petitions") != 0 {
		t.Fatal("report-only must not commit")
	}
}

func TestUnknownDeputyReferenceFailsRecord(t *testing.T) {
	t.Parallel()

	fixture := `
<petitions>
  <header><term>VIII</term></header>
  <petition id="P-1">
    <title>Road repairs</title>
    <authors><author deputyId="DP-404">J. Smith</author></authors>
  </petition>
</petitions>`

	dir := t.TempDir()
	writeFixture(t, dir, "petitions/petitions_VIII_a.xml", fixture)

	store := newMemStore()
	enricher := &fakeEnricher{unknown: map[string]bool{"DP-404": true}}
	runner := newTestRunner(store, enricher)
	ctx := context.Background()

	summary, err := runner.Run(ctx, discover(t, dir), Options{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	report := summary.Reports[0]
	var integrity *domain.RecordIntegrityError
	if !errors.As(report.Err, &integrity) {
		t.Fatalf("expected RecordIntegrityError, got %v", report.Err)
	}
	if store.recordCount("petitions") != 0 {
		t.Fatal("failed record must not commit")
	}

	// Suppressing enrichment skips the registry check entirely.
	files := discover(t, dir)
	for i := range files {
		files[i].SkipEnrichment = true
	}
	quietStore := newMemStore()
	quietRunner := newTestRunner(quietStore, enricher)
	before := enricher.calls

	if _, err := quietRunner.Run(ctx, files, Options{}); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if enricher.calls != before {
		t.Fatal("suppressed enrichment must not call the registry")
	}
	if quietStore.recordCount("petitions") != 1 {
		t.Fatal("record should import without the enrichment check")
	}
}

package mappers

import (
	"context"
	"fmt"

	"LegisImport/internal/coverage"
	"LegisImport/internal/document"
	"LegisImport/internal/domain"
	"LegisImport/internal/mapper"
	"LegisImport/internal/upsert"
)

// Petitions imports citizen petition files: one parent row per petition,
// with author and attachment child collections.
type Petitions struct{}

var _ mapper.Mapper = (*Petitions)(nil)

// Family identifies the driver; matches the file category.
func (*Petitions) Family() string {
	return "petitions"
}

// ExpectedPaths declares every field path a petition file may carry.
func (*Petitions) ExpectedPaths() coverage.PathSet {
	return coverage.NewPathSet(
		"header",
		"header.term",
		"petition",
		"petition.@id",
		"petition.title",
		"petition.status",
		"petition.submittedOn",
		"petition.authors",
		"petition.authors.author",
		"petition.authors.author.@deputyId",
		"petition.documents",
		"petition.documents.document",
		"petition.documents.document.title",
		"petition.documents.document.url",
		"petition.documents.document.kind",
	)
}

// Records selects the top-level petition elements.
func (*Petitions) Records(doc document.Node) []document.Node {
	return doc.Children("petition")
}

// SkipFailedRecords keeps the default all-or-nothing file policy.
func (*Petitions) SkipFailedRecords() bool {
	return false
}

// MapRecord upserts one petition and replaces its child collections.
func (p *Petitions) MapRecord(ctx context.Context, rec document.Node, run *mapper.Run) error {
	externalID := rec.Attr("id")
	if externalID == "" {
		return &domain.RecordIntegrityError{Family: p.Family(), ExternalID: "?", Reason: "missing id attribute"}
	}

	title := document.TextAt(rec, "title")
	if title == "" {
		return &domain.RecordIntegrityError{Family: p.Family(), ExternalID: externalID, Reason: "missing mandated field title"}
	}

	authors, err := p.authorRows(ctx, rec, externalID, run)
	if err != nil {
		return err
	}

	var documents []upsert.ChildRow
	for _, doc := range childNodes(rec, "documents", "document") {
		documents = append(documents, upsert.ChildRow{
			"title": document.TextAt(doc, "title"),
			"url":   document.TextAt(doc, "url"),
			"kind":  document.TextAt(doc, "kind"),
		})
	}

	key := upsert.NaturalKey{ExternalID: externalID, TermID: run.Term.ID}
	ref, err := run.Upserts.Upsert(ctx, "petitions", key, map[string]any{
		"title":        title,
		"status":       document.TextAt(rec, "status"),
		"submitted_on": parseDate(document.TextAt(rec, "submittedOn")),
	})
	if err != nil {
		return err
	}

	if err := run.Upserts.ReplaceChildren(ctx, "petition_authors", ref.ID, authors); err != nil {
		return err
	}
	return run.Upserts.ReplaceChildren(ctx, "petition_documents", ref.ID, documents)
}

// authorRows extracts author children, verifying referenced deputies when
// enrichment is enabled for the file.
func (p *Petitions) authorRows(ctx context.Context, rec document.Node, externalID string, run *mapper.Run) ([]upsert.ChildRow, error) {
	var rows []upsert.ChildRow
	for _, author := range childNodes(rec, "authors", "author") {
		deputyID := author.Attr("deputyId")
		if deputyID != "" && run.Enricher != nil {
			exists, err := run.Enricher.DeputyExists(ctx, deputyID)
			if err != nil {
				return nil, fmt.Errorf("verify deputy %s: %w", deputyID, err)
			}
			if !exists {
				return nil, &domain.RecordIntegrityError{
					Family:     p.Family(),
					ExternalID: externalID,
					Reason:     fmt.Sprintf("author references unknown deputy %s", deputyID),
				}
			}
		}
		rows = append(rows, upsert.ChildRow{
			"deputy_id": deputyID,
			"full_name": author.Text(),
		})
	}
	return rows, nil
}

// childNodes returns the members of a wrapped child collection, empty
// when the wrapper element is absent.
func childNodes(rec document.Node, wrapper, tag string) []document.Node {
	parent := rec.Child(wrapper)
	if parent == nil {
		return nil
	}
	return parent.Children(tag)
}

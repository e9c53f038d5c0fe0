package mappers

import (
	"context"

	"LegisImport/internal/coverage"
	"LegisImport/internal/document"
	"LegisImport/internal/domain"
	"LegisImport/internal/mapper"
	"LegisImport/internal/upsert"
)

// Sittings imports plenary sitting files: one parent row per sitting,
// with agenda-item and participant child collections.
type Sittings struct{}

var _ mapper.Mapper = (*Sittings)(nil)

func (*Sittings) Family() string {
	return "sittings"
}

func (*Sittings) ExpectedPaths() coverage.PathSet {
	return coverage.NewPathSet(
		"header",
		"header.term",
		"sitting",
		"sitting.@number",
		"sitting.date",
		"sitting.kind",
		"sitting.agenda",
		"sitting.agenda.item",
		"sitting.agenda.item.position",
		"sitting.agenda.item.title",
		"sitting.participants",
		"sitting.participants.participant",
		"sitting.participants.participant.@deputyId",
	)
}

func (*Sittings) Records(doc document.Node) []document.Node {
	return doc.Children("sitting")
}

func (*Sittings) SkipFailedRecords() bool {
	return false
}

// MapRecord upserts one sitting and replaces its child collections. The
// sitting number is the external id; it is unique within a term.
func (s *Sittings) MapRecord(ctx context.Context, rec document.Node, run *mapper.Run) error {
	number := rec.Attr("number")
	if number == "" {
		return &domain.RecordIntegrityError{Family: s.Family(), ExternalID: "?", Reason: "missing number attribute"}
	}
	if document.TextAt(rec, "date") == "" {
		return &domain.RecordIntegrityError{Family: s.Family(), ExternalID: number, Reason: "missing mandated field date"}
	}

	var agenda []upsert.ChildRow
	for _, item := range childNodes(rec, "agenda", "item") {
		agenda = append(agenda, upsert.ChildRow{
			"position": document.TextAt(item, "position"),
			"title":    document.TextAt(item, "title"),
		})
	}

	var participants []upsert.ChildRow
	for _, part := range childNodes(rec, "participants", "participant") {
		participants = append(participants, upsert.ChildRow{
			"deputy_id": part.Attr("deputyId"),
			"full_name": part.Text(),
		})
	}

	key := upsert.NaturalKey{ExternalID: number, TermID: run.Term.ID}
	ref, err := run.Upserts.Upsert(ctx, "sittings", key, map[string]any{
		"sat_on": parseDate(document.TextAt(rec, "date")),
		"kind":   document.TextAt(rec, "kind"),
	})
	if err != nil {
		return err
	}

	if err := run.Upserts.ReplaceChildren(ctx, "sitting_agenda_items", ref.ID, agenda); err != nil {
		return err
	}
	return run.Upserts.ReplaceChildren(ctx, "sitting_participants", ref.ID, participants)
}

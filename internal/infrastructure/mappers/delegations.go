package mappers

import (
	"context"

	"LegisImport/internal/coverage"
	"LegisImport/internal/document"
	"LegisImport/internal/domain"
	"LegisImport/internal/mapper"
	"LegisImport/internal/upsert"
)

// Delegations imports foreign-delegation files: one parent row per
// delegation with a member child collection. Delegation files are known
// to carry sporadic malformed entries dating back decades, so this family
// opts into skip-and-continue instead of failing the whole file.
type Delegations struct{}

var _ mapper.Mapper = (*Delegations)(nil)

func (*Delegations) Family() string {
	return "delegations"
}

func (*Delegations) ExpectedPaths() coverage.PathSet {
	return coverage.NewPathSet(
		"header",
		"header.term",
		"delegation",
		"delegation.@id",
		"delegation.name",
		"delegation.destination",
		"delegation.startDate",
		"delegation.endDate",
		"delegation.members",
		"delegation.members.member",
		"delegation.members.member.@deputyId",
		"delegation.members.member.role",
		"delegation.members.member.name",
	)
}

func (*Delegations) Records(doc document.Node) []document.Node {
	return doc.Children("delegation")
}

// SkipFailedRecords opts this family into the narrower per-record
// failure mode.
func (*Delegations) SkipFailedRecords() bool {
	return true
}

// MapRecord upserts one delegation and replaces its members.
func (d *Delegations) MapRecord(ctx context.Context, rec document.Node, run *mapper.Run) error {
	externalID := rec.Attr("id")
	if externalID == "" {
		return &domain.RecordIntegrityError{Family: d.Family(), ExternalID: "?", Reason: "missing id attribute"}
	}
	name := document.TextAt(rec, "name")
	if name == "" {
		return &domain.RecordIntegrityError{Family: d.Family(), ExternalID: externalID, Reason: "missing mandated field name"}
	}

	var members []upsert.ChildRow
	for _, member := range childNodes(rec, "members", "member") {
		members = append(members, upsert.ChildRow{
			"deputy_id": member.Attr("deputyId"),
			"full_name": document.TextAt(member, "name"),
			"role":      document.TextAt(member, "role"),
		})
	}

	key := upsert.NaturalKey{ExternalID: externalID, TermID: run.Term.ID}
	ref, err := run.Upserts.Upsert(ctx, "delegations", key, map[string]any{
		"name":        name,
		"destination": document.TextAt(rec, "destination"),
		"started_on":  parseDate(document.TextAt(rec, "startDate")),
		"ended_on":    parseDate(document.TextAt(rec, "endDate")),
	})
	if err != nil {
		return err
	}

	return run.Upserts.ReplaceChildren(ctx, "delegation_members", ref.ID, members)
}

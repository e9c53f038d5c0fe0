// Package mappers holds the family-specific drivers built on the generic
// import engine, one per document family.
package mappers

import (
	"strings"
	"time"

	"LegisImport/internal/mapper"
)

// RegisterAll wires every shipped family driver into the registry.
func RegisterAll(reg *mapper.Registry) {
	reg.Register(&Petitions{})
	reg.Register(&Sittings{})
	reg.Register(&Delegations{})
}

// parseDate reads the source's date layout; zero time when absent or
// malformed, dates are not mandated fields in any shipped family.
func parseDate(value string) any {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil
	}
	return parsed
}

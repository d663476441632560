package contact

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

func titleCase(s string) string {
	return titleCaser.String(strings.ToLower(s))
}

// Validate normalizes a record for downstream consumers: email is lower-cased
// and trimmed, names are title-cased, company is trimmed. Remaining fields
// keep their extracted form (empty string when absent).
func Validate(rec Record) Record {
	if rec.Email != "" {
		rec.Email = strings.ToLower(strings.TrimSpace(rec.Email))
	}
	if rec.FirstName != "" {
		rec.FirstName = titleCase(strings.TrimSpace(rec.FirstName))
	}
	if rec.LastName != "" {
		rec.LastName = titleCase(strings.TrimSpace(rec.LastName))
	}
	if rec.Name != "" {
		rec.Name = titleCase(strings.TrimSpace(rec.Name))
	}
	if rec.Company != "" {
		rec.Company = strings.TrimSpace(rec.Company)
	}
	rec.Title = strings.TrimSpace(rec.Title)
	rec.Phone = strings.TrimSpace(rec.Phone)
	rec.Website = strings.TrimSpace(rec.Website)
	rec.Address = strings.TrimSpace(rec.Address)
	return rec
}

// Package contact parses contact fields out of recognized card text.
package contact

// Record holds the fields parsed from a business card. Every field is
// optional; empty string means the field was not found. RawText keeps the
// full recognized text verbatim for audit and debugging.
type Record struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Company   string `json:"company,omitempty"`
	Title     string `json:"title,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Website   string `json:"website,omitempty"`
	Address   string `json:"address,omitempty"`
	RawText   string `json:"raw_text,omitempty"`
}

// IsEmpty reports whether no field besides RawText was extracted.
func (r Record) IsEmpty() bool {
	return r.Name == "" && r.Email == "" && r.Company == "" &&
		r.Title == "" && r.Phone == "" && r.Website == "" && r.Address == ""
}

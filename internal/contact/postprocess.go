package contact

import (
	"strings"

	"github.com/grovecrm/cardscan/internal/score"
)

// PostProcess drops obviously garbled lines from recognized text while
// keeping anything that carries contact signal: valid-looking lines, email
// addresses, name-shaped lines and phone numbers. When the filter would
// remove everything, the unfiltered lines are kept instead so a weak read
// still reaches extraction.
func PostProcess(text string) string {
	if text == "" {
		return ""
	}
	var filtered, fallback []string
	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		fallback = append(fallback, stripped)
		if score.LineValid(stripped) ||
			score.EmailPattern.MatchString(stripped) ||
			looksLikeName(stripped) ||
			extractPhone(stripped) != "" {
			filtered = append(filtered, stripped)
		}
	}
	if len(filtered) > 0 {
		return strings.Join(filtered, "\n")
	}
	return strings.Join(fallback, "\n")
}

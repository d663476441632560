package contact

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/grovecrm/cardscan/internal/score"
)

var (
	digitPattern     = regexp.MustCompile(`\d`)
	phoneLikePattern = regexp.MustCompile(`\d{3,}`)
	linePhonePattern = regexp.MustCompile(`\d{3}-\d{3}-\d{4}`)
	addressPattern   = regexp.MustCompile(`(?i)\d+.*(st|ave|rd|blvd|street|avenue)`)

	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`),
		regexp.MustCompile(`\d{3}[-.\s]\d{3}[-.\s]\d{4}`),
		regexp.MustCompile(`(?i)O\s*\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`),
		regexp.MustCompile(`(?i)Office[:\s]+\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`),
	}
	officePrefixPattern = regexp.MustCompile(`(?i)office[:\s]+`)
	oPrefixPattern      = regexp.MustCompile(`^[Oo]\s+`)

	websitePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)https?://[\w.-]+`),
		regexp.MustCompile(`(?i)www\.[\w.-]+`),
		regexp.MustCompile(`(?i)[\w.-]+\.(com|org|net|edu|gov|io|co)[\w.-]*`),
	}
)

// credentials are professional suffixes commonly trailing a name line.
var credentials = []string{"MSN", "RN", "MD", "DO", "PA", "NP", "LPN", "BSN", "MBA", "PhD", "DNP"}

var namelineTitles = []string{"Patient Care Manager", "Manager", "Director", "Coordinator", "Specialist", "Assistant"}

var businessWords = []string{"inc", "llc", "corp", "company", "hospital", "medical", "health", "center", "clinic", "manager", "director", "coordinator"}

var titleKeywords = []string{
	"Patient Care Manager", "Manager", "Director", "Coordinator",
	"Specialist", "Assistant", "Executive", "President", "VP",
	"Vice President", "Chief", "Lead", "Supervisor",
}

var nameStopWords = map[string]struct{}{
	"inc": {}, "llc": {}, "corp": {}, "company": {}, "hospital": {},
	"medical": {}, "health": {}, "center": {}, "clinic": {}, "the": {},
	"and": {}, "of": {}, "for": {}, "hospice": {},
}

// Extract parses contact fields from recognized card text. It never fails:
// fields that cannot be determined are left empty. The email address, when
// present, is the anchor — company falls back to its domain label and the
// name can be recovered from a first.last local part.
func Extract(text string) Record {
	rec := Record{RawText: strings.TrimSpace(text)}

	if m := score.EmailPattern.FindString(text); m != "" {
		rec.Email = strings.ToLower(strings.TrimSpace(m))
		rec.Company = companyFromEmail(rec.Email)
	}

	if name := extractName(text); name != "" {
		rec.Name = name
		parts := strings.Fields(name)
		if len(parts) >= 2 {
			rec.FirstName = parts[0]
			rec.LastName = strings.Join(parts[1:], " ")
		} else {
			rec.FirstName = name
		}
	}

	if rec.Company == "" {
		rec.Company = extractCompany(text)
	}
	rec.Phone = extractPhone(text)
	rec.Website = extractWebsite(text)
	rec.Title = extractTitle(text)
	return rec
}

// companyFromEmail derives a provisional company from the email's domain
// label: strip the TLD, turn separators into spaces and title-case.
func companyFromEmail(email string) string {
	parts := strings.SplitN(email, "@", 2)
	if len(parts) != 2 {
		return ""
	}
	domain := parts[1]
	if i := strings.IndexByte(domain, '.'); i >= 0 {
		domain = domain[:i]
	}
	domain = strings.NewReplacer("-", " ", "_", " ").Replace(domain)
	return titleCase(domain)
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func extractName(text string) string {
	lines := nonEmptyLines(text)

	// Strategy 1: a leading line that reads like a person's name once
	// credentials and title suffixes are stripped.
	for _, line := range firstN(lines, 5) {
		cleaned := cleanNameLine(line)
		if cleaned != "" && looksLikeName(cleaned) {
			return cleaned
		}
	}

	// Strategy 2: recover first.last from the email local part.
	if email := score.EmailPattern.FindString(text); email != "" {
		local := strings.SplitN(email, "@", 2)[0]
		parts := strings.Split(local, ".")
		if len(parts) == 2 {
			candidate := titleCase(parts[0]) + " " + titleCase(parts[1])
			if looksLikeName(candidate) {
				return candidate
			}
		}
	}

	// Strategy 3: gather capitalized alphabetic tokens that aren't business
	// words, credentials or numbers, and accept a 2-4 word run.
	var candidates []string
	for _, word := range strings.Fields(text) {
		if score.EmailPattern.MatchString(word) || phoneLikePattern.MatchString(word) {
			continue
		}
		if _, stop := nameStopWords[strings.ToLower(word)]; stop {
			continue
		}
		if isCredential(word) {
			continue
		}
		bare := strings.NewReplacer(".", "", "-", "").Replace(word)
		if len(word) > 1 && isUpperInitial(word) && isAlpha(bare) {
			candidates = append(candidates, word)
		}
	}
	if len(candidates) >= 2 && len(candidates) <= 4 {
		return strings.Join(candidates, " ")
	}
	return ""
}

// cleanNameLine strips trailing credentials ("Jane Doe, RN") and title
// phrases from a candidate name line.
func cleanNameLine(line string) string {
	cleaned := line
	for _, cred := range credentials {
		cleaned = stripSuffixPhrase(cleaned, cred)
	}
	for _, title := range namelineTitles {
		cleaned = stripSuffixPhrase(cleaned, title)
	}
	return strings.TrimSpace(cleaned)
}

func stripSuffixPhrase(s, phrase string) string {
	re := regexp.MustCompile(`(?i),\s*` + regexp.QuoteMeta(phrase) + `(\s|,|$)`)
	s = re.ReplaceAllString(s, "")
	re = regexp.MustCompile(`(?i)\s+` + regexp.QuoteMeta(phrase) + `$`)
	return re.ReplaceAllString(s, "")
}

// looksLikeName applies the person-name heuristic: two or more capitalized
// words, no digits, not all-caps, at most 30 characters and free of business
// vocabulary.
func looksLikeName(text string) bool {
	if score.EmailPattern.MatchString(text) {
		return false
	}
	if digitPattern.MatchString(text) {
		return false
	}
	if len(text) > 30 {
		return false
	}
	if isAllUpper(text) {
		return false
	}
	lower := strings.ToLower(text)
	for _, w := range businessWords {
		if strings.Contains(lower, w) {
			return false
		}
	}
	words := strings.Fields(text)
	if len(words) < 2 {
		return false
	}
	for _, w := range words {
		if !isUpperInitial(w) {
			return false
		}
	}
	return true
}

func extractCompany(text string) string {
	for _, line := range firstN(nonEmptyLines(text), 5) {
		if looksLikeName(line) {
			continue
		}
		lower := strings.ToLower(line)
		if containsAny(lower, "ph:", "fax:", "your", "source", "medical providers") {
			continue
		}
		if addressPattern.MatchString(line) {
			continue
		}
		if linePhonePattern.MatchString(line) {
			continue
		}
		if strings.HasPrefix(line, "http") || strings.HasPrefix(line, "www.") {
			continue
		}
		if len(line) < 30 && containsAny(lower, "manager", "director", "coordinator", "specialist", "assistant") {
			continue
		}
		if len(line) > 3 && len(line) < 50 {
			if !isAllUpper(line) || len(strings.Fields(line)) <= 3 {
				return line
			}
		}
	}
	return ""
}

func extractPhone(text string) string {
	for _, p := range phonePatterns {
		if m := p.FindString(text); m != "" {
			m = officePrefixPattern.ReplaceAllString(m, "")
			m = oPrefixPattern.ReplaceAllString(m, "")
			return strings.TrimSpace(m)
		}
	}
	return ""
}

func extractWebsite(text string) string {
	for _, p := range websitePatterns {
		if m := p.FindString(text); m != "" {
			m = strings.TrimSpace(m)
			if !strings.HasPrefix(m, "http") {
				m = "https://" + strings.TrimPrefix(m, "www.")
			}
			return m
		}
	}
	return ""
}

func extractTitle(text string) string {
	for _, line := range firstN(nonEmptyLines(text), 8) {
		if looksLikeName(line) {
			continue
		}
		if score.EmailPattern.MatchString(line) || phoneLikePattern.MatchString(line) {
			continue
		}
		lower := strings.ToLower(line)
		for _, kw := range titleKeywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return line
			}
		}
		if len(line) > 5 && len(line) < 40 && !digitPattern.MatchString(line) {
			if !isAllUpper(line) && !containsAny(lower, "inc", "llc", "corp", "company") {
				return line
			}
		}
	}
	return ""
}

func firstN(lines []string, n int) []string {
	if len(lines) > n {
		return lines[:n]
	}
	return lines
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func isCredential(word string) bool {
	up := strings.ToUpper(strings.Trim(word, ",."))
	for _, c := range credentials {
		if up == strings.ToUpper(c) {
			return true
		}
	}
	return false
}

func isUpperInitial(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// isAllUpper reports whether s contains letters and every letter is upper case.
func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

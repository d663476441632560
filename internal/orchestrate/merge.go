package orchestrate

import (
	"sort"
	"strings"

	"github.com/grovecrm/cardscan/internal/score"
)

// Candidate is one scored OCR attempt.
type Candidate struct {
	Text   string
	Score  float64
	Source string
}

// sortCandidates orders by score descending, breaking ties by text length so
// richer text wins.
func sortCandidates(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return len(cands[i].Text) > len(cands[j].Text)
	})
}

// mergeText appends to base any line of extra that is not already present
// and passes the line validity filter.
func mergeText(base, extra string) string {
	if extra == "" {
		return base
	}
	seen := make(map[string]struct{})
	for _, line := range strings.Split(base, "\n") {
		seen[strings.TrimSpace(line)] = struct{}{}
	}
	merged := base
	for _, line := range strings.Split(extra, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		if !score.LineValid(line) {
			continue
		}
		if merged == "" {
			merged = line
		} else {
			merged += "\n" + line
		}
		seen[line] = struct{}{}
	}
	return merged
}

// combine folds the candidate list into a final text: the best candidate is
// the base, every candidate within the merge window is merged in, and if the
// result still lacks an email address a candidate carrying one is merged
// specifically to recover it.
func combine(cands []Candidate, mergeWindow float64) string {
	if len(cands) == 0 {
		return ""
	}
	sortCandidates(cands)
	best := cands[0]
	text := best.Text

	floor := best.Score - mergeWindow
	if floor < 0.25 {
		floor = 0.25
	}
	for _, c := range cands[1:] {
		if c.Score >= floor {
			text = mergeText(text, c.Text)
		}
	}

	if !score.HasEmail(text) {
		for _, c := range cands[1:] {
			if score.HasEmail(c.Text) {
				text = mergeText(text, c.Text)
				break
			}
		}
	}
	return text
}

// internal/intent/dialog/resolver.go
package dialog

import (
	"errors"

	"intent-workers/internal/intent/scoring"
	"intent-workers/pkg/catalog"
)

// ErrEmptyCandidateSet is returned when a clarification reply arrives with
// no stored candidates to choose from.
var ErrEmptyCandidateSet = errors.New("EMPTY_CANDIDATE_SET")

// ResolveClarification maps a free-text clarification reply onto one of the
// stored candidates. For each candidate it counts how many of that intent's
// keywords occur in the reply, using the same whole-word case-insensitive
// rule the scorer uses. The highest count wins; ties keep the earlier rank.
// A reply matching nothing falls back to the highest-scored candidate, so
// resolution always succeeds once candidates exist.
func ResolveClarification(reply string, stored []scoring.Candidate, cat *catalog.Catalog) (scoring.Candidate, error) {
	if len(stored) == 0 {
		return scoring.Candidate{}, ErrEmptyCandidateSet
	}

	bestIdx := -1
	bestCount := 0
	for i, cand := range stored {
		in := cat.Get(cand.IntentID)
		if in == nil {
			continue
		}
		count := 0
		for _, kw := range in.Keywords {
			if scoring.MatchesKeyword(reply, kw) {
				count++
			}
		}
		// strict > keeps the earliest rank on equal counts
		if count > bestCount {
			bestCount = count
			bestIdx = i
		}
	}

	if bestIdx == -1 {
		return fallbackHighest(stored), nil
	}
	return stored[bestIdx], nil
}

// fallbackHighest picks the candidate with the highest final score, earliest
// rank winning ties.
func fallbackHighest(stored []scoring.Candidate) scoring.Candidate {
	best := stored[0]
	for _, c := range stored[1:] {
		if c.FinalScore > best.FinalScore {
			best = c
		}
	}
	return best
}

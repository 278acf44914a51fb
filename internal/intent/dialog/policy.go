// internal/intent/dialog/policy.go
package dialog

import "intent-workers/internal/intent/scoring"

// Default ambiguity thresholds.
const (
	DefaultConfidenceFloor = 0.30
	DefaultMarginFloor     = 0.15
)

// Policy holds the ambiguity thresholds. Values are fixed at construction
// and never change at runtime.
type Policy struct {
	// ConfidenceFloor is the minimum top score for a confident resolution.
	ConfidenceFloor float64
	// MarginFloor is the minimum lead the top score needs over the runner-up.
	MarginFloor float64
}

func DefaultPolicy() Policy {
	return Policy{
		ConfidenceFloor: DefaultConfidenceFloor,
		MarginFloor:     DefaultMarginFloor,
	}
}

// IsAmbiguous applies the threshold rules to a ranked candidate list. Pure
// function of its input; both comparisons are strict, so a top score exactly
// at the floor or a margin exactly at the floor counts as confident.
//
// With fewer than two candidates only the confidence floor applies.
func (p Policy) IsAmbiguous(ranked []scoring.Candidate) (bool, Reason) {
	if len(ranked) == 0 {
		return true, ReasonNoCandidates
	}
	top := ranked[0].FinalScore
	if top < p.ConfidenceFloor {
		return true, ReasonLowConfidence
	}
	if len(ranked) >= 2 && top-ranked[1].FinalScore < p.MarginFloor {
		return true, ReasonCloseScores
	}
	return false, ""
}

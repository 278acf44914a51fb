// Package scoring ranks catalog intents against a user utterance with a
// deterministic three-signal score: whole-word keyword overlap, regex
// trigger hits and a hash-based semantic similarity.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"

	"intent-workers/pkg/catalog"
)

// Signal weights for the combined score.
const (
	WeightKeyword  = 0.5
	WeightTrigger  = 0.3
	WeightSemantic = 0.2
)

// ErrEmptyCatalog is returned when scoring is attempted against a catalog
// with no intents. Emptiness is surfaced here, not at load time, because an
// empty catalog is only fatal once a score is actually requested.
var ErrEmptyCatalog = errors.New("EMPTY_CATALOG")

// Candidate is one scored intent. SemanticScore keeps the raw cosine value;
// the weighted sum floors it at zero.
type Candidate struct {
	IntentID      string  `json:"intent_id"`
	Label         string  `json:"label"`
	KeywordScore  float64 `json:"keyword_score"`
	TriggerScore  float64 `json:"trigger_score"`
	SemanticScore float64 `json:"semantic_score"`
	FinalScore    float64 `json:"final_score"`
}

type compiledIntent struct {
	id       string
	label    string
	keywords []*regexp.Regexp
	triggers []*regexp.Regexp
	seed     Vector
}

// Scorer scores utterances against a fixed catalog. All patterns and seed
// embeddings are precompiled at construction; Score itself never mutates
// state and is safe for concurrent use.
type Scorer struct {
	intents []compiledIntent
}

// NewScorer precompiles the catalog. Trigger patterns that do not compile
// surface as catalog.ErrInvalidTrigger; catalog.Validate normally catches
// them first.
func NewScorer(cat *catalog.Catalog) (*Scorer, error) {
	s := &Scorer{intents: make([]compiledIntent, 0, cat.Len())}
	for _, in := range cat.Intents {
		ci := compiledIntent{
			id:    in.ID,
			label: in.Label,
			seed:  Embed(in.SemanticSeed),
		}
		for _, kw := range in.Keywords {
			re, err := regexp.Compile(wholeWordPattern(kw))
			if err != nil {
				return nil, fmt.Errorf("intent %q keyword %q: %w", in.ID, kw, err)
			}
			ci.keywords = append(ci.keywords, re)
		}
		for _, pattern := range in.Triggers {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return nil, fmt.Errorf("%w: intent %q pattern %q: %v", catalog.ErrInvalidTrigger, in.ID, pattern, err)
			}
			ci.triggers = append(ci.triggers, re)
		}
		s.intents = append(s.intents, ci)
	}
	return s, nil
}

// Score ranks every catalog intent against the utterance, best first. The
// sort is stable, so equal scores keep catalog order. Identical input always
// produces identical output.
func (s *Scorer) Score(utterance string) ([]Candidate, error) {
	if len(s.intents) == 0 {
		return nil, ErrEmptyCatalog
	}

	utteranceVec := Embed(utterance)
	candidates := make([]Candidate, 0, len(s.intents))
	for _, in := range s.intents {
		keyword := matchRatio(in.keywords, utterance)
		trigger := matchRatio(in.triggers, utterance)
		semantic := Cosine(utteranceVec, in.seed)

		final := WeightKeyword*keyword + WeightTrigger*trigger + WeightSemantic*math.Max(0, semantic)
		candidates = append(candidates, Candidate{
			IntentID:      in.id,
			Label:         in.label,
			KeywordScore:  keyword,
			TriggerScore:  trigger,
			SemanticScore: semantic,
			FinalScore:    clamp01(final),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].FinalScore > candidates[j].FinalScore
	})
	return candidates, nil
}

// MatchesKeyword reports whether keyword occurs in text as a whole word,
// case-insensitively. This is the single matching rule shared by scoring
// and clarification resolution.
func MatchesKeyword(text, keyword string) bool {
	re, err := regexp.Compile(wholeWordPattern(keyword))
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

func wholeWordPattern(keyword string) string {
	return `(?i)\b` + regexp.QuoteMeta(keyword) + `\b`
}

// matchRatio is the fraction of patterns matching the text, 0 for an empty
// pattern set.
func matchRatio(patterns []*regexp.Regexp, text string) float64 {
	if len(patterns) == 0 {
		return 0
	}
	matched := 0
	for _, re := range patterns {
		if re.MatchString(text) {
			matched++
		}
	}
	return float64(matched) / float64(len(patterns))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

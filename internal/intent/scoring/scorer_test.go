package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intent-workers/pkg/catalog"
)

// ==========================
// Test Helpers
// ==========================

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{Intents: []catalog.Intent{
		{
			ID:           "send_money",
			Label:        "Send Money",
			Keywords:     []string{"send", "transfer", "money", "cash", "wire"},
			Triggers:     []string{`\btransfer\b`, `\bsend money\b`, `\bwire\b`},
			SemanticSeed: "transfer funds to another person",
		},
		{
			ID:           "check_balance",
			Label:        "Check Balance",
			Keywords:     []string{"balance", "check", "available", "account", "funds"},
			Triggers:     []string{`\bbalance\b`, `\bavailable\b`},
			SemanticSeed: "how much money is in the account",
		},
		{
			ID:           "pay_bill",
			Label:        "Pay Bill",
			Keywords:     []string{"bill", "pay", "payment", "due", "invoice"},
			Triggers:     []string{`\bpay\b`, `\bbill\b`, `\binvoice\b`},
			SemanticSeed: "pay an outstanding bill",
		},
	}}
}

func mustScorer(t *testing.T, cat *catalog.Catalog) *Scorer {
	t.Helper()
	s, err := NewScorer(cat)
	require.NoError(t, err)
	return s
}

func candidateByID(t *testing.T, ranked []Candidate, id string) Candidate {
	t.Helper()
	for _, c := range ranked {
		if c.IntentID == id {
			return c
		}
	}
	t.Fatalf("candidate %q not in ranking", id)
	return Candidate{}
}

// ==========================
// Embedding Tests
// ==========================

func TestEmbed_KnownVectors(t *testing.T) {
	// Pinned SHA-256 derived components. Any change to the hashing or
	// normalization procedure breaks these on purpose.
	tests := []struct {
		text string
		want Vector
	}{
		{"hello world", Vector{0.6419574685, 0.5103115827, 0.5722523020}},
		{"", Vector{0.7226725263, 0.4855622741, 0.4919082208}},
		{"send money to mom", Vector{0.0990175236, 0.8114470655, 0.5759767268}},
	}

	for _, tt := range tests {
		got := Embed(tt.text)
		for i := 0; i < 3; i++ {
			assert.InDelta(t, tt.want[i], got[i], 1e-9, "component %d of %q", i, tt.text)
		}
	}
}

func TestEmbed_Deterministic(t *testing.T) {
	a := Embed("check my account balance")
	b := Embed("check my account balance")
	assert.Equal(t, a, b)
}

func TestEmbed_UnitMagnitude(t *testing.T) {
	for _, text := range []string{"a", "send money", "", "¿cuánto tengo?"} {
		v := Embed(text)
		mag := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
		assert.InDelta(t, 1.0, mag, 1e-12, "magnitude of %q", text)
	}
}

func TestEmbed_CaseSensitiveInput(t *testing.T) {
	// The raw bytes are hashed, so casing changes the vector.
	assert.NotEqual(t, Embed("Send Money"), Embed("send money"))
}

func TestCosine(t *testing.T) {
	v := Embed("anything")
	assert.InDelta(t, 1.0, Cosine(v, v), 1e-12)
	assert.InDelta(t, 0.0, Cosine(Vector{1, 0, 0}, Vector{0, 1, 0}), 1e-12)
	assert.Equal(t, 0.0, Cosine(Vector{}, v))
	assert.Equal(t, 0.0, Cosine(v, Vector{}))

	expected := 0.6363084637
	got := Cosine(Embed("send money to mom"), Embed("transfer funds to another person"))
	assert.InDelta(t, expected, got, 1e-9)
}

// ==========================
// Keyword Matching Tests
// ==========================

func TestMatchesKeyword(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		keyword string
		want    bool
	}{
		{"whole word present", "send money now", "send", true},
		{"case insensitive", "SEND MONEY NOW", "send", true},
		{"substring is not a word match", "sending money", "send", false},
		{"suffix is not a word match", "repay the loan", "pay", false},
		{"punctuation boundary", "pay, please", "pay", true},
		{"multi word keyword", "please send money today", "send money", true},
		{"empty text", "", "send", false},
		{"metacharacters are literal", "price a[b here", "a[b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesKeyword(tt.text, tt.keyword))
		})
	}
}

// ==========================
// Scorer Tests
// ==========================

func TestNewScorer_InvalidTrigger(t *testing.T) {
	cat := &catalog.Catalog{Intents: []catalog.Intent{
		{ID: "broken", Triggers: []string{`[unterminated`}},
	}}
	_, err := NewScorer(cat)
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrInvalidTrigger))
}

func TestScore_EmptyCatalog(t *testing.T) {
	s := mustScorer(t, &catalog.Catalog{})
	_, err := s.Score("anything at all")
	assert.True(t, errors.Is(err, ErrEmptyCatalog))
}

func TestScore_KeywordFraction(t *testing.T) {
	s := mustScorer(t, testCatalog())
	ranked, err := s.Score("send money now")
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	sm := candidateByID(t, ranked, "send_money")
	// send + money out of five keywords, one of three triggers.
	assert.InDelta(t, 2.0/5.0, sm.KeywordScore, 1e-12)
	assert.InDelta(t, 1.0/3.0, sm.TriggerScore, 1e-12)

	pb := candidateByID(t, ranked, "pay_bill")
	assert.Equal(t, 0.0, pb.KeywordScore)
	assert.Equal(t, 0.0, pb.TriggerScore)
}

func TestScore_EmptySignalSets(t *testing.T) {
	cat := &catalog.Catalog{Intents: []catalog.Intent{
		{ID: "bare", Label: "Bare", SemanticSeed: "nothing defined"},
	}}
	s := mustScorer(t, cat)
	ranked, err := s.Score("send money")
	require.NoError(t, err)
	assert.Equal(t, 0.0, ranked[0].KeywordScore)
	assert.Equal(t, 0.0, ranked[0].TriggerScore)
}

func TestScore_WeightedSum(t *testing.T) {
	s := mustScorer(t, testCatalog())
	ranked, err := s.Score("can you transfer money to my savings account")
	require.NoError(t, err)

	for _, c := range ranked {
		expected := WeightKeyword*c.KeywordScore +
			WeightTrigger*c.TriggerScore +
			WeightSemantic*math.Max(0, c.SemanticScore)
		assert.InDelta(t, expected, c.FinalScore, 1e-12, "final score of %s", c.IntentID)
		assert.GreaterOrEqual(t, c.FinalScore, 0.0)
		assert.LessOrEqual(t, c.FinalScore, 1.0)
	}
}

func TestScore_CaseInsensitiveTriggers(t *testing.T) {
	s := mustScorer(t, testCatalog())
	ranked, err := s.Score("BALANCE please")
	require.NoError(t, err)

	cb := candidateByID(t, ranked, "check_balance")
	assert.InDelta(t, 1.0/2.0, cb.TriggerScore, 1e-12)
}

func TestScore_SortedDescending(t *testing.T) {
	s := mustScorer(t, testCatalog())
	ranked, err := s.Score("check my account balance")
	require.NoError(t, err)

	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].FinalScore, ranked[i].FinalScore)
	}
	assert.Equal(t, "check_balance", ranked[0].IntentID)
}

func TestScore_StableTieBreak(t *testing.T) {
	// Identical definitions score identically; catalog order decides.
	twin := catalog.Intent{
		Keywords:     []string{"send", "money"},
		Triggers:     []string{`\bsend\b`},
		SemanticSeed: "same seed",
	}
	first, second := twin, twin
	first.ID, first.Label = "first", "First"
	second.ID, second.Label = "second", "Second"

	s := mustScorer(t, &catalog.Catalog{Intents: []catalog.Intent{first, second}})
	ranked, err := s.Score("send money")
	require.NoError(t, err)

	require.Len(t, ranked, 2)
	assert.Equal(t, ranked[0].FinalScore, ranked[1].FinalScore)
	assert.Equal(t, "first", ranked[0].IntentID)
	assert.Equal(t, "second", ranked[1].IntentID)
}

func TestScore_Deterministic(t *testing.T) {
	s := mustScorer(t, testCatalog())
	a, err := s.Score("i want to pay my bill")
	require.NoError(t, err)
	b, err := s.Score("i want to pay my bill")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestScore_EmptyUtterance(t *testing.T) {
	// An empty utterance scores normally; everything lands on the semantic
	// signal alone and stays well under any useful confidence.
	s := mustScorer(t, testCatalog())
	ranked, err := s.Score("")
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	for _, c := range ranked {
		assert.Equal(t, 0.0, c.KeywordScore)
		assert.Equal(t, 0.0, c.TriggerScore)
		assert.LessOrEqual(t, c.FinalScore, WeightSemantic)
	}
}

// ==========================
// Benchmarks
// ==========================

func BenchmarkScore(b *testing.B) {
	s, err := NewScorer(testCatalog())
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Score("can you transfer money to my savings account")
	}
}

func BenchmarkEmbed(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = Embed("can you transfer money to my savings account")
	}
}

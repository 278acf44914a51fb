package dialog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intent-workers/internal/intent/scoring"
	"intent-workers/pkg/catalog"
)

// ==========================
// Test Fixtures
// ==========================

func bankingCatalog() *catalog.Catalog {
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

// closePairCatalog yields two intents whose scores always land within the
// margin floor of each other for the utterance below: both share a semantic
// seed, so the semantic term cancels out of the margin and only the keyword
// fractions (3/5 vs 2/5) separate them.
func closePairCatalog() *catalog.Catalog {
	return &catalog.Catalog{Intents: []catalog.Intent{
		{
			ID:           "move_to_savings",
			Label:        "Move To Savings",
			Keywords:     []string{"transfer", "money", "savings", "wire", "cash"},
			SemanticSeed: "everyday banking",
		},
		{
			ID:           "external_transfer",
			Label:        "External Transfer",
			Keywords:     []string{"transfer", "money", "account", "balance", "funds"},
			SemanticSeed: "everyday banking",
		},
	}}
}

const closePairUtterance = "transfer money to my savings"

func singleIntentCatalog() *catalog.Catalog {
	return &catalog.Catalog{Intents: []catalog.Intent{
		{
			ID:           "card_services",
			Label:        "Card Services",
			Keywords:     []string{"card", "block"},
			Triggers:     []string{`\bcard\b`},
			SemanticSeed: "manage a payment card",
		},
	}}
}

func mustEngine(t *testing.T, cat *catalog.Catalog) *Engine {
	t.Helper()
	e, err := NewEngine(cat, DefaultPolicy(), DefaultMaxOptions)
	require.NoError(t, err)
	return e
}

func cands(scores ...float64) []scoring.Candidate {
	out := make([]scoring.Candidate, len(scores))
	for i, s := range scores {
		out[i] = scoring.Candidate{IntentID: string(rune('a' + i)), FinalScore: s}
	}
	return out
}

// ==========================
// Ambiguity Policy Tests
// ==========================

func TestIsAmbiguous(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name       string
		ranked     []scoring.Candidate
		wantResult bool
		wantReason Reason
	}{
		{
			name:       "confident top with wide margin",
			ranked:     cands(0.80, 0.20),
			wantResult: false,
		},
		{
			name:       "top exactly at confidence floor is confident",
			ranked:     cands(0.30, 0.10),
			wantResult: false,
		},
		{
			name:       "top just under confidence floor",
			ranked:     cands(0.2999, 0.10),
			wantResult: true,
			wantReason: ReasonLowConfidence,
		},
		{
			name:       "margin exactly at floor is confident",
			ranked:     cands(0.45, 0.30),
			wantResult: false,
		},
		{
			name:       "margin just under floor",
			ranked:     cands(0.45, 0.3001),
			wantResult: true,
			wantReason: ReasonCloseScores,
		},
		{
			name:       "low confidence wins over close scores",
			ranked:     cands(0.29, 0.28),
			wantResult: true,
			wantReason: ReasonLowConfidence,
		},
		{
			name:       "single confident candidate",
			ranked:     cands(0.30),
			wantResult: false,
		},
		{
			name:       "single weak candidate",
			ranked:     cands(0.29),
			wantResult: true,
			wantReason: ReasonLowConfidence,
		},
		{
			name:       "no candidates",
			ranked:     nil,
			wantResult: true,
			wantReason: ReasonNoCandidates,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ambiguous, reason := p.IsAmbiguous(tt.ranked)
			assert.Equal(t, tt.wantResult, ambiguous)
			if tt.wantResult {
				assert.Equal(t, tt.wantReason, reason)
			} else {
				assert.Empty(t, reason)
			}
		})
	}
}

// ==========================
// Clarification Resolver Tests
// ==========================

func TestResolveClarification(t *testing.T) {
	cat := bankingCatalog()
	stored := []scoring.Candidate{
		{IntentID: "send_money", Label: "Send Money", FinalScore: 0.45},
		{IntentID: "check_balance", Label: "Check Balance", FinalScore: 0.42},
		{IntentID: "pay_bill", Label: "Pay Bill", FinalScore: 0.20},
	}

	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{
			name:  "keyword count picks the right candidate",
			reply: "the balance on my account",
			want:  "check_balance",
		},
		{
			name:  "most keyword hits wins",
			reply: "send money by wire transfer",
			want:  "send_money",
		},
		{
			name:  "equal counts keep the earlier rank",
			reply: "money in my account",
			want:  "send_money",
		},
		{
			name:  "no overlap falls back to the top score",
			reply: "ninguna de esas opciones",
			want:  "send_money",
		},
		{
			name:  "matching is whole word",
			reply: "repaying and sending are different",
			want:  "send_money", // no whole-word hit anywhere, fallback
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveClarification(tt.reply, stored, cat)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.IntentID)
		})
	}
}

func TestResolveClarification_EmptyCandidateSet(t *testing.T) {
	_, err := ResolveClarification("anything", nil, bankingCatalog())
	assert.True(t, errors.Is(err, ErrEmptyCandidateSet))
}

func TestResolveClarification_UnknownCandidateSkipped(t *testing.T) {
	stored := []scoring.Candidate{
		{IntentID: "vanished_intent", FinalScore: 0.50},
		{IntentID: "pay_bill", FinalScore: 0.40},
	}
	got, err := ResolveClarification("pay the bill", stored, bankingCatalog())
	require.NoError(t, err)
	assert.Equal(t, "pay_bill", got.IntentID)
}

func TestResolveClarification_FallbackUsesHighestScore(t *testing.T) {
	// stored order deliberately not score-sorted
	stored := []scoring.Candidate{
		{IntentID: "pay_bill", FinalScore: 0.20},
		{IntentID: "send_money", FinalScore: 0.45},
	}
	got, err := ResolveClarification("zzz qqq", stored, bankingCatalog())
	require.NoError(t, err)
	assert.Equal(t, "send_money", got.IntentID)
}

// ==========================
// Engine Turn Tests
// ==========================

func TestTurn_CloseScoresAskForClarification(t *testing.T) {
	e := mustEngine(t, closePairCatalog())

	result, st, err := e.Turn(NewState(), closePairUtterance)
	require.NoError(t, err)

	clar, ok := result.(NeedClarification)
	require.True(t, ok, "expected NeedClarification, got %T", result)
	assert.Equal(t, ReasonCloseScores, clar.Reason)
	require.Len(t, clar.Options, 2)
	assert.Equal(t, "move_to_savings", clar.Options[0].IntentID)
	assert.Equal(t, "external_transfer", clar.Options[1].IntentID)

	assert.Equal(t, PhaseAwaitingClarification, st.Phase)
	assert.Equal(t, ReasonCloseScores, st.AmbiguityReason)
	assert.Equal(t, closePairUtterance, st.LastUtterance)
	assert.Equal(t, 1, st.TurnCount)
	assert.Len(t, st.Candidates, 2)
}

func TestTurn_ClarificationResolvesByKeywords(t *testing.T) {
	e := mustEngine(t, closePairCatalog())

	_, st, err := e.Turn(NewState(), closePairUtterance)
	require.NoError(t, err)
	storedScore := st.Candidates[1].FinalScore

	// "balance" and "account" hit only the second candidate's keywords.
	result, st, err := e.Turn(st, "the balance in my account")
	require.NoError(t, err)

	resolved, ok := result.(Resolved)
	require.True(t, ok, "expected Resolved, got %T", result)
	assert.Equal(t, "external_transfer", resolved.SelectedIntentID)
	assert.Equal(t, resolved.SelectedIntentID, resolved.RouteTo)

	// confidence is the stored score from the first ranking
	assert.Equal(t, storedScore, resolved.Confidence)

	assert.Equal(t, PhaseResolved, st.Phase)
	assert.Equal(t, "external_transfer", st.SelectedIntentID)
	assert.Empty(t, st.AmbiguityReason)
	assert.Empty(t, st.Candidates)
	assert.Equal(t, 2, st.TurnCount)
}

func TestTurn_SendMoneyClarificationScenario(t *testing.T) {
	cat := &catalog.Catalog{Intents: []catalog.Intent{
		{
			ID:           "send_money",
			Label:        "Send Money",
			Keywords:     []string{"send", "money", "transfer", "cash", "wire"},
			SemanticSeed: "everyday banking",
		},
		{
			ID:           "check_balance",
			Label:        "Check Balance",
			Keywords:     []string{"balance", "account", "check", "available", "funds"},
			SemanticSeed: "everyday banking",
		},
	}}
	e := mustEngine(t, cat)

	result, st, err := e.Turn(NewState(), "handle money for my account")
	require.NoError(t, err)
	_, ok := result.(NeedClarification)
	require.True(t, ok, "expected NeedClarification, got %T", result)

	result, st, err = e.Turn(st, "send money to mom")
	require.NoError(t, err)

	resolved, ok := result.(Resolved)
	require.True(t, ok)
	assert.Equal(t, "send_money", resolved.RouteTo)
	assert.Equal(t, PhaseResolved, st.Phase)
}

func TestTurn_ClearUtteranceResolvesDirectly(t *testing.T) {
	e := mustEngine(t, bankingCatalog())

	result, st, err := e.Turn(NewState(), "check my account balance")
	require.NoError(t, err)

	resolved, ok := result.(Resolved)
	require.True(t, ok, "expected Resolved, got %T", result)
	assert.Equal(t, "check_balance", resolved.RouteTo)
	assert.Equal(t, "check_balance", resolved.SelectedIntentID)
	assert.GreaterOrEqual(t, resolved.Confidence, DefaultConfidenceFloor)

	assert.Equal(t, PhaseResolved, st.Phase)
	assert.Equal(t, "check_balance", st.SelectedIntentID)
	assert.Equal(t, 1, st.TurnCount)
	// candidates only live in awaiting_clarification
	assert.Empty(t, st.Candidates)
}

func TestTurn_SingleIntentCatalog(t *testing.T) {
	t.Run("strong match resolves immediately", func(t *testing.T) {
		e := mustEngine(t, singleIntentCatalog())
		result, st, err := e.Turn(NewState(), "please block my card")
		require.NoError(t, err)

		resolved, ok := result.(Resolved)
		require.True(t, ok, "expected Resolved, got %T", result)
		assert.Equal(t, "card_services", resolved.RouteTo)
		assert.Equal(t, PhaseResolved, st.Phase)
	})

	t.Run("weak match asks with a single option", func(t *testing.T) {
		e := mustEngine(t, singleIntentCatalog())
		result, st, err := e.Turn(NewState(), "something else entirely")
		require.NoError(t, err)

		clar, ok := result.(NeedClarification)
		require.True(t, ok, "expected NeedClarification, got %T", result)
		assert.Equal(t, ReasonLowConfidence, clar.Reason)
		require.Len(t, clar.Options, 1)
		assert.Equal(t, "card_services", clar.Options[0].IntentID)
		assert.Equal(t, PhaseAwaitingClarification, st.Phase)
	})
}

func TestTurn_ZeroOverlapReplyFallsBack(t *testing.T) {
	e := mustEngine(t, closePairCatalog())

	_, st, err := e.Turn(NewState(), closePairUtterance)
	require.NoError(t, err)
	topStored := st.Candidates[0]

	result, st, err := e.Turn(st, "xyzzy plugh")
	require.NoError(t, err)

	resolved, ok := result.(Resolved)
	require.True(t, ok)
	assert.Equal(t, topStored.IntentID, resolved.SelectedIntentID)
	assert.Equal(t, topStored.FinalScore, resolved.Confidence)
	assert.Equal(t, PhaseResolved, st.Phase)
}

func TestTurn_EmptyUtteranceTakesClarificationPath(t *testing.T) {
	e := mustEngine(t, bankingCatalog())

	result, st, err := e.Turn(NewState(), "")
	require.NoError(t, err, "an empty utterance is not an error")

	clar, ok := result.(NeedClarification)
	require.True(t, ok, "expected NeedClarification, got %T", result)
	assert.Equal(t, ReasonLowConfidence, clar.Reason)
	assert.Len(t, clar.Options, 3)
	assert.Equal(t, PhaseAwaitingClarification, st.Phase)
}

func TestTurn_ResolvedIsTerminal(t *testing.T) {
	e := mustEngine(t, singleIntentCatalog())

	_, st, err := e.Turn(NewState(), "block my card")
	require.NoError(t, err)
	require.Equal(t, PhaseResolved, st.Phase)

	result, st, err := e.Turn(st, "actually, something else")
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.Nil(t, result)

	// the failed invocation still counts a turn, nothing else moves
	assert.Equal(t, 2, st.TurnCount)
	assert.Equal(t, PhaseResolved, st.Phase)
	assert.Equal(t, "card_services", st.SelectedIntentID)
}

func TestTurn_UnknownPhase(t *testing.T) {
	e := mustEngine(t, bankingCatalog())
	_, _, err := e.Turn(State{Phase: "garbled"}, "hello")
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestTurn_ClarificationWithoutCandidates(t *testing.T) {
	e := mustEngine(t, bankingCatalog())
	_, _, err := e.Turn(State{Phase: PhaseAwaitingClarification}, "the first one")
	assert.True(t, errors.Is(err, ErrEmptyCandidateSet))
}

func TestTurn_EmptyCatalog(t *testing.T) {
	e := mustEngine(t, &catalog.Catalog{})
	_, _, err := e.Turn(NewState(), "anything")
	assert.True(t, errors.Is(err, scoring.ErrEmptyCatalog))
}

func TestTurn_StateIsAValue(t *testing.T) {
	e := mustEngine(t, bankingCatalog())

	before := NewState()
	_, after, err := e.Turn(before, "check my account balance")
	require.NoError(t, err)

	assert.Equal(t, PhaseInitial, before.Phase)
	assert.Equal(t, 0, before.TurnCount)
	assert.Empty(t, before.Candidates)
	assert.NotEqual(t, before, after)
}

func TestTurn_ShortlistCap(t *testing.T) {
	cat := bankingCatalog()
	cat.Intents = append(cat.Intents,
		catalog.Intent{ID: "dispute_charge", Label: "Dispute Charge", SemanticSeed: "dispute a transaction"},
		catalog.Intent{ID: "card_services", Label: "Card Services", SemanticSeed: "manage a payment card"},
	)
	e := mustEngine(t, cat)

	result, st, err := e.Turn(NewState(), "")
	require.NoError(t, err)

	clar := result.(NeedClarification)
	assert.Len(t, clar.Options, 3)
	assert.Len(t, st.Candidates, 3)

	// options mirror the stored shortlist, best first
	for i, opt := range clar.Options {
		assert.Equal(t, st.Candidates[i].IntentID, opt.IntentID)
		assert.Equal(t, st.Candidates[i].FinalScore, opt.Score)
	}
}

func TestTurn_Deterministic(t *testing.T) {
	e := mustEngine(t, bankingCatalog())

	r1, s1, err := e.Turn(NewState(), "transfer money please")
	require.NoError(t, err)
	r2, s2, err := e.Turn(NewState(), "transfer money please")
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, s1, s2)
}

// ==========================
// Benchmarks
// ==========================

func BenchmarkTurn_Initial(b *testing.B) {
	e, err := NewEngine(bankingCatalog(), DefaultPolicy(), DefaultMaxOptions)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = e.Turn(NewState(), "can you transfer money to my savings account")
	}
}

// internal/workers/conversation/disambiguate-intent/handler_test.go
package disambiguateintent

import (
	"context"
	"errors"
	"testing"
	"time"

	"intent-workers/internal/common/config"
	"intent-workers/internal/common/database"
	"intent-workers/internal/common/logger"
	"intent-workers/internal/conversation"
	"intent-workers/internal/intent/dialog"
	"intent-workers/internal/intent/scoring"
	"intent-workers/internal/models"
	"intent-workers/pkg/catalog"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func bankingCatalog() *catalog.Catalog {
	return &catalog.Catalog{Intents: []catalog.Intent{
		{
			ID:           "send_money",
			Label:        "Send Money",
			Keywords:     []string{"send", "money", "transfer"},
			SemanticSeed: "transfer money to another person",
		},
		{
			ID:           "check_balance",
			Label:        "Check Balance",
			Keywords:     []string{"balance", "account", "check"},
			SemanticSeed: "how much money is in my account",
		},
		{
			ID:           "pay_bill",
			Label:        "Pay Bill",
			Keywords:     []string{"pay", "bill"},
			SemanticSeed: "pay an outstanding bill",
		},
	}}
}

func testEngine(t *testing.T, cat *catalog.Catalog) *dialog.Engine {
	engine, err := dialog.NewEngine(cat, dialog.DefaultPolicy(), dialog.DefaultMaxOptions)
	require.NoError(t, err)
	return engine
}

func setupStore(t *testing.T) (*conversation.Store, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { rdb.Close() })

	return conversation.NewStore(&database.RedisClient{Client: rdb}, config.ConversationConfig{}), mr
}

func createTestHandler(t *testing.T, engine *dialog.Engine, store *conversation.Store) *Handler {
	testLog := logger.NewTestLogger(t)
	return NewHandler(LoadConfig(), engine, store, testLog)
}

func createInput(conversationID, utterance string) *Input {
	return &Input{
		ConversationID: conversationID,
		Utterance:      utterance,
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_ResolvesDirectly(t *testing.T) {
	store, _ := setupStore(t)
	handler := createTestHandler(t, testEngine(t, bankingCatalog()), store)

	output, err := handler.Execute(context.Background(), createInput("conv-1", "check my account balance"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusResolved, output.Status)
	assert.Equal(t, "check_balance", output.RouteTo)
	assert.Equal(t, "check_balance", output.SelectedIntentID)
	assert.GreaterOrEqual(t, output.Confidence, dialog.DefaultConfidenceFloor)
	assert.Equal(t, 1, output.TurnCount)
	assert.Empty(t, output.Options)
	assert.Empty(t, output.Reason)
}

func TestHandler_Execute_AsksForClarification(t *testing.T) {
	store, _ := setupStore(t)
	handler := createTestHandler(t, testEngine(t, bankingCatalog()), store)

	output, err := handler.Execute(context.Background(), createInput("conv-1", "I want to handle my money"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusNeedClarification, output.Status)
	assert.Equal(t, string(dialog.ReasonLowConfidence), output.Reason)
	assert.Len(t, output.Options, 3)
	assert.Equal(t, 1, output.TurnCount)
	assert.Empty(t, output.RouteTo)
}

func TestHandler_Execute_TwoTurnResolution(t *testing.T) {
	store, _ := setupStore(t)
	handler := createTestHandler(t, testEngine(t, bankingCatalog()), store)
	ctx := context.Background()

	first, err := handler.Execute(ctx, createInput("conv-1", "I want to handle my money"))
	require.NoError(t, err)
	require.Equal(t, models.StatusNeedClarification, first.Status)

	second, err := handler.Execute(ctx, createInput("conv-1", "send money to mom"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusResolved, second.Status)
	assert.Equal(t, "send_money", second.RouteTo)
	assert.Equal(t, 2, second.TurnCount)
}

func TestHandler_Execute_PersistsState(t *testing.T) {
	store, _ := setupStore(t)
	handler := createTestHandler(t, testEngine(t, bankingCatalog()), store)
	ctx := context.Background()

	_, err := handler.Execute(ctx, createInput("conv-1", "I want to handle my money"))
	require.NoError(t, err)

	st, err := store.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, dialog.PhaseAwaitingClarification, st.Phase)
	assert.Len(t, st.Candidates, 3)
	assert.Equal(t, 1, st.TurnCount)
}

func TestHandler_Execute_ConversationsAreIsolated(t *testing.T) {
	store, _ := setupStore(t)
	handler := createTestHandler(t, testEngine(t, bankingCatalog()), store)
	ctx := context.Background()

	_, err := handler.Execute(ctx, createInput("conv-a", "I want to handle my money"))
	require.NoError(t, err)

	// A different conversation starts from phase initial, untouched by
	// conv-a's pending clarification.
	output, err := handler.Execute(ctx, createInput("conv-b", "check my account balance"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, output.Status)
	assert.Equal(t, 1, output.TurnCount)
}

func TestHandler_Execute_FreshAfterExpiry(t *testing.T) {
	store, mr := setupStore(t)
	handler := createTestHandler(t, testEngine(t, bankingCatalog()), store)
	ctx := context.Background()

	_, err := handler.Execute(ctx, createInput("conv-1", "check my account balance"))
	require.NoError(t, err)

	mr.FastForward(31 * time.Minute)

	// The expired conversation is gone, so the same id starts over.
	output, err := handler.Execute(ctx, createInput("conv-1", "pay my electricity bill"))
	require.NoError(t, err)
	assert.Equal(t, 1, output.TurnCount)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_MissingConversationID(t *testing.T) {
	store, _ := setupStore(t)
	handler := createTestHandler(t, testEngine(t, bankingCatalog()), store)

	_, err := handler.Execute(context.Background(), createInput("", "check my balance"))
	assert.ErrorIs(t, err, ErrMissingConversationID)
}

func TestHandler_Execute_ResolvedConversationRejectsTurns(t *testing.T) {
	store, _ := setupStore(t)
	handler := createTestHandler(t, testEngine(t, bankingCatalog()), store)
	ctx := context.Background()

	_, err := handler.Execute(ctx, createInput("conv-1", "check my account balance"))
	require.NoError(t, err)

	_, err = handler.Execute(ctx, createInput("conv-1", "and now send money"))
	assert.ErrorIs(t, err, dialog.ErrInvalidState)
}

func TestHandler_Execute_EmptyCatalog(t *testing.T) {
	store, _ := setupStore(t)
	handler := createTestHandler(t, testEngine(t, &catalog.Catalog{}), store)

	_, err := handler.Execute(context.Background(), createInput("conv-1", "anything"))
	assert.ErrorIs(t, err, scoring.ErrEmptyCatalog)
}

func TestHandler_Execute_StateLoadFailure(t *testing.T) {
	store, mr := setupStore(t)
	handler := createTestHandler(t, testEngine(t, bankingCatalog()), store)

	mr.SetError("connection reset")

	_, err := handler.Execute(context.Background(), createInput("conv-1", "check my balance"))
	assert.ErrorIs(t, err, ErrStateLoadFailed)
	assert.Equal(t, int32(2), getRetryCount(err))
}

func TestHandler_Execute_StateSaveFailure(t *testing.T) {
	rdb, redisMock := redismock.NewClientMock()
	store := conversation.NewStore(&database.RedisClient{Client: rdb}, config.ConversationConfig{TTLMinutes: 5})
	handler := createTestHandler(t, testEngine(t, bankingCatalog()), store)

	redisMock.ExpectGet("conversation:conv-1").RedisNil()
	redisMock.Regexp().ExpectSet("conversation:conv-1", `.*`, 5*time.Minute).
		SetErr(errors.New("write refused"))

	_, err := handler.Execute(context.Background(), createInput("conv-1", "check my account balance"))
	assert.ErrorIs(t, err, ErrStateSaveFailed)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestGetRetryCount(t *testing.T) {
	assert.Equal(t, int32(2), getRetryCount(ErrStateLoadFailed))
	assert.Equal(t, int32(2), getRetryCount(ErrStateSaveFailed))
	assert.Equal(t, int32(0), getRetryCount(ErrMissingConversationID))
	assert.Equal(t, int32(0), getRetryCount(errors.New("anything else")))
}

// ==========================
// Edge Case Tests
// ==========================

func TestHandler_Execute_EmptyUtterance(t *testing.T) {
	store, _ := setupStore(t)
	handler := createTestHandler(t, testEngine(t, bankingCatalog()), store)

	// Empty text scores near zero everywhere and takes the clarification
	// path instead of erroring.
	output, err := handler.Execute(context.Background(), createInput("conv-1", ""))
	require.NoError(t, err)
	assert.Equal(t, models.StatusNeedClarification, output.Status)
	assert.Equal(t, string(dialog.ReasonLowConfidence), output.Reason)
}

func TestHandler_Execute_OptionsMirrorShortlist(t *testing.T) {
	store, _ := setupStore(t)
	handler := createTestHandler(t, testEngine(t, bankingCatalog()), store)
	ctx := context.Background()

	output, err := handler.Execute(ctx, createInput("conv-1", "I want to handle my money"))
	require.NoError(t, err)

	st, err := store.Get(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, output.Options, len(st.Candidates))
	for i, opt := range output.Options {
		assert.Equal(t, st.Candidates[i].IntentID, opt.IntentID)
		assert.Equal(t, st.Candidates[i].FinalScore, opt.Score)
	}
}

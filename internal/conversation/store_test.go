// internal/conversation/store_test.go
package conversation

import (
	"context"
	"testing"
	"time"

	"intent-workers/internal/common/config"
	"intent-workers/internal/common/database"
	"intent-workers/internal/intent/dialog"
	"intent-workers/internal/intent/scoring"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func setupStore(t *testing.T, cfg config.ConversationConfig) (*Store, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { rdb.Close() })

	return NewStore(&database.RedisClient{Client: rdb}, cfg), mr
}

func awaitingState() dialog.State {
	return dialog.State{
		Phase:         dialog.PhaseAwaitingClarification,
		LastUtterance: "I want to handle my money",
		Candidates: []scoring.Candidate{
			{IntentID: "send_money", Label: "Send Money", FinalScore: 0.45},
			{IntentID: "check_balance", Label: "Check Balance", FinalScore: 0.42},
		},
		AmbiguityReason: dialog.ReasonCloseScores,
		TurnCount:       1,
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestStore_PutAndGet(t *testing.T) {
	store, _ := setupStore(t, config.ConversationConfig{})
	ctx := context.Background()

	want := awaitingState()
	require.NoError(t, store.Put(ctx, "conv-1", want))

	got, err := store.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, want.Phase, got.Phase)
	assert.Equal(t, want.LastUtterance, got.LastUtterance)
	assert.Equal(t, want.AmbiguityReason, got.AmbiguityReason)
	assert.Equal(t, want.TurnCount, got.TurnCount)
	require.Len(t, got.Candidates, 2)
	assert.Equal(t, "send_money", got.Candidates[0].IntentID)
	assert.Equal(t, "check_balance", got.Candidates[1].IntentID)
}

func TestStore_GetMissing(t *testing.T) {
	store, _ := setupStore(t, config.ConversationConfig{})

	_, err := store.Get(context.Background(), "never-written")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	store, _ := setupStore(t, config.ConversationConfig{})
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "conv-1", awaitingState()))
	require.NoError(t, store.Delete(ctx, "conv-1"))

	_, err := store.Get(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an already-gone conversation is not an error.
	assert.NoError(t, store.Delete(ctx, "conv-1"))
}

func TestStore_CorruptState(t *testing.T) {
	store, mr := setupStore(t, config.ConversationConfig{})

	require.NoError(t, mr.Set(store.Key("conv-1"), "{not json"))

	_, err := store.Get(context.Background(), "conv-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode conversation")
}

// ==========================
// TTL Tests
// ==========================

func TestStore_PutSetsTTL(t *testing.T) {
	store, mr := setupStore(t, config.ConversationConfig{TTLMinutes: 10})

	require.NoError(t, store.Put(context.Background(), "conv-1", awaitingState()))
	assert.Equal(t, 10*time.Minute, mr.TTL(store.Key("conv-1")))
}

func TestStore_ExpiredStateIsGone(t *testing.T) {
	store, mr := setupStore(t, config.ConversationConfig{TTLMinutes: 10})
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "conv-1", awaitingState()))
	mr.FastForward(11 * time.Minute)

	_, err := store.Get(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PutRefreshesTTL(t *testing.T) {
	store, mr := setupStore(t, config.ConversationConfig{TTLMinutes: 10})
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "conv-1", awaitingState()))
	mr.FastForward(8 * time.Minute)

	// A second write restarts the clock, so the state outlives the
	// original deadline.
	require.NoError(t, store.Put(ctx, "conv-1", awaitingState()))
	mr.FastForward(8 * time.Minute)

	_, err := store.Get(ctx, "conv-1")
	assert.NoError(t, err)
}

// ==========================
// Configuration Tests
// ==========================

func TestStore_Defaults(t *testing.T) {
	store, _ := setupStore(t, config.ConversationConfig{})

	assert.Equal(t, "conversation:conv-9", store.Key("conv-9"))
	assert.Equal(t, 30*time.Minute, store.TTL())
}

func TestStore_CustomPrefix(t *testing.T) {
	store, _ := setupStore(t, config.ConversationConfig{KeyPrefix: "dialog", TTLMinutes: 5})

	assert.Equal(t, "dialog:conv-9", store.Key("conv-9"))
	assert.Equal(t, 5*time.Minute, store.TTL())
}

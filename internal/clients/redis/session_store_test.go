package redis

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestMemoryStoreRecordOutcome(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	learnerID := uuid.New()

	state, err := store.RecordOutcome(ctx, learnerID, true)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if state.Position != 1 {
		t.Errorf("position = %d, want 1", state.Position)
	}
	if len(state.RecentCorrect) != 1 || !state.RecentCorrect[0] {
		t.Errorf("recent = %v, want [true]", state.RecentCorrect)
	}

	state, err = store.RecordOutcome(ctx, learnerID, false)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if state.Position != 2 {
		t.Errorf("position = %d, want 2", state.Position)
	}
	if len(state.RecentCorrect) != 2 || state.RecentCorrect[1] {
		t.Errorf("recent = %v, want [true false]", state.RecentCorrect)
	}
}

func TestMemoryStoreTrimsRecentWindow(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	learnerID := uuid.New()

	for i := 0; i < recentWindow+5; i++ {
		if _, err := store.RecordOutcome(ctx, learnerID, i%2 == 0); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	state, err := store.Get(ctx, learnerID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if state.Position != recentWindow+5 {
		t.Errorf("position = %d, want %d (position never trims)", state.Position, recentWindow+5)
	}
	if len(state.RecentCorrect) != recentWindow {
		t.Errorf("window = %d, want %d", len(state.RecentCorrect), recentWindow)
	}
}

func TestMemoryStoreIsolatesLearners(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	if _, err := store.RecordOutcome(ctx, a, true); err != nil {
		t.Fatalf("record: %v", err)
	}

	state, err := store.Get(ctx, b)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if state.Position != 0 || len(state.RecentCorrect) != 0 {
		t.Errorf("fresh learner state = %+v, want empty", state)
	}
}

func TestMemoryStoreReset(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	learnerID := uuid.New()

	if _, err := store.RecordOutcome(ctx, learnerID, true); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Reset(ctx, learnerID); err != nil {
		t.Fatalf("reset: %v", err)
	}

	state, err := store.Get(ctx, learnerID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if state.Position != 0 {
		t.Errorf("position after reset = %d, want 0", state.Position)
	}
}

func TestMemoryStoreRejectsNilLearner(t *testing.T) {
	store := NewMemorySessionStore()
	if _, err := store.RecordOutcome(context.Background(), uuid.Nil, true); err == nil {
		t.Error("nil learner accepted")
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	learnerID := uuid.New()

	first, err := store.RecordOutcome(ctx, learnerID, true)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	first.RecentCorrect[0] = false

	state, err := store.Get(ctx, learnerID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !state.RecentCorrect[0] {
		t.Error("mutating a returned state leaked into the store")
	}
}

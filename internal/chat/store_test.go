package chat

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// openTestStore opens a fresh store in a temporary directory.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestOpenStore_EmptyPath rejects a missing database path.
func TestOpenStore_EmptyPath(t *testing.T) {
	if _, err := OpenStore(""); err == nil {
		t.Fatal("expected error, got nil")
	}
}

// TestStore_RoundTrip persists turns and reads them back in order.
func TestStore_RoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.CreateSession(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Fatal("expected a session ID")
	}

	want := []Turn{
		{Role: RoleUser, Content: "Get secret word"},
		{Role: RoleAssistant, Content: "ABRACADABRA"},
		{Role: RoleUser, Content: "Run SQL query SELECT 1"},
	}
	for _, turn := range want {
		if err := store.SaveTurn(ctx, id, turn); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := store.Turns(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d turns, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("turn %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

// TestStore_TurnsUnknownSession returns an empty, non-nil transcript.
func TestStore_TurnsUnknownSession(t *testing.T) {
	store := openTestStore(t)

	turns, err := store.Turns(context.Background(), "no-such-session")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turns == nil || len(turns) != 0 {
		t.Errorf("turns = %v, want empty non-nil slice", turns)
	}
}

// TestStore_Sessions lists sessions newest first with their turn counts.
func TestStore_Sessions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.CreateSession(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.SaveTurn(ctx, first, Turn{Role: RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Timestamps have millisecond resolution; make sure the second session
	// starts strictly later.
	time.Sleep(20 * time.Millisecond)

	second, err := store.CreateSession(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, content := range []string{"hello", "world"} {
		if err := store.SaveTurn(ctx, second, Turn{Role: RoleAssistant, Content: content}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	infos, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d sessions, want 2", len(infos))
	}
	if infos[0].ID != second || infos[0].Turns != 2 {
		t.Errorf("infos[0] = %+v, want the newer session with 2 turns", infos[0])
	}
	if infos[1].ID != first || infos[1].Turns != 1 {
		t.Errorf("infos[1] = %+v, want the older session with 1 turn", infos[1])
	}
	if !infos[0].StartedAt.After(infos[1].StartedAt) {
		t.Errorf("StartedAt not descending: %v then %v", infos[0].StartedAt, infos[1].StartedAt)
	}
}

// TestStore_DeleteBefore removes only sessions started before the cutoff,
// along with their turns.
func TestStore_DeleteBefore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	stale, err := store.CreateSession(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.SaveTurn(ctx, stale, Turn{Role: RoleUser, Content: "old"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	cutoff := time.Now()
	time.Sleep(20 * time.Millisecond)

	fresh, err := store.CreateSession(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.SaveTurn(ctx, fresh, Turn{Role: RoleUser, Content: "new"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deleted, err := store.DeleteBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	infos, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != fresh {
		t.Errorf("sessions = %+v, want only the fresh one", infos)
	}

	turns, err := store.Turns(ctx, stale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("stale turns = %v, want none", turns)
	}

	// A second sweep with the same cutoff has nothing left to delete.
	deleted, err = store.DeleteBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
}

// TestStore_Reopen finds existing data after closing and reopening the same
// database file.
func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	ctx := context.Background()

	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id, err := store.CreateSession(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.SaveTurn(ctx, id, Turn{Role: RoleUser, Content: "persisted"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reopened, err := OpenStore(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer reopened.Close()

	turns, err := reopened.Turns(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 1 || turns[0].Content != "persisted" {
		t.Errorf("turns = %+v, want the persisted turn", turns)
	}
}

// TestStore_Ping probes the open database.
func TestStore_Ping(t *testing.T) {
	store := openTestStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

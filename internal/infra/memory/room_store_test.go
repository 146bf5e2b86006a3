package memory

import (
	"testing"

	"quiz-battle-service/internal/app"
)

func newRoom(id string) func() *app.Room {
	return func() *app.Room {
		return app.NewRoom(id, nil, app.RoomConfig{}, nil, nil)
	}
}

func TestRoomStoreLifecycle(t *testing.T) {
	store := NewRoomStore()

	room := store.GetOrCreate("r1", newRoom("r1"))
	if room == nil {
		t.Fatalf("expected room")
	}
	if _, ok := store.Get("r1"); !ok {
		t.Fatalf("expected room present")
	}

	room.Join("a", "Alice")
	room.Leave("a") // empties the roster, tearing the room down

	store.DeleteIfEmpty("r1")
	if _, ok := store.Get("r1"); ok {
		t.Fatalf("expected torn-down room removed")
	}
}

func TestDeleteIfEmptyKeepsLiveRoom(t *testing.T) {
	store := NewRoomStore()

	room := store.GetOrCreate("r1", newRoom("r1"))
	room.Join("a", "Alice")

	store.DeleteIfEmpty("r1")
	if _, ok := store.Get("r1"); !ok {
		t.Fatalf("expected live room to survive DeleteIfEmpty")
	}
}

func TestRoomStoreReplacesTornDownRoom(t *testing.T) {
	store := NewRoomStore()

	first := store.GetOrCreate("r1", newRoom("r1"))
	first.Join("a", "Alice")
	first.Leave("a") // empties the roster, tearing the room down

	second := store.GetOrCreate("r1", newRoom("r1"))
	if first == second {
		t.Fatalf("expected a fresh room in place of the torn-down one")
	}
}

// A leaver's deferred cleanup must never delete a fresh room that a
// concurrent join installed for the same id between teardown and cleanup.
func TestDeleteIfEmptySparesRecreatedRoom(t *testing.T) {
	store := NewRoomStore()

	first := store.GetOrCreate("r1", newRoom("r1"))
	first.Join("a", "Alice")
	first.Leave("a") // room closes

	// Concurrent join re-creates the id before the leaver's cleanup runs.
	second := store.GetOrCreate("r1", newRoom("r1"))
	store.DeleteIfEmpty("r1") // leaver's cleanup, arriving late

	if _, ok := second.Join("b", "Bob"); !ok {
		t.Fatalf("join on the fresh room failed")
	}
	got, ok := store.Get("r1")
	if !ok {
		t.Fatalf("registry lost a room with a live participant")
	}
	if got != second {
		t.Fatalf("registry points at the wrong room instance")
	}
}

package memory

import (
	"testing"

	"trivia-session-service/internal/app"
)

func TestRegistryReserveIsExclusive(t *testing.T) {
	r := NewRegistry()
	a, b := &app.Session{}, &app.Session{}

	if !r.Reserve("room-1", a) {
		t.Fatalf("first reserve must succeed")
	}
	if r.Reserve("room-1", b) {
		t.Fatalf("second reserve for the same room must fail")
	}
	got, ok := r.Get("room-1")
	if !ok || got != a {
		t.Fatalf("expected the first session to stay installed")
	}
}

func TestRegistryDeleteReportsPresence(t *testing.T) {
	r := NewRegistry()
	if r.Delete("room-1") {
		t.Fatalf("delete of an absent room must report false")
	}
	r.Reserve("room-1", &app.Session{})
	if !r.Delete("room-1") {
		t.Fatalf("delete of a present room must report true")
	}
	if r.Delete("room-1") {
		t.Fatalf("second delete must report false")
	}
}

func TestRegistryForEachVisitsAllRooms(t *testing.T) {
	r := NewRegistry()
	r.Reserve("room-1", &app.Session{})
	r.Reserve("room-2", &app.Session{})

	seen := make(map[string]bool)
	r.ForEach(func(roomID string, _ *app.Session) {
		seen[roomID] = true
		// Mutating during iteration is safe; ForEach walks a snapshot.
		r.Delete(roomID)
	})
	if !seen["room-1"] || !seen["room-2"] {
		t.Fatalf("expected both rooms visited, got %v", seen)
	}
}

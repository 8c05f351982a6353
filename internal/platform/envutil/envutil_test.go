package envutil

import (
	"testing"
	"time"
)

func TestParsers(t *testing.T) {
	t.Setenv("X_INT", "7")
	t.Setenv("X_BAD_INT", "seven")
	t.Setenv("X_BOOL", "on")
	t.Setenv("X_DUR", "1500ms")
	t.Setenv("X_DUR_SECS", "3")
	t.Setenv("X_CSV", " a, ,b ")

	if got := Int("X_INT", 1); got != 7 {
		t.Fatalf("Int: want=7 got=%d", got)
	}
	if got := Int("X_BAD_INT", 1); got != 1 {
		t.Fatalf("Int fallback: want=1 got=%d", got)
	}
	if !Bool("X_BOOL", false) {
		t.Fatalf("Bool: want=true")
	}
	if got := Duration("X_DUR", 0); got != 1500*time.Millisecond {
		t.Fatalf("Duration: got=%v", got)
	}
	if got := Duration("X_DUR_SECS", 0); got != 3*time.Second {
		t.Fatalf("Duration secs: got=%v", got)
	}
	if got := CSV("X_CSV", nil); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("CSV: got=%v", got)
	}
	if got := String("X_MISSING", "d"); got != "d" {
		t.Fatalf("String default: got=%q", got)
	}
}

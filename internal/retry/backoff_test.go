package retry

import (
	"testing"
	"time"
)

func TestBackoffDelayDoublesUpToMax(t *testing.T) {
	b := NewBackoff(5, time.Second, 5*time.Second)

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := b.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %s, want %s", i+1, got, w)
		}
	}
}

func TestBackoffExhausted(t *testing.T) {
	b := NewBackoff(3, time.Second, time.Minute)
	if b.Exhausted(2) {
		t.Errorf("attempt 2 of 3 should not be exhausted")
	}
	if !b.Exhausted(3) || !b.Exhausted(4) {
		t.Errorf("attempt 3 of 3 should be exhausted")
	}

	unlimited := NewBackoff(0, time.Second, time.Minute)
	if unlimited.Exhausted(1000) {
		t.Errorf("maxAttempts 0 never exhausts")
	}
}

func TestNewBackoffDefaults(t *testing.T) {
	b := NewBackoff(1, 0, 0)
	if b.Delay(1) != time.Minute || b.Delay(3) != time.Minute {
		t.Errorf("defaults = %s / %s", b.Delay(1), b.Delay(3))
	}
}

package clock_test

import (
	"testing"
	"time"

	"github.com/artpar/fusion/adapters/clock"
)

func TestReal_Now(t *testing.T) {
	c := clock.Real{}

	before := time.Now()
	got := c.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", got, before, after)
	}
	if got.Location() != time.UTC {
		t.Errorf("Now() location = %v, want UTC", got.Location())
	}
}

func TestFake_SetAndAdvance(t *testing.T) {
	initial := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := clock.NewFake(initial)

	if got := c.Now(); !got.Equal(initial) {
		t.Errorf("Now() = %v, want %v", got, initial)
	}

	c.Advance(time.Hour)
	if got := c.Now(); !got.Equal(initial.Add(time.Hour)) {
		t.Errorf("after Advance: Now() = %v", got)
	}

	moved := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c.Set(moved)
	if got := c.Now(); !got.Equal(moved) {
		t.Errorf("after Set: Now() = %v, want %v", got, moved)
	}
}

func TestFake_ConcurrentAccess(t *testing.T) {
	c := clock.NewFake(time.Now())

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				_ = c.Now()
				c.Advance(time.Second)
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
	// Test passes if no race conditions
}

package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_NewTimer(t *testing.T) {
	clock := RealClock{}
	timer := clock.NewTimer(5 * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C():
	case <-time.After(time.Second):
		t.Error("timer did not fire")
	}
}

func TestRealClock_NewTicker(t *testing.T) {
	clock := RealClock{}
	ticker := clock.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-ticker.C():
		case <-time.After(time.Second):
			t.Fatalf("ticker did not fire (tick %d)", i)
		}
	}
}

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2025, 12, 5, 10, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	clock.Advance(90 * time.Second)
	if want := start.Add(90 * time.Second); !clock.Now().Equal(want) {
		t.Errorf("got %v, want %v", clock.Now(), want)
	}

	clock.Set(start)
	if !clock.Now().Equal(start) {
		t.Errorf("Set did not rewind clock: %v", clock.Now())
	}
}

func TestMockTimer_FiresOnce(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	timer := clock.NewTimer(100 * time.Millisecond)

	clock.Advance(50 * time.Millisecond)
	select {
	case <-timer.C():
		t.Fatal("timer fired early")
	default:
	}

	clock.Advance(50 * time.Millisecond)
	select {
	case <-timer.C():
	default:
		t.Fatal("timer did not fire at deadline")
	}

	clock.Advance(time.Second)
	select {
	case <-timer.C():
		t.Fatal("timer fired twice")
	default:
	}

	if clock.PendingTimers() != 0 {
		t.Errorf("expected no pending timers, got %d", clock.PendingTimers())
	}
}

func TestMockTimer_Stop(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	timer := clock.NewTimer(time.Second)

	if !timer.Stop() {
		t.Error("Stop on active timer should return true")
	}
	if timer.Stop() {
		t.Error("second Stop should return false")
	}

	clock.Advance(2 * time.Second)
	select {
	case <-timer.C():
		t.Error("stopped timer fired")
	default:
	}
}

func TestMockTicker_Periodic(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Second)

	fired := 0
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		select {
		case <-ticker.C():
			fired++
		default:
		}
	}

	if fired != 5 {
		t.Errorf("expected 5 ticks, got %d", fired)
	}

	ticker.Stop()
	clock.Advance(time.Second)
	select {
	case <-ticker.C():
		t.Error("stopped ticker fired")
	default:
	}
}

func TestMockTicker_Trigger(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Hour).(*MockTicker)

	ticker.Trigger(clock.Now())
	select {
	case <-ticker.C():
	default:
		t.Error("Trigger did not deliver a tick")
	}
}

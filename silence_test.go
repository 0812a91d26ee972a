package main

import (
	"testing"
	"time"
)

func warnOnlyMonitor() *silenceMonitor {
	return newSilenceMonitor(8*time.Second, 0)
}

func autoPauseMonitor() *silenceMonitor {
	return newSilenceMonitor(8*time.Second, 30*time.Second)
}

func feedN(m *silenceMonitor, signal bool, n int) SilenceEvent {
	var last SilenceEvent
	for i := 0; i < n; i++ {
		last = m.Tick(signal)
	}
	return last
}

func TestSilenceWarnAfter8s(t *testing.T) {
	m := warnOnlyMonitor()
	// 79 ticks of silence, no warning yet
	for i := 0; i < 79; i++ {
		if ev := m.Tick(false); ev != SilenceNone {
			t.Fatalf("unexpected event at tick %d: %d", i, ev)
		}
	}
	if ev := m.Tick(false); ev != SilenceWarn {
		t.Fatalf("expected SilenceWarn at tick 80, got %d", ev)
	}
}

func TestSilenceWarnClearsOnSignal(t *testing.T) {
	m := warnOnlyMonitor()
	feedN(m, false, 80)

	for i := 0; i < 80; i++ {
		if m.Tick(true) == SilenceWarnClear {
			return
		}
	}
	t.Fatal("expected SilenceWarnClear after signal")
}

func TestNoWarnWithSignal(t *testing.T) {
	m := warnOnlyMonitor()
	for i := 0; i < 200; i++ {
		if ev := m.Tick(true); ev == SilenceWarn {
			t.Fatalf("unexpected warn at tick %d", i)
		}
	}
}

func TestRepeatCue(t *testing.T) {
	m := autoPauseMonitor()
	feedN(m, false, 80)
	for i := 0; i < 100; i++ {
		if m.Tick(false) == SilenceRepeat {
			return
		}
	}
	t.Fatal("expected SilenceRepeat")
}

func TestAutoPausePriorityOverRepeat(t *testing.T) {
	m := autoPauseMonitor()
	for i := 0; i < 400; i++ {
		ev := m.Tick(false)
		if ev == SilenceAutoPause {
			if i != 299 {
				t.Errorf("auto-pause at tick %d, want 299", i)
			}
			return
		}
		if i >= 300 && ev == SilenceRepeat {
			t.Fatalf("SilenceRepeat fired at tick %d instead of SilenceAutoPause", i)
		}
	}
	t.Fatal("expected SilenceAutoPause within 400 ticks")
}

func TestNoAutoPauseWhenDisabled(t *testing.T) {
	m := warnOnlyMonitor()
	for i := 0; i < 400; i++ {
		switch m.Tick(false) {
		case SilenceAutoPause:
			t.Fatalf("unexpected auto-pause at tick %d", i)
		case SilenceRepeat:
			t.Fatalf("unexpected repeat at tick %d", i)
		}
	}
}

func TestAutoPausePreventedBySignal(t *testing.T) {
	m := autoPauseMonitor()
	for i := 0; i < 500; i++ {
		if ev := m.Tick(i%10 < 7); ev == SilenceAutoPause {
			t.Fatalf("unexpected auto-pause at tick %d", i)
		}
	}
}

func TestWarnOnlyOnce(t *testing.T) {
	m := warnOnlyMonitor()
	warns := 0
	for i := 0; i < 300; i++ {
		if m.Tick(false) == SilenceWarn {
			warns++
		}
	}
	if warns != 1 {
		t.Fatalf("expected exactly 1 SilenceWarn, got %d", warns)
	}
}

func TestWarnStaysDuringNoise(t *testing.T) {
	m := warnOnlyMonitor()
	feedN(m, false, 80)

	// brief blips (10% of ticks) stay below the clear threshold
	for i := 0; i < 80; i++ {
		if m.Tick(i%10 == 0) == SilenceWarnClear {
			t.Fatalf("warning cleared at tick %d", i)
		}
	}
}

func TestResetAndLevel(t *testing.T) {
	m := newSilenceMonitor(time.Second, 0)
	feedN(m, false, 10)
	if !m.warned {
		t.Fatal("expected warning after 1s of silence")
	}
	m.Reset()
	if m.warned || m.ticks != 0 {
		t.Fatal("Reset kept state")
	}
	for i := 0; i < 20; i++ {
		if ev := m.TickLevel(0.2); ev != SilenceNone {
			t.Fatalf("loud input produced event %d", ev)
		}
	}
	if ev := feedN(m, false, 10); ev != SilenceNone && ev != SilenceWarn {
		t.Fatalf("unexpected event %d", ev)
	}
}

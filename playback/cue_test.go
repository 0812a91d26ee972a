package playback

import (
	"math"
	"testing"
)

func TestGenerateTick(t *testing.T) {
	s := generateTick(cueSampleRate, startFreq, 0.03, startVolume, startDecay)
	if want := int(cueSampleRate * 0.03); len(s) != want {
		t.Fatalf("len = %d, want %d", len(s), want)
	}
	if s[0] != 0 {
		t.Errorf("first sample = %d, want 0", s[0])
	}

	peak := func(from, to int) int {
		m := 0
		for _, v := range s[from:to] {
			m = max(m, int(math.Abs(float64(v))))
		}
		return m
	}
	head, tail := peak(0, len(s)/4), peak(3*len(s)/4, len(s))
	if head > int(32767*startVolume) {
		t.Errorf("peak %d exceeds volume", head)
	}
	if tail >= head {
		t.Errorf("tone does not decay: head %d, tail %d", head, tail)
	}
}

func TestGenerateDoubleBeep(t *testing.T) {
	beep := generateTick(cueSampleRate, errorFreq, 0.08, errorVolume, errorDecay)
	gap := int(cueSampleRate * 0.05)
	s := generateDoubleBeep(cueSampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay)

	if len(s) != 2*len(beep)+gap {
		t.Fatalf("len = %d, want %d", len(s), 2*len(beep)+gap)
	}
	for i := len(beep); i < len(beep)+gap; i++ {
		if s[i] != 0 {
			t.Fatalf("gap sample %d = %d", i, s[i])
		}
	}
	for i, v := range beep {
		if s[len(beep)+gap+i] != v {
			t.Fatalf("second beep differs at %d", i)
		}
	}
}

func TestCueLengths(t *testing.T) {
	c := newCues(0.2)
	if len(c.start) != len(c.end) || len(c.start) != int(cueSampleRate*0.2) {
		t.Errorf("start %d, end %d", len(c.start), len(c.end))
	}
	if len(c.fail) == 0 {
		t.Error("empty error cue")
	}
}

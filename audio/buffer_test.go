package audio

import "testing"

func TestBufferFromPCM16(t *testing.T) {
	pcm := pcm16(16384, -32768, 0, 32767, 1)
	b := BufferFromPCM16(pcm, 8000, 2)
	if b.Frames() != 2 {
		t.Fatalf("frames = %d, want 2 (partial frame dropped)", b.Frames())
	}
	if b.Samples[0][0] != 0.5 || b.Samples[1][0] != -1 {
		t.Errorf("frame 0 = %v/%v", b.Samples[0][0], b.Samples[1][0])
	}
	if b.Samples[0][1] != 0 {
		t.Errorf("frame 1 left = %v", b.Samples[0][1])
	}
	if got := b.Duration(); got != 2.0/8000 {
		t.Errorf("duration = %v", got)
	}
}

func TestInterleave16RoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768, 1234, -4321, 77}
	b := BufferFromPCM16(pcm16(in...), 16000, 2)
	out := b.Interleave16()
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestInterleave16Clamps(t *testing.T) {
	b := NewBuffer(8000, 1, 2)
	b.Samples[0][0] = 2
	b.Samples[0][1] = -2
	out := b.Interleave16()
	if out[0] != 32767 || out[1] != -32768 {
		t.Errorf("got %v, want [32767 -32768]", out)
	}
}

func TestEmptyBuffer(t *testing.T) {
	var b Buffer
	if b.Frames() != 0 || b.Duration() != 0 {
		t.Error("zero Buffer should have no frames")
	}
}

func TestCloneIsDeep(t *testing.T) {
	b := NewBuffer(8000, 2, 4)
	b.Samples[1][2] = 0.5
	c := b.Clone()
	c.Samples[1][2] = -0.5
	if b.Samples[1][2] != 0.5 {
		t.Error("clone shares samples with the original")
	}
	if c.SampleRate != 8000 || c.Channels != 2 || c.Frames() != 4 {
		t.Errorf("clone = %d Hz %d ch %d frames", c.SampleRate, c.Channels, c.Frames())
	}
}

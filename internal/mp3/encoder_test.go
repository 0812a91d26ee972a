package mp3

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

func sine(frames, channels, rate int, freq float64) []int16 {
	pcm := make([]int16, frames*channels)
	for i := 0; i < frames; i++ {
		v := int16(12000 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
		for c := 0; c < channels; c++ {
			pcm[i*channels+c] = v
		}
	}
	return pcm
}

func encodeAll(t *testing.T, rate, channels int, pcm []int16) []byte {
	t.Helper()
	enc, err := NewEncoder(rate, channels, 128)
	if err != nil {
		t.Fatalf("NewEncoder(%d, %d): %v", rate, channels, err)
	}
	var out []byte
	// Odd-sized pieces exercise the internal buffering.
	for len(pcm) > 0 {
		n := min(len(pcm), 1000*channels)
		out = append(out, enc.EncodeBuffer(pcm[:n])...)
		pcm = pcm[n:]
	}
	return append(out, enc.Flush()...)
}

// walkFrames follows frame headers from the start of data and returns
// the number of frames. It fails on a lost sync word or trailing bytes.
func walkFrames(t *testing.T, data []byte) int {
	t.Helper()
	n := 0
	for off := 0; off < len(data); n++ {
		if off+4 > len(data) || data[off] != 0xff || data[off+1]&0xe0 != 0xe0 {
			t.Fatalf("frame %d: no sync at offset %d", n, off)
		}
		version := (data[off+1] >> 3) & 3
		brIndex := int(data[off+2] >> 4)
		srIndex := int(data[off+2]>>2) & 3
		padding := int(data[off+2]>>1) & 1

		var rate, br, size int
		switch version {
		case 3:
			rate = [3]int{44100, 48000, 32000}[srIndex]
			br = bitrateTable[1][brIndex]
			size = 144*br*1000/rate + padding
		case 2:
			rate = [3]int{22050, 24000, 16000}[srIndex]
			br = bitrateTable[0][brIndex]
			size = 72*br*1000/rate + padding
		default:
			rate = [3]int{11025, 12000, 8000}[srIndex]
			br = bitrateTable[0][brIndex]
			size = 72*br*1000/rate + padding
		}
		if br != 128 {
			t.Fatalf("frame %d: bitrate %d, want 128", n, br)
		}
		off += size
		if off > len(data) {
			t.Fatalf("frame %d: truncated", n)
		}
	}
	return n
}

func TestEncoderFrameStructure(t *testing.T) {
	tests := []struct {
		rate, channels int
	}{
		{44100, 2},
		{44100, 1},
		{48000, 2},
		{32000, 1},
		{22050, 2},
		{16000, 1},
		{8000, 1},
	}
	for _, tt := range tests {
		frames := tt.rate / 2
		data := encodeAll(t, tt.rate, tt.channels, sine(frames, tt.channels, tt.rate, 440))

		spf := granuleSize * 2
		if tt.rate < 32000 {
			spf = granuleSize
		}
		got := walkFrames(t, data)
		want := (frames + delay + spf - 1) / spf
		if got != want {
			t.Errorf("%d Hz x%d: %d frames, want %d", tt.rate, tt.channels, got, want)
		}
	}
}

func TestFlushWithoutInput(t *testing.T) {
	enc, err := NewEncoder(44100, 2, 128)
	if err != nil {
		t.Fatal(err)
	}
	if out := enc.Flush(); out != nil {
		t.Errorf("Flush on empty encoder returned %d bytes", len(out))
	}
	if out := enc.EncodeBuffer(nil); len(out) != 0 {
		t.Errorf("EncodeBuffer(nil) returned %d bytes", len(out))
	}
}

func TestEncodeBufferHoldsNewestFrame(t *testing.T) {
	enc, _ := NewEncoder(44100, 1, 128)
	if out := enc.EncodeBuffer(make([]int16, 1152)); len(out) != 0 {
		t.Errorf("first frame released early: %d bytes", len(out))
	}
	if out := enc.EncodeBuffer(make([]int16, 1152)); len(out) == 0 {
		t.Error("first frame not released by the second")
	}
}

func TestFlushResetsStream(t *testing.T) {
	pcm := sine(4000, 1, 44100, 1000)
	a := encodeAll(t, 44100, 1, pcm)

	enc, _ := NewEncoder(44100, 1, 128)
	enc.EncodeBuffer(sine(9000, 1, 44100, 300))
	enc.Flush()
	b := append(enc.EncodeBuffer(pcm), enc.Flush()...)
	if !bytes.Equal(a, b) {
		t.Error("second stream after Flush differs from a fresh encoder")
	}
}

func TestNewEncoderErrors(t *testing.T) {
	if _, err := NewEncoder(44000, 2, 128); !errors.Is(err, ErrSampleRate) {
		t.Errorf("rate 44000: err = %v", err)
	}
	if _, err := NewEncoder(44100, 3, 128); !errors.Is(err, ErrChannels) {
		t.Errorf("3 channels: err = %v", err)
	}
	if _, err := NewEncoder(44100, 2, 100); !errors.Is(err, ErrBitrate) {
		t.Errorf("100 kbps: err = %v", err)
	}
	if _, err := NewEncoder(16000, 1, 320); !errors.Is(err, ErrBitrate) {
		t.Errorf("320 kbps at MPEG-2: err = %v", err)
	}
}

func TestDecodesWithGoMP3(t *testing.T) {
	tests := []struct {
		rate, channels int
	}{
		{44100, 2},
		{44100, 1},
		{16000, 1},
		{22050, 2},
	}
	for _, tt := range tests {
		frames := tt.rate
		data := encodeAll(t, tt.rate, tt.channels, sine(frames, tt.channels, tt.rate, 440))

		dec, err := gomp3.NewDecoder(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("%d Hz x%d: NewDecoder: %v", tt.rate, tt.channels, err)
		}
		if dec.SampleRate() != tt.rate {
			t.Errorf("%d Hz x%d: decoded rate %d", tt.rate, tt.channels, dec.SampleRate())
		}
		out, err := io.ReadAll(dec)
		if err != nil {
			t.Fatalf("%d Hz x%d: decode: %v", tt.rate, tt.channels, err)
		}
		// go-mp3 always produces 16-bit stereo.
		if got := len(out) / 4; got < frames {
			t.Errorf("%d Hz x%d: decoded %d frames, want at least %d", tt.rate, tt.channels, got, frames)
		}

		var energy float64
		for i := 0; i+1 < len(out); i += 2 {
			s := float64(int16(uint16(out[i]) | uint16(out[i+1])<<8))
			energy += s * s
		}
		rms := math.Sqrt(energy / float64(len(out)/2))
		if rms < 1000 {
			t.Errorf("%d Hz x%d: decoded RMS %.0f, expected a tone", tt.rate, tt.channels, rms)
		}
	}
}

package encoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"voxcap/audio"
)

func toneWav(rate, channels int, seconds float64) []byte {
	frames := int(float64(rate) * seconds)
	buf := audio.NewBuffer(rate, channels, frames)
	for ch := range buf.Samples {
		for i := range buf.Samples[ch] {
			buf.Samples[ch][i] = float32(0.4 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		}
	}
	return EncodeWav(buf).Bytes()
}

func TestEncodeMp3(t *testing.T) {
	tests := []struct {
		rate, channels int
	}{
		{44100, 2},
		{48000, 1},
		{16000, 1},
	}
	for _, tt := range tests {
		wav := toneWav(tt.rate, tt.channels, 0.5)
		out, err := EncodeMp3(wav)
		if err != nil {
			t.Fatalf("%d Hz x%d: EncodeMp3: %v", tt.rate, tt.channels, err)
		}
		if len(out) < 2 || out[0] != 0xff || out[1]&0xe0 != 0xe0 {
			t.Fatalf("%d Hz x%d: output does not start with a frame sync", tt.rate, tt.channels)
		}

		// 128 kbps for half a second plus a few frames of encoder delay.
		if limit := 128000 / 8; len(out) > limit {
			t.Errorf("%d Hz x%d: %d bytes, expected under %d", tt.rate, tt.channels, len(out), limit)
		}

		dec, err := gomp3.NewDecoder(bytes.NewReader(out))
		if err != nil {
			t.Fatalf("%d Hz x%d: NewDecoder: %v", tt.rate, tt.channels, err)
		}
		if dec.SampleRate() != tt.rate {
			t.Errorf("decoded rate = %d, want %d", dec.SampleRate(), tt.rate)
		}
		pcm, err := io.ReadAll(dec)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(pcm)/4 < tt.rate/2 {
			t.Errorf("decoded %d frames, want at least %d", len(pcm)/4, tt.rate/2)
		}
	}
}

func TestEncodeMp3InvalidInput(t *testing.T) {
	good := toneWav(44100, 1, 0.01)
	bad8 := append([]byte(nil), good...)
	bad8[34] = 8
	odd := append([]byte(nil), good...)
	odd[24] = 0x11 // 44049 Hz
	misaligned := EncodeWav(audio.NewBuffer(44100, 2, 2000)).Bytes()
	binary.LittleEndian.PutUint16(misaligned[32:], 1)

	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte("definitely not audio")},
		{"8 bit", bad8},
		{"header only", NewWavHeader(44100, 1, 0).Bytes()},
		{"unsupported rate", odd},
		{"block align", misaligned},
	}
	for _, tt := range tests {
		if _, err := EncodeMp3(tt.data); !errors.Is(err, ErrInvalidWavFormat) {
			t.Errorf("%s: err = %v, want ErrInvalidWavFormat", tt.name, err)
		}
	}
}

func TestEncodeMp3ShortTail(t *testing.T) {
	// 1152 + 100 frames: one full block and a short one.
	buf := audio.NewBuffer(44100, 1, Mp3BlockFrames+100)
	out, err := EncodeMp3(EncodeWav(buf).Bytes())
	if err != nil {
		t.Fatalf("EncodeMp3: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("no output")
	}
}

func TestMp3EncoderCloseOnce(t *testing.T) {
	enc, err := NewMp3(44100, 1, Mp3Bitrate)
	if err != nil {
		t.Fatalf("NewMp3: %v", err)
	}
	enc.EncodeBlock(make([]int16, 3000))
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	n := len(enc.Bytes())
	if n == 0 {
		t.Fatal("no output after Close")
	}
	enc.Close()
	if len(enc.Bytes()) != n {
		t.Error("second Close changed the output")
	}
	if err := enc.EncodeBlock(make([]int16, 10)); err == nil {
		t.Error("EncodeBlock after Close should fail")
	}
	if enc.TotalFrames() != 3000 {
		t.Errorf("TotalFrames = %d, want 3000", enc.TotalFrames())
	}
}

func TestNewMp3Errors(t *testing.T) {
	if _, err := NewMp3(44100, 2, 127); err == nil {
		t.Error("expected error for 127 kbps")
	}
	if _, err := NewMp3(7000, 1, 128); err == nil {
		t.Error("expected error for 7 kHz")
	}
}

package decode

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"voxcap/audio"
	"voxcap/encoder"
)

func rampBuffer(rate, channels, frames int) *audio.Buffer {
	buf := audio.NewBuffer(rate, channels, frames)
	for ch := range buf.Samples {
		for i := range buf.Samples[ch] {
			buf.Samples[ch][i] = float32((i*(ch+1))%2000-1000) / 2048
		}
	}
	return buf
}

func TestSniff(t *testing.T) {
	tests := []struct {
		data []byte
		want Kind
	}{
		{nil, KindEmpty},
		{[]byte("fLaC\x00\x00"), KindFLAC},
		{[]byte("RIFF\x00\x00\x00\x00WAVEfmt "), KindWAV},
		{[]byte("RIFF\x00\x00\x00\x00AVI "), KindUnknown},
		{[]byte("ID3\x04"), KindMP3},
		{[]byte{0xff, 0xfb, 0x90}, KindMP3},
		{[]byte("OggS"), KindUnknown},
	}
	for _, tt := range tests {
		if got := Sniff(tt.data); got != tt.want {
			t.Errorf("Sniff(%q) = %s, want %s", tt.data, got, tt.want)
		}
	}
}

func TestDecodeWAV(t *testing.T) {
	in := rampBuffer(22050, 2, 500)
	wav := encoder.EncodeWav(in).Bytes()
	out, err := Decode(wav, 0, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.SampleRate != 22050 || out.Channels != 2 || out.Frames() != 500 {
		t.Fatalf("got %d Hz %d ch %d frames", out.SampleRate, out.Channels, out.Frames())
	}
	for ch := 0; ch < 2; ch++ {
		for i := 0; i < 500; i++ {
			if d := math.Abs(float64(out.Samples[ch][i] - in.Samples[ch][i])); d > 1.0/16384 {
				t.Fatalf("ch %d sample %d off by %v", ch, i, d)
			}
		}
	}
}

func TestDecodeFLAC(t *testing.T) {
	enc, err := encoder.NewFlac(16000, 1)
	if err != nil {
		t.Fatal(err)
	}
	samples := make([]int16, 5000)
	for i := range samples {
		samples[i] = int16(i - 2500)
	}
	enc.EncodeBlock(samples[:encoder.BlockSize])
	enc.EncodeBlock(samples[encoder.BlockSize:])
	enc.Close()

	out, err := Decode(enc.Bytes(), 0, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.SampleRate != 16000 || out.Channels != 1 || out.Frames() != len(samples) {
		t.Fatalf("got %d Hz %d ch %d frames", out.SampleRate, out.Channels, out.Frames())
	}
	for i, s := range samples {
		if want := float32(s) / 32768; out.Samples[0][i] != want {
			t.Fatalf("sample %d = %v, want %v", i, out.Samples[0][i], want)
		}
	}
}

func TestDecodeMP3(t *testing.T) {
	in := rampBuffer(44100, 1, 44100/4)
	mp3, err := encoder.EncodeMp3(encoder.EncodeWav(in).Bytes())
	if err != nil {
		t.Fatalf("EncodeMp3: %v", err)
	}
	out, err := Decode(mp3, 0, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.SampleRate != 44100 || out.Channels != 2 {
		t.Errorf("got %d Hz %d ch", out.SampleRate, out.Channels)
	}
	if out.Frames() < in.Frames() {
		t.Errorf("decoded %d frames, want at least %d", out.Frames(), in.Frames())
	}
}

func TestDecodeEmptyUsesFallback(t *testing.T) {
	out, err := Decode(nil, 48000, 2)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.SampleRate != 48000 || out.Channels != 2 || out.Frames() != 0 {
		t.Errorf("got %d Hz %d ch %d frames", out.SampleRate, out.Channels, out.Frames())
	}
}

func TestDecodeEmptyWAV(t *testing.T) {
	wav := encoder.EncodeWav(audio.NewBuffer(22050, 2, 0)).Bytes()
	out, err := Decode(wav, 8000, 1)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.SampleRate != 22050 || out.Channels != 2 || out.Frames() != 0 {
		t.Errorf("got %d Hz %d ch %d frames", out.SampleRate, out.Channels, out.Frames())
	}
	if again := encoder.EncodeWav(out).Bytes(); !bytes.Equal(again, wav) {
		t.Error("re-encoding an empty WAV changed it")
	}
}

func TestDecodeErrors(t *testing.T) {
	wav := encoder.EncodeWav(rampBuffer(8000, 1, 10)).Bytes()
	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte("hello, world")},
		{"truncated wav", wav[:30]},
		{"bad flac", []byte("fLaC\x00\x01\x02")},
	}
	for _, tt := range tests {
		if _, err := Decode(tt.data, 8000, 1); !errors.Is(err, ErrDecode) {
			t.Errorf("%s: err = %v, want ErrDecode", tt.name, err)
		}
	}
}

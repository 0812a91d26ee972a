package audio

import "encoding/binary"

// Buffer is decoded audio: one slice of samples in [-1, 1] per channel,
// all of the same length.
type Buffer struct {
	SampleRate int
	Channels   int
	Samples    [][]float32
}

func NewBuffer(sampleRate, channels, frames int) *Buffer {
	b := &Buffer{
		SampleRate: sampleRate,
		Channels:   channels,
		Samples:    make([][]float32, channels),
	}
	for ch := range b.Samples {
		b.Samples[ch] = make([]float32, frames)
	}
	return b
}

// Frames is the number of samples per channel.
func (b *Buffer) Frames() int {
	if len(b.Samples) == 0 {
		return 0
	}
	return len(b.Samples[0])
}

// Clone returns a deep copy of b.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{SampleRate: b.SampleRate, Channels: b.Channels, Samples: make([][]float32, len(b.Samples))}
	for ch, s := range b.Samples {
		c.Samples[ch] = append([]float32(nil), s...)
	}
	return c
}

// Duration in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate == 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// BufferFromPCM16 splits interleaved little-endian 16-bit PCM into channels.
// A trailing partial frame is ignored.
func BufferFromPCM16(pcm []byte, sampleRate, channels int) *Buffer {
	frameBytes := channels * 2
	frames := 0
	if frameBytes > 0 {
		frames = len(pcm) / frameBytes
	}
	b := NewBuffer(sampleRate, channels, frames)
	for i := 0; i < frames; i++ {
		off := i * frameBytes
		for ch := 0; ch < channels; ch++ {
			s := int16(binary.LittleEndian.Uint16(pcm[off+ch*2:]))
			b.Samples[ch][i] = float32(s) / 32768
		}
	}
	return b
}

// Interleave16 converts the buffer back to interleaved int16 samples
// using the same scaling BufferFromPCM16 reads with.
func (b *Buffer) Interleave16() []int16 {
	frames := b.Frames()
	out := make([]int16, frames*b.Channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < b.Channels; ch++ {
			v := b.Samples[ch][i] * 32768
			if v > 32767 {
				v = 32767
			} else if v < -32768 {
				v = -32768
			}
			out[i*b.Channels+ch] = int16(v)
		}
	}
	return out
}

package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"
)

const (
	DefaultFFTSize       = 256
	DefaultFrameInterval = time.Second / 60
)

// Tap is a passive probe on the capture stream. It keeps the most recent
// fftSize mono samples for waveform display and never alters or delays
// the audio it sees.
type Tap struct {
	fftSize int

	mu       sync.Mutex
	ring     []float32
	pos      int
	channels int
	open     bool
	run      chan struct{} // closed when the current run ends
}

// NewTap accepts a power of two between 32 and 32768; 0 selects
// DefaultFFTSize.
func NewTap(fftSize int) (*Tap, error) {
	if fftSize == 0 {
		fftSize = DefaultFFTSize
	}
	if fftSize < 32 || fftSize > 32768 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("audio: fft size %d is not a power of two in [32, 32768]", fftSize)
	}
	return &Tap{fftSize: fftSize, ring: make([]float32, fftSize)}, nil
}

// FrequencyBinCount is half the FFT size: the length of one waveform frame.
func (t *Tap) FrequencyBinCount() int { return t.fftSize / 2 }

// Open starts a run for a stream with the given channel count. Calling it
// on an open tap changes nothing.
func (t *Tap) Open(channels int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open {
		return
	}
	t.channels = max(channels, 1)
	t.run = make(chan struct{})
	t.open = true
}

// Suspend ends the current run. Frame sequences obtained during the run
// close and the ring is cleared back to silence.
func (t *Tap) Suspend() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return
	}
	close(t.run)
	t.open = false
	clear(t.ring)
	t.pos = 0
}

// Write feeds interleaved 16-bit PCM. Channels are averaged to mono.
func (t *Tap) Write(pcm []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return
	}
	step := t.channels * 2
	for off := 0; off+step <= len(pcm); off += step {
		var sum float32
		for ch := 0; ch < t.channels; ch++ {
			sum += float32(int16(binary.LittleEndian.Uint16(pcm[off+ch*2:])))
		}
		t.ring[t.pos] = sum / float32(t.channels) / 32768
		t.pos = (t.pos + 1) % t.fftSize
	}
}

// TimeDomain fills dst with the newest samples in arrival order as
// unsigned bytes, 128 being silence. It returns the number written, at
// most FrequencyBinCount.
func (t *Tap) TimeDomain(dst []uint8) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := min(len(dst), t.FrequencyBinCount())
	start := t.pos - n + t.fftSize
	for i := 0; i < n; i++ {
		dst[i] = toByte(t.ring[(start+i)%t.fftSize])
	}
	return n
}

func toByte(s float32) uint8 {
	v := math.Floor(128 * (float64(s) + 1))
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}

// Level is the RMS of the ring, 0 for silence and 1 for full scale.
func (t *Tap) Level() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var sum float64
	for _, s := range t.ring {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(t.ring)))
}

// Frames yields one waveform frame per interval until ctx is done or the
// current run ends. A frame the consumer is not ready for is dropped. On
// a tap that is not open the channel is already closed.
func (t *Tap) Frames(ctx context.Context, interval time.Duration) <-chan []uint8 {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	out := make(chan []uint8, 1)

	t.mu.Lock()
	run, open := t.run, t.open
	t.mu.Unlock()
	if !open {
		close(out)
		return out
	}

	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-run:
				return
			case <-ticker.C:
			}
			frame := make([]uint8, t.FrequencyBinCount())
			t.TimeDomain(frame)
			select {
			case out <- frame:
			default:
			}
		}
	}()
	return out
}

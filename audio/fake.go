package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"
)

const fakeFrameSize = 1024

// FakeContext replays a fixed PCM buffer instead of a microphone. Each
// capture it creates starts at the beginning of the buffer and keeps its
// position across Stop/Start, so a paused take resumes where it left off.
type FakeContext struct {
	pcm      []byte
	format   CaptureConfig
	realtime bool

	mu        sync.Mutex
	deny      bool
	noDevices bool
	last      *FakeCapture
}

// NewFakeContext loads a canonical 16-bit PCM WAV file.
func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("fake audio: %s is not a WAV file", wavPath)
	}
	channels := uint32(binary.LittleEndian.Uint16(data[22:24]))
	rate := binary.LittleEndian.Uint32(data[24:28])
	if channels == 0 || rate == 0 {
		return nil, fmt.Errorf("fake audio: %s has an empty format", wavPath)
	}
	return NewFakeContextPCM(data[44:], rate, channels, realtime), nil
}

// NewFakeContextPCM replays interleaved 16-bit little-endian samples.
func NewFakeContextPCM(pcm []byte, sampleRate, channels uint32, realtime bool) *FakeContext {
	return &FakeContext{
		pcm:      pcm,
		format:   CaptureConfig{SampleRate: sampleRate, Channels: channels},
		realtime: realtime,
	}
}

// Format is the sample rate and channel layout of the replayed audio.
func (f *FakeContext) Format() CaptureConfig { return f.format }

// DenyAccess makes every later NewCapture fail as if the user refused
// microphone permission.
func (f *FakeContext) DenyAccess() {
	f.mu.Lock()
	f.deny = true
	f.mu.Unlock()
}

// RemoveDevices makes the context report no inputs at all.
func (f *FakeContext) RemoveDevices() {
	f.mu.Lock()
	f.noDevices = true
	f.mu.Unlock()
}

// LastCapture returns the most recently created capture, or nil.
func (f *FakeContext) LastCapture() *FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noDevices {
		return nil, nil
	}
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deny {
		return nil, ErrPermissionDenied
	}
	if f.noDevices {
		return nil, fmt.Errorf("%w: no capture devices", ErrDeviceUnavailable)
	}
	if config != f.format {
		return nil, fmt.Errorf("%w: fake source is %d Hz, %d channels",
			ErrDeviceUnavailable, f.format.SampleRate, f.format.Channels)
	}
	c := &FakeCapture{
		pcm:       f.pcm,
		format:    f.format,
		realtime:  f.realtime,
		audioDone: make(chan struct{}),
	}
	f.last = c
	return c, nil
}

type FakeCapture struct {
	pcm       []byte
	format    CaptureConfig
	realtime  bool
	audioDone chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	pos      int
	doneOnce sync.Once
	stopCh   chan struct{}
	feedDone chan struct{}
	starts   int
}

// AudioDone is closed once the whole buffer has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

// Starts counts calls to Start.
func (f *FakeCapture) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

// feedChunk delivers up to one chunk from the current position and
// reports whether the buffer is exhausted.
func (f *FakeCapture) feedChunk(cb DataCallback) bool {
	bpf := f.format.BytesPerFrame()
	f.mu.Lock()
	start := f.pos
	end := min(start+fakeFrameSize*bpf, len(f.pcm))
	end -= (end - start) % bpf
	f.pos = end
	f.mu.Unlock()

	if end > start {
		chunk := make([]byte, end-start)
		copy(chunk, f.pcm[start:end])
		cb(chunk, uint32(len(chunk)/bpf))
	}
	if end+bpf > len(f.pcm) {
		f.doneOnce.Do(func() { close(f.audioDone) })
		return true
	}
	return false
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	f.starts++
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	stopCh, feedDone := f.stopCh, f.feedDone
	f.mu.Unlock()

	if !f.realtime {
		if cb := f.callback(); cb != nil {
			for !f.feedChunk(cb) {
			}
		}
		close(feedDone)
		return nil
	}

	interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(f.format.SampleRate)
	go func() {
		defer close(feedDone)
		silence := make([]byte, fakeFrameSize*f.format.BytesPerFrame())
		exhausted := false
		for {
			select {
			case <-stopCh:
				return
			default:
			}

			if cb := f.callback(); cb != nil {
				if exhausted {
					cb(silence, fakeFrameSize)
				} else {
					exhausted = f.feedChunk(cb)
				}
			}

			select {
			case <-stopCh:
				return
			case <-time.After(interval):
			}
		}
	}()
	return nil
}

// Stop returns after the feeding goroutine has exited.
func (f *FakeCapture) Stop() {
	f.mu.Lock()
	stopCh, feedDone := f.stopCh, f.feedDone
	f.mu.Unlock()
	if stopCh == nil {
		return
	}
	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	<-feedDone
}

func (f *FakeCapture) Close() { f.Stop() }

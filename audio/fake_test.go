package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type collector struct {
	mu     sync.Mutex
	data   []byte
	frames uint32
}

func (c *collector) callback(data []byte, frameCount uint32) {
	c.mu.Lock()
	c.data = append(c.data, data...)
	c.frames += frameCount
	c.mu.Unlock()
}

func (c *collector) snapshot() ([]byte, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.data...), c.frames
}

func ramp(frames, channels int) []byte {
	b := make([]byte, frames*channels*2)
	for i := 0; i < frames*channels; i++ {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(i))
	}
	return b
}

func TestFakeFeedsAllPCM(t *testing.T) {
	pcm := ramp(3000, 2)
	ctx := NewFakeContextPCM(pcm, 16000, 2, false)
	dev, err := ctx.NewCapture(nil, ctx.Format())
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	var c collector
	dev.SetCallback(c.callback)
	if err := dev.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	dev.Stop()

	data, frames := c.snapshot()
	if !bytes.Equal(data, pcm) {
		t.Errorf("got %d bytes, want %d identical bytes", len(data), len(pcm))
	}
	if frames != 3000 {
		t.Errorf("frames = %d, want 3000", frames)
	}
	select {
	case <-ctx.LastCapture().AudioDone():
	default:
		t.Error("AudioDone not closed")
	}
}

func TestFakeResumesFromPosition(t *testing.T) {
	pcm := ramp(5000, 1)
	ctx := NewFakeContextPCM(pcm, 16000, 1, true)
	dev, err := ctx.NewCapture(nil, ctx.Format())
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	var c collector
	dev.SetCallback(c.callback)

	dev.Start()
	time.Sleep(70 * time.Millisecond)
	dev.Stop()
	first, _ := c.snapshot()
	if len(first) == 0 {
		t.Fatal("nothing delivered before Stop")
	}

	dev.Start()
	<-ctx.LastCapture().AudioDone()
	dev.Stop()

	data, _ := c.snapshot()
	if len(data) < len(pcm) || !bytes.Equal(data[:len(pcm)], pcm) {
		t.Errorf("resumed stream does not continue the buffer")
	}
	if got := ctx.LastCapture().Starts(); got != 2 {
		t.Errorf("Starts = %d, want 2", got)
	}
}

func TestFakeNoCallbackAfterStop(t *testing.T) {
	ctx := NewFakeContextPCM(ramp(100000, 1), 16000, 1, true)
	dev, _ := ctx.NewCapture(nil, ctx.Format())
	var c collector
	dev.SetCallback(c.callback)
	dev.Start()
	time.Sleep(20 * time.Millisecond)
	dev.Stop()

	before, _ := c.snapshot()
	time.Sleep(100 * time.Millisecond)
	after, _ := c.snapshot()
	if len(before) != len(after) {
		t.Errorf("received %d bytes after Stop", len(after)-len(before))
	}
}

func TestFakeDenyAccess(t *testing.T) {
	ctx := NewFakeContextPCM(nil, 16000, 1, false)
	ctx.DenyAccess()
	_, err := ctx.NewCapture(nil, ctx.Format())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("permission error does not match ErrDeviceUnavailable")
	}
}

func TestFakeRemoveDevices(t *testing.T) {
	ctx := NewFakeContextPCM(nil, 16000, 1, false)
	ctx.RemoveDevices()
	devices, _ := ctx.Devices()
	if len(devices) != 0 {
		t.Errorf("devices = %v, want none", devices)
	}
	if _, err := ctx.NewCapture(nil, ctx.Format()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("err = %v, want ErrDeviceUnavailable", err)
	}
	if _, err := SelectDevice(ctx); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("SelectDevice err = %v, want ErrDeviceUnavailable", err)
	}
}

func TestFakeFormatMismatch(t *testing.T) {
	ctx := NewFakeContextPCM(nil, 16000, 1, false)
	_, err := ctx.NewCapture(nil, CaptureConfig{SampleRate: 44100, Channels: 2})
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("err = %v, want ErrDeviceUnavailable", err)
	}
}

func TestNewFakeContextFromWAV(t *testing.T) {
	pcm := ramp(10, 2)
	hdr := make([]byte, 44)
	copy(hdr[0:], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:], uint32(36+len(pcm)))
	copy(hdr[8:], "WAVEfmt ")
	binary.LittleEndian.PutUint32(hdr[16:], 16)
	binary.LittleEndian.PutUint16(hdr[20:], 1)
	binary.LittleEndian.PutUint16(hdr[22:], 2)
	binary.LittleEndian.PutUint32(hdr[24:], 22050)
	binary.LittleEndian.PutUint32(hdr[28:], 22050*4)
	binary.LittleEndian.PutUint16(hdr[32:], 4)
	binary.LittleEndian.PutUint16(hdr[34:], 16)
	copy(hdr[36:], "data")
	binary.LittleEndian.PutUint32(hdr[40:], uint32(len(pcm)))

	path := filepath.Join(t.TempDir(), "in.wav")
	if err := os.WriteFile(path, append(hdr, pcm...), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, err := NewFakeContext(path, false)
	if err != nil {
		t.Fatalf("NewFakeContext: %v", err)
	}
	want := CaptureConfig{SampleRate: 22050, Channels: 2}
	if ctx.Format() != want {
		t.Errorf("format = %+v, want %+v", ctx.Format(), want)
	}

	bad := filepath.Join(t.TempDir(), "bad.wav")
	os.WriteFile(bad, []byte("not a wav"), 0o644)
	if _, err := NewFakeContext(bad, false); err == nil {
		t.Error("expected error for non-WAV input")
	}
}

package playback

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"voxcap/audio"
)

// ErrFormatChanged is returned when a preview needs a different output
// format than the one the process already opened. oto allows one context
// per process.
var ErrFormatChanged = errors.New("playback: output already open with another format")

type Player struct {
	mu         sync.Mutex
	ctx        *oto.Context
	sampleRate int
	channels   int
}

func NewPlayer() *Player { return &Player{} }

func (p *Player) open(sampleRate, channels int) (*oto.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx != nil {
		if p.sampleRate != sampleRate || p.channels != channels {
			return nil, fmt.Errorf("%w: have %d Hz %d ch, want %d Hz %d ch",
				ErrFormatChanged, p.sampleRate, p.channels, sampleRate, channels)
		}
		return p.ctx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   50 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("playback: %w", err)
	}
	<-ready
	p.ctx, p.sampleRate, p.channels = ctx, sampleRate, channels
	return ctx, nil
}

// Preview plays buf and returns when it has finished or ctx is done.
func (p *Player) Preview(ctx context.Context, buf *audio.Buffer) error {
	if buf.Frames() == 0 {
		return nil
	}
	octx, err := p.open(buf.SampleRate, buf.Channels)
	if err != nil {
		return err
	}

	player := octx.NewPlayer(bytes.NewReader(pcmBytes(buf)))
	defer player.Close()
	player.Play()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func pcmBytes(buf *audio.Buffer) []byte {
	samples := buf.Interleave16()
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

package recorder

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"sync"
	"time"

	"voxcap/encoder"
)

const (
	FormatFLAC = "flac"
	FormatWAV  = "wav"
)

type chunkEncoder interface {
	encoder.Encoder
	ChunkCount() int
}

func newEncoder(format string, sampleRate, channels int) (chunkEncoder, error) {
	switch format {
	case FormatFLAC:
		return encoder.NewFlac(sampleRate, channels)
	case FormatWAV:
		return encoder.NewWavStream(sampleRate, channels), nil
	default:
		return nil, fmt.Errorf("unknown container format %q", format)
	}
}

// container packs capture PCM into encoded chunks in arrival order. The
// encoder is created with the first samples, so a take with no audio
// finalizes to an empty container.
type container struct {
	format     string
	sampleRate int
	channels   int

	encoder    chunkEncoder
	blockChan  chan []int16
	encodeDone chan struct{}
	sampleBuf  []int16
	bufMu      sync.Mutex
	err        error
}

func newContainer(format string, sampleRate, channels int) (*container, error) {
	switch format {
	case FormatFLAC, FormatWAV:
	case "":
		format = FormatFLAC
	default:
		return nil, fmt.Errorf("unknown container format %q", format)
	}
	return &container{format: format, sampleRate: sampleRate, channels: channels}, nil
}

func (c *container) start() error {
	enc, err := newEncoder(c.format, c.sampleRate, c.channels)
	if err != nil {
		return err
	}
	c.encoder = enc
	c.blockChan = make(chan []int16, 64)
	c.encodeDone = make(chan struct{})

	go func() {
		defer close(c.encodeDone)
		for block := range c.blockChan {
			start := time.Now()
			if err := enc.EncodeBlock(block); err != nil && c.err == nil {
				c.err = err
			}
			enc.AddEncodeTime(time.Since(start))
		}
	}()
	return nil
}

// Feed takes interleaved little-endian 16-bit PCM.
func (c *container) Feed(pcm []byte) {
	if len(pcm) < 2 {
		return
	}
	blockLen := encoder.BlockSize * c.channels

	c.bufMu.Lock()
	if c.encoder == nil {
		if err := c.start(); err != nil {
			c.err = err
			c.bufMu.Unlock()
			return
		}
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		c.sampleBuf = append(c.sampleBuf, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	var blocks [][]int16
	for len(c.sampleBuf) >= blockLen {
		block := make([]int16, blockLen)
		copy(block, c.sampleBuf[:blockLen])
		c.sampleBuf = c.sampleBuf[blockLen:]
		blocks = append(blocks, block)
	}
	ch := c.blockChan
	c.bufMu.Unlock()

	for _, block := range blocks {
		ch <- block
	}
}

// ChunkCount is the number of container chunks emitted so far.
func (c *container) ChunkCount() int {
	c.bufMu.Lock()
	enc := c.encoder
	c.bufMu.Unlock()
	if enc == nil {
		return 0
	}
	return enc.ChunkCount()
}

// Close flushes the partial block and returns the finished container.
// It must not race with Feed.
func (c *container) Close() ([]byte, Stats, error) {
	c.bufMu.Lock()
	enc := c.encoder
	if enc == nil {
		err := c.err
		c.bufMu.Unlock()
		if err != nil {
			return nil, Stats{}, fmt.Errorf("starting %s container: %w", c.format, err)
		}
		return nil, Stats{Format: c.format}, nil
	}
	frames := len(c.sampleBuf) / c.channels
	if frames > 0 {
		partial := make([]int16, frames*c.channels)
		copy(partial, c.sampleBuf)
		c.blockChan <- partial
	}
	c.sampleBuf = nil
	c.bufMu.Unlock()

	close(c.blockChan)
	<-c.encodeDone

	if c.err != nil {
		return nil, Stats{}, fmt.Errorf("encoding %s container: %w", c.format, c.err)
	}
	if err := enc.Close(); err != nil {
		return nil, Stats{}, fmt.Errorf("closing %s container: %w", c.format, err)
	}

	raw := enc.Bytes()
	rawSize := enc.TotalFrames() * uint64(c.channels) * 2
	st := Stats{
		Format:        c.format,
		AudioLengthS:  float64(enc.TotalFrames()) / float64(c.sampleRate),
		RawSizeKB:     float64(rawSize) / 1024,
		EncodedSizeKB: float64(len(raw)) / 1024,
		EncodeTimeMs:  float64(enc.EncodeTime().Milliseconds()),
		Chunks:        enc.ChunkCount(),
	}
	if rawSize > 0 {
		st.CompressionPct = (1.0 - float64(len(raw))/float64(rawSize)) * 100
	}
	st.captureMemStats()
	return raw, st, nil
}

// Stats describes a finalized container.
type Stats struct {
	Format         string
	AudioLengthS   float64
	RawSizeKB      float64
	EncodedSizeKB  float64
	CompressionPct float64
	EncodeTimeMs   float64
	Chunks         int
	MemoryAllocMB  float64
}

func (s *Stats) captureMemStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	s.MemoryAllocMB = float64(m.Alloc) / 1024 / 1024
}

// Lines formats the stats for the TUI.
func (s Stats) Lines() []string {
	return []string{
		fmt.Sprintf("audio:      %.1fs | %.1f KB → %.1f KB (%.0f%% smaller)",
			s.AudioLengthS, s.RawSizeKB, s.EncodedSizeKB, s.CompressionPct),
		fmt.Sprintf("container:  %s, %d chunks", s.Format, s.Chunks),
		fmt.Sprintf("encode:     %.0fms (concurrent)", s.EncodeTimeMs),
		fmt.Sprintf("memory:     %.1f MB", s.MemoryAllocMB),
	}
}

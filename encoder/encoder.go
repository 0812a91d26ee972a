package encoder

import (
	"errors"
	"sync"
	"time"
)

const (
	BitsPerSample = 16
	// BlockSize is the number of frames per raw container block.
	BlockSize = 4096
	// Mp3BlockFrames is how many frames EncodeMp3 hands the MP3 encoder at a time.
	Mp3BlockFrames = 1152
	Mp3Bitrate     = 128
)

var ErrInvalidWavFormat = errors.New("encoder: invalid wav format")

// Encoder consumes interleaved 16-bit blocks and accumulates its output.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
}

// Chunks is an io.Writer that keeps every Write as a separate chunk, in
// the order written. It is safe for concurrent use.
type Chunks struct {
	mu   sync.Mutex
	list [][]byte
	size int
}

func (c *Chunks) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	chunk := make([]byte, len(p))
	copy(chunk, p)
	c.mu.Lock()
	c.list = append(c.list, chunk)
	c.size += len(p)
	c.mu.Unlock()
	return len(p), nil
}

// Count is the number of chunks written.
func (c *Chunks) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.list)
}

// Size is the total number of bytes written.
func (c *Chunks) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Bytes concatenates all chunks.
func (c *Chunks) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, 0, c.size)
	for _, chunk := range c.list {
		out = append(out, chunk...)
	}
	return out
}

func (c *Chunks) Reset() {
	c.mu.Lock()
	c.list = nil
	c.size = 0
	c.mu.Unlock()
}

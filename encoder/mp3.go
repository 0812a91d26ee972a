package encoder

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"voxcap/internal/mp3"
)

type Mp3Encoder struct {
	out         Chunks
	enc         *mp3.Encoder
	channels    int
	totalFrames uint64
	encodeTime  time.Duration
	flushed     bool
	mu          sync.Mutex
}

func NewMp3(sampleRate, channels, bitrate int) (*Mp3Encoder, error) {
	enc, err := mp3.NewEncoder(sampleRate, channels, bitrate)
	if err != nil {
		return nil, fmt.Errorf("creating mp3 encoder: %w", err)
	}
	return &Mp3Encoder{enc: enc, channels: channels}, nil
}

// EncodeBlock takes interleaved samples. Frames the encoder completes are
// appended to the output; the rest stay buffered until Close.
func (e *Mp3Encoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.flushed {
		return fmt.Errorf("mp3 encoder already closed")
	}

	start := time.Now()
	e.totalFrames += uint64(len(block) / e.channels)
	e.out.Write(e.enc.EncodeBuffer(block))
	e.encodeTime += time.Since(start)
	return nil
}

// Close flushes the encoder. Later calls do nothing.
func (e *Mp3Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.flushed {
		return nil
	}
	e.flushed = true

	start := time.Now()
	e.out.Write(e.enc.Flush())
	e.encodeTime += time.Since(start)
	return nil
}

func (e *Mp3Encoder) Bytes() []byte {
	return e.out.Bytes()
}

func (e *Mp3Encoder) ChunkCount() int { return e.out.Count() }

func (e *Mp3Encoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}

func (e *Mp3Encoder) AddEncodeTime(d time.Duration) {
	e.mu.Lock()
	e.encodeTime += d
	e.mu.Unlock()
}

func (e *Mp3Encoder) EncodeTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encodeTime
}

// EncodeMp3 converts a 16-bit PCM WAV file to MP3 at Mp3Bitrate, keeping
// its sample rate and channel count. Samples are fed in blocks of
// Mp3BlockFrames and the encoder is flushed once at the end.
func EncodeMp3(wav []byte) ([]byte, error) {
	h, err := ParseWavHeader(wav)
	if err != nil {
		return nil, err
	}
	channels := int(h.NumChannels)
	enc, err := NewMp3(int(h.SampleRate), channels, Mp3Bitrate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWavFormat, err)
	}

	data := wav[h.DataOffset : h.DataOffset+int(h.DataSize)]
	samples := make([]int16, h.Frames()*channels)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}

	step := Mp3BlockFrames * channels
	for i := 0; i < len(samples); i += step {
		if err := enc.EncodeBlock(samples[i:min(i+step, len(samples))]); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

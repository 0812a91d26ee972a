package encoder

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"voxcap/audio"
)

const WavHeaderSize = 44

// WavHeader describes a 16-bit PCM WAV stream.
type WavHeader struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataSize      uint32
	DataOffset    int // start of the data chunk payload
}

func NewWavHeader(sampleRate, channels, dataSize int) WavHeader {
	return WavHeader{
		AudioFormat:   1,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * channels * 2),
		BlockAlign:    uint16(channels * 2),
		BitsPerSample: BitsPerSample,
		DataSize:      uint32(dataSize),
		DataOffset:    WavHeaderSize,
	}
}

// RiffSize is the value of the RIFF chunk size field.
func (h WavHeader) RiffSize() uint32 { return 36 + h.DataSize }

// Frames is the number of whole sample frames in the data chunk.
func (h WavHeader) Frames() int {
	if h.BlockAlign == 0 {
		return 0
	}
	return int(h.DataSize) / int(h.BlockAlign)
}

// Bytes is the canonical 44-byte header.
func (h WavHeader) Bytes() []byte {
	b := make([]byte, WavHeaderSize)
	copy(b[0:], "RIFF")
	binary.LittleEndian.PutUint32(b[4:], h.RiffSize())
	copy(b[8:], "WAVE")
	copy(b[12:], "fmt ")
	binary.LittleEndian.PutUint32(b[16:], 16)
	binary.LittleEndian.PutUint16(b[20:], h.AudioFormat)
	binary.LittleEndian.PutUint16(b[22:], h.NumChannels)
	binary.LittleEndian.PutUint32(b[24:], h.SampleRate)
	binary.LittleEndian.PutUint32(b[28:], h.ByteRate)
	binary.LittleEndian.PutUint16(b[32:], h.BlockAlign)
	binary.LittleEndian.PutUint16(b[34:], h.BitsPerSample)
	copy(b[36:], "data")
	binary.LittleEndian.PutUint32(b[40:], h.DataSize)
	return b
}

// ParseWavHeader walks the RIFF chunks of b and returns the format and
// the location of the data chunk. Only 16-bit integer PCM with at least
// one byte of sample data is accepted. A data size running past the end
// of b is cut to what is present.
func ParseWavHeader(b []byte) (WavHeader, error) {
	h, err := ReadWavHeader(b)
	if err == nil && h.DataSize == 0 {
		err = fmt.Errorf("%w: no sample data", ErrInvalidWavFormat)
	}
	return h, err
}

// ReadWavHeader is ParseWavHeader without the sample data requirement: an
// empty data chunk is a valid zero-frame file.
func ReadWavHeader(b []byte) (WavHeader, error) {
	var h WavHeader
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return h, fmt.Errorf("%w: missing RIFF/WAVE signature", ErrInvalidWavFormat)
	}

	haveFmt := false
	for off := 12; off+8 <= len(b); {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4:]))
		body := off + 8
		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(b) {
				return h, fmt.Errorf("%w: short fmt chunk", ErrInvalidWavFormat)
			}
			h.AudioFormat = binary.LittleEndian.Uint16(b[body:])
			h.NumChannels = binary.LittleEndian.Uint16(b[body+2:])
			h.SampleRate = binary.LittleEndian.Uint32(b[body+4:])
			h.ByteRate = binary.LittleEndian.Uint32(b[body+8:])
			h.BlockAlign = binary.LittleEndian.Uint16(b[body+12:])
			h.BitsPerSample = binary.LittleEndian.Uint16(b[body+14:])
			haveFmt = true
		case "data":
			if !haveFmt {
				return h, fmt.Errorf("%w: data chunk before fmt", ErrInvalidWavFormat)
			}
			h.DataOffset = body
			h.DataSize = uint32(min(size, len(b)-body))
			return h, h.validate()
		}
		off = body + size + size&1
	}
	if !haveFmt {
		return h, fmt.Errorf("%w: no fmt chunk", ErrInvalidWavFormat)
	}
	return h, fmt.Errorf("%w: no data chunk", ErrInvalidWavFormat)
}

func (h WavHeader) validate() error {
	switch {
	case h.AudioFormat != 1:
		return fmt.Errorf("%w: format tag %d is not PCM", ErrInvalidWavFormat, h.AudioFormat)
	case h.BitsPerSample != BitsPerSample:
		return fmt.Errorf("%w: %d bits per sample", ErrInvalidWavFormat, h.BitsPerSample)
	case h.NumChannels == 0 || h.SampleRate == 0:
		return fmt.Errorf("%w: empty format", ErrInvalidWavFormat)
	case int(h.BlockAlign) != int(h.NumChannels)*2:
		return fmt.Errorf("%w: block align %d for %d channels", ErrInvalidWavFormat, h.BlockAlign, h.NumChannels)
	case h.ByteRate != h.SampleRate*uint32(h.BlockAlign):
		return fmt.Errorf("%w: byte rate %d does not match %d Hz", ErrInvalidWavFormat, h.ByteRate, h.SampleRate)
	}
	return nil
}

// WavPayload is an encoded WAV file split into its header and sample data.
type WavPayload struct {
	Header WavHeader
	PCM    []byte
}

// Bytes is the complete file.
func (p WavPayload) Bytes() []byte {
	return append(p.Header.Bytes(), p.PCM...)
}

// EncodeWav writes buf as 16-bit PCM with channels interleaved in index
// order. Samples are clamped to [-1, 1] and scaled asymmetrically so that
// -1 maps to -32768 and 1 to 32767; NaN becomes 0.
func EncodeWav(buf *audio.Buffer) WavPayload {
	frames := buf.Frames()
	pcm := make([]byte, frames*buf.Channels*2)
	off := 0
	for i := 0; i < frames; i++ {
		for ch := 0; ch < buf.Channels; ch++ {
			binary.LittleEndian.PutUint16(pcm[off:], uint16(floatToPCM16(buf.Samples[ch][i])))
			off += 2
		}
	}
	return WavPayload{
		Header: NewWavHeader(buf.SampleRate, buf.Channels, len(pcm)),
		PCM:    pcm,
	}
}

func floatToPCM16(s float32) int16 {
	v := float64(s)
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	if v < 0 {
		return int16(v * 32768)
	}
	return int16(v * 32767)
}

// WavStream is a raw WAV container built incrementally from capture
// blocks. Its header always reflects the samples written so far.
type WavStream struct {
	sampleRate  int
	channels    int
	pcm         Chunks
	totalFrames uint64
	encodeTime  time.Duration
	mu          sync.Mutex
}

func NewWavStream(sampleRate, channels int) *WavStream {
	return &WavStream{sampleRate: sampleRate, channels: channels}
}

func (w *WavStream) EncodeBlock(block []int16) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b := make([]byte, len(block)*2)
	for i, s := range block {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	w.pcm.Write(b)
	w.totalFrames += uint64(len(block) / w.channels)
	return nil
}

func (w *WavStream) Close() error { return nil }

func (w *WavStream) Bytes() []byte {
	hdr := NewWavHeader(w.sampleRate, w.channels, w.pcm.Size())
	return append(hdr.Bytes(), w.pcm.Bytes()...)
}

// ChunkCount counts the header as one chunk.
func (w *WavStream) ChunkCount() int { return 1 + w.pcm.Count() }

func (w *WavStream) TotalFrames() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totalFrames
}

func (w *WavStream) AddEncodeTime(d time.Duration) {
	w.mu.Lock()
	w.encodeTime += d
	w.mu.Unlock()
}

func (w *WavStream) EncodeTime() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.encodeTime
}

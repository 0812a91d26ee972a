// Package pipeline is the single entry point the UI drives: it forwards
// capture control to the recorder and turns a raw container into WAV or
// MP3 on request.
package pipeline

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"voxcap/audio"
	"voxcap/decode"
	"voxcap/encoder"
	"voxcap/recorder"
)

const (
	MimeWAV = "audio/wav"
	MimeMP3 = "audio/mp3"

	DefaultBaseName = "recording"
	decodeCacheSize = 8
)

// ErrDecode is returned when a raw container cannot be decoded.
var ErrDecode = decode.ErrDecode

type Mp3Payload struct {
	Data []byte
}

func (p Mp3Payload) Bytes() []byte { return p.Data }

// Artifact is an export ready to be saved or offered for download.
type Artifact struct {
	Bytes         []byte
	MimeType      string
	SuggestedName string
}

func WavArtifact(p encoder.WavPayload, base string) Artifact {
	return Artifact{Bytes: p.Bytes(), MimeType: MimeWAV, SuggestedName: fileName(base, ".wav")}
}

func Mp3Artifact(p Mp3Payload, base string) Artifact {
	return Artifact{Bytes: p.Bytes(), MimeType: MimeMP3, SuggestedName: fileName(base, ".mp3")}
}

func fileName(base, ext string) string {
	base = strings.TrimSpace(base)
	base = strings.TrimSuffix(base, ext)
	if base == "" {
		base = DefaultBaseName
	}
	return base + ext
}

// ExportObserver hears about every export attempt.
type ExportObserver interface {
	Exported(format string, d time.Duration, err error)
}

type Option func(*Pipeline)

func WithExportObserver(o ExportObserver) Option { return func(p *Pipeline) { p.observer = o } }

type Pipeline struct {
	rec        *recorder.Recorder
	sampleRate int
	channels   int
	cache      *lru.Cache[[sha256.Size]byte, *audio.Buffer]
	observer   ExportObserver
}

// New wraps rec. sampleRate and channels describe the format an empty
// container exports as.
func New(rec *recorder.Recorder, sampleRate, channels int, opts ...Option) (*Pipeline, error) {
	cache, err := lru.New[[sha256.Size]byte, *audio.Buffer](decodeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating decode cache: %w", err)
	}
	p := &Pipeline{
		rec:        rec,
		sampleRate: sampleRate,
		channels:   channels,
		cache:      cache,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *Pipeline) Recorder() *recorder.Recorder { return p.rec }

func (p *Pipeline) StartCapture() error  { return p.rec.Start() }
func (p *Pipeline) PauseCapture() error  { return p.rec.Pause() }
func (p *Pipeline) ResumeCapture() error { return p.rec.Resume() }

// StopCapture ends the session and returns its raw container.
func (p *Pipeline) StopCapture() ([]byte, error) {
	res, err := p.rec.Stop()
	if err != nil {
		return nil, err
	}
	return res.Raw, nil
}

// Decode returns the samples in raw, reusing an earlier decode of the
// same bytes. The buffer is the caller's own copy.
func (p *Pipeline) Decode(raw []byte) (*audio.Buffer, error) {
	buf, err := p.decode(raw)
	if err != nil {
		return nil, err
	}
	return buf.Clone(), nil
}

// decode returns the cached buffer itself; callers must not modify it.
func (p *Pipeline) decode(raw []byte) (*audio.Buffer, error) {
	key := sha256.Sum256(raw)
	if buf, ok := p.cache.Get(key); ok {
		return buf, nil
	}
	buf, err := decode.Decode(raw, p.sampleRate, p.channels)
	if err != nil {
		return nil, err
	}
	p.cache.Add(key, buf)
	return buf, nil
}

// ExportAsWav decodes raw and re-encodes it as 16-bit PCM WAV.
func (p *Pipeline) ExportAsWav(raw []byte) (encoder.WavPayload, error) {
	start := time.Now()
	buf, err := p.decode(raw)
	if err != nil {
		p.exported("wav", start, err)
		return encoder.WavPayload{}, err
	}
	payload := encoder.EncodeWav(buf)
	p.exported("wav", start, nil)
	return payload, nil
}

// ExportAsMp3 encodes raw as 128 kbps MP3. A WAV container is handed to
// the MP3 encoder as is; anything else goes through WAV first.
func (p *Pipeline) ExportAsMp3(raw []byte) (Mp3Payload, error) {
	start := time.Now()
	wav := raw
	if decode.Sniff(raw) != decode.KindWAV {
		buf, err := p.decode(raw)
		if err != nil {
			p.exported("mp3", start, err)
			return Mp3Payload{}, err
		}
		wav = encoder.EncodeWav(buf).Bytes()
	}
	data, err := encoder.EncodeMp3(wav)
	p.exported("mp3", start, err)
	if err != nil {
		return Mp3Payload{}, err
	}
	return Mp3Payload{Data: data}, nil
}

func (p *Pipeline) exported(format string, start time.Time, err error) {
	if p.observer != nil {
		p.observer.Exported(format, time.Since(start), err)
	}
}

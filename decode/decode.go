// Package decode turns a recorded container back into float samples.
package decode

import (
	"bytes"
	"errors"
	"fmt"

	"voxcap/audio"
)

var ErrDecode = errors.New("decode: unable to decode audio")

type Kind string

const (
	KindFLAC    Kind = "flac"
	KindWAV     Kind = "wav"
	KindMP3     Kind = "mp3"
	KindEmpty   Kind = "empty"
	KindUnknown Kind = "unknown"
)

// Sniff identifies the container from its leading bytes.
func Sniff(raw []byte) Kind {
	switch {
	case len(raw) == 0:
		return KindEmpty
	case bytes.HasPrefix(raw, []byte("fLaC")):
		return KindFLAC
	case len(raw) >= 12 && string(raw[0:4]) == "RIFF" && string(raw[8:12]) == "WAVE":
		return KindWAV
	case bytes.HasPrefix(raw, []byte("ID3")):
		return KindMP3
	case len(raw) >= 2 && raw[0] == 0xff && raw[1]&0xe0 == 0xe0:
		return KindMP3
	}
	return KindUnknown
}

// Decode reads any container voxcap produces. An empty container yields
// a zero-length buffer in the given fallback format.
func Decode(raw []byte, sampleRate, channels int) (*audio.Buffer, error) {
	var (
		buf *audio.Buffer
		err error
	)
	switch kind := Sniff(raw); kind {
	case KindEmpty:
		return audio.NewBuffer(sampleRate, channels, 0), nil
	case KindFLAC:
		buf, err = decodeFLAC(raw)
	case KindWAV:
		buf, err = decodeWAV(raw)
	case KindMP3:
		buf, err = decodeMP3(raw)
	default:
		return nil, fmt.Errorf("%w: unrecognized container", ErrDecode)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return buf, nil
}

package decode

import (
	"bytes"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"voxcap/audio"
)

// decodeMP3 always yields two channels; go-mp3 duplicates mono streams.
func decodeMP3(raw []byte) (*audio.Buffer, error) {
	dec, err := gomp3.NewDecoder(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	return audio.BufferFromPCM16(pcm, dec.SampleRate(), 2), nil
}

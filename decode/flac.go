package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"

	"voxcap/audio"
)

func decodeFLAC(raw []byte) (*audio.Buffer, error) {
	stream, err := flac.New(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("flac: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	if info.NChannels == 0 || info.BitsPerSample == 0 {
		return nil, fmt.Errorf("flac: empty stream info")
	}
	channels := int(info.NChannels)
	scale := float32(int64(1) << (info.BitsPerSample - 1))

	buf := audio.NewBuffer(int(info.SampleRate), channels, 0)
	for {
		f, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flac frame: %w", err)
		}
		if len(f.Subframes) != channels {
			return nil, fmt.Errorf("flac frame has %d subframes, want %d", len(f.Subframes), channels)
		}
		for ch, sf := range f.Subframes {
			for _, s := range sf.Samples[:f.BlockSize] {
				buf.Samples[ch] = append(buf.Samples[ch], float32(s)/scale)
			}
		}
	}
	return buf, nil
}

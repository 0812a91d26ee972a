package decode

import (
	"voxcap/audio"
	"voxcap/encoder"
)

func decodeWAV(raw []byte) (*audio.Buffer, error) {
	h, err := encoder.ReadWavHeader(raw)
	if err != nil {
		return nil, err
	}
	data := raw[h.DataOffset : h.DataOffset+int(h.DataSize)]
	return audio.BufferFromPCM16(data, int(h.SampleRate), int(h.NumChannels)), nil
}

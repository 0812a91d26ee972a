//go:build linux

package playback

import (
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"voxcap/log"
)

var (
	sounds    cues
	soundOnce sync.Once
)

// PulseAudio needs ~200ms of tail to fill its buffer before draining.
func initSound() { sounds = newCues(0.2) }

func playSamples(samples []int16) {
	if len(samples) == 0 {
		return
	}
	c, err := pulse.NewClient()
	if err != nil {
		log.Warnf("cue playback: %v", err)
		return
	}
	defer c.Close()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		log.Warnf("cue playback: %v", err)
		return
	}
	stream.Start()
	stream.Drain()
	stream.Stop()
	stream.Close()
}

func play(pick func(cues) []int16) {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	go playSamples(pick(sounds))
}

func PlayStart() { play(func(c cues) []int16 { return c.start }) }
func PlayEnd()   { play(func(c cues) []int16 { return c.end }) }
func PlayError() { play(func(c cues) []int16 { return c.fail }) }

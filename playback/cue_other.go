//go:build !linux

package playback

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"voxcap/log"
)

var (
	malgoCtx  *malgo.AllocatedContext
	device    *malgo.Device
	sounds    cues
	soundOnce sync.Once

	// read from the device callback
	playing atomic.Pointer[[]byte]
	playPos atomic.Uint32
	playMu  sync.Mutex
)

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = cueSampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: dataCallback})
	return err
}

func initSound() {
	sounds = newCues(0.05)
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Warnf("cue playback: %v", err)
		return
	}
	if err := initDevice(); err != nil {
		log.Warnf("cue playback: %v", err)
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func dataCallback(out, _ []byte, frameCount uint32) {
	samples := playing.Load()
	if samples == nil {
		clear(out)
		return
	}
	pos := playPos.Load()
	n := min(frameCount*2, uint32(len(*samples))-pos)
	copy(out, (*samples)[pos:pos+n])
	clear(out[n:])
	playPos.Store(pos + n)
	if pos+n >= uint32(len(*samples)) {
		playing.Store(nil)
	}
}

func toBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func play(pick func(cues) []int16) {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	if malgoCtx == nil {
		return
	}

	playMu.Lock()
	defer playMu.Unlock()

	device.Stop()
	b := toBytes(pick(sounds))
	playPos.Store(0)
	playing.Store(&b)
	if err := device.Start(); err != nil {
		// sleep/wake can invalidate the device; recreate once
		device.Uninit()
		if err := initDevice(); err != nil {
			playing.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			playing.Store(nil)
		}
	}
}

func PlayStart() { play(func(c cues) []int16 { return c.start }) }
func PlayEnd()   { play(func(c cues) []int16 { return c.end }) }
func PlayError() { play(func(c cues) []int16 { return c.fail }) }

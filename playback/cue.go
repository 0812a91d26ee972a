// Package playback makes the recorder audible: short cue tones on state
// changes and preview of a take or a library entry.
package playback

import "math"

var disabled bool

// Disable silences every cue for the rest of the process.
func Disable() { disabled = true }

const (
	cueSampleRate = 44100

	// Start: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// Stop: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

// generateTick renders a decaying sine as mono samples.
func generateTick(sampleRate int, freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func generateDoubleBeep(sampleRate int, freq, beepDur, gapDur, volume, decay float64) []int16 {
	beep := generateTick(sampleRate, freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}

type cues struct {
	start, end, fail []int16
}

func newCues(tail float64) cues {
	return cues{
		start: generateTick(cueSampleRate, startFreq, tail, startVolume, startDecay),
		end:   generateTick(cueSampleRate, endFreq, tail, endVolume, endDecay),
		fail:  generateDoubleBeep(cueSampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay),
	}
}

package main

import (
	"time"

	"voxcap/library"
)

// EventSink abstracts the display layer so the Bubble Tea TUI and the
// headless test driver receive the same recording events.
type EventSink interface {
	RecordingStart(sessionID string)
	RecordingPaused()
	RecordingResumed()
	RecordingStop(stats []string)
	Cleared()
	Tick(elapsed time.Duration)
	Waveform(frame []uint8, level float64)
	NoSignal(warn bool)
	Exported(format, path string, metrics []string)
	Saved(entry library.Entry)
	Error(err error)
	DeviceLine(text string)
}

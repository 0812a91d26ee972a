package main

import "time"

const (
	tickInterval     = 100 * time.Millisecond
	signalMinRatio   = 0.10
	signalClearRatio = 0.25 // higher threshold to clear warning (hysteresis)
	signalLevel      = 0.01 // tap RMS above this counts as signal
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no input signal
	SilenceWarnClear              // signal came back after warning
	SilenceRepeat                 // repeat cue, once per warn window
	SilenceAutoPause              // long silence, pause the take
)

// silenceMonitor watches one tick per tickInterval of "was there signal"
// and reports when the input has gone quiet.
type silenceMonitor struct {
	warnAt   int
	windowSz int
	pauseOn  bool

	ticks       int
	window      []bool
	signalCount int
	warned      bool
	lastCue     int
}

// newSilenceMonitor warns after warnAfter of silence. autoPause of zero
// never pauses; otherwise it must be at least warnAfter.
func newSilenceMonitor(warnAfter, autoPause time.Duration) *silenceMonitor {
	warnAt := max(int(warnAfter/tickInterval), 1)
	windowSz := warnAt
	if autoPause > 0 {
		windowSz = max(int(autoPause/tickInterval), warnAt)
	}
	return &silenceMonitor{
		warnAt:   warnAt,
		windowSz: windowSz,
		pauseOn:  autoPause > 0,
		window:   make([]bool, windowSz),
	}
}

func (m *silenceMonitor) ratio(n int) float64 {
	n = min(n, m.ticks)
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

// Reset forgets history, for a new take or a resume.
func (m *silenceMonitor) Reset() {
	clear(m.window)
	m.ticks, m.signalCount, m.lastCue = 0, 0, 0
	m.warned = false
}

func (m *silenceMonitor) TickLevel(level float64) SilenceEvent {
	return m.Tick(level > signalLevel)
}

func (m *silenceMonitor) Tick(hasSignal bool) SilenceEvent {
	idx := m.ticks % m.windowSz
	if m.ticks >= m.windowSz && m.window[idx] {
		m.signalCount--
	}
	m.window[idx] = hasSignal
	if hasSignal {
		m.signalCount++
	}
	m.ticks++

	r := m.ratio(m.warnAt)

	if m.ticks >= m.warnAt && r < signalMinRatio && !m.warned {
		m.warned = true
		m.lastCue = m.ticks
		return SilenceWarn
	}
	if m.warned && r >= signalClearRatio {
		m.warned = false
		return SilenceWarnClear
	}

	if !m.pauseOn {
		return SilenceNone
	}

	// auto-pause wins over a repeat cue on the same tick
	if m.ticks >= m.windowSz && float64(m.signalCount)/float64(m.windowSz) < signalMinRatio {
		return SilenceAutoPause
	}

	if m.warned && m.ticks-m.lastCue >= m.warnAt {
		m.lastCue = m.ticks
		return SilenceRepeat
	}

	return SilenceNone
}

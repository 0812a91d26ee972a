// Package recorder owns the lifecycle of a capture session: acquiring the
// input device, pausing and resuming it, and packing what it captures
// into a raw container when the session stops.
package recorder

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"voxcap/audio"
)

type State int

const (
	Idle State = iota
	Recording
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrInvalidTransition = errors.New("recorder: invalid state transition")
	ErrNoActiveSession   = errors.New("recorder: no active session")
	ErrSessionActive     = fmt.Errorf("%w: a session is already active", ErrInvalidTransition)
	// ErrDeviceUnavailable is the capture package's error, re-exported so
	// callers of the recorder need not import audio.
	ErrDeviceUnavailable = audio.ErrDeviceUnavailable
)

type Config struct {
	SampleRate int
	Channels   int
	Format     string // FormatFLAC or FormatWAV
}

// Observer is told about every state change and every accepted capture
// callback. Methods are called synchronously and must not block.
type Observer interface {
	Transition(from, to State)
	Captured(frames int)
}

type Option func(*Recorder)

func WithObserver(o Observer) Option { return func(r *Recorder) { r.observer = o } }

// WithClock replaces time.Now for elapsed-time accounting.
func WithClock(now func() time.Time) Option { return func(r *Recorder) { r.now = now } }

// Session is a snapshot of the current take.
type Session struct {
	ID         string
	State      State
	Chunks     int
	Frames     uint64
	StartedAt  time.Time
	SampleRate int
	Channels   int
	Format     string
	Elapsed    time.Duration // time spent recording, pauses excluded
}

// Result is what Stop hands back: the raw container and its description.
type Result struct {
	Session Session
	Raw     []byte
	Stats   Stats
}

type session struct {
	id        string
	startedAt time.Time
	active    time.Duration
	segment   time.Time // start of the current recording stretch
	frames    uint64
	container *container
}

// Recorder is a single-owner state machine over one capture device. All
// transitions are serialized; capture callbacks run on the backend's
// thread and only touch the session under feedMu.
type Recorder struct {
	ctx    audio.Context
	device *audio.DeviceInfo
	cfg    Config
	tap    *audio.Tap

	observer Observer
	now      func() time.Time

	mu      sync.Mutex
	state   State
	capture audio.CaptureDevice
	current *session
	last    *Result

	feedMu    sync.Mutex
	accepting *session
}

// New returns an idle recorder. device may be nil for the system default
// input and tap may be nil when no waveform is wanted.
func New(ctx audio.Context, device *audio.DeviceInfo, cfg Config, tap *audio.Tap, opts ...Option) *Recorder {
	if cfg.Format == "" {
		cfg.Format = FormatFLAC
	}
	r := &Recorder{
		ctx:    ctx,
		device: device,
		cfg:    cfg,
		tap:    tap,
		now:    time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Recorder) setState(to State) {
	from := r.state
	r.state = to
	if r.observer != nil && from != to {
		r.observer.Transition(from, to)
	}
}

// Start begins a new session from Idle or Stopped. A previous stopped
// take is discarded.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Recording || r.state == Paused {
		return ErrSessionActive
	}

	cont, err := newContainer(r.cfg.Format, r.cfg.SampleRate, r.cfg.Channels)
	if err != nil {
		return err
	}

	capture, err := r.ctx.NewCapture(r.device, audio.CaptureConfig{
		SampleRate: uint32(r.cfg.SampleRate),
		Channels:   uint32(r.cfg.Channels),
	})
	if err != nil {
		return deviceError(err)
	}

	now := r.now()
	s := &session{
		id:        uuid.NewString(),
		startedAt: now,
		segment:   now,
		container: cont,
	}

	r.feedMu.Lock()
	r.accepting = s
	r.feedMu.Unlock()

	capture.SetCallback(func(data []byte, frameCount uint32) {
		r.feed(s, data, frameCount)
	})
	if r.tap != nil {
		r.tap.Open(r.cfg.Channels)
	}
	if err := capture.Start(); err != nil {
		r.stopAccepting()
		capture.ClearCallback()
		capture.Close()
		if r.tap != nil {
			r.tap.Suspend()
		}
		return deviceError(err)
	}

	r.capture = capture
	r.current = s
	r.last = nil
	r.setState(Recording)
	return nil
}

func deviceError(err error) error {
	if errors.Is(err, audio.ErrDeviceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
}

// feed appends one capture callback to s. Callbacks for any other
// session, or arriving after Stop, are dropped.
func (r *Recorder) feed(s *session, data []byte, frameCount uint32) {
	r.feedMu.Lock()
	defer r.feedMu.Unlock()
	if r.accepting != s {
		return
	}
	s.container.Feed(data)
	s.frames += uint64(frameCount)
	if r.tap != nil {
		r.tap.Write(data)
	}
	if r.observer != nil {
		r.observer.Captured(int(frameCount))
	}
}

func (r *Recorder) stopAccepting() {
	r.feedMu.Lock()
	r.accepting = nil
	r.feedMu.Unlock()
}

// Pause suspends capture and the waveform run but keeps the session.
func (r *Recorder) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Idle, Stopped:
		return ErrNoActiveSession
	case Paused:
		return fmt.Errorf("%w: already paused", ErrInvalidTransition)
	}

	r.capture.Stop()
	if r.tap != nil {
		r.tap.Suspend()
	}
	r.current.active += r.now().Sub(r.current.segment)
	r.setState(Paused)
	return nil
}

// Resume restarts capture on the same device. On failure the session
// stays paused.
func (r *Recorder) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Idle, Stopped:
		return ErrNoActiveSession
	case Recording:
		return fmt.Errorf("%w: already recording", ErrInvalidTransition)
	}

	if r.tap != nil {
		r.tap.Open(r.cfg.Channels)
	}
	if err := r.capture.Start(); err != nil {
		if r.tap != nil {
			r.tap.Suspend()
		}
		return deviceError(err)
	}
	r.current.segment = r.now()
	r.setState(Recording)
	return nil
}

// Stop tears capture down, waits for in-flight callbacks, and returns the
// finalized raw container. Nothing captured after Stop returns reaches
// the container.
func (r *Recorder) Stop() (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Recording && r.state != Paused {
		return nil, ErrNoActiveSession
	}

	s := r.current
	if r.state == Recording {
		s.active += r.now().Sub(s.segment)
	}

	r.capture.Stop()
	r.stopAccepting()
	r.capture.ClearCallback()
	r.capture.Close()
	r.capture = nil
	if r.tap != nil {
		r.tap.Suspend()
	}

	raw, stats, err := s.container.Close()
	r.setState(Stopped)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Session: r.snapshot(s),
		Raw:     raw,
		Stats:   stats,
	}
	r.last = res
	return res, nil
}

// Clear discards a stopped take and returns to Idle. It is a no-op when
// already idle.
func (r *Recorder) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Recording, Paused:
		return ErrSessionActive
	case Idle:
		return nil
	}
	r.current = nil
	r.last = nil
	r.setState(Idle)
	return nil
}

// Last returns the result of the most recent Stop, or nil after Clear or
// a new Start.
func (r *Recorder) Last() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Session returns a snapshot of the current or last session. ok is false
// when the recorder is idle.
func (r *Recorder) Session() (s Session, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return Session{}, false
	}
	return r.snapshot(r.current), true
}

func (r *Recorder) snapshot(s *session) Session {
	elapsed := s.active
	if r.state == Recording {
		elapsed += r.now().Sub(s.segment)
	}
	r.feedMu.Lock()
	frames := s.frames
	r.feedMu.Unlock()
	return Session{
		ID:         s.id,
		State:      r.state,
		Chunks:     s.container.ChunkCount(),
		Frames:     frames,
		StartedAt:  s.startedAt,
		SampleRate: r.cfg.SampleRate,
		Channels:   r.cfg.Channels,
		Format:     s.container.format,
		Elapsed:    elapsed,
	}
}

// Elapsed is the recording time of the current session, pauses excluded.
func (r *Recorder) Elapsed() time.Duration {
	s, ok := r.Session()
	if !ok {
		return 0
	}
	return s.Elapsed
}

// FormatElapsed renders d as MM:SS, minutes growing past two digits as
// needed.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

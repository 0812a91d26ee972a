package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"voxcap/audio"
	"voxcap/clipboard"
	"voxcap/config"
	"voxcap/download"
	"voxcap/library"
	"voxcap/log"
	"voxcap/metrics"
	"voxcap/pipeline"
	"voxcap/playback"
	"voxcap/recorder"
)

var errNoTake = errors.New("nothing recorded yet")

type previewer interface {
	Preview(ctx context.Context, buf *audio.Buffer) error
}

// app wires one recorder to everything that consumes its takes. All
// methods are safe to call from the TUI and from the capture pump.
type app struct {
	cfg     *config.Config
	device  *audio.DeviceInfo
	tap     *audio.Tap
	rec     *recorder.Recorder
	pipe    *pipeline.Pipeline
	lib     *library.Library
	dl      *download.Downloader
	player  previewer
	metrics *metrics.Metrics
	sink    EventSink

	mu      sync.Mutex
	raw     []byte
	silence *silenceMonitor
	cancel  context.CancelFunc
	pumpWG  sync.WaitGroup
}

type appDeps struct {
	Audio   audio.Context
	Device  *audio.DeviceInfo
	Library *library.Library
	Saver   *download.Downloader
	Player  previewer
	Metrics *metrics.Metrics
	Sink    EventSink
}

// recObserver fans recorder events out to the log and the metrics.
type recObserver struct{ m *metrics.Metrics }

func (o recObserver) Transition(from, to recorder.State) {
	log.Transition(from.String(), to.String())
	o.m.Transition(from, to)
}

func (o recObserver) Captured(frames int) { o.m.Captured(frames) }

func newApp(cfg *config.Config, deps appDeps) (*app, error) {
	tap, err := audio.NewTap(cfg.Audio.FFTSize)
	if err != nil {
		return nil, err
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}
	rec := recorder.New(deps.Audio, deps.Device, recorder.Config{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		Format:     cfg.Audio.Container,
	}, tap, recorder.WithObserver(recObserver{m}))

	pipe, err := pipeline.New(rec, cfg.Audio.SampleRate, cfg.Audio.Channels, pipeline.WithExportObserver(m))
	if err != nil {
		return nil, err
	}
	if deps.Library != nil {
		m.LibraryEntries.Set(float64(deps.Library.Len()))
	}
	dl := deps.Saver
	if dl == nil {
		dl = download.New(cfg.Export.Dir, nil)
	}

	return &app{
		cfg:     cfg,
		device:  deps.Device,
		tap:     tap,
		rec:     rec,
		pipe:    pipe,
		lib:     deps.Library,
		dl:      dl,
		player:  deps.Player,
		metrics: m,
		sink:    deps.Sink,
		silence: newSilenceMonitor(
			time.Duration(cfg.Audio.NoSignalWarnS*float64(time.Second)),
			time.Duration(cfg.Audio.AutoPauseS*float64(time.Second)),
		),
	}, nil
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func (a *app) fail(err error) error {
	if err != nil {
		log.Errorf("%v", err)
		if a.cfg.UI.Cues {
			playback.PlayError()
		}
		a.sink.Error(err)
	}
	return err
}

// Start begins a new take, discarding the previous one.
func (a *app) Start() error {
	if err := a.pipe.StartCapture(); err != nil {
		return a.fail(err)
	}
	a.mu.Lock()
	a.raw = nil
	a.mu.Unlock()

	s, _ := a.rec.Session()
	device := "system default"
	if a.device != nil {
		device = a.device.Name
	}
	log.SessionStart(s.ID, device, s.Format, s.SampleRate, s.Channels)
	if a.cfg.UI.Cues {
		playback.PlayStart()
	}
	a.sink.RecordingStart(s.ID)
	a.startPump()
	return nil
}

func (a *app) Pause() error {
	if err := a.pipe.PauseCapture(); err != nil {
		return a.fail(err)
	}
	a.sink.RecordingPaused()
	return nil
}

func (a *app) Resume() error {
	if err := a.pipe.ResumeCapture(); err != nil {
		return a.fail(err)
	}
	a.sink.RecordingResumed()
	a.startPump()
	return nil
}

// Toggle is the single record key: start when idle, otherwise pause or
// resume.
func (a *app) Toggle() error {
	switch a.rec.State() {
	case recorder.Recording:
		return a.Pause()
	case recorder.Paused:
		return a.Resume()
	}
	return a.Start()
}

func (a *app) Stop() error {
	raw, err := a.pipe.StopCapture()
	a.stopPump()
	if err != nil {
		return a.fail(err)
	}
	a.mu.Lock()
	a.raw = raw
	a.mu.Unlock()

	res := a.rec.Last()
	st := res.Stats
	log.SessionEnd(res.Session.ID, log.TakeMetrics{
		AudioLengthS:   st.AudioLengthS,
		RawSizeKB:      st.RawSizeKB,
		EncodedSizeKB:  st.EncodedSizeKB,
		CompressionPct: st.CompressionPct,
		EncodeTimeMs:   st.EncodeTimeMs,
		Chunks:         st.Chunks,
		MemoryAllocMB:  st.MemoryAllocMB,
	})
	a.metrics.TakeFinished(st.AudioLengthS)
	if a.cfg.UI.Cues {
		playback.PlayEnd()
	}
	a.sink.RecordingStop(st.Lines())
	return nil
}

func (a *app) Clear() error {
	if err := a.rec.Clear(); err != nil {
		return a.fail(err)
	}
	a.mu.Lock()
	a.raw = nil
	a.mu.Unlock()
	a.sink.Cleared()
	return nil
}

func (a *app) take() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rec.State() != recorder.Stopped {
		return nil, errNoTake
	}
	return a.raw, nil
}

// encode renders the last take as format ("wav" or "mp3").
func (a *app) encode(format string) (pipeline.Artifact, error) {
	raw, err := a.take()
	if err != nil {
		return pipeline.Artifact{}, err
	}
	switch format {
	case "wav":
		p, err := a.pipe.ExportAsWav(raw)
		if err != nil {
			return pipeline.Artifact{}, err
		}
		return pipeline.WavArtifact(p, a.cfg.Export.BaseName), nil
	case "mp3":
		p, err := a.pipe.ExportAsMp3(raw)
		if err != nil {
			return pipeline.Artifact{}, err
		}
		return pipeline.Mp3Artifact(p, a.cfg.Export.BaseName), nil
	}
	return pipeline.Artifact{}, fmt.Errorf("unknown export format %q", format)
}

// Export encodes the last take and hands it to the downloader. It returns
// the path written.
func (a *app) Export(format string) (string, error) {
	start := time.Now()
	art, err := a.encode(format)
	if err != nil {
		log.Export(format, "", 0, time.Since(start), err)
		return "", a.fail(err)
	}
	path, err := a.dl.Save(art)
	log.Export(format, art.SuggestedName, len(art.Bytes), time.Since(start), err)
	if errors.Is(err, download.ErrCanceled) {
		return "", err
	}
	if err != nil {
		return "", a.fail(err)
	}
	log.Saved(path)

	lines := []string{
		fmt.Sprintf("%s  %.1f KB", art.MimeType, float64(len(art.Bytes))/1024),
		fmt.Sprintf("took  %s", time.Since(start).Round(time.Millisecond)),
	}
	if a.cfg.UI.CopyPath {
		if abs, err := clipboard.CopyPath(path); err == nil {
			lines = append(lines, "copied  "+abs)
		} else {
			log.Warnf("copy path: %v", err)
		}
	}
	a.sink.Exported(format, path, lines)
	return path, nil
}

// Save stores the last take in the library under name, encoded in the
// configured export format.
func (a *app) Save(name string) (library.Entry, error) {
	if a.lib == nil {
		return library.Entry{}, a.fail(errors.New("library is not open"))
	}
	art, err := a.encode(a.cfg.Export.Format)
	if err != nil {
		return library.Entry{}, a.fail(err)
	}
	e, err := a.lib.Save(art.Bytes, name, art.MimeType, time.Now())
	if err != nil {
		return library.Entry{}, a.fail(err)
	}
	a.metrics.LibraryEntries.Set(float64(a.lib.Len()))
	log.Infof("library_save: id=%d name=%q bytes=%d", e.ID, e.Filename, e.Size)
	a.sink.Saved(e)
	return e, nil
}

// Preview plays the last take back and blocks until it ends.
func (a *app) Preview(ctx context.Context) error {
	if a.player == nil {
		return a.fail(errors.New("playback is not available"))
	}
	raw, err := a.take()
	if err != nil {
		return a.fail(err)
	}
	buf, err := a.pipe.Decode(raw)
	if err != nil {
		return a.fail(err)
	}
	if err := a.player.Preview(ctx, buf); err != nil && !errors.Is(err, context.Canceled) {
		return a.fail(err)
	}
	return nil
}

// startPump forwards waveform frames, the elapsed timer and silence
// events to the sink for the current capture run. The run ends by itself
// when the tap is suspended on pause or stop.
func (a *app) startPump() {
	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.cancel = cancel
	a.silence.Reset()
	a.mu.Unlock()

	interval := time.Second / time.Duration(a.cfg.Audio.FrameRate)
	frames := a.tap.Frames(ctx, interval)

	a.pumpWG.Add(1)
	go func() {
		defer a.pumpWG.Done()
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case frame, ok := <-frames:
				if !ok {
					return
				}
				a.sink.Waveform(frame, a.tap.Level())
			case <-ticker.C:
				a.sink.Tick(a.rec.Elapsed())
				a.onSilence(a.silence.TickLevel(a.tap.Level()))
			}
		}
	}()
}

func (a *app) onSilence(ev SilenceEvent) {
	switch ev {
	case SilenceWarn:
		log.Warn("no_signal")
		a.sink.NoSignal(true)
		if a.cfg.UI.Cues {
			playback.PlayError()
		}
	case SilenceRepeat:
		if a.cfg.UI.Cues {
			playback.PlayError()
		}
	case SilenceWarnClear:
		a.sink.NoSignal(false)
	case SilenceAutoPause:
		log.Info("auto_pause")
		go a.Pause()
	}
}

func (a *app) stopPump() {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.mu.Unlock()
	a.pumpWG.Wait()
}

// Close ends any running take without keeping it.
func (a *app) Close() {
	switch a.rec.State() {
	case recorder.Recording, recorder.Paused:
		a.rec.Stop()
	}
	a.stopPump()
}

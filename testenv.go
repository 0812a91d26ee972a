package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"voxcap/audio"
	"voxcap/config"
	"voxcap/download"
	"voxcap/library"
	"voxcap/log"
	"voxcap/metrics"
	"voxcap/playback"
)

// printSink writes one line per event for scripted runs. Waveform and
// timer events are dropped.
type printSink struct {
	mu  sync.Mutex
	out io.Writer
}

func (s *printSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format+"\n", args...)
}

func (s *printSink) RecordingStart(id string)                 { s.printf("recording_start %s", id) }
func (s *printSink) RecordingPaused()                         { s.printf("recording_paused") }
func (s *printSink) RecordingResumed()                        { s.printf("recording_resumed") }
func (s *printSink) RecordingStop([]string)                   { s.printf("recording_stop") }
func (s *printSink) Cleared()                                 { s.printf("cleared") }
func (s *printSink) Tick(time.Duration)                       {}
func (s *printSink) Waveform([]uint8, float64)                {}
func (s *printSink) NoSignal(warn bool)                       { s.printf("no_signal %t", warn) }
func (s *printSink) Exported(format, path string, _ []string) { s.printf("exported %s %s", format, path) }
func (s *printSink) Saved(e library.Entry)                    { s.printf("saved %d %s", e.ID, e.Filename) }
func (s *printSink) Error(err error)                          { s.printf("error %v", err) }
func (s *printSink) DeviceLine(text string)                   { s.printf("%s", text) }

// runTestMode drives a recorder over a WAV file from stdin commands:
// START, PAUSE, RESUME, STOP, CLEAR, EXPORT_WAV, EXPORT_MP3, SAVE <name>,
// WAIT_AUDIO_DONE, SLEEP <ms>, QUIT.
func runTestMode(cfg *config.Config, wavPath string, realtime bool, m *metrics.Metrics) int {
	playback.Disable()

	fake, err := audio.NewFakeContext(wavPath, realtime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		return 1
	}
	format := fake.Format()
	cfg.Audio.SampleRate = int(format.SampleRate)
	cfg.Audio.Channels = int(format.Channels)

	lib, err := library.Open(cfg.Library.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening library: %v\n", err)
		return 1
	}
	defer lib.Close()

	sink := &printSink{out: os.Stdout}
	a, err := newApp(cfg, appDeps{
		Audio:   fake,
		Library: lib,
		Saver:   download.New(cfg.Export.Dir, nil),
		Metrics: m,
		Sink:    sink,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	return driveScript(a, fake, os.Stdin)
}

func driveScript(a *app, fake *audio.FakeContext, in io.Reader) int {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "":
		case "START":
			a.Start()
		case "PAUSE":
			a.Pause()
		case "RESUME":
			a.Resume()
		case "STOP":
			a.Stop()
		case "CLEAR":
			a.Clear()
		case "EXPORT_WAV":
			a.Export("wav")
		case "EXPORT_MP3":
			a.Export("mp3")
		case "SAVE":
			a.Save(arg)
		case "PREVIEW":
			a.Preview(context.Background())
		case "WAIT_AUDIO_DONE":
			if c := fake.LastCapture(); c != nil {
				<-c.AudioDone()
			}
		case "SLEEP":
			if ms, err := strconv.Atoi(arg); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case "QUIT":
			return 0
		default:
			log.Warnf("unknown test command %q", line)
		}
	}
	return 0
}

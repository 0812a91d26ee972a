package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"voxcap/audio"
	"voxcap/config"
	"voxcap/doctor"
	"voxcap/download"
	"voxcap/library"
	"voxcap/log"
	"voxcap/metrics"
	"voxcap/playback"
	"voxcap/shutdown"
)

var version = "dev"

const usage = `voxcap - terminal microphone recorder

Usage:
  voxcap [flags]                      record with the terminal UI
  voxcap [flags] export [-format mp3|wav] [-o path] <file>
  voxcap [flags] library [list | get <id> | rm <id> | play <id>]
  voxcap [flags] play <file>
  voxcap [flags] doctor
  voxcap version

Flags:
`

type options struct {
	configPath string
	logPath    string
	device     string
	setup      bool
	container  string
	test       string
	realtime   bool
	benchmark  string
	runs       int
	profile    string
	noCues     bool
	crash      bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var o options
	fs := flag.NewFlagSet("voxcap", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "config file (default: "+config.DefaultPath()+")")
	fs.StringVar(&o.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	fs.StringVar(&o.device, "device", "", "record from the input whose name contains this")
	fs.BoolVar(&o.setup, "setup", false, "pick the input device interactively")
	fs.StringVar(&o.container, "container", "", "raw container while recording: flac or wav")
	fs.StringVar(&o.test, "test", "", "headless mode: replay this WAV file and read commands from stdin")
	fs.BoolVar(&o.realtime, "realtime", false, "with -test, feed the WAV at its natural pace")
	fs.StringVar(&o.benchmark, "benchmark", "", "time WAV and MP3 encoding of this file and exit")
	fs.IntVar(&o.runs, "runs", 3, "number of benchmark iterations")
	fs.StringVar(&o.profile, "profile", "", "enable pprof server (e.g., :6060 or localhost:6060)")
	fs.BoolVar(&o.noCues, "nocues", false, "disable start/stop tones")
	fs.BoolVar(&o.crash, "crash", false, "trigger a synthetic panic to test crash logging")
	versionFlag := fs.Bool("version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	cmd := ""
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	if *versionFlag || cmd == "version" {
		fmt.Printf("voxcap %s\n", version)
		return 0
	}
	if cmd == "doctor" {
		return doctor.Run(o.configPath)
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if o.container != "" {
		cfg.Audio.Container = o.container
	}
	if o.device != "" {
		cfg.Audio.Device = o.device
	}
	if o.noCues {
		cfg.UI.Cues = false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logFlag := o.logPath
	if logFlag == "" && os.Getenv("VOXCAP_LOG_PATH") == "" {
		logFlag = cfg.Logging.Dir
	}
	logPath, err := log.ResolveDir(logFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	if crashFile, err := log.OpenCrashFile(); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}
	if o.crash {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}
	if o.profile != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", o.profile)
			if err := http.ListenAndServe(o.profile, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	m := metrics.New()
	defer func() {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Warnf("metrics textfile: %v", err)
		}
	}()

	switch {
	case o.test != "":
		return runTestMode(cfg, o.test, o.realtime, m)
	case o.benchmark != "":
		return runBenchmark(cfg, o.benchmark, o.runs)
	}

	switch cmd {
	case "", "record":
		return runRecord(cfg, o.setup, m)
	case "export":
		return runExport(cfg, rest)
	case "library":
		return runLibrary(cfg, rest)
	case "play":
		return runPlay(cfg, rest)
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
	fs.Usage()
	return 2
}

// findDevice prefers an exact name match, then a case-insensitive
// substring.
func findDevice(devices []audio.DeviceInfo, name string) *audio.DeviceInfo {
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i]
		}
	}
	lower := strings.ToLower(name)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), lower) {
			return &devices[i]
		}
	}
	return nil
}

func runRecord(cfg *config.Config, setup bool, m *metrics.Metrics) int {
	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		return 1
	}
	defer actx.Close()

	var device *audio.DeviceInfo
	switch {
	case cfg.Audio.Device != "":
		devices, err := actx.Devices()
		if err == nil {
			device = findDevice(devices, cfg.Audio.Device)
		}
		if device == nil {
			fmt.Fprintf(os.Stderr, "Warning: no input matches %q, using the system default\n", cfg.Audio.Device)
		}
	case setup:
		device, err = audio.SelectDevice(actx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\nFalling back to default device\n", err)
		}
	}

	lib, err := library.Open(cfg.Library.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer lib.Close()

	if !cfg.UI.Cues {
		playback.Disable()
	}

	sink := &tuiSink{}
	a, err := newApp(cfg, appDeps{
		Audio:   actx,
		Device:  device,
		Library: lib,
		Saver:   download.New(cfg.Export.Dir, download.Dialog),
		Player:  playback.NewPlayer(),
		Metrics: m,
		Sink:    sink,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	p := NewTUIProgram(newTUIModel(a, cfg.Export.BaseName, deviceLineText(device)))
	sink.p = p

	ctx, stop := shutdown.Context(context.Background())
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		_, err := p.Run()
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		p.Quit()
		return nil
	})
	g.Go(func() error {
		watchDevices(gctx, actx, device, sink)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Errorf("TUI error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// watchDevices polls for hotplug changes and tells the sink when the
// chosen input disappears or comes back.
func watchDevices(ctx context.Context, actx audio.Context, device *audio.DeviceInfo, sink EventSink) {
	if device == nil {
		return
	}
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	present := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		devices, err := actx.Devices()
		if err != nil {
			continue
		}
		now := slices.ContainsFunc(devices, func(d audio.DeviceInfo) bool { return d.Name == device.Name })
		if now == present {
			continue
		}
		present = now
		if now {
			log.Info("device_reconnected: " + device.Name)
			sink.DeviceLine(deviceLineText(device))
		} else {
			log.Info("device_disconnected: " + device.Name)
			sink.DeviceLine(deviceLineText(device) + " (disconnected)")
		}
	}
}

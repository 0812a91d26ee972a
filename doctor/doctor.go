package doctor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"voxcap/audio"
	"voxcap/clipboard"
	"voxcap/config"
	"voxcap/decode"
	"voxcap/pipeline"
	"voxcap/recorder"
)

// Previewer plays a decoded take back to the user.
type Previewer interface {
	Preview(ctx context.Context, buf *audio.Buffer) error
}

// Env is everything the checks touch. Interactive checks are skipped when
// Interactive is false.
type Env struct {
	Audio       audio.Context
	Device      *audio.DeviceInfo
	Config      *config.Config
	Player      Previewer
	In          io.Reader
	Out         io.Writer
	Interactive bool
	RecordFor   time.Duration
}

type check struct {
	name string
	run  func(*run) bool
}

type run struct {
	env *Env
	in  *bufio.Reader
	raw []byte
	buf *audio.Buffer
}

func (r *run) printf(format string, args ...any) { fmt.Fprintf(r.env.Out, format, args...) }

func (r *run) confirm(question string) bool {
	r.printf("%s [y/n]: ", question)
	answer, _ := r.in.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

// Run executes the diagnostic checks in order and returns an exit code
// (0=all pass, 1=any fail). Checks after the first failure are skipped.
func Run(cfgPath string) int {
	resetTerminal()
	setupInterruptHandler()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("config: %v\n", err)
		return 1
	}
	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("FAIL: cannot connect to audio: %v\n", err)
		return 1
	}
	defer actx.Close()

	env := &Env{
		Audio:       actx,
		Config:      cfg,
		In:          os.Stdin,
		Out:         os.Stdout,
		Interactive: true,
		RecordFor:   3 * time.Second,
	}
	fmt.Println("voxcap doctor - interactive system diagnostics")
	fmt.Println("==============================================")
	return RunChecks(env, nil)
}

// RunChecks is Run with the environment supplied by the caller. player may
// be nil, which skips the playback check.
func RunChecks(env *Env, player Previewer) int {
	env.Player = player
	r := &run{env: env, in: bufio.NewReader(env.In)}

	checks := []check{
		{"Microphone", checkMicrophone},
		{"Encoding", checkEncoding},
		{"Playback", checkPlayback},
		{"Storage", checkStorage},
		{"Clipboard", checkClipboard},
	}

	allPass := true
	for i, c := range checks {
		r.printf("\n[%d/%d] %s\n", i+1, len(checks), c.name)
		if !c.run(r) {
			allPass = false
			break
		}
	}

	r.printf("\n")
	if allPass {
		r.printf("All checks passed!\n")
		return 0
	}
	r.printf("Some checks failed. See details above.\n")
	return 1
}

func checkMicrophone(r *run) bool {
	env := r.env
	device := env.Device
	if device == nil {
		devices, err := env.Audio.Devices()
		if err != nil {
			r.printf("  FAIL: cannot list devices: %v\n", err)
			return false
		}
		if len(devices) == 0 {
			r.printf("  FAIL: no capture devices found\n")
			return false
		}
		device = &devices[0]
		if len(devices) > 1 && env.Interactive {
			r.printf("Select input device:\n")
			for i, d := range devices {
				r.printf("  %d. %s\n", i+1, d.Name)
			}
			r.printf("Choice [1-%d]: ", len(devices))
			choice, _ := r.in.ReadString('\n')
			idx := 1
			if s := strings.TrimSpace(choice); s != "" {
				fmt.Sscanf(s, "%d", &idx)
			}
			if idx < 1 || idx > len(devices) {
				r.printf("  FAIL: invalid choice\n")
				return false
			}
			device = &devices[idx-1]
		}
	}
	r.printf("Using device: %s\n", device.Name)
	if audio.IsBluetooth(device.Name) {
		r.printf("  Warning: Bluetooth headset mics record narrowband audio\n")
	}

	tap, err := audio.NewTap(env.Config.Audio.FFTSize)
	if err != nil {
		r.printf("  FAIL: %v\n", err)
		return false
	}
	rec := recorder.New(env.Audio, device, recorder.Config{
		SampleRate: env.Config.Audio.SampleRate,
		Channels:   env.Config.Audio.Channels,
		Format:     env.Config.Audio.Container,
	}, tap)

	if env.Interactive {
		r.printf("Press Enter and speak for %s...", env.RecordFor)
		r.in.ReadString('\n')
	}

	if err := rec.Start(); err != nil {
		r.printf("  FAIL: %v\n", err)
		return false
	}

	var peak float64
	ctx, cancel := context.WithTimeout(context.Background(), env.RecordFor)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for range tap.Frames(gctx, 100*time.Millisecond) {
			peak = max(peak, tap.Level())
		}
		return nil
	})
	g.Go(func() error {
		r.printf("  Recording")
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				r.printf(" done\n")
				return nil
			case <-ticker.C:
				r.printf(".")
			}
		}
	})
	g.Wait()

	res, err := rec.Stop()
	if err != nil {
		r.printf("  FAIL: %v\n", err)
		return false
	}
	if len(res.Raw) == 0 {
		r.printf("  FAIL: no audio captured\n")
		return false
	}
	r.printf("  Captured %d frames (%.1f KB %s), peak level %.3f\n",
		res.Session.Frames, float64(len(res.Raw))/1024, res.Stats.Format, peak)
	if peak < 0.001 {
		r.printf("  Warning: input is silent. Is the microphone muted?\n")
	}
	r.raw = res.Raw
	r.printf("  PASS: microphone captured audio\n")
	return true
}

func checkEncoding(r *run) bool {
	cfg := r.env.Config.Audio
	p, err := pipeline.New(nil, cfg.SampleRate, cfg.Channels)
	if err != nil {
		r.printf("  FAIL: %v\n", err)
		return false
	}

	start := time.Now()
	wav, err := p.ExportAsWav(r.raw)
	if err != nil {
		r.printf("  FAIL: WAV export: %v\n", err)
		return false
	}
	mp3, err := p.ExportAsMp3(r.raw)
	if err != nil {
		r.printf("  FAIL: MP3 export: %v\n", err)
		return false
	}
	r.printf("  WAV %.1f KB, MP3 %.1f KB in %s\n",
		float64(len(wav.Bytes()))/1024, float64(len(mp3.Bytes()))/1024, time.Since(start).Round(time.Millisecond))

	if decode.Sniff(mp3.Bytes()) != decode.KindMP3 {
		r.printf("  FAIL: MP3 output is not an MPEG audio stream\n")
		return false
	}
	buf, err := decode.Decode(mp3.Bytes(), cfg.SampleRate, cfg.Channels)
	if err != nil {
		r.printf("  FAIL: MP3 output does not decode: %v\n", err)
		return false
	}
	if buf.SampleRate != cfg.SampleRate {
		r.printf("  FAIL: MP3 decodes at %d Hz, want %d Hz\n", buf.SampleRate, cfg.SampleRate)
		return false
	}
	r.buf, err = p.Decode(r.raw)
	if err != nil {
		r.printf("  FAIL: %v\n", err)
		return false
	}
	r.printf("  PASS: WAV and MP3 exports are valid\n")
	return true
}

func checkPlayback(r *run) bool {
	if r.env.Player == nil || !r.env.Interactive {
		r.printf("  SKIP: no playback in this mode\n")
		return true
	}
	r.printf("  Playing the take back...\n")
	if err := r.env.Player.Preview(context.Background(), r.buf); err != nil {
		r.printf("  FAIL: %v\n", err)
		return false
	}
	if !r.confirm("Did you hear your recording?") {
		r.printf("  FAIL: playback not confirmed\n")
		return false
	}
	r.printf("  PASS: playback verified by user\n")
	return true
}

func checkStorage(r *run) bool {
	for _, dir := range []string{r.env.Config.Library.Dir, r.env.Config.Export.Dir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			r.printf("  FAIL: %v\n", err)
			return false
		}
		f, err := os.CreateTemp(dir, ".voxcap-doctor-*")
		if err != nil {
			r.printf("  FAIL: %s is not writable: %v\n", dir, err)
			return false
		}
		f.Close()
		os.Remove(f.Name())
		abs, _ := filepath.Abs(dir)
		r.printf("  %s is writable\n", abs)
	}
	r.printf("  PASS: library and export directories are writable\n")
	return true
}

func checkClipboard(r *run) bool {
	const sentinel = "voxcap-doctor-test"
	if err := clipboard.Copy(sentinel); err != nil {
		r.printf("  SKIP: %v\n", err)
		return true
	}
	got, err := clipboard.Read()
	if err != nil {
		r.printf("  FAIL: could not read clipboard: %v\n", err)
		return false
	}
	if got != sentinel {
		r.printf("  FAIL: clipboard read back %q, want %q\n", got, sentinel)
		return false
	}
	r.printf("  PASS: clipboard round trip\n")
	return true
}

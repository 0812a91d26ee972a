package doctor

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voxcap/audio"
	"voxcap/config"
)

func sinePCM(rate, seconds int) []byte {
	pcm := make([]byte, rate*seconds*2)
	for i := 0; i < rate*seconds; i++ {
		v := int16(12000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}

func testEnv(t *testing.T, actx audio.Context, in string) (*Env, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.Audio.SampleRate = 16000
	cfg.Audio.Channels = 1
	cfg.Library.Dir = filepath.Join(t.TempDir(), "library")
	cfg.Export.Dir = filepath.Join(t.TempDir(), "export")
	out := &bytes.Buffer{}
	return &Env{
		Audio:     actx,
		Config:    cfg,
		In:        strings.NewReader(in),
		Out:       out,
		RecordFor: 200 * time.Millisecond,
	}, out
}

func TestChecksPassOnFakeInput(t *testing.T) {
	env, out := testEnv(t, audio.NewFakeContextPCM(sinePCM(16000, 1), 16000, 1, false), "")
	if code := RunChecks(env, nil); code != 0 {
		t.Fatalf("exit code = %d\n%s", code, out)
	}
	for _, want := range []string{"[1/5] Microphone", "PASS: microphone captured audio", "PASS: WAV and MP3 exports are valid", "All checks passed!"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestNoDevicesFails(t *testing.T) {
	fake := audio.NewFakeContextPCM(sinePCM(16000, 1), 16000, 1, false)
	fake.RemoveDevices()
	env, out := testEnv(t, fake, "")
	if code := RunChecks(env, nil); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(out.String(), "no capture devices found") {
		t.Errorf("output:\n%s", out)
	}
	if strings.Contains(out.String(), "[2/5]") {
		t.Error("later checks ran after a failure")
	}
}

type fakePlayer struct{ played int }

func (p *fakePlayer) Preview(_ context.Context, buf *audio.Buffer) error {
	p.played = buf.Frames()
	return nil
}

func TestPlaybackConfirmation(t *testing.T) {
	env, out := testEnv(t, audio.NewFakeContextPCM(sinePCM(16000, 1), 16000, 1, false), "\nn\n")
	env.Interactive = true
	p := &fakePlayer{}
	if code := RunChecks(env, p); code != 1 {
		t.Fatalf("exit code = %d, want 1 after denied confirmation\n%s", code, out)
	}
	if p.played != 16000 {
		t.Errorf("previewed %d frames, want 16000", p.played)
	}
	if !strings.Contains(out.String(), "FAIL: playback not confirmed") {
		t.Errorf("output:\n%s", out)
	}
}

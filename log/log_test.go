package log

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("VOXCAP_LOG_PATH", "/tmp/voxcap-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/voxcap-env-log" {
		t.Errorf("got %q, want /tmp/voxcap-env-log", got)
	}
}

func TestResolveDirFlagBeatsEnv(t *testing.T) {
	t.Setenv("VOXCAP_LOG_PATH", "/tmp/from-env")
	got, _ := ResolveDir("/tmp/from-flag")
	if got != "/tmp/from-flag" {
		t.Errorf("got %q, want /tmp/from-flag", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("VOXCAP_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("expected non-empty default directory")
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"diagnostics_log.txt", "exports_log.txt"} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestEventsReachDiagnostics(t *testing.T) {
	tmp := setupLogDir(t)
	if err := Init(); err != nil {
		t.Fatal(err)
	}

	SessionStart("abc-123", "fake", "flac", 16000, 1)
	Transition("recording", "paused")
	SessionEnd("abc-123", TakeMetrics{AudioLengthS: 1.5, Chunks: 3})
	Export("mp3", "recording.mp3", 1024, 20*time.Millisecond, nil)
	Export("wav", "recording.wav", 0, time.Millisecond, errors.New("boom"))
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{"session_start", "abc-123", "transition", "session_end", "export", "boom", "pid="} {
		if !strings.Contains(text, want) {
			t.Errorf("diagnostics log missing %q", want)
		}
	}
}

func TestSaved(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	Saved("/home/me/recording.mp3")

	data, err := os.ReadFile(filepath.Join(tmp, "exports_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "/home/me/recording.mp3") {
		t.Errorf("exports_log.txt missing path, got: %q", line)
	}
	// format: "2006-01-02 15:04:05\t[pid]\tpath\n"
	if strings.Count(line, "\t") != 2 {
		t.Errorf("expected tab-separated format, got: %q", line)
	}
}

func TestHelpersBeforeInit(t *testing.T) {
	Close()
	Info("dropped")
	Errorf("dropped %d", 1)
	Saved("/nowhere")
}

func TestOpenCrashFile(t *testing.T) {
	tmp := setupLogDir(t)
	f, err := OpenCrashFile()
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	if _, err := os.Stat(filepath.Join(tmp, "crash_log.txt")); err != nil {
		t.Error(err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}

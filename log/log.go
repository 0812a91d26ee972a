package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	diagName   = "diagnostics_log.txt"
	exportName = "exports_log.txt"
	crashName  = "crash_log.txt"
)

var (
	diagLog    zerolog.Logger
	diagFile   *lumberjack.Logger
	exportFile *os.File
	logMu      sync.Mutex
	logReady   bool
	pid        int
	dir        string
)

// TakeMetrics describes one finished recording.
type TakeMetrics struct {
	AudioLengthS   float64
	RawSizeKB      float64
	EncodedSizeKB  float64
	CompressionPct float64
	EncodeTimeMs   float64
	Chunks         int
	MemoryAllocMB  float64
}

func absFromWd(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

// ResolveDir picks the log directory: the -logpath flag, then
// VOXCAP_LOG_PATH, then the OS default.
func ResolveDir(flagPath string) (string, error) {
	if flagPath != "" {
		return absFromWd(flagPath)
	}
	if envPath := os.Getenv("VOXCAP_LOG_PATH"); envPath != "" {
		return absFromWd(envPath)
	}
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// Init opens the diagnostics log, rotated by size, and the export
// history. Logging helpers are no-ops until it succeeds.
func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	exportFile, err = os.OpenFile(filepath.Join(dir, exportName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	diagFile = &lumberjack.Logger{
		Filename:   filepath.Join(dir, diagName),
		MaxSize:    5, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	// lumberjack opens lazily; write once so the file exists from the start.
	if _, err := diagFile.Write(nil); err != nil {
		exportFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

// OpenCrashFile opens the file the runtime writes fatal errors to.
func OpenCrashFile() (*os.File, error) {
	if err := EnsureDir(); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, crashName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if exportFile != nil {
		exportFile.Close()
		exportFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(id, device, container string, sampleRate, channels int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("id", id).
		Str("device", device).
		Str("container", container).
		Int("rate", sampleRate).
		Int("channels", channels).
		Msg("session_start")
}

func Transition(from, to string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("from", from).
		Str("to", to).
		Msg("transition")
}

func SessionEnd(id string, m TakeMetrics) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("id", id).
		Float64("audio_s", m.AudioLengthS).
		Float64("raw_kb", m.RawSizeKB).
		Float64("encoded_kb", m.EncodedSizeKB).
		Float64("compression_pct", m.CompressionPct).
		Float64("encode_ms", m.EncodeTimeMs).
		Int("chunks", m.Chunks).
		Float64("mem_mb", m.MemoryAllocMB).
		Msg("session_end")
}

func Export(format, name string, size int, d time.Duration, err error) {
	if !logReady {
		return
	}
	ev := diagLog.Info()
	if err != nil {
		ev = diagLog.Error().Err(err)
	}
	ev.Str("format", format).
		Str("name", name).
		Int("bytes", size).
		Int64("ms", d.Milliseconds()).
		Msg("export")
}

// Saved appends a line to the export history: when, which process, and
// where the file went.
func Saved(path string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, path)
	exportFile.WriteString(line)
}

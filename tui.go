package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"voxcap/library"
	"voxcap/recorder"
)

// TUI message types
type RecordingStartMsg struct{ ID string }
type RecordingPausedMsg struct{}
type RecordingResumedMsg struct{}
type RecordingStopMsg struct{ Stats []string }
type ClearedMsg struct{}
type ElapsedMsg struct{ Elapsed time.Duration }
type WaveformMsg struct {
	Frame []uint8
	Level float64
}
type NoSignalMsg struct{ Warn bool }
type ExportedMsg struct {
	Format  string
	Path    string
	Metrics []string
}
type SavedMsg struct{ Entry library.Entry }
type ErrorMsg struct{ Err error }
type DeviceLineMsg struct{ Text string }

// actions is what the keys drive; *app implements it.
type actions interface {
	Toggle() error
	Stop() error
	Clear() error
	Export(format string) (string, error)
	Save(name string) (library.Entry, error)
	Preview(ctx context.Context) error
}

const (
	waveWidth  = 64
	waveHeight = 9
)

type tuiModel struct {
	act      actions
	baseName string

	state       recorder.State
	elapsed     time.Duration
	frame       []uint8
	level       float64
	noSignal    bool
	deviceLine  string
	stats       []string
	lastExport  string
	lastMetrics []string
	errText     string
	width       int

	naming bool
	name   []rune
}

var (
	recStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	pauseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	idleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// one style per row, brightest at the centre line
var waveStyles [waveHeight]lipgloss.Style

var waveColours = [waveHeight]string{"52", "88", "124", "160", "196", "160", "124", "88", "52"}

func init() {
	for i, c := range waveColours {
		waveStyles[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
	}
}

func newTUIModel(act actions, baseName, deviceLine string) tuiModel {
	return tuiModel{act: act, baseName: baseName, deviceLine: deviceLine}
}

func NewTUIProgram(m tuiModel) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen())
}

func (m tuiModel) Init() tea.Cmd { return nil }

// run wraps an action whose outcome reaches the model through the sink.
func run(f func() error) tea.Cmd {
	return func() tea.Msg {
		f()
		return nil
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		if m.naming {
			return m.updateNaming(msg)
		}
		return m.updateKey(msg)

	case RecordingStartMsg:
		m.state = recorder.Recording
		m.elapsed = 0
		m.frame = nil
		m.noSignal = false
		m.stats = nil
		m.lastExport, m.lastMetrics = "", nil
		m.errText = ""

	case RecordingPausedMsg:
		m.state = recorder.Paused
		m.level = 0

	case RecordingResumedMsg:
		m.state = recorder.Recording
		m.noSignal = false

	case RecordingStopMsg:
		m.state = recorder.Stopped
		m.level = 0
		m.stats = msg.Stats

	case ClearedMsg:
		m.state = recorder.Idle
		m.elapsed = 0
		m.frame = nil
		m.stats = nil
		m.lastExport, m.lastMetrics = "", nil

	case ElapsedMsg:
		m.elapsed = msg.Elapsed

	case WaveformMsg:
		if m.state == recorder.Recording {
			m.frame = msg.Frame
			m.level = m.level*0.6 + msg.Level*0.4
		}

	case NoSignalMsg:
		m.noSignal = msg.Warn

	case ExportedMsg:
		m.lastExport = fmt.Sprintf("%s → %s", strings.ToUpper(msg.Format), msg.Path)
		m.lastMetrics = msg.Metrics
		m.errText = ""

	case SavedMsg:
		m.lastExport = fmt.Sprintf("library #%d %q", msg.Entry.ID, msg.Entry.Filename)
		m.lastMetrics = nil
		m.errText = ""

	case ErrorMsg:
		m.errText = msg.Err.Error()

	case DeviceLineMsg:
		m.deviceLine = msg.Text
	}
	return m, nil
}

func (m tuiModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case " ", "r":
		return m, run(m.act.Toggle)
	case "s":
		return m, run(m.act.Stop)
	case "c":
		return m, run(m.act.Clear)
	case "w":
		return m, run(func() error { _, err := m.act.Export("wav"); return err })
	case "m":
		return m, run(func() error { _, err := m.act.Export("mp3"); return err })
	case "p":
		return m, run(func() error { return m.act.Preview(context.Background()) })
	case "l":
		if m.state == recorder.Stopped {
			m.naming = true
			m.name = []rune(m.baseName)
		}
	}
	return m, nil
}

func (m tuiModel) updateNaming(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.naming = false
	case tea.KeyEnter:
		m.naming = false
		name := string(m.name)
		return m, run(func() error { _, err := m.act.Save(name); return err })
	case tea.KeyBackspace:
		if len(m.name) > 0 {
			m.name = m.name[:len(m.name)-1]
		}
	case tea.KeySpace:
		m.name = append(m.name, ' ')
	case tea.KeyRunes:
		m.name = append(m.name, msg.Runes...)
	}
	return m, nil
}

func (m tuiModel) View() string {
	var lines []string

	lines = append(lines, renderWaveform(m.frame, waveWidth, waveHeight)...)
	lines = append(lines, "")

	timer := recorder.FormatElapsed(m.elapsed)
	switch m.state {
	case recorder.Recording:
		lines = append(lines, recStyle.Render("● REC "+timer)+"  "+dimStyle.Render(levelBar(m.level, 20)))
		if m.noSignal {
			lines = append(lines, warnStyle.Render("  ⚠ no input signal"))
		}
	case recorder.Paused:
		lines = append(lines, pauseStyle.Render("‖ PAUSED "+timer))
	case recorder.Stopped:
		lines = append(lines, idleStyle.Render("■ STOPPED "+timer))
	default:
		lines = append(lines, idleStyle.Render("○ STANDBY"))
	}
	if m.deviceLine != "" {
		lines = append(lines, idleStyle.Render(m.deviceLine))
	}

	if len(m.stats) > 0 {
		lines = append(lines, "")
		for _, s := range m.stats {
			lines = append(lines, dimStyle.Render(s))
		}
	}
	if m.lastExport != "" {
		lines = append(lines, "", okStyle.Render("✓ "+m.lastExport))
		for _, s := range m.lastMetrics {
			lines = append(lines, dimStyle.Render("  "+s))
		}
	}
	if m.errText != "" {
		lines = append(lines, "", warnStyle.Render("error: "+m.errText))
	}

	lines = append(lines, "")
	if m.naming {
		lines = append(lines, "Save as: "+string(m.name)+"█", helpStyle.Render("enter to save, esc to cancel"))
	} else {
		lines = append(lines, m.help())
	}
	lines = append(lines, helpStyle.Render("voxcap "+version))
	return strings.Join(lines, "\n")
}

func (m tuiModel) help() string {
	item := func(k, what string) string { return keyStyle.Render(k) + helpStyle.Render(" "+what) }
	var items []string
	switch m.state {
	case recorder.Recording:
		items = []string{item("space", "pause"), item("s", "stop")}
	case recorder.Paused:
		items = []string{item("space", "resume"), item("s", "stop")}
	case recorder.Stopped:
		items = []string{item("space", "new take"), item("m", "mp3"), item("w", "wav"), item("l", "library"), item("p", "play"), item("c", "clear")}
	default:
		items = []string{item("space", "record")}
	}
	items = append(items, item("q", "quit"))
	return strings.Join(items, helpStyle.Render("  "))
}

func levelBar(level float64, width int) string {
	n := min(int(level*float64(width)*4), width)
	return strings.Repeat("▮", n) + strings.Repeat("▯", width-n)
}

// renderWaveform draws one time-domain frame as a line trace. 128 is
// the centre row; each column shows the sample nearest to it. A nil frame
// draws silence.
func renderWaveform(frame []uint8, width, height int) []string {
	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}
	for x := 0; x < width; x++ {
		v := 128
		if len(frame) > 0 {
			v = int(frame[x*len(frame)/width])
		}
		// row 0 is the top; 255 maps to it and 0 to the bottom
		y := ((255-v)*(height-1) + 127) / 255
		grid[y][x] = '•'
	}
	out := make([]string, height)
	for i, row := range grid {
		out[i] = waveStyles[i%waveHeight].Render(string(row))
	}
	return out
}

// tuiSink forwards app events into the running program.
type tuiSink struct{ p *tea.Program }

func (s *tuiSink) RecordingStart(id string)              { s.p.Send(RecordingStartMsg{ID: id}) }
func (s *tuiSink) RecordingPaused()                      { s.p.Send(RecordingPausedMsg{}) }
func (s *tuiSink) RecordingResumed()                     { s.p.Send(RecordingResumedMsg{}) }
func (s *tuiSink) RecordingStop(stats []string)          { s.p.Send(RecordingStopMsg{Stats: stats}) }
func (s *tuiSink) Cleared()                              { s.p.Send(ClearedMsg{}) }
func (s *tuiSink) Tick(d time.Duration)                  { s.p.Send(ElapsedMsg{Elapsed: d}) }
func (s *tuiSink) Waveform(frame []uint8, level float64) { s.p.Send(WaveformMsg{Frame: frame, Level: level}) }
func (s *tuiSink) NoSignal(warn bool)                    { s.p.Send(NoSignalMsg{Warn: warn}) }
func (s *tuiSink) Saved(e library.Entry)                 { s.p.Send(SavedMsg{Entry: e}) }
func (s *tuiSink) Error(err error)                       { s.p.Send(ErrorMsg{Err: err}) }
func (s *tuiSink) DeviceLine(text string)                { s.p.Send(DeviceLineMsg{Text: text}) }

func (s *tuiSink) Exported(format, path string, metrics []string) {
	s.p.Send(ExportedMsg{Format: format, Path: path, Metrics: metrics})
}

package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"voxcap/library"
	"voxcap/recorder"
)

type fakeActions struct {
	calls []string
	saved string
}

func (f *fakeActions) Toggle() error { f.calls = append(f.calls, "toggle"); return nil }
func (f *fakeActions) Stop() error   { f.calls = append(f.calls, "stop"); return nil }
func (f *fakeActions) Clear() error  { f.calls = append(f.calls, "clear"); return nil }

func (f *fakeActions) Export(format string) (string, error) {
	f.calls = append(f.calls, "export "+format)
	return "", nil
}

func (f *fakeActions) Save(name string) (library.Entry, error) {
	f.calls = append(f.calls, "save")
	f.saved = name
	return library.Entry{}, nil
}

func (f *fakeActions) Preview(context.Context) error {
	f.calls = append(f.calls, "preview")
	return nil
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

// press sends msg and runs the resulting command, if any.
func press(t *testing.T, m tuiModel, msg tea.Msg) tuiModel {
	t.Helper()
	next, cmd := m.Update(msg)
	if cmd != nil {
		cmd()
	}
	return next.(tuiModel)
}

func TestKeysDriveActions(t *testing.T) {
	tests := []struct {
		key  tea.KeyMsg
		want string
	}{
		{tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, "toggle"},
		{runes("r"), "toggle"},
		{runes("s"), "stop"},
		{runes("c"), "clear"},
		{runes("w"), "export wav"},
		{runes("m"), "export mp3"},
		{runes("p"), "preview"},
	}
	for _, tt := range tests {
		act := &fakeActions{}
		press(t, newTUIModel(act, "recording", ""), tt.key)
		if len(act.calls) != 1 || act.calls[0] != tt.want {
			t.Errorf("key %q: calls = %v, want [%s]", tt.key.String(), act.calls, tt.want)
		}
	}
}

func TestQuitKey(t *testing.T) {
	_, cmd := newTUIModel(&fakeActions{}, "recording", "").Update(runes("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestStateMessages(t *testing.T) {
	m := newTUIModel(&fakeActions{}, "recording", "mic: fake")
	m = press(t, m, RecordingStartMsg{ID: "x"})
	if m.state != recorder.Recording {
		t.Fatalf("state = %v", m.state)
	}
	if !strings.Contains(m.View(), "REC 00:00") {
		t.Error("view does not show the recording timer")
	}

	m = press(t, m, RecordingPausedMsg{})
	if !strings.Contains(m.View(), "PAUSED") {
		t.Error("view does not show paused")
	}

	m = press(t, m, RecordingStopMsg{Stats: []string{"audio  1.0s"}})
	view := m.View()
	if m.state != recorder.Stopped || !strings.Contains(view, "audio  1.0s") {
		t.Errorf("stopped view:\n%s", view)
	}

	m = press(t, m, ErrorMsg{Err: errors.New("boom")})
	if !strings.Contains(m.View(), "error: boom") {
		t.Error("error not shown")
	}

	m = press(t, m, ClearedMsg{})
	if m.state != recorder.Idle || !strings.Contains(m.View(), "STANDBY") {
		t.Error("clear did not return to standby")
	}
}

func TestWaveformIgnoredWhenNotRecording(t *testing.T) {
	m := newTUIModel(&fakeActions{}, "recording", "")
	m = press(t, m, WaveformMsg{Frame: []uint8{255}, Level: 1})
	if m.frame != nil {
		t.Error("frame kept while idle")
	}
}

func TestNamingPrompt(t *testing.T) {
	act := &fakeActions{}
	m := newTUIModel(act, "recording", "")

	// only a stopped take can be named
	m = press(t, m, runes("l"))
	if m.naming {
		t.Fatal("naming opened while idle")
	}

	m = press(t, m, RecordingStopMsg{})
	m = press(t, m, runes("l"))
	if !m.naming || string(m.name) != "recording" {
		t.Fatalf("naming = %v, name = %q", m.naming, string(m.name))
	}
	for range "recording" {
		m = press(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	}
	m = press(t, m, runes("my"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	// keys that normally act are plain text here
	m = press(t, m, runes("s"))
	if len(act.calls) != 0 {
		t.Fatalf("actions ran while naming: %v", act.calls)
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.naming {
		t.Error("prompt still open after enter")
	}
	if act.saved != "my s" {
		t.Errorf("saved %q, want %q", act.saved, "my s")
	}
}

func TestNamingEscCancels(t *testing.T) {
	act := &fakeActions{}
	m := newTUIModel(act, "recording", "")
	m = press(t, m, RecordingStopMsg{})
	m = press(t, m, runes("l"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.naming || len(act.calls) != 0 {
		t.Errorf("naming = %v, calls = %v", m.naming, act.calls)
	}
}

func stripStyle(s string) string {
	var b strings.Builder
	inEsc := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEsc = true
		case inEsc:
			if r == 'm' {
				inEsc = false
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func TestRenderWaveformSilence(t *testing.T) {
	rows := renderWaveform(nil, 16, waveHeight)
	if len(rows) != waveHeight {
		t.Fatalf("got %d rows", len(rows))
	}
	for i, row := range rows {
		plain := stripStyle(row)
		dots := strings.Count(plain, "•")
		if i == waveHeight/2 && dots != 16 {
			t.Errorf("centre row has %d dots, want 16", dots)
		}
		if i != waveHeight/2 && dots != 0 {
			t.Errorf("row %d has %d dots, want 0", i, dots)
		}
	}
}

func TestRenderWaveformExtremes(t *testing.T) {
	rows := renderWaveform([]uint8{255, 0}, 2, waveHeight)
	top, bottom := stripStyle(rows[0]), stripStyle(rows[waveHeight-1])
	if []rune(top)[0] != '•' || []rune(top)[1] != ' ' {
		t.Errorf("top row = %q", top)
	}
	if []rune(bottom)[1] != '•' || []rune(bottom)[0] != ' ' {
		t.Errorf("bottom row = %q", bottom)
	}
}

func TestLevelBar(t *testing.T) {
	if got := levelBar(0, 4); got != "▯▯▯▯" {
		t.Errorf("silent bar = %q", got)
	}
	if got := levelBar(1, 4); got != "▮▮▮▮" {
		t.Errorf("full bar = %q", got)
	}
}

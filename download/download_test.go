package download

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"voxcap/pipeline"
)

func TestHeadlessSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	d := New(dir, nil)
	a := pipeline.Artifact{Bytes: []byte("mp3"), MimeType: pipeline.MimeMP3, SuggestedName: "take.mp3"}

	want := []string{"take.mp3", "take (1).mp3", "take (2).mp3"}
	for _, name := range want {
		path, err := d.Save(a)
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		if filepath.Base(path) != name {
			t.Errorf("path = %s, want %s", path, name)
		}
		data, err := os.ReadFile(path)
		if err != nil || string(data) != "mp3" {
			t.Errorf("content = %q, %v", data, err)
		}
	}
}

func TestDefaultName(t *testing.T) {
	d := New(t.TempDir(), nil)
	path, err := d.Save(pipeline.Artifact{Bytes: []byte{1}})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "recording.mp3" {
		t.Errorf("name = %s, want recording.mp3", filepath.Base(path))
	}
}

func TestPrompt(t *testing.T) {
	dir := t.TempDir()
	chosen := filepath.Join(dir, "chosen.mp3")
	var asked string
	d := New(dir, func(s string) (string, error) {
		asked = s
		return chosen, nil
	})
	path, err := d.Save(pipeline.Artifact{Bytes: []byte{1}, SuggestedName: "x.mp3"})
	if err != nil {
		t.Fatal(err)
	}
	if asked != "x.mp3" || path != chosen {
		t.Errorf("asked %q, saved to %s", asked, path)
	}
}

func TestPromptCanceled(t *testing.T) {
	dir := t.TempDir()
	d := New(dir, func(string) (string, error) { return "", ErrCanceled })
	if _, err := d.Save(pipeline.Artifact{Bytes: []byte{1}, SuggestedName: "x.mp3"}); !errors.Is(err, ErrCanceled) {
		t.Fatalf("err = %v, want ErrCanceled", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("canceled save wrote %d files", len(entries))
	}
}

func TestPromptFailureFallsBack(t *testing.T) {
	dir := t.TempDir()
	d := New(dir, func(string) (string, error) { return "", errors.New("no display") })
	path, err := d.Save(pipeline.Artifact{Bytes: []byte{1}, SuggestedName: "x.wav"})
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "x.wav") {
		t.Errorf("path = %s", path)
	}
}

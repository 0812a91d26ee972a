// Package download hands an exported artifact to the user as a file,
// through a native save dialog or straight into a directory when there is
// no desktop to show one on.
package download

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ncruces/zenity"

	"voxcap/pipeline"
)

var ErrCanceled = errors.New("download canceled")

// Prompt asks where to save a file called suggested and returns the
// chosen path.
type Prompt func(suggested string) (string, error)

// Dialog prompts with the platform save dialog.
func Dialog(suggested string) (string, error) {
	path, err := zenity.SelectFileSave(
		zenity.Title("Save recording"),
		zenity.Filename(suggested),
		zenity.ConfirmOverwrite(),
		fileFilter(suggested),
	)
	if errors.Is(err, zenity.ErrCanceled) {
		return "", ErrCanceled
	}
	return path, err
}

func fileFilter(name string) zenity.FileFilter {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		return zenity.FileFilter{Name: "WAV audio", Patterns: []string{"*.wav"}, CaseFold: true}
	default:
		return zenity.FileFilter{Name: "MP3 audio", Patterns: []string{"*.mp3"}, CaseFold: true}
	}
}

type Downloader struct {
	dir    string
	prompt Prompt
}

// New returns a downloader that writes into dir without asking. A non-nil
// prompt is asked first; dir is then only its fallback when the prompt
// cannot run.
func New(dir string, prompt Prompt) *Downloader {
	if dir == "" {
		dir = "."
	}
	return &Downloader{dir: dir, prompt: prompt}
}

// Save writes the artifact and returns where it landed.
func (d *Downloader) Save(a pipeline.Artifact) (string, error) {
	name := a.SuggestedName
	if name == "" {
		name = pipeline.DefaultBaseName + ".mp3"
	}

	var path string
	if d.prompt != nil {
		p, err := d.prompt(name)
		switch {
		case errors.Is(err, ErrCanceled):
			return "", ErrCanceled
		case err == nil && p != "":
			path = p
		}
	}
	if path == "" {
		if err := os.MkdirAll(d.dir, 0o755); err != nil {
			return "", fmt.Errorf("download: %w", err)
		}
		path = uniquePath(filepath.Join(d.dir, name))
	}

	if err := os.WriteFile(path, a.Bytes, 0o644); err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	return path, nil
}

// uniquePath appends " (n)" before the extension until path is free.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		p := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return p
		}
	}
}

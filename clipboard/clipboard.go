// Package clipboard puts the location of a saved recording on the system
// clipboard.
package clipboard

import (
	"errors"
	"path/filepath"

	cb "github.com/atotto/clipboard"
)

var ErrUnsupported = errors.New("clipboard: no clipboard utility available")

func Read() (string, error) {
	if cb.Unsupported {
		return "", ErrUnsupported
	}
	return cb.ReadAll()
}

func Copy(text string) error {
	if cb.Unsupported {
		return ErrUnsupported
	}
	return cb.WriteAll(text)
}

// CopyPath copies the absolute form of path.
func CopyPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return abs, Copy(abs)
}

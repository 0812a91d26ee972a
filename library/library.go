// Package library is the local store for finished recordings. Each entry
// is an opaque encoded blob plus a name and a timestamp; the store knows
// nothing about the audio inside.
//
// On disk a library is a directory holding index.msgpack and one
// zstd-compressed blob per entry under blobs/.
package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrBlankFilename = errors.New("library: filename is blank")
	ErrNotFound      = errors.New("library: no such recording")
)

const (
	indexName = "index.msgpack"
	blobDir   = "blobs"
)

type Entry struct {
	ID        int64     `msgpack:"id"`
	Filename  string    `msgpack:"filename"`
	Timestamp time.Time `msgpack:"timestamp"`
	MimeType  string    `msgpack:"mime_type"`
	Size      int       `msgpack:"size"`
}

type index struct {
	NextID  int64   `msgpack:"next_id"`
	Entries []Entry `msgpack:"entries"`
}

type Library struct {
	dir string
	enc *zstd.Encoder
	dec *zstd.Decoder

	mu  sync.Mutex
	idx index
}

// Open loads the library in dir, creating it if needed.
func Open(dir string) (*Library, error) {
	if err := os.MkdirAll(filepath.Join(dir, blobDir), 0o755); err != nil {
		return nil, fmt.Errorf("library: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("library: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("library: zstd decoder: %w", err)
	}
	l := &Library{dir: dir, enc: enc, dec: dec, idx: index{NextID: 1}}

	data, err := os.ReadFile(filepath.Join(dir, indexName))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		l.Close()
		return nil, fmt.Errorf("library: %w", err)
	default:
		if err := msgpack.Unmarshal(data, &l.idx); err != nil {
			l.Close()
			return nil, fmt.Errorf("library: corrupt index: %w", err)
		}
		if l.idx.NextID < 1 {
			l.idx.NextID = 1
		}
	}
	return l, nil
}

func (l *Library) Close() {
	l.enc.Close()
	l.dec.Close()
}

func (l *Library) Dir() string { return l.dir }

// Save stores audio under a fresh id. Ids are never reused, even after
// Delete.
func (l *Library) Save(audio []byte, filename, mimeType string, ts time.Time) (Entry, error) {
	name := strings.TrimSpace(filename)
	if name == "" {
		return Entry{}, ErrBlankFilename
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{
		ID:        l.idx.NextID,
		Filename:  name,
		Timestamp: ts,
		MimeType:  mimeType,
		Size:      len(audio),
	}
	blob := l.enc.EncodeAll(audio, make([]byte, 0, len(audio)/2))
	if err := writeFileAtomic(l.blobPath(e.ID), blob); err != nil {
		return Entry{}, fmt.Errorf("library: writing blob: %w", err)
	}

	next := l.idx
	next.NextID++
	next.Entries = append(slices.Clone(l.idx.Entries), e)
	if err := l.writeIndex(next); err != nil {
		os.Remove(l.blobPath(e.ID))
		return Entry{}, err
	}
	l.idx = next
	return e, nil
}

// List returns every entry in id order.
func (l *Library) List() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := slices.Clone(l.idx.Entries)
	slices.SortFunc(out, func(a, b Entry) int { return int(a.ID - b.ID) })
	return out
}

func (l *Library) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.idx.Entries)
}

// Get returns the entry and its decompressed audio.
func (l *Library) Get(id int64) (Entry, []byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.find(id)
	if i < 0 {
		return Entry{}, nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	e := l.idx.Entries[i]
	blob, err := os.ReadFile(l.blobPath(id))
	if err != nil {
		return Entry{}, nil, fmt.Errorf("library: reading blob %d: %w", id, err)
	}
	audio, err := l.dec.DecodeAll(blob, make([]byte, 0, e.Size))
	if err != nil {
		return Entry{}, nil, fmt.Errorf("library: blob %d: %w", id, err)
	}
	return e, audio, nil
}

func (l *Library) Delete(id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.find(id)
	if i < 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	next := l.idx
	next.Entries = slices.Delete(slices.Clone(l.idx.Entries), i, i+1)
	if err := l.writeIndex(next); err != nil {
		return err
	}
	l.idx = next
	if err := os.Remove(l.blobPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("library: removing blob %d: %w", id, err)
	}
	return nil
}

func (l *Library) find(id int64) int {
	return slices.IndexFunc(l.idx.Entries, func(e Entry) bool { return e.ID == id })
}

func (l *Library) blobPath(id int64) string {
	return filepath.Join(l.dir, blobDir, fmt.Sprintf("%d.zst", id))
}

func (l *Library) writeIndex(idx index) error {
	data, err := msgpack.Marshal(&idx)
	if err != nil {
		return fmt.Errorf("library: encoding index: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(l.dir, indexName), data); err != nil {
		return fmt.Errorf("library: writing index: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

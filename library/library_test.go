package library

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) (*Library, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(l.Close)
	return l, dir
}

func TestSaveGetRoundTrip(t *testing.T) {
	l, _ := openTemp(t)
	audio := bytes.Repeat([]byte("ID3\x04frame"), 500)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	e, err := l.Save(audio, "  morning take  ", "audio/mp3", ts)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if e.ID != 1 || e.Filename != "morning take" || e.Size != len(audio) {
		t.Errorf("entry = %+v", e)
	}

	got, data, err := l.Get(e.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(data, audio) {
		t.Error("audio changed through the store")
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, ts)
	}
}

func TestBlankFilename(t *testing.T) {
	l, _ := openTemp(t)
	for _, name := range []string{"", "   ", "\t\n"} {
		if _, err := l.Save([]byte{1}, name, "audio/mp3", time.Now()); !errors.Is(err, ErrBlankFilename) {
			t.Errorf("Save(%q) err = %v, want ErrBlankFilename", name, err)
		}
	}
	if l.Len() != 0 {
		t.Errorf("Len = %d after rejected saves", l.Len())
	}
}

func TestIDsIncrementAndSurviveReopen(t *testing.T) {
	l, dir := openTemp(t)
	for _, name := range []string{"a", "b", "c"} {
		if _, err := l.Save([]byte(name), name, "audio/mp3", time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Delete(3); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	l2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()

	list := l2.List()
	if len(list) != 2 || list[0].Filename != "a" || list[1].Filename != "b" {
		t.Fatalf("List = %+v", list)
	}
	e, err := l2.Save([]byte("d"), "d", "audio/mp3", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if e.ID != 4 {
		t.Errorf("id after delete and reopen = %d, want 4", e.ID)
	}
}

func TestDelete(t *testing.T) {
	l, dir := openTemp(t)
	e, err := l.Save([]byte("x"), "x", "audio/wav", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Delete(e.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := l.Get(e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete err = %v, want ErrNotFound", err)
	}
	if err := l.Delete(e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(filepath.Join(dir, blobDir, "1.zst")); !os.IsNotExist(err) {
		t.Errorf("blob still on disk: %v", err)
	}
}

func TestCorruptIndex(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, indexName), []byte{0xc1}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(dir); err == nil {
		t.Fatal("expected error for corrupt index")
	}
}

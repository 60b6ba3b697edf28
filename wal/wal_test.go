package wal

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/saturnkv/saturnkv/types"
)

func TestWALAppendAndScan(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	w, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	entries := []types.Entry{
		types.NewPut([]byte("a"), []byte("1")),
		types.NewPut([]byte("b"), []byte("2")),
		types.NewDelete([]byte("a")),
	}
	for _, e := range entries {
		if err := w.Append(e); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	var got []types.Entry
	err = Scan(path, nil, func(e types.Entry) error {
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(got), len(entries))
	}
	for i, e := range entries {
		if got[i].Op != e.Op || !bytes.Equal(got[i].Key, e.Key) || !bytes.Equal(got[i].Value, e.Value) {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], e)
		}
	}
}

func TestWALReopenResumesAppending(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	w, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Append(types.NewPut([]byte("a"), []byte("1"))); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	w2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w2.Append(types.NewPut([]byte("b"), []byte("2"))); err != nil {
		t.Fatal(err)
	}
	if err := w2.Close(); err != nil {
		t.Fatal(err)
	}

	var keys []string
	err = Scan(path, nil, func(e types.Entry) error {
		keys = append(keys, string(e.Key))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("keys = %v, want [a b]", keys)
	}
}

func TestScanMissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.log")

	var n int
	err := Scan(path, nil, func(types.Entry) error {
		n++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("got %d entries from a missing file, want 0", n)
	}
}

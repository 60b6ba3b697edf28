// Package wal implements a LevelDB-style write-ahead log: a
// block-aligned, checksummed, record-fragmented append log (this
// file's WAL type) built on the framing layer in writer.go/reader.go,
// with an Entry codec (entry.go) layered on top so callers append and
// scan typed Put/Delete records instead of raw bytes.
package wal

import (
	"io"
	"os"
	"sync"

	"github.com/saturnkv/saturnkv/types"
)

// WAL is a single, indefinitely-appended log file. It is not rotated
// or truncated; every restart replays the whole file (see the engine
// package's recovery path).
type WAL struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *Writer
}

// Open creates the log file if it doesn't exist, or reopens it and
// resumes appending after its current contents.
func Open(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}

	return &WAL{
		path:   path,
		file:   f,
		writer: NewWriterAt(f, info.Size()),
	}, nil
}

// Path returns the WAL's file path.
func (w *WAL) Path() string {
	return w.path
}

// Append encodes e and writes it as one logical record, then fsyncs
// the file so the write survives a crash before returning.
func (w *WAL) Append(e types.Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.AddRecord(EncodeEntry(e)); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close closes the underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// Scan opens an independent read-only handle on the log and replays
// every decodable entry, in order, to fn. Framing corruption before
// the final partial record is reported to reporter (nil drops
// reports); a torn final record at the tail is not reported at all. A
// decode error (malformed entry payload that otherwise passed framing
// and checksum) aborts the scan and is returned to the caller.
func Scan(path string, reporter Reporter, fn func(types.Entry) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	r := NewReader(f, reporter, true, 0)
	var record []byte
	for {
		ok, err := r.ReadRecord(&record)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		entry, err := DecodeEntry(record)
		if err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
}

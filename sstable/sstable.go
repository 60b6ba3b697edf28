package sstable

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/saturnkv/saturnkv/memtable"
)

// ErrNotFound is the engine's Get result when a key is absent
// (including a key whose only trace is a tombstone). Table.Get does
// not return it; it reports absence through its Lookup result.
var ErrNotFound = errors.New("sstable: not found")

// Lookup classifies the three outcomes of a point read against a
// single table: the Bloom filter or index ruled the key out, the
// index led to a live Put, or it led to a Delete tombstone. The
// engine's newest-to-oldest scan stops at FoundTombstone without
// consulting older tables, and keeps scanning past NotPresent.
type Lookup int

const (
	NotPresent Lookup = iota
	FoundValue
	FoundTombstone
)

// Table is an immutable, already-written SSTable: a file path plus
// the in-memory index and Bloom filter built from its key set. Tables
// are never mutated or deleted once created.
type Table struct {
	path  string
	id    uint64
	index map[string]int64
	bloom *bloom.BloomFilter
	cache *DescriptorCache // optional; nil means open a fresh handle per read
}

// Path returns the table's backing file path.
func (t *Table) Path() string { return t.path }

// ID returns the monotonic SSTable number embedded in the filename.
func (t *Table) ID() uint64 { return t.id }

// SetDescriptorCache attaches a descriptor cache that Get uses instead
// of opening a fresh file handle per lookup.
func (t *Table) SetDescriptorCache(c *DescriptorCache) {
	t.cache = c
}

// Keys returns every key in the table's index, in no particular
// order. Used to build a merged iteration view; point lookups should
// use Get instead.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.index))
	for k := range t.index {
		keys = append(keys, k)
	}
	return keys
}

// Write drains an in-memory memtable to a new file at path: live
// entries first in key order, then tombstones in key order, each
// recorded in the index and added to the Bloom filter as it is
// written. The live and tombstone passes never share a key (see
// memtable package invariants), so the index maps each key to exactly
// one offset.
func Write(path string, id uint64, drained *memtable.Drained) (*Table, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriter(f)

	n := drained.Len()
	if n == 0 {
		n = 1 // bloom.NewWithEstimates requires n > 0
	}
	filter := bloom.NewWithEstimates(uint(n), 0.01)
	index := make(map[string]int64, n)
	offset := int64(0)

	countingWrite := func(write func(io.Writer) error) error {
		cw := &countingWriter{w: w}
		if err := write(cw); err != nil {
			return err
		}
		offset += cw.n
		return nil
	}

	for rec := range drained.Live() {
		entryOffset := offset
		if err := countingWrite(func(w io.Writer) error {
			return writeEntry(w, tagPut, rec.Key, rec.Value.Value, rec.Value.Seq)
		}); err != nil {
			f.Close()
			return nil, err
		}
		index[string(rec.Key)] = entryOffset
		filter.Add(rec.Key)
	}

	for rec := range drained.Tombstones() {
		entryOffset := offset
		if err := countingWrite(func(w io.Writer) error {
			return writeEntry(w, tagDelete, rec.Key, nil, rec.Value)
		}); err != nil {
			f.Close()
			return nil, err
		}
		index[string(rec.Key)] = entryOffset
		filter.Add(rec.Key)
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	return &Table{path: path, id: id, index: index, bloom: filter}, nil
}

// Load rebuilds a Table's in-memory index and Bloom filter by reading
// an existing SSTable file start to finish. Used when the engine
// starts up and discovers tables left over from a prior run: neither
// the index nor the filter is persisted, so they must be recomputed.
func Load(path string, id uint64) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	index := make(map[string]int64)
	var keys [][]byte
	offset := int64(0)

	for {
		entry, err := readEntry(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sstable: loading %s: %w", path, err)
		}

		index[string(entry.key)] = offset
		keys = append(keys, entry.key)
		offset += entrySize(entry)
	}

	n := len(keys)
	if n == 0 {
		n = 1
	}
	filter := bloom.NewWithEstimates(uint(n), 0.01)
	for _, k := range keys {
		filter.Add(k)
	}

	return &Table{path: path, id: id, index: index, bloom: filter}, nil
}

func entrySize(e decodedEntry) int64 {
	size := int64(1 + 8 + 4 + len(e.key))
	if e.op == tagPut {
		size += 4 + int64(len(e.value))
	}
	return size
}

// Get performs a point read: Bloom filter, then index, then a single
// seek-and-decode against the file (via the descriptor cache, if one
// is attached).
func (t *Table) Get(key []byte) ([]byte, Lookup, error) {
	if !t.bloom.Test(key) {
		return nil, NotPresent, nil
	}

	offset, ok := t.index[string(key)]
	if !ok {
		return nil, NotPresent, nil
	}

	f, release, err := t.open()
	if err != nil {
		return nil, NotPresent, err
	}
	defer release()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, NotPresent, err
	}
	entry, err := readEntry(f)
	if err != nil {
		return nil, NotPresent, fmt.Errorf("sstable: reading %s at %d: %w", t.path, offset, err)
	}

	if entry.op == tagDelete {
		return nil, FoundTombstone, nil
	}
	return entry.value, FoundValue, nil
}

func (t *Table) open() (*os.File, func(), error) {
	if t.cache != nil {
		return t.cache.Acquire(t.path)
	}
	f, err := os.Open(t.path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

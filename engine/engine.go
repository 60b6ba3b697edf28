// Package engine wires the WAL, memtable, and SSTable stack together
// into the store's public surface: Open, Put, Delete, Get, Recover,
// Close, and NewIterator.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/saturnkv/saturnkv/memtable"
	"github.com/saturnkv/saturnkv/sstable"
	"github.com/saturnkv/saturnkv/types"
	"github.com/saturnkv/saturnkv/wal"
)

const descriptorCacheCapacity = 64

// Engine is the top-level store. Put/Delete/Get/Close/NewIterator are
// safe for concurrent use; Recover is meant to be called once, right
// after Open, before any concurrent traffic starts.
type Engine struct {
	walPath string
	dataDir string

	walMu sync.Mutex
	wal   *wal.WAL

	memMu sync.Mutex
	mem   *memtable.Memtable

	tablesMu sync.RWMutex
	tables   []*sstable.Table // ascending: index 0 is oldest, last is newest

	registry    *sstable.Registry
	descriptors *sstable.DescriptorCache
}

// Open prepares an engine rooted at walPath: it reloads any SSTables
// left over from a prior run (from the same directory as walPath) and
// opens (or creates) the WAL file for appending. It does not replay
// the WAL into the memtable — call Recover for that.
func Open(walPath string) (*Engine, error) {
	dataDir := filepath.Dir(walPath)

	registry, err := sstable.OpenRegistry(dataDir)
	if err != nil {
		return nil, fmt.Errorf("engine: opening registry: %w", err)
	}

	descriptors := sstable.NewDescriptorCache(descriptorCacheCapacity)

	tables := make([]*sstable.Table, 0, len(registry.Existing()))
	for _, id := range registry.Existing() {
		tbl, err := sstable.Load(registry.PathFor(id), id)
		if err != nil {
			return nil, fmt.Errorf("engine: loading sstable %d: %w", id, err)
		}
		tbl.SetDescriptorCache(descriptors)
		tables = append(tables, tbl)
	}

	w, err := wal.Open(walPath)
	if err != nil {
		return nil, fmt.Errorf("engine: opening wal: %w", err)
	}

	return &Engine{
		walPath:     walPath,
		dataDir:     dataDir,
		wal:         w,
		mem:         memtable.New(memtable.DefaultThreshold),
		tables:      tables,
		registry:    registry,
		descriptors: descriptors,
	}, nil
}

// Put durably appends a Put entry to the WAL, then applies it to the
// memtable. If the memtable becomes full, it is flushed to a new
// SSTable before Put returns.
func (e *Engine) Put(key, value []byte) error {
	if err := e.appendToWAL(types.NewPut(key, value)); err != nil {
		return err
	}

	e.memMu.Lock()
	e.mem.Insert(key, value)
	full := e.mem.IsFull()
	e.memMu.Unlock()

	if full {
		return e.flush()
	}
	return nil
}

// Delete durably appends a Delete entry to the WAL, then applies it to
// the memtable. If the memtable becomes full, it is flushed to a new
// SSTable before Delete returns.
func (e *Engine) Delete(key []byte) error {
	if err := e.appendToWAL(types.NewDelete(key)); err != nil {
		return err
	}

	e.memMu.Lock()
	e.mem.Delete(key)
	full := e.mem.IsFull()
	e.memMu.Unlock()

	if full {
		return e.flush()
	}
	return nil
}

func (e *Engine) appendToWAL(entry types.Entry) error {
	e.walMu.Lock()
	defer e.walMu.Unlock()
	return e.wal.Append(entry)
}

// Get resolves key against the memtable first, then the SSTable stack
// from newest to oldest. It returns sstable.ErrNotFound when the key
// is absent or tombstoned.
func (e *Engine) Get(key []byte) ([]byte, error) {
	e.memMu.Lock()
	value, _, ok := e.mem.Get(key)
	if ok {
		e.memMu.Unlock()
		return value, nil
	}
	tombstoned := e.mem.IsTombstoned(key)
	e.memMu.Unlock()
	if tombstoned {
		return nil, sstable.ErrNotFound
	}

	e.tablesMu.RLock()
	defer e.tablesMu.RUnlock()

	for i := len(e.tables) - 1; i >= 0; i-- {
		value, lookup, err := e.tables[i].Get(key)
		if err != nil {
			return nil, err
		}
		switch lookup {
		case sstable.FoundValue:
			return value, nil
		case sstable.FoundTombstone:
			return nil, sstable.ErrNotFound
		}
	}
	return nil, sstable.ErrNotFound
}

// flush drains the memtable and writes it out as a new SSTable,
// holding the memtable lock only long enough to detach its maps and
// the SSTable-stack lock only long enough to append the new table.
func (e *Engine) flush() error {
	e.memMu.Lock()
	drained := e.mem.Drain()
	e.memMu.Unlock()

	id, path := e.registry.Allocate()
	tbl, err := sstable.Write(path, id, drained)
	if err != nil {
		return fmt.Errorf("engine: flushing memtable to %s: %w", path, err)
	}
	tbl.SetDescriptorCache(e.descriptors)

	e.tablesMu.Lock()
	e.tables = append(e.tables, tbl)
	e.tablesMu.Unlock()
	return nil
}

// stderrReporter prints WAL corruption to stderr during recovery;
// recovery tolerates corruption and continues, so it is reported
// rather than returned.
type stderrReporter struct{}

func (stderrReporter) Corruption(n int, reason string) {
	fmt.Fprintf(os.Stderr, "saturnkv: wal recovery: dropped %d bytes: %s\n", n, reason)
}

// Recover replays the WAL from the beginning into the memtable,
// applying each decoded entry exactly as a live Put/Delete would,
// including sequence number assignment. It does not re-append to the
// WAL. Framing corruption at the tail is tolerated; earlier corruption
// is reported to stderr and does not abort the replay.
func (e *Engine) Recover() error {
	e.memMu.Lock()
	defer e.memMu.Unlock()

	return wal.Scan(e.walPath, stderrReporter{}, func(entry types.Entry) error {
		switch entry.Op {
		case types.OpPut:
			e.mem.Insert(entry.Key, entry.Value)
		case types.OpDelete:
			e.mem.Delete(entry.Key)
		default:
			return fmt.Errorf("engine: recover: unknown operation %v", entry.Op)
		}
		return nil
	})
}

// Close releases the WAL file handle and any cached SSTable
// descriptors. It does not flush the memtable.
func (e *Engine) Close() error {
	var firstErr error

	e.walMu.Lock()
	if err := e.wal.Close(); err != nil {
		firstErr = err
	}
	e.walMu.Unlock()

	if err := e.descriptors.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

type mergedEntry struct {
	value      []byte
	tombstoned bool
}

// NewIterator returns a cursor over every live key in ascending order,
// merging the memtable's live map with the SSTable stack using the
// same newest-wins, tombstone-shadows-older-data precedence Get uses
// for point reads. It is a point-in-time merge, not a snapshot: it
// does not observe mutations made after NewIterator returns, and
// offers no isolation from concurrent writers beyond that.
func (e *Engine) NewIterator() (*Iterator, error) {
	merged := make(map[string]mergedEntry)

	e.tablesMu.RLock()
	tables := append([]*sstable.Table(nil), e.tables...)
	e.tablesMu.RUnlock()

	for _, tbl := range tables {
		for _, key := range tbl.Keys() {
			value, lookup, err := tbl.Get([]byte(key))
			if err != nil {
				return nil, err
			}
			merged[key] = mergedEntry{value: value, tombstoned: lookup == sstable.FoundTombstone}
		}
	}

	e.memMu.Lock()
	for key := range e.mem.TombstoneKeys() {
		merged[string(key)] = mergedEntry{tombstoned: true}
	}
	for rec := range e.mem.Live() {
		merged[string(rec.Key)] = mergedEntry{value: rec.Value.Value}
	}
	e.memMu.Unlock()

	keys := make([]string, 0, len(merged))
	for key, entry := range merged {
		if entry.tombstoned {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := make([][]byte, len(keys))
	for i, key := range keys {
		values[i] = merged[key].value
	}

	return &Iterator{keys: keys, values: values, pos: -1}, nil
}

// Iterator walks a point-in-time merged view in ascending key order.
type Iterator struct {
	keys   []string
	values [][]byte
	pos    int
}

// Next advances the iterator and reports whether a value is available.
func (it *Iterator) Next() bool {
	it.pos++
	return it.pos < len(it.keys)
}

// Key returns the current entry's key. Valid only after a call to
// Next that returned true.
func (it *Iterator) Key() []byte {
	return []byte(it.keys[it.pos])
}

// Value returns the current entry's value. Valid only after a call to
// Next that returned true.
func (it *Iterator) Value() []byte {
	return it.values[it.pos]
}

// Package memtable implements the engine's in-memory, ordered
// write buffer: a live key→(value, sequence) map plus a parallel
// tombstone map, both backed by skip lists so iteration and flush
// always see keys in ascending order.
package memtable

import (
	"iter"

	"github.com/saturnkv/saturnkv/comparator"
	"github.com/saturnkv/saturnkv/types"
)

// DefaultThreshold is the live+tombstone entry count at which a
// Memtable reports itself full and the engine should flush it.
const DefaultThreshold = 1000

// LiveEntry is the value stored in a Memtable's live map: the bytes
// last written plus the sequence number assigned to that write.
type LiveEntry struct {
	Value []byte
	Seq   types.SequenceNumber
}

// Memtable is not safe for concurrent use; callers serialize access
// (the engine does this with a single exclusive lock per operation).
type Memtable struct {
	cmp        comparator.Cmp
	live       *skipList[LiveEntry]
	tombstones *skipList[types.SequenceNumber]
	seq        types.SequenceNumber
	threshold  int
}

// New returns an empty Memtable that reports full once live+tombstone
// entries reach threshold.
func New(threshold int) *Memtable {
	return &Memtable{
		cmp:        comparator.Bytewise,
		live:       newSkipList[LiveEntry](comparator.Bytewise),
		tombstones: newSkipList[types.SequenceNumber](comparator.Bytewise),
		threshold:  threshold,
	}
}

// Insert assigns the next sequence number, writes (value, seq) into
// the live map (overwriting any prior live entry for key), and clears
// any tombstone previously recorded for key.
func (m *Memtable) Insert(key, value []byte) types.SequenceNumber {
	m.seq++
	m.live.Put(key, LiveEntry{Value: value, Seq: m.seq})
	m.tombstones.Delete(key)
	return m.seq
}

// Delete assigns the next sequence number, removes any live entry for
// key, and records a tombstone for key at that sequence number.
func (m *Memtable) Delete(key []byte) types.SequenceNumber {
	m.seq++
	m.live.Delete(key)
	m.tombstones.Put(key, m.seq)
	return m.seq
}

// Get returns the live value for key, if any. It does not consult the
// tombstone map: callers that need to distinguish "never written" from
// "deleted" call IsTombstoned separately.
func (m *Memtable) Get(key []byte) ([]byte, types.SequenceNumber, bool) {
	e, ok := m.live.Get(key)
	if !ok {
		return nil, 0, false
	}
	return e.Value, e.Seq, true
}

// IsTombstoned reports whether key has a pending tombstone.
func (m *Memtable) IsTombstoned(key []byte) bool {
	_, ok := m.tombstones.Get(key)
	return ok
}

// IsFull reports whether the live+tombstone entry count has reached
// the configured threshold.
func (m *Memtable) IsFull() bool {
	return m.live.Len()+m.tombstones.Len() >= m.threshold
}

// Len returns the combined live+tombstone entry count.
func (m *Memtable) Len() int {
	return m.live.Len() + m.tombstones.Len()
}

// Live yields the current live entries in ascending key order, without
// draining the memtable. Used by iteration, not by the flush path.
func (m *Memtable) Live() iter.Seq[Record[LiveEntry]] {
	return m.live.All()
}

// TombstoneKeys yields the current tombstoned keys in ascending order,
// without draining the memtable.
func (m *Memtable) TombstoneKeys() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for rec := range m.tombstones.All() {
			if !yield(rec.Key) {
				return
			}
		}
	}
}

// Drain atomically detaches the live and tombstone maps and replaces
// them with fresh, empty ones. The sequence counter is not reset.
func (m *Memtable) Drain() *Drained {
	live := m.live
	tombstones := m.tombstones
	m.live = newSkipList[LiveEntry](m.cmp)
	m.tombstones = newSkipList[types.SequenceNumber](m.cmp)
	return &Drained{live: live, tombstones: tombstones}
}

// Drained holds the two maps detached from a Memtable by Drain,
// ready to be written out as an SSTable.
type Drained struct {
	live       *skipList[LiveEntry]
	tombstones *skipList[types.SequenceNumber]
}

// Live yields the drained live entries in ascending key order.
func (d *Drained) Live() iter.Seq[Record[LiveEntry]] {
	return d.live.All()
}

// Tombstones yields the drained tombstones in ascending key order.
func (d *Drained) Tombstones() iter.Seq[Record[types.SequenceNumber]] {
	return d.tombstones.All()
}

// Len returns the combined live+tombstone entry count that was
// drained, useful for sizing a Bloom filter before writing.
func (d *Drained) Len() int {
	return d.live.Len() + d.tombstones.Len()
}

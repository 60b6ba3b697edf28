// Package comparator defines the key-ordering capability used
// throughout saturnkv. A Cmp is plumbed by composition rather than
// dispatched dynamically, so a future comparator only needs to satisfy
// the interface, not register itself anywhere.
package comparator

import "bytes"

// Cmp is a total order over byte strings, plus the key-shortening
// operations an index or SSTable builder can use to keep separator
// keys small. Every store built with one Cmp must never be read back
// with a different one.
type Cmp interface {
	// Compare returns <0, 0, or >0 as a is less than, equal to, or
	// greater than b.
	Compare(a, b []byte) int

	// Separator returns a byte string >= from and < to, no longer than
	// necessary to separate the two. It may return from unchanged.
	Separator(from, to []byte) []byte

	// Successor returns a byte string >= key, generally shorter than
	// key. It may return key unchanged.
	Successor(key []byte) []byte

	// Name identifies the comparator so a persisted store can refuse to
	// open under a different ordering.
	Name() string
}

// Bytewise is the default, and only, comparator: unsigned
// lexicographic order on raw bytes.
var Bytewise Cmp = bytewiseComparator{}

type bytewiseComparator struct{}

func (bytewiseComparator) Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}

func (bytewiseComparator) Name() string {
	return "saturnkv.BytewiseComparator"
}

// Separator finds the shortest byte string in [from, to) by truncating
// after the first differing byte and incrementing it, when that byte
// can be incremented without reaching or exceeding to. If no such
// shortening applies, from is returned unchanged.
func (c bytewiseComparator) Separator(from, to []byte) []byte {
	minLen := len(from)
	if len(to) < minLen {
		minLen = len(to)
	}

	diff := 0
	for diff < minLen && from[diff] == to[diff] {
		diff++
	}

	if diff >= minLen {
		// One is a prefix of the other; no shortening possible.
		return from
	}

	if from[diff] < 0xff && from[diff]+1 < orZero(to, diff) {
		shortened := append(append([]byte(nil), from[:diff]...), from[diff]+1)
		if c.Compare(shortened, to) < 0 {
			return shortened
		}
	}

	return from
}

func orZero(b []byte, i int) byte {
	if i < len(b) {
		return b[i]
	}
	return 0
}

// Successor finds a short byte string >= key by truncating after
// the first byte that isn't 0xff and incrementing it. If key is all
// 0xff bytes (or empty), key is returned unchanged.
func (bytewiseComparator) Successor(key []byte) []byte {
	for i, b := range key {
		if b != 0xff {
			successor := append(append([]byte(nil), key[:i]...), b+1)
			return successor
		}
	}
	return key
}

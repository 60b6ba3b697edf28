// Package sstable implements the on-disk, immutable, append-only
// table a drained memtable is flushed into: a packed sequence of
// entries with no persisted header, footer, or index — the index and
// Bloom filter live only in memory, rebuilt from the file's key set.
package sstable

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/saturnkv/saturnkv/types"
)

const (
	tagPut    = 0
	tagDelete = 1
)

// ErrInvalidEntry is wrapped by decode errors: truncated length/value
// fields or an unrecognized tag byte.
var ErrInvalidEntry = errors.New("sstable: invalid entry")

// writeEntry serializes one entry as: tag(1) + sequence(8, big-endian)
// + key length(4, big-endian) + key + [value length(4, big-endian) +
// value, Put only].
func writeEntry(w io.Writer, op byte, key []byte, value []byte, seq types.SequenceNumber) error {
	var header [1 + 8 + 4]byte
	header[0] = op
	binary.BigEndian.PutUint64(header[1:9], uint64(seq))
	binary.BigEndian.PutUint32(header[9:13], uint32(len(key)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.Write(key); err != nil {
		return err
	}
	if op != tagPut {
		return nil
	}

	var valueLen [4]byte
	binary.BigEndian.PutUint32(valueLen[:], uint32(len(value)))
	if _, err := w.Write(valueLen[:]); err != nil {
		return err
	}
	_, err := w.Write(value)
	return err
}

// decodedEntry is the result of reading one on-disk entry: a Put
// carries a value, a Delete does not.
type decodedEntry struct {
	op    byte
	key   []byte
	value []byte
	seq   types.SequenceNumber
}

func readEntry(r io.Reader) (decodedEntry, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	var header [1 + 8 + 4]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return decodedEntry{}, err
	}
	op := header[0]
	seq := types.SequenceNumber(binary.BigEndian.Uint64(header[1:9]))
	keyLen := binary.BigEndian.Uint32(header[9:13])

	key := make([]byte, keyLen)
	if _, err := io.ReadFull(br, key); err != nil {
		return decodedEntry{}, fmt.Errorf("%w: truncated key: %v", ErrInvalidEntry, err)
	}

	switch op {
	case tagPut:
		var valueLenBuf [4]byte
		if _, err := io.ReadFull(br, valueLenBuf[:]); err != nil {
			return decodedEntry{}, fmt.Errorf("%w: truncated value length: %v", ErrInvalidEntry, err)
		}
		valueLen := binary.BigEndian.Uint32(valueLenBuf[:])
		value := make([]byte, valueLen)
		if _, err := io.ReadFull(br, value); err != nil {
			return decodedEntry{}, fmt.Errorf("%w: truncated value: %v", ErrInvalidEntry, err)
		}
		return decodedEntry{op: op, key: key, value: value, seq: seq}, nil
	case tagDelete:
		return decodedEntry{op: op, key: key, seq: seq}, nil
	default:
		return decodedEntry{}, fmt.Errorf("%w: unknown tag %d", ErrInvalidEntry, op)
	}
}

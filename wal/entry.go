package wal

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/saturnkv/saturnkv/types"
)

const (
	putTag    = 0
	deleteTag = 1
)

// Decode errors, surfaced distinctly so callers can tell a truncated
// stream from a malformed one.
var (
	ErrEmptyRecord      = errors.New("wal: empty record")
	ErrUnknownTag       = errors.New("wal: unknown entry tag")
	ErrTruncatedLength  = errors.New("wal: truncated length field")
	ErrTruncatedPayload = errors.New("wal: truncated payload")
)

// EncodeEntry serializes an Entry as: tag byte, then for each variable
// field (key; value for Put) a 4-byte big-endian length followed by
// the raw bytes.
func EncodeEntry(e types.Entry) []byte {
	switch e.Op {
	case types.OpPut:
		buf := make([]byte, 0, 1+4+len(e.Key)+4+len(e.Value))
		buf = append(buf, putTag)
		buf = appendLenPrefixed(buf, e.Key)
		buf = appendLenPrefixed(buf, e.Value)
		return buf
	case types.OpDelete:
		buf := make([]byte, 0, 1+4+len(e.Key))
		buf = append(buf, deleteTag)
		buf = appendLenPrefixed(buf, e.Key)
		return buf
	default:
		panic(fmt.Sprintf("wal: unknown operation %v", e.Op))
	}
}

// DecodeEntry parses a logical record payload back into an Entry.
func DecodeEntry(src []byte) (types.Entry, error) {
	if len(src) == 0 {
		return types.Entry{}, ErrEmptyRecord
	}

	tag := src[0]
	offset := 1

	key, err := readLenPrefixed(src, &offset)
	if err != nil {
		return types.Entry{}, err
	}

	switch tag {
	case putTag:
		value, err := readLenPrefixed(src, &offset)
		if err != nil {
			return types.Entry{}, err
		}
		return types.NewPut(key, value), nil
	case deleteTag:
		return types.NewDelete(key), nil
	default:
		return types.Entry{}, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
}

func appendLenPrefixed(dst, data []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, data...)
	return dst
}

func readLenPrefixed(src []byte, offset *int) ([]byte, error) {
	if len(src)-*offset < 4 {
		return nil, ErrTruncatedLength
	}
	length := binary.BigEndian.Uint32(src[*offset : *offset+4])
	*offset += 4

	if uint32(len(src)-*offset) < length {
		return nil, ErrTruncatedPayload
	}
	out := make([]byte, length)
	copy(out, src[*offset:*offset+int(length)])
	*offset += int(length)
	return out, nil
}

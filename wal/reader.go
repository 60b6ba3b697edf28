package wal

import (
	"errors"
	"fmt"
	"io"

	"github.com/saturnkv/saturnkv/crc"
)

// Reporter receives corruption notices discovered while scanning a
// WAL. A nil Reporter silently drops them.
type Reporter interface {
	Corruption(bytes int, reason string)
}

// Reader reassembles logical records from a stream of physical
// records, validating checksums and resynchronising into a known-good
// state after corruption or when starting mid-stream.
//
// A payload slice returned from ReadRecord is only valid until the
// next call to ReadRecord: the record is copied into the caller's out
// slice, whose storage the next call reuses and overwrites.
type Reader struct {
	src      io.Reader
	reporter Reporter
	checksum bool

	backing []byte
	buf     []byte
	eof     bool

	lastRecordOffset  uint64
	endOfBufferOffset uint64
	initialOffset     uint64
	resyncing         bool

	// seeker is used once, at construction, to skip to the block
	// containing initialOffset. It is nil when src does not implement
	// io.Seeker.
	seeker io.Seeker
}

// NewReader constructs a Reader over src. When initialOffset is
// non-zero, src must also implement io.Seeker, and the reader starts
// in resync mode: it skips forward to the block containing
// initialOffset and silently discards fragments that began before it.
func NewReader(src io.Reader, reporter Reporter, checksum bool, initialOffset uint64) *Reader {
	r := &Reader{
		src:           src,
		reporter:      reporter,
		checksum:      checksum,
		backing:       make([]byte, BlockSize),
		initialOffset: initialOffset,
		resyncing:     initialOffset > 0,
	}
	if s, ok := src.(io.Seeker); ok {
		r.seeker = s
	}
	return r
}

// LastRecordOffset returns the starting offset of the most recently
// returned logical record.
func (r *Reader) LastRecordOffset() uint64 {
	return r.lastRecordOffset
}

// ReadRecord reassembles and returns the next logical record into out,
// reusing its storage. It returns false (with a nil error) at clean
// end of file.
func (r *Reader) ReadRecord(out *[]byte) (bool, error) {
	if r.lastRecordOffset < r.initialOffset {
		ok, err := r.skipToInitialBlock()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	*out = (*out)[:0]
	var scratch []byte
	inFrag := false
	var prospectiveOffset uint64

	for {
		res, err := r.readPhysicalRecord()
		if err != nil {
			return false, err
		}

		switch res.outcome {
		case outcomeEOF:
			if inFrag {
				scratch = scratch[:0]
			}
			return false, nil

		case outcomeBad:
			if inFrag {
				r.report(uint64(len(scratch)), "error in middle of record")
				inFrag = false
				scratch = scratch[:0]
			}
			continue

		case outcomeRec:
			if r.resyncing {
				switch res.typ {
				case RecordMiddle:
					continue
				case RecordLast:
					r.resyncing = false
					continue
				default:
					r.resyncing = false
				}
			}

			switch res.typ {
			case RecordFull:
				if inFrag && len(scratch) > 0 {
					r.report(uint64(len(scratch)), "partial record without end(1)")
				}
				prospectiveOffset = res.offset
				*out = append((*out)[:0], res.data...)
				r.lastRecordOffset = prospectiveOffset
				return true, nil

			case RecordFirst:
				if inFrag && len(scratch) > 0 {
					r.report(uint64(len(scratch)), "partial record without end(2)")
				}
				prospectiveOffset = res.offset
				scratch = append(scratch[:0], res.data...)
				inFrag = true

			case RecordMiddle:
				if !inFrag {
					r.report(uint64(len(res.data)), "missing start of fragmented record(1)")
				} else {
					scratch = append(scratch, res.data...)
				}

			case RecordLast:
				if !inFrag {
					r.report(uint64(len(res.data)), "missing start of fragmented record(2)")
				} else {
					scratch = append(scratch, res.data...)
					*out = append((*out)[:0], scratch...)
					r.lastRecordOffset = prospectiveOffset
					return true, nil
				}

			default:
				dropped := uint64(len(res.data))
				if inFrag {
					dropped += uint64(len(scratch))
				}
				r.report(dropped, fmt.Sprintf("unknown record type %d", res.typ))
				inFrag = false
				scratch = scratch[:0]
			}
		}
	}
}

func (r *Reader) skipToInitialBlock() (bool, error) {
	offInBlock := r.initialOffset % BlockSize
	blockStart := r.initialOffset - offInBlock
	if offInBlock > BlockSize-6 {
		blockStart += BlockSize
	}
	r.endOfBufferOffset = blockStart

	if blockStart > 0 {
		if r.seeker == nil {
			return false, errors.New("wal: reader does not support seeking to initial offset")
		}
		if _, err := r.seeker.Seek(int64(blockStart), io.SeekStart); err != nil {
			return false, err
		}
	}
	return true, nil
}

type physOutcome int

const (
	outcomeEOF physOutcome = iota
	outcomeBad
	outcomeRec
)

type physResult struct {
	outcome physOutcome
	typ     RecordType
	data    []byte
	offset  uint64
}

func (r *Reader) readPhysicalRecord() (physResult, error) {
	for {
		if len(r.buf) < HeaderSize {
			if !r.eof {
				if err := r.refill(); err != nil {
					return physResult{}, err
				}
				continue
			}
			r.buf = nil
			return physResult{outcome: outcomeEOF}, nil
		}

		header := r.buf[:HeaderSize]
		length := int(header[4]) | int(header[5])<<8
		typ := RecordType(header[6])

		if HeaderSize+length > len(r.buf) {
			dropped := uint64(len(r.buf))
			r.buf = nil
			if !r.eof {
				r.report(dropped, "bad record length")
				return physResult{outcome: outcomeBad}, nil
			}
			// EOF inside a declared payload: the tail may be a torn
			// append. Not corruption.
			return physResult{outcome: outcomeEOF}, nil
		}

		if typ == RecordZero && length == 0 {
			// Start-of-block zero padding, not a real record.
			r.buf = nil
			return physResult{outcome: outcomeBad}, nil
		}

		if r.checksum {
			expected := crc.Unmask(crc.Fixed32(header[0:4]))
			actual := crc.Value(r.buf[6 : 6+1+length])
			if actual != expected {
				dropped := uint64(len(r.buf))
				r.buf = nil
				r.report(dropped, "checksum mismatch")
				return physResult{outcome: outcomeBad}, nil
			}
		}

		payload := r.buf[HeaderSize : HeaderSize+length]
		r.buf = r.buf[HeaderSize+length:]

		offset := r.endOfBufferOffset - uint64(len(r.buf)) - uint64(HeaderSize+length)
		if offset < r.initialOffset {
			// Physical record started before the caller's initial
			// offset; swallow it without reporting.
			return physResult{outcome: outcomeBad}, nil
		}

		return physResult{outcome: outcomeRec, typ: typ, data: payload, offset: offset}, nil
	}
}

func (r *Reader) refill() error {
	n, err := io.ReadFull(r.src, r.backing)
	switch {
	case err == nil:
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		r.eof = true
	default:
		return err
	}
	r.endOfBufferOffset += uint64(n)
	r.buf = r.backing[:n]
	return nil
}

func (r *Reader) report(dropped uint64, reason string) {
	if r.reporter == nil {
		return
	}
	pos := satSub(r.endOfBufferOffset, uint64(len(r.buf)))
	pos = satSub(pos, dropped)
	if pos >= r.initialOffset {
		r.reporter.Corruption(int(dropped), reason)
	}
}

func satSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

package wal

import (
	"io"

	"github.com/saturnkv/saturnkv/crc"
)

// flusher is implemented by buffered writers (e.g. *bufio.Writer). When
// dest doesn't implement it — an *os.File, say, whose Write already
// reaches the OS — flushing is a no-op.
type flusher interface {
	Flush() error
}

// Writer splits logical records into 32 KiB-aligned physical records,
// padding block trailers with zeros and fragmenting any record too
// large to fit in the current block's remaining space.
type Writer struct {
	dest        io.Writer
	blockOffset int
	typeCRC     [MaxRecordType + 1]uint32
}

// NewWriter returns a Writer for a brand-new, empty stream.
func NewWriter(dest io.Writer) *Writer {
	return newWriter(dest, 0)
}

// NewWriterAt returns a Writer appending to a stream that already has
// existingLen bytes written to it (e.g. reopening a WAL file).
func NewWriterAt(dest io.Writer, existingLen int64) *Writer {
	return newWriter(dest, int(existingLen%BlockSize))
}

func newWriter(dest io.Writer, blockOffset int) *Writer {
	w := &Writer{dest: dest, blockOffset: blockOffset}
	for i := 0; i <= MaxRecordType; i++ {
		w.typeCRC[i] = crc.Value([]byte{byte(i)})
	}
	return w
}

// AddRecord writes one logical record, fragmenting it across as many
// physical records and block boundaries as needed.
func (w *Writer) AddRecord(data []byte) error {
	begin := true

	for {
		leftover := BlockSize - w.blockOffset
		if leftover < HeaderSize {
			if leftover > 0 {
				if _, err := w.dest.Write(make([]byte, leftover)); err != nil {
					return err
				}
				if err := w.flush(); err != nil {
					return err
				}
			}
			w.blockOffset = 0
		}

		avail := BlockSize - w.blockOffset - HeaderSize
		fragLen := len(data)
		if fragLen > avail {
			fragLen = avail
		}
		end := fragLen == len(data)

		var typ RecordType
		switch {
		case begin && end:
			typ = RecordFull
		case begin && !end:
			typ = RecordFirst
		case !begin && end:
			typ = RecordLast
		default:
			typ = RecordMiddle
		}

		if err := w.emitPhysicalRecord(typ, data[:fragLen]); err != nil {
			return err
		}
		data = data[fragLen:]
		begin = false

		if len(data) == 0 {
			break
		}
	}

	return nil
}

func (w *Writer) emitPhysicalRecord(t RecordType, payload []byte) error {
	n := len(payload)
	var header [HeaderSize]byte
	header[4] = byte(n)
	header[5] = byte(n >> 8)
	header[6] = byte(t)

	checksum := crc.Mask(crc.Extend(w.typeCRC[t], payload))
	crc.PutFixed32(header[0:4], checksum)

	if _, err := w.dest.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.dest.Write(payload); err != nil {
		return err
	}
	// Flush after every physical record so the on-disk prefix is always
	// a valid sequence of complete physical records.
	if err := w.flush(); err != nil {
		return err
	}

	w.blockOffset += HeaderSize + n
	return nil
}

func (w *Writer) flush() error {
	if f, ok := w.dest.(flusher); ok {
		return f.Flush()
	}
	return nil
}

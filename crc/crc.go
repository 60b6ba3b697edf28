// Package crc provides the Castagnoli CRC32 checksum and the masking
// transform used to frame WAL records, plus the little-endian fixed32
// helpers the framing layer is built on and standalone varint helpers
// that the framing layer does not use.
package crc

import (
	"encoding/binary"
	"hash/crc32"
)

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// maskDelta is added (mod 2^32) after rotating a raw CRC, so the bytes
// stored on disk never look like a plausible raw CRC of the payload
// that precedes them.
const maskDelta = 0xA282EAD8

// Value returns the raw (unmasked) CRC32C of data.
func Value(data []byte) uint32 {
	return crc32.Checksum(data, castagnoliTable)
}

// Extend continues a CRC32C computation that already covered some
// prefix, folding in more data. Used to checksum a record's type byte
// and payload without concatenating them into one buffer.
func Extend(initial uint32, data []byte) uint32 {
	return crc32.Update(initial, castagnoliTable, data)
}

// Mask transforms a raw CRC so it is unlikely to collide with CRC-like
// byte patterns embedded in the data stream itself.
func Mask(c uint32) uint32 {
	return rotateRight15(c) + maskDelta
}

// Unmask reverses Mask.
func Unmask(masked uint32) uint32 {
	rot := masked - maskDelta
	return (rot << 15) | (rot >> 17)
}

func rotateRight15(c uint32) uint32 {
	return (c >> 15) | (c << 17)
}

// PutFixed32 writes v into dst[0:4] in little-endian order.
func PutFixed32(dst []byte, v uint32) {
	binary.LittleEndian.PutUint32(dst, v)
}

// Fixed32 reads a little-endian uint32 from the first 4 bytes of src.
func Fixed32(src []byte) uint32 {
	return binary.LittleEndian.Uint32(src)
}

// PutUvarint appends the varint encoding of v to dst and returns the
// extended slice.
func PutUvarint(dst []byte, v uint64) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	return append(dst, buf[:n]...)
}

// Uvarint decodes a varint from the front of src, returning the value
// and the number of bytes consumed (0 if src is too short, negative on
// overflow, per encoding/binary convention).
func Uvarint(src []byte) (uint64, int) {
	return binary.Uvarint(src)
}

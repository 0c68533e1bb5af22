// pkg/page/page.go
// Package page implements the bit-exact encoding of a single fixed-size
// database page: a 24-byte header followed by fixed-stride record slots.
package page

import (
	"bytes"
	"encoding/binary"
)

// Size is the fixed size of every page in the store, in bytes.
const Size = 4096

// HeaderSize is the size of the page header in bytes.
const HeaderSize = 24

// Header field offsets, all little-endian u64.
const (
	offsetNumRecords = 0  // 8 bytes: number of occupied record slots
	offsetNext       = 8  // 8 bytes: next page in the overflow chain (0 = none)
	offsetPrev       = 16 // 8 bytes: previous page in the overflow chain (0 = none)
)

// Codec reads and writes fixed-stride records within a single page buffer.
// It owns no storage of its own: callers pass in the raw [Size]byte page
// on every call, matching the teacher's caller-owned-buffer convention.
type Codec struct {
	KeySize uint64
	ValSize uint64
}

// NewCodec returns a Codec for the given key/value sizes.
func NewCodec(keySize, valSize uint64) Codec {
	return Codec{KeySize: keySize, ValSize: valSize}
}

// Stride returns the byte length of a single record slot.
func (c Codec) Stride() uint64 {
	return c.KeySize + c.ValSize
}

// RecordsPerPage returns the maximum number of record slots a page can hold.
func (c Codec) RecordsPerPage() uint64 {
	return (Size - HeaderSize) / c.Stride()
}

// NumRecords reads the occupied-slot count from the page header.
func (c Codec) NumRecords(buf []byte) uint64 {
	return binary.LittleEndian.Uint64(buf[offsetNumRecords:])
}

// SetNumRecords writes the occupied-slot count into the page header.
func (c Codec) SetNumRecords(buf []byte, n uint64) {
	binary.LittleEndian.PutUint64(buf[offsetNumRecords:], n)
}

// Next reads the overflow-chain successor page number. Zero means none.
func (c Codec) Next(buf []byte) (uint64, bool) {
	return decodeOptional(buf[offsetNext:])
}

// SetNext writes the overflow-chain successor page number. A pageNo of 0
// encodes "none".
func (c Codec) SetNext(buf []byte, pageNo uint64) {
	binary.LittleEndian.PutUint64(buf[offsetNext:], pageNo)
}

// Prev reads the overflow-chain predecessor page number. Zero means none.
func (c Codec) Prev(buf []byte) (uint64, bool) {
	return decodeOptional(buf[offsetPrev:])
}

// SetPrev writes the overflow-chain predecessor page number.
func (c Codec) SetPrev(buf []byte, pageNo uint64) {
	binary.LittleEndian.PutUint64(buf[offsetPrev:], pageNo)
}

func decodeOptional(field []byte) (uint64, bool) {
	v := binary.LittleEndian.Uint64(field)
	if v == 0 {
		return 0, false
	}
	return v, true
}

// ResetHeader zeroes num_records/next/prev, leaving record slots untouched.
func (c Codec) ResetHeader(buf []byte) {
	c.SetNumRecords(buf, 0)
	c.SetNext(buf, 0)
	c.SetPrev(buf, 0)
}

// computeOffsets returns the byte range of record slot rowNum within the
// page: keyOff..valOff holds the key, valOff..end holds the value.
func (c Codec) computeOffsets(rowNum uint64) (keyOff, valOff, end uint64) {
	rowOffset := uint64(HeaderSize) + rowNum*c.Stride()
	keyOff = rowOffset
	valOff = keyOff + c.KeySize
	end = valOff + c.ValSize
	return
}

// ReadRecord returns borrowed views of the key and value stored in slot
// rowNum. rowNum must be < RecordsPerPage(); callers must not read past
// NumRecords(buf) since trailing slots hold reserved garbage.
func (c Codec) ReadRecord(buf []byte, rowNum uint64) (key, val []byte) {
	keyOff, valOff, end := c.computeOffsets(rowNum)
	return buf[keyOff:valOff], buf[valOff:end]
}

// WriteRecord overwrites slot rowNum with key/val. It never changes
// num_records; callers that are appending a new record must also call
// SetNumRecords (or use Append). Panics if key/val are not exactly
// KeySize/ValSize bytes.
func (c Codec) WriteRecord(buf []byte, rowNum uint64, key, val []byte) {
	if uint64(len(key)) != c.KeySize {
		panic("page: key has wrong size")
	}
	if uint64(len(val)) != c.ValSize {
		panic("page: val has wrong size")
	}
	keyOff, valOff, end := c.computeOffsets(rowNum)
	copy(buf[keyOff:valOff], key)
	copy(buf[valOff:end], val)
}

// Append writes key/val at slot num_records and increments num_records.
// Returns false without modifying the page if it is already full.
func (c Codec) Append(buf []byte, key, val []byte) bool {
	n := c.NumRecords(buf)
	if n >= c.RecordsPerPage() {
		return false
	}
	c.WriteRecord(buf, n, key, val)
	c.SetNumRecords(buf, n+1)
	return true
}

// Lookup performs a linear scan of the first NumRecords(buf) slots for an
// exact match on key, returning a borrowed view of the matching value.
func (c Codec) Lookup(buf []byte, key []byte) ([]byte, bool) {
	_, v, found := c.LookupRow(buf, key)
	return v, found
}

// LookupRow is like Lookup but also returns the matching slot index, used
// by callers that need to overwrite the slot in place (e.g. update).
func (c Codec) LookupRow(buf []byte, key []byte) (row uint64, val []byte, found bool) {
	n := c.NumRecords(buf)
	for i := uint64(0); i < n; i++ {
		k, v := c.ReadRecord(buf, i)
		if bytes.Equal(k, key) {
			return i, v, true
		}
	}
	return 0, nil, false
}

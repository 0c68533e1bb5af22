// pkg/store/ctrlpage.go
// Control-page (page 0) layout. See spec.md §9 open question 1: the
// original layout wrote the free-list head and num_free at the same
// offset range as the directory, clobbering them on every write. This
// layout relocates the free-list fields ahead of the directory so the
// two regions never overlap.
package store

import (
	"encoding/binary"

	"linhash/pkg/page"
)

const (
	ctrlOffsetNBits        = 0  // 8 bytes
	ctrlOffsetNItems       = 8  // 8 bytes
	ctrlOffsetNBuckets     = 16 // 8 bytes
	ctrlOffsetFreePage     = 24 // 8 bytes
	ctrlOffsetFreeListHead = 32 // 8 bytes (0 = none)
	ctrlOffsetNumFree      = 40 // 8 bytes
	ctrlDirectoryOffset    = 48 // bucket_to_page[0..nbuckets], 8 bytes each
)

// maxDirectoryEntries is how many bucket_to_page entries fit in the
// remainder of the control page after the fixed header fields.
const maxDirectoryEntries = (page.Size - ctrlDirectoryOffset) / 8

type ctrlPageState struct {
	nbits        uint64
	nitems       uint64
	nbuckets     uint64
	freePage     uint64
	freeListHead uint64
	numFree      uint64
	bucketToPage []uint64
}

func encodeCtrlPage(buf []byte, s ctrlPageState) {
	binary.LittleEndian.PutUint64(buf[ctrlOffsetNBits:], s.nbits)
	binary.LittleEndian.PutUint64(buf[ctrlOffsetNItems:], s.nitems)
	binary.LittleEndian.PutUint64(buf[ctrlOffsetNBuckets:], s.nbuckets)
	binary.LittleEndian.PutUint64(buf[ctrlOffsetFreePage:], s.freePage)
	binary.LittleEndian.PutUint64(buf[ctrlOffsetFreeListHead:], s.freeListHead)
	binary.LittleEndian.PutUint64(buf[ctrlOffsetNumFree:], s.numFree)

	for i, pageNo := range s.bucketToPage {
		off := ctrlDirectoryOffset + i*8
		binary.LittleEndian.PutUint64(buf[off:], pageNo)
	}
}

func decodeCtrlPage(buf []byte) ctrlPageState {
	var s ctrlPageState
	s.nbits = binary.LittleEndian.Uint64(buf[ctrlOffsetNBits:])
	s.nitems = binary.LittleEndian.Uint64(buf[ctrlOffsetNItems:])
	s.nbuckets = binary.LittleEndian.Uint64(buf[ctrlOffsetNBuckets:])
	s.freePage = binary.LittleEndian.Uint64(buf[ctrlOffsetFreePage:])
	s.freeListHead = binary.LittleEndian.Uint64(buf[ctrlOffsetFreeListHead:])
	s.numFree = binary.LittleEndian.Uint64(buf[ctrlOffsetNumFree:])

	s.bucketToPage = make([]uint64, s.nbuckets)
	for i := range s.bucketToPage {
		off := ctrlDirectoryOffset + i*8
		s.bucketToPage[i] = binary.LittleEndian.Uint64(buf[off:])
	}
	return s
}

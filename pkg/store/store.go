// pkg/store/store.go
// Package store implements the single-file page manager described in
// spec.md §4.2: a one-slot data-page buffer plus a separate control-page
// buffer, a bucket directory, overflow-chain traversal, and a
// free-list-backed page allocator.
package store

import (
	"errors"
	"fmt"
	"os"

	"linhash/pkg/page"
)

// Errors returned by Store operations.
var (
	// ErrCapacityMismatch is returned when a key or value does not have
	// the exact length configured at Open.
	ErrCapacityMismatch = errors.New("store: key or value has wrong size")
	// ErrStoreLocked is returned by Open when another process already
	// holds the advisory write lock on the file.
	ErrStoreLocked = errors.New("store: database file is locked by another process")
	// ErrInvalidBucket is returned when a bucket id is out of range of
	// the current directory.
	ErrInvalidBucket = errors.New("store: bucket id out of range")
	// ErrPageFull is returned by Put when the target page has no free
	// slot and the caller has not allocated an overflow page.
	ErrPageFull = errors.New("store: page has no free record slot")
)

// Options configures Open.
type Options struct {
	// Path is the filesystem path of the store file.
	Path string
	// KeySize and ValSize are the fixed lengths, in bytes, of every key
	// and value stored. They must match across every Open of the same
	// file; the store does not verify this across restarts.
	KeySize uint64
	ValSize uint64
	// Lock requests an advisory exclusive flock on the underlying file,
	// enforcing the single-writer assumption documented in spec.md §5.
	Lock bool
}

// Record is a single key/value pair, as returned by ClearBucket.
type Record struct {
	Key []byte
	Val []byte
}

// SearchResult is the outcome of SearchBucket.
type SearchResult struct {
	// PageID is the page the search stopped at: the page holding a
	// match, or the last page of the chain when no match was found.
	PageID *uint64
	// RowNum is the matching slot on a hit, the first free slot when
	// absent-with-room, or nil when the last page is full.
	RowNum *uint64
	// Val is a copy of the matching value, or nil when not found.
	Val []byte
}

// Found reports whether the search located an existing record.
func (r SearchResult) Found() bool {
	return r.Val != nil
}

// HasRoom reports whether the last page of the chain has a free slot to
// append into (only meaningful when Found() is false).
func (r SearchResult) HasRoom() bool {
	return r.RowNum != nil
}

// Store owns a single page file: one data-page buffer, one control-page
// buffer, the in-memory bucket directory, and the free-list/allocator
// state. It is not safe for concurrent use from multiple goroutines
// without external synchronization (spec.md §5).
type Store struct {
	file  *os.File
	codec page.Codec
	lock  bool

	nitems       uint64
	freePage     uint64
	freeListHead uint64 // 0 = none
	numFree      uint64
	bucketToPage []uint64

	bufPageID uint64
	bufValid  bool
	buf       [page.Size]byte
	dirty     bool

	ctrlBuf [page.Size]byte
}

// Open opens or creates a store file at opts.Path. A freshly created file
// is initialized to the state in spec.md §4.3 "Opening a new file": one
// address bit, zero items, two buckets mapped to pages 1 and 2, an empty
// free list, and free_page = 3. An existing file is read back via
// ReadCtrlPage rather than reinitialized.
func Open(opts Options) (*Store, error) {
	if opts.KeySize == 0 || opts.ValSize == 0 {
		return nil, fmt.Errorf("store: KeySize and ValSize must be positive")
	}

	file, err := os.OpenFile(opts.Path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}

	if opts.Lock {
		if err := lockFile(file); err != nil {
			file.Close()
			return nil, err
		}
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	s := &Store{
		file:  file,
		codec: page.NewCodec(opts.KeySize, opts.ValSize),
		lock:  opts.Lock,
	}

	if stat.Size() == 0 {
		if err := s.initializeNew(); err != nil {
			s.file.Close()
			return nil, err
		}
		return s, nil
	}

	if _, _, _, err := s.ReadCtrlPage(); err != nil {
		s.file.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initializeNew() error {
	s.nitems = 0
	s.freePage = 3
	s.freeListHead = 0
	s.numFree = 0
	s.bucketToPage = []uint64{1, 2}

	if err := s.WriteCtrlPage(1, 0, 2); err != nil {
		return err
	}

	var empty [page.Size]byte
	for _, pageNo := range s.bucketToPage {
		if _, err := s.file.WriteAt(empty[:], int64(pageNo)*page.Size); err != nil {
			return err
		}
	}
	return s.file.Sync()
}

// ReadCtrlPage reads page 0 and repopulates the store's in-memory state
// (including the directory and free-list) from it. Returns
// (nbits, nitems, nbuckets) as spec.md §4.2 describes.
func (s *Store) ReadCtrlPage() (nbits, nitems, nbuckets uint64, err error) {
	if _, err := s.file.ReadAt(s.ctrlBuf[:], 0); err != nil {
		return 0, 0, 0, err
	}
	st := decodeCtrlPage(s.ctrlBuf[:])

	s.nitems = st.nitems
	s.freePage = st.freePage
	s.freeListHead = st.freeListHead
	s.numFree = st.numFree
	s.bucketToPage = st.bucketToPage

	return st.nbits, st.nitems, st.nbuckets, nil
}

// WriteCtrlPage persists (nbits, nitems, nbuckets) together with the
// store's own free-list and directory state. Callers (LinearHashIndex)
// must call this after every mutating top-level operation, and only after
// all data-page writes for that operation have succeeded (spec.md §5).
func (s *Store) WriteCtrlPage(nbits, nitems, nbuckets uint64) error {
	if nbuckets != uint64(len(s.bucketToPage)) {
		return fmt.Errorf("store: nbuckets %d does not match directory length %d", nbuckets, len(s.bucketToPage))
	}
	s.nitems = nitems

	encodeCtrlPage(s.ctrlBuf[:], ctrlPageState{
		nbits:        nbits,
		nitems:       nitems,
		nbuckets:     nbuckets,
		freePage:     s.freePage,
		freeListHead: s.freeListHead,
		numFree:      s.numFree,
		bucketToPage: s.bucketToPage,
	})

	if _, err := s.file.WriteAt(s.ctrlBuf[:], 0); err != nil {
		return err
	}
	return s.file.Sync()
}

// BucketCount returns the current number of buckets in the directory.
func (s *Store) BucketCount() uint64 {
	return uint64(len(s.bucketToPage))
}

// KeySize returns the fixed key length configured at Open.
func (s *Store) KeySize() uint64 { return s.codec.KeySize }

// ValSize returns the fixed value length configured at Open.
func (s *Store) ValSize() uint64 { return s.codec.ValSize }

// RecordsPerPage returns the page codec's fixed slot capacity.
func (s *Store) RecordsPerPage() uint64 {
	return s.codec.RecordsPerPage()
}

// getPage loads pageID into the single data buffer, flushing a dirty
// buffer for a different page first. A no-op if pageID is already
// buffered (the Empty/Clean/Dirty state machine in spec.md §4.2).
func (s *Store) getPage(pageID uint64) error {
	if s.bufValid && s.bufPageID == pageID {
		return nil
	}
	if s.bufValid && s.dirty {
		if err := s.writeBuffer(); err != nil {
			return err
		}
	}
	if _, err := s.file.ReadAt(s.buf[:], int64(pageID)*page.Size); err != nil {
		return err
	}
	s.bufPageID = pageID
	s.bufValid = true
	s.dirty = false
	return nil
}

// writeBuffer writes the buffered page back to disk and clears dirty.
func (s *Store) writeBuffer() error {
	if !s.bufValid {
		return nil
	}
	if _, err := s.file.WriteAt(s.buf[:], int64(s.bufPageID)*page.Size); err != nil {
		return err
	}
	if err := s.file.Sync(); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func (s *Store) checkSizes(key, val []byte) error {
	if uint64(len(key)) != s.codec.KeySize || uint64(len(val)) != s.codec.ValSize {
		return ErrCapacityMismatch
	}
	return nil
}

// SearchBucket walks bucket bucketID's chain from its head page looking
// for key. On a match it returns the page/row/value of the hit. On a
// miss it returns a descriptor of the last page in the chain: RowNum set
// to the first free slot if there is room, or nil if the last page is
// full.
func (s *Store) SearchBucket(bucketID uint64, key []byte) (SearchResult, error) {
	if bucketID >= uint64(len(s.bucketToPage)) {
		return SearchResult{}, ErrInvalidBucket
	}
	pageID := s.bucketToPage[bucketID]

	for {
		if err := s.getPage(pageID); err != nil {
			return SearchResult{}, err
		}

		if row, val, found := s.codec.LookupRow(s.buf[:], key); found {
			pid := pageID
			rn := row
			valCopy := append([]byte(nil), val...)
			return SearchResult{PageID: &pid, RowNum: &rn, Val: valCopy}, nil
		}

		next, ok := s.codec.Next(s.buf[:])
		if !ok {
			pid := pageID
			n := s.codec.NumRecords(s.buf[:])
			if n < s.codec.RecordsPerPage() {
				rn := n
				return SearchResult{PageID: &pid, RowNum: &rn}, nil
			}
			return SearchResult{PageID: &pid}, nil
		}
		pageID = next
	}
}

// WriteRecord overwrites slot rowNum of pageID in place. It never
// changes num_records; use WriteRecordIncr to insert a new record.
func (s *Store) WriteRecord(pageID, rowNum uint64, key, val []byte) error {
	if err := s.checkSizes(key, val); err != nil {
		return err
	}
	if err := s.getPage(pageID); err != nil {
		return err
	}
	s.codec.WriteRecord(s.buf[:], rowNum, key, val)
	s.dirty = true
	return s.writeBuffer()
}

// WriteRecordIncr writes key/val into slot rowNum and grows num_records
// to rowNum+1. Used to insert a brand-new record.
func (s *Store) WriteRecordIncr(pageID, rowNum uint64, key, val []byte) error {
	if err := s.checkSizes(key, val); err != nil {
		return err
	}
	if err := s.getPage(pageID); err != nil {
		return err
	}
	s.codec.WriteRecord(s.buf[:], rowNum, key, val)
	if n := s.codec.NumRecords(s.buf[:]); rowNum+1 > n {
		s.codec.SetNumRecords(s.buf[:], rowNum+1)
	}
	s.dirty = true
	return s.writeBuffer()
}

// Put appends key/val into bucket bucketID's head page. It is used only
// after the caller has ensured the head page has room; callers normally
// prefer WriteRecordIncr against a specific page located by SearchBucket.
func (s *Store) Put(bucketID uint64, key, val []byte) error {
	if bucketID >= uint64(len(s.bucketToPage)) {
		return ErrInvalidBucket
	}
	if err := s.checkSizes(key, val); err != nil {
		return err
	}
	headPageID := s.bucketToPage[bucketID]
	if err := s.getPage(headPageID); err != nil {
		return err
	}
	if !s.codec.Append(s.buf[:], key, val) {
		return ErrPageFull
	}
	s.dirty = true
	return s.writeBuffer()
}

// AllocateOverflow allocates a new page, links it after lastPageID in
// bucketID's chain (next/prev both updated), and returns its page number.
func (s *Store) AllocateOverflow(bucketID, lastPageID uint64) (uint64, error) {
	newPageID, err := s.AllocateNewPage()
	if err != nil {
		return 0, err
	}

	if err := s.getPage(lastPageID); err != nil {
		return 0, err
	}
	s.codec.SetNext(s.buf[:], newPageID)
	s.dirty = true
	if err := s.writeBuffer(); err != nil {
		return 0, err
	}

	if err := s.getPage(newPageID); err != nil {
		return 0, err
	}
	s.codec.SetPrev(s.buf[:], lastPageID)
	s.dirty = true
	if err := s.writeBuffer(); err != nil {
		return 0, err
	}

	return newPageID, nil
}

// AllocateNewBucket allocates a fresh head page and appends it to the
// directory, growing the bucket count by one.
func (s *Store) AllocateNewBucket() (uint64, error) {
	pageID, err := s.AllocateNewPage()
	if err != nil {
		return 0, err
	}
	s.bucketToPage = append(s.bucketToPage, pageID)
	return pageID, nil
}

// ClearBucket empties bucketID's chain, returning every record it held.
// If the chain had more than one page, its overflow pages become a new
// contiguous prefix of the free list (the previous free list becomes the
// suffix) and numFree grows by chainLength-1. The head page is reset to
// an empty page at the same page number.
func (s *Store) ClearBucket(bucketID uint64) ([]Record, error) {
	if bucketID >= uint64(len(s.bucketToPage)) {
		return nil, ErrInvalidBucket
	}
	headPageID := s.bucketToPage[bucketID]

	var records []Record
	var chain []uint64

	pageID := headPageID
	for {
		if err := s.getPage(pageID); err != nil {
			return nil, err
		}
		chain = append(chain, pageID)

		n := s.codec.NumRecords(s.buf[:])
		for i := uint64(0); i < n; i++ {
			k, v := s.codec.ReadRecord(s.buf[:], i)
			records = append(records, Record{
				Key: append([]byte(nil), k...),
				Val: append([]byte(nil), v...),
			})
		}

		next, ok := s.codec.Next(s.buf[:])
		if !ok {
			break
		}
		pageID = next
	}

	if len(chain) >= 2 {
		overflow := chain[1:]
		oldFreeListHead := s.freeListHead

		for i, pid := range overflow {
			var nextInFreeList uint64
			if i+1 < len(overflow) {
				nextInFreeList = overflow[i+1]
			} else {
				nextInFreeList = oldFreeListHead
			}
			if err := s.getPage(pid); err != nil {
				return nil, err
			}
			s.codec.SetNext(s.buf[:], nextInFreeList)
			s.dirty = true
			if err := s.writeBuffer(); err != nil {
				return nil, err
			}
		}

		s.freeListHead = overflow[0]
		s.numFree += uint64(len(overflow))
	}

	if err := s.getPage(headPageID); err != nil {
		return nil, err
	}
	for i := range s.buf {
		s.buf[i] = 0
	}
	s.dirty = true
	if err := s.writeBuffer(); err != nil {
		return nil, err
	}

	return records, nil
}

// AllocateNewPage returns a fresh, zeroed page: either a never-used page
// at the end of the file, or the head of the free list. spec.md §9 open
// question 2: free_page is only incremented in the never-used branch, so
// a recycled page never collides with a live one.
func (s *Store) AllocateNewPage() (uint64, error) {
	if s.numFree == 0 {
		pageID := s.freePage

		if s.bufValid && s.dirty && s.bufPageID != pageID {
			if err := s.writeBuffer(); err != nil {
				return 0, err
			}
		}
		s.freePage++

		for i := range s.buf {
			s.buf[i] = 0
		}
		s.bufPageID = pageID
		s.bufValid = true
		s.dirty = true
		if err := s.writeBuffer(); err != nil {
			return 0, err
		}
		return pageID, nil
	}

	pageID := s.freeListHead
	if err := s.getPage(pageID); err != nil {
		return 0, err
	}
	if next, ok := s.codec.Next(s.buf[:]); ok {
		s.freeListHead = next
	} else {
		s.freeListHead = 0
	}
	s.numFree--

	for i := range s.buf {
		s.buf[i] = 0
	}
	s.dirty = true
	if err := s.writeBuffer(); err != nil {
		return 0, err
	}
	return pageID, nil
}

// Stats summarizes a store's on-disk bookkeeping state, used by the CLI
// stats subcommand and by tests.
type Stats struct {
	NBuckets     uint64
	NItems       uint64
	FreePage     uint64
	FreeListHead uint64
	NumFree      uint64
	FileSize     int64
}

// Stats reports the store's current bookkeeping state.
func (s *Store) Stats() (Stats, error) {
	info, err := s.file.Stat()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		NBuckets:     uint64(len(s.bucketToPage)),
		NItems:       s.nitems,
		FreePage:     s.freePage,
		FreeListHead: s.freeListHead,
		NumFree:      s.numFree,
		FileSize:     info.Size(),
	}, nil
}

// Close flushes the buffered data page and closes the underlying file,
// releasing the advisory lock if one was taken.
func (s *Store) Close() error {
	if s.bufValid && s.dirty {
		if err := s.writeBuffer(); err != nil {
			s.file.Close()
			return err
		}
	}
	if s.lock {
		if err := unlockFile(s.file); err != nil {
			s.file.Close()
			return err
		}
	}
	return s.file.Close()
}

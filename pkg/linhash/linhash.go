// pkg/linhash/linhash.go
// Package linhash implements Linear Hashing (Litwin, 1980) on top of
// pkg/store's page manager: bucket addressing under partial split,
// load-factor-triggered splitting, and the four public operations
// put/get/update/contains.
package linhash

import (
	"errors"
	"hash/fnv"

	"linhash/pkg/store"
)

// Errors returned by Index operations.
var (
	// ErrDuplicateInsert is returned by Put when the key already exists.
	// Update is the only path that overwrites an existing key.
	ErrDuplicateInsert = errors.New("linhash: key already exists")
	// ErrCapacityMismatch is returned when a key or value does not match
	// the fixed sizes configured at Open.
	ErrCapacityMismatch = store.ErrCapacityMismatch
)

// splitThreshold is the load factor (nitems / (nbuckets*recordsPerPage))
// above which maybeSplit grows the directory by one bucket.
const splitThreshold = 0.8

// Options configures Open. It mirrors store.Options with the fields an
// index caller actually needs to set.
type Options struct {
	Path    string
	KeySize uint64
	ValSize uint64
	Lock    bool
}

// Index is a LinearHashIndex: the hashing and splitting policy layered
// over a store.Store. Not safe for concurrent use without external
// synchronization (spec.md §5).
type Index struct {
	store *store.Store

	nbits    uint64
	nitems   uint64
	nbuckets uint64
}

// Open opens or creates the index file at opts.Path, reading back
// nbits/nitems/nbuckets from the control page (a freshly created file
// has already been initialized to (1, 0, 2) by store.Open).
func Open(opts Options) (*Index, error) {
	s, err := store.Open(store.Options{
		Path:    opts.Path,
		KeySize: opts.KeySize,
		ValSize: opts.ValSize,
		Lock:    opts.Lock,
	})
	if err != nil {
		return nil, err
	}

	nbits, nitems, nbuckets, err := s.ReadCtrlPage()
	if err != nil {
		s.Close()
		return nil, err
	}

	return &Index{store: s, nbits: nbits, nitems: nitems, nbuckets: nbuckets}, nil
}

// hashKey computes the 64-bit FNV-1a hash of key. Linear hashing only
// needs a fixed, non-adversarial hash stable across restarts; FNV-1a is
// the stdlib's cheapest such hash and needs no third-party dependency.
func hashKey(key []byte) uint64 {
	h := fnv.New64a()
	h.Write(key)
	return h.Sum64()
}

// bucketOf computes the address of key under the current (nbits,
// nbuckets) directory state: the low nbits bits of the hash, folded back
// by 2^(nbits-1) when that address hasn't split yet.
func (idx *Index) bucketOf(key []byte) uint64 {
	h := hashKey(key)
	mask := (uint64(1) << idx.nbits) - 1
	b := h & mask
	if b < idx.nbuckets {
		return b
	}
	return b - (uint64(1) << (idx.nbits - 1))
}

func (idx *Index) checkSizes(key, val []byte) error {
	if uint64(len(key)) != idx.store.KeySize() || uint64(len(val)) != idx.store.ValSize() {
		return ErrCapacityMismatch
	}
	return nil
}

// loadFactor returns nitems / (nbuckets * recordsPerPage).
func (idx *Index) loadFactor() float64 {
	capacity := idx.nbuckets * idx.store.RecordsPerPage()
	if capacity == 0 {
		return 0
	}
	return float64(idx.nitems) / float64(capacity)
}

// insertNoCount places key/val into its addressed bucket, allocating an
// overflow page if the chain's last page is full. When countNew is true
// (a fresh Put), nitems is incremented and an existing key is rejected;
// when false (split reinsertion) the key is assumed not to already be
// present in its new bucket, and nitems is left untouched. Either way, a
// successful insert is followed by a maybeSplit check, which is what
// makes a single split cascade into further splits as reinserted records
// push other buckets over the threshold.
func (idx *Index) insertNoCount(key, val []byte, countNew bool) error {
	bucket := idx.bucketOf(key)

	res, err := idx.store.SearchBucket(bucket, key)
	if err != nil {
		return err
	}

	switch {
	case res.Found():
		return ErrDuplicateInsert
	case res.HasRoom():
		if err := idx.store.WriteRecordIncr(*res.PageID, *res.RowNum, key, val); err != nil {
			return err
		}
	default:
		if _, err := idx.store.AllocateOverflow(bucket, *res.PageID); err != nil {
			return err
		}
		return idx.insertNoCount(key, val, countNew)
	}

	if countNew {
		idx.nitems++
	}
	return idx.maybeSplit()
}

// maybeSplit grows the directory by one bucket when the load factor
// exceeds splitThreshold, reinserting every record the split bucket held
// into its two descendants. Reinsertion runs back through insertNoCount,
// so a single maybeSplit call can cascade into further splits.
func (idx *Index) maybeSplit() error {
	if idx.loadFactor() <= splitThreshold {
		return nil
	}

	idx.nbuckets++
	if _, err := idx.store.AllocateNewBucket(); err != nil {
		return err
	}
	if idx.nbuckets > uint64(1)<<idx.nbits {
		idx.nbits++
	}

	splitBucket := (idx.nbuckets - 1) ^ (uint64(1) << (idx.nbits - 1))

	records, err := idx.store.ClearBucket(splitBucket)
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := idx.insertNoCount(r.Key, r.Val, false); err != nil {
			return err
		}
	}
	return nil
}

// Put inserts a new key/val pair. It returns ErrDuplicateInsert if the
// key is already present; use Update to overwrite an existing key.
func (idx *Index) Put(key, val []byte) error {
	if err := idx.checkSizes(key, val); err != nil {
		return err
	}
	if err := idx.insertNoCount(key, val, true); err != nil {
		return err
	}
	return idx.store.WriteCtrlPage(idx.nbits, idx.nitems, idx.nbuckets)
}

// Update overwrites the value of an existing key in place, without
// changing nitems. It reports false if the key is not present.
func (idx *Index) Update(key, val []byte) (bool, error) {
	if err := idx.checkSizes(key, val); err != nil {
		return false, err
	}
	bucket := idx.bucketOf(key)

	res, err := idx.store.SearchBucket(bucket, key)
	if err != nil {
		return false, err
	}
	if !res.Found() {
		return false, nil
	}
	if err := idx.store.WriteRecord(*res.PageID, *res.RowNum, key, val); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the value associated with key, if present.
func (idx *Index) Get(key []byte) ([]byte, bool, error) {
	bucket := idx.bucketOf(key)

	res, err := idx.store.SearchBucket(bucket, key)
	if err != nil {
		return nil, false, err
	}
	if !res.Found() {
		return nil, false, nil
	}
	return res.Val, true, nil
}

// Contains reports whether key is present.
func (idx *Index) Contains(key []byte) (bool, error) {
	_, found, err := idx.Get(key)
	return found, err
}

// Stats exposes the directory state for the CLI's stats subcommand.
type Stats struct {
	NBits      uint64
	NItems     uint64
	NBuckets   uint64
	LoadFactor float64
	StoreStats store.Stats
}

// Stats reports the index's current bookkeeping state.
func (idx *Index) Stats() (Stats, error) {
	storeStats, err := idx.store.Stats()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		NBits:      idx.nbits,
		NItems:     idx.nitems,
		NBuckets:   idx.nbuckets,
		LoadFactor: idx.loadFactor(),
		StoreStats: storeStats,
	}, nil
}

// Close persists the control page and closes the underlying store.
func (idx *Index) Close() error {
	if err := idx.store.WriteCtrlPage(idx.nbits, idx.nitems, idx.nbuckets); err != nil {
		idx.store.Close()
		return err
	}
	return idx.store.Close()
}

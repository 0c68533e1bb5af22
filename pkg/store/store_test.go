// pkg/store/store_test.go
package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, keySize, valSize uint64) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.linhash")
	s, err := Open(Options{Path: path, KeySize: keySize, ValSize: valSize})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func key4(n uint32) []byte {
	return []byte{byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)}
}

func TestStore_NewFileDefaults(t *testing.T) {
	s := openTestStore(t, 4, 4)

	require.Equal(t, uint64(2), s.BucketCount())
	stats, err := s.Stats()
	require.NoError(t, err)
	require.Equal(t, uint64(0), stats.NItems)
	require.Equal(t, uint64(3), stats.FreePage)
	require.Equal(t, uint64(0), stats.NumFree)
}

func TestStore_SearchBucketEmpty(t *testing.T) {
	s := openTestStore(t, 4, 4)

	res, err := s.SearchBucket(0, key4(1))
	require.NoError(t, err)
	require.False(t, res.Found())
	require.True(t, res.HasRoom())
	require.Equal(t, uint64(0), *res.RowNum)
}

func TestStore_WriteRecordIncrAndSearch(t *testing.T) {
	s := openTestStore(t, 4, 4)

	res, err := s.SearchBucket(0, key4(1))
	require.NoError(t, err)
	require.NoError(t, s.WriteRecordIncr(*res.PageID, *res.RowNum, key4(1), key4(2)))

	res2, err := s.SearchBucket(0, key4(1))
	require.NoError(t, err)
	require.True(t, res2.Found())
	require.Equal(t, key4(2), res2.Val)
}

func TestStore_WriteRecordDoesNotGrowCount(t *testing.T) {
	s := openTestStore(t, 4, 4)

	res, _ := s.SearchBucket(0, key4(1))
	require.NoError(t, s.WriteRecordIncr(*res.PageID, *res.RowNum, key4(1), key4(2)))

	res2, _ := s.SearchBucket(0, key4(1))
	require.NoError(t, s.WriteRecord(*res2.PageID, *res2.RowNum, key4(1), key4(99)))

	res3, _ := s.SearchBucket(0, key4(1))
	require.Equal(t, key4(99), res3.Val)

	// num_records is still 1, so the first free slot is row 1.
	res4, _ := s.SearchBucket(0, key4(2))
	require.Equal(t, uint64(1), *res4.RowNum)
}

func TestStore_OverflowAllocation(t *testing.T) {
	s := openTestStore(t, 4, 4)
	capacity := s.RecordsPerPage()

	// Fill the head page of bucket 0 to capacity.
	for i := uint64(0); i < capacity; i++ {
		res, err := s.SearchBucket(0, key4(uint32(i)))
		require.NoError(t, err)
		require.False(t, res.Found())
		require.True(t, res.HasRoom())
		require.NoError(t, s.WriteRecordIncr(*res.PageID, *res.RowNum, key4(uint32(i)), key4(uint32(i))))
	}

	// The page is now full.
	res, err := s.SearchBucket(0, key4(uint32(capacity)))
	require.NoError(t, err)
	require.False(t, res.Found())
	require.False(t, res.HasRoom())

	newPage, err := s.AllocateOverflow(0, *res.PageID)
	require.NoError(t, err)
	require.NotEqual(t, *res.PageID, newPage)

	require.NoError(t, s.WriteRecordIncr(newPage, 0, key4(uint32(capacity)), key4(uint32(capacity))))

	got, err := s.SearchBucket(0, key4(uint32(capacity)))
	require.NoError(t, err)
	require.True(t, got.Found())
}

func TestStore_AllocateNewBucketGrowsDirectory(t *testing.T) {
	s := openTestStore(t, 4, 4)

	pageID, err := s.AllocateNewBucket()
	require.NoError(t, err)
	require.Equal(t, uint64(3), pageID) // free_page started at 3
	require.Equal(t, uint64(3), s.BucketCount())
}

// TestStore_ClearBucketRecyclesOverflowPages exercises spec scenario S5:
// splitting a bucket with an overflow page must make the next
// AllocateNewPage return a recycled page id rather than growing the file.
func TestStore_ClearBucketRecyclesOverflowPages(t *testing.T) {
	s := openTestStore(t, 4, 4)
	capacity := s.RecordsPerPage()

	for i := uint64(0); i < capacity; i++ {
		res, _ := s.SearchBucket(0, key4(uint32(i)))
		require.NoError(t, s.WriteRecordIncr(*res.PageID, *res.RowNum, key4(uint32(i)), key4(uint32(i))))
	}
	res, _ := s.SearchBucket(0, key4(uint32(capacity)))
	overflowPage, err := s.AllocateOverflow(0, *res.PageID)
	require.NoError(t, err)
	require.NoError(t, s.WriteRecordIncr(overflowPage, 0, key4(uint32(capacity)), key4(uint32(capacity))))

	statsBefore, _ := s.Stats()
	freePageBefore := statsBefore.FreePage

	records, err := s.ClearBucket(0)
	require.NoError(t, err)
	require.Len(t, records, int(capacity)+1)

	statsAfter, _ := s.Stats()
	require.Equal(t, uint64(1), statsAfter.NumFree)
	require.Equal(t, freePageBefore, statsAfter.FreePage) // unchanged: recycled, not grown

	recycled, err := s.AllocateNewPage()
	require.NoError(t, err)
	require.Equal(t, overflowPage, recycled)

	statsFinal, _ := s.Stats()
	require.Equal(t, freePageBefore, statsFinal.FreePage) // still unchanged
	require.Equal(t, uint64(0), statsFinal.NumFree)
}

func TestStore_ClearBucketResetsHeadPage(t *testing.T) {
	s := openTestStore(t, 4, 4)

	res, _ := s.SearchBucket(0, key4(1))
	require.NoError(t, s.WriteRecordIncr(*res.PageID, *res.RowNum, key4(1), key4(2)))

	records, err := s.ClearBucket(0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	res2, err := s.SearchBucket(0, key4(1))
	require.NoError(t, err)
	require.False(t, res2.Found())
	require.True(t, res2.HasRoom())
	require.Equal(t, uint64(0), *res2.RowNum)
}

func TestStore_CtrlPageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctrl.linhash")

	s, err := Open(Options{Path: path, KeySize: 4, ValSize: 4})
	require.NoError(t, err)

	res, _ := s.SearchBucket(0, key4(1))
	require.NoError(t, s.WriteRecordIncr(*res.PageID, *res.RowNum, key4(1), key4(2)))
	require.NoError(t, s.WriteCtrlPage(1, 1, 2))
	require.NoError(t, s.Close())

	s2, err := Open(Options{Path: path, KeySize: 4, ValSize: 4})
	require.NoError(t, err)
	defer s2.Close()

	nbits, nitems, nbuckets, err := s2.ReadCtrlPage()
	require.NoError(t, err)
	require.Equal(t, uint64(1), nbits)
	require.Equal(t, uint64(1), nitems)
	require.Equal(t, uint64(2), nbuckets)

	res2, err := s2.SearchBucket(0, key4(1))
	require.NoError(t, err)
	require.True(t, res2.Found())
	require.Equal(t, key4(2), res2.Val)
}

func TestStore_CapacityMismatch(t *testing.T) {
	s := openTestStore(t, 4, 4)

	err := s.WriteRecord(1, 0, []byte{1, 2, 3}, key4(1))
	require.ErrorIs(t, err, ErrCapacityMismatch)
}

func TestStore_InvalidBucket(t *testing.T) {
	s := openTestStore(t, 4, 4)

	_, err := s.SearchBucket(99, key4(1))
	require.ErrorIs(t, err, ErrInvalidBucket)
}

func TestStore_LockContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.linhash")

	s1, err := Open(Options{Path: path, KeySize: 4, ValSize: 4, Lock: true})
	require.NoError(t, err)
	defer s1.Close()

	_, err = Open(Options{Path: path, KeySize: 4, ValSize: 4, Lock: true})
	require.ErrorIs(t, err, ErrStoreLocked)
}

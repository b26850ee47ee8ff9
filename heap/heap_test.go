package heap

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmachida/minidb/logging"
	"github.com/hmachida/minidb/storage/buffer"
	"github.com/hmachida/minidb/storage/disk"
	"github.com/hmachida/minidb/storage/page"
)

func TestInsertSelect(t *testing.T) {
	f, bm, err := TestingNewFile("f", buffer.DefaultNumFrames)
	require.Nil(t, err)

	rec := []byte{0x41, 0x42, 0x43}
	rid, err := f.Insert(rec)
	assert.Nil(t, err)
	assert.True(t, rid.PageID.IsValid())
	assert.Equal(t, int16(0), rid.Slot)

	got, err := f.Select(rid)
	assert.Nil(t, err)
	assert.Equal(t, rec, got)

	count, err := f.RecordCount()
	assert.Nil(t, err)
	assert.Equal(t, 1, count)

	// no pin may outlive a heap file operation
	assert.Equal(t, bm.NumFrames(), bm.NumUnpinned())
}

func TestInsertRecordTooLarge(t *testing.T) {
	f, bm, err := TestingNewFile("f", buffer.DefaultNumFrames)
	require.Nil(t, err)

	_, err = f.Insert(page.TestingNewRecord(page.MaxRecordSize+1, 1))
	assert.True(t, errors.Is(err, ErrRecordTooLarge))
	assert.Equal(t, bm.NumFrames(), bm.NumUnpinned())
}

func TestInsertMaxRecord(t *testing.T) {
	f, _, err := TestingNewFile("f", buffer.DefaultNumFrames)
	require.Nil(t, err)

	// the largest legal record occupies one data page fully
	rec := page.TestingNewRecord(page.MaxRecordSize, 3)
	rid, err := f.Insert(rec)
	assert.Nil(t, err)

	got, err := f.Select(rid)
	assert.Nil(t, err)
	assert.Equal(t, rec, got)

	dirID, dp, i, err := f.findEntry(rid.PageID)
	assert.Nil(t, err)
	assert.Equal(t, int16(0), page.GetEntryFreeCount(dp, i))
	assert.Equal(t, int16(1), page.GetEntryRecordCount(dp, i))
	assert.Nil(t, f.bm.Unpin(dirID, false))
}

func TestInsertSpillsToSecondDataPage(t *testing.T) {
	f, bm, err := TestingNewFile("f", buffer.DefaultNumFrames)
	require.Nil(t, err)

	// two 400-byte records fit on one data page; the third does not
	rids := make([]page.RID, 3)
	for i := range rids {
		rid, err := f.Insert(page.TestingNewRecord(400, byte(i)))
		require.Nil(t, err)
		rids[i] = rid
	}
	assert.Equal(t, rids[0].PageID, rids[1].PageID)
	assert.NotEqual(t, rids[0].PageID, rids[2].PageID)

	// both data pages are described on the head directory page
	dp, err := bm.Pin(f.headID, nil, buffer.PinDiskIO)
	require.Nil(t, err)
	assert.Equal(t, int16(2), page.EntryCount(dp))
	assert.Nil(t, bm.Unpin(f.headID, false))

	count, err := f.RecordCount()
	assert.Nil(t, err)
	assert.Equal(t, 3, count)
}

func TestUpdate(t *testing.T) {
	f, bm, err := TestingNewFile("f", buffer.DefaultNumFrames)
	require.Nil(t, err)

	rid, err := f.Insert(page.TestingNewRecord(64, 1))
	require.Nil(t, err)

	t.Run("same-length update", func(t *testing.T) {
		updated := page.TestingNewRecord(64, 0x90)
		assert.Nil(t, f.Update(rid, updated))
		got, err := f.Select(rid)
		assert.Nil(t, err)
		assert.Equal(t, updated, got)
	})
	t.Run("length-changing update is rejected and leaves no pin", func(t *testing.T) {
		err := f.Update(rid, page.TestingNewRecord(65, 0x90))
		assert.True(t, errors.Is(err, page.ErrInvalidRID))
		assert.Equal(t, bm.NumFrames(), bm.NumUnpinned())
	})
	t.Run("unknown rid", func(t *testing.T) {
		err := f.Update(page.NewRID(rid.PageID, 9), page.TestingNewRecord(64, 1))
		assert.True(t, errors.Is(err, page.ErrInvalidRID))
		assert.Equal(t, bm.NumFrames(), bm.NumUnpinned())
	})
}

func TestDelete(t *testing.T) {
	f, bm, err := TestingNewFile("f", buffer.DefaultNumFrames)
	require.Nil(t, err)

	rids := make([]page.RID, 3)
	for i := range rids {
		rid, err := f.Insert(page.TestingNewRecord(32, byte(i)))
		require.Nil(t, err)
		rids[i] = rid
	}

	assert.Nil(t, f.Delete(rids[1]))
	count, err := f.RecordCount()
	assert.Nil(t, err)
	assert.Equal(t, 2, count)

	_, err = f.Select(rids[1])
	assert.True(t, errors.Is(err, page.ErrInvalidRID))

	// the surviving records are untouched
	got, err := f.Select(rids[2])
	assert.Nil(t, err)
	assert.Equal(t, page.TestingNewRecord(32, 2), got)

	assert.Equal(t, bm.NumFrames(), bm.NumUnpinned())
}

func TestDeleteFreesEmptyDataPage(t *testing.T) {
	f, bm, err := TestingNewFile("f", buffer.DefaultNumFrames)
	require.Nil(t, err)

	rid, err := f.Insert(page.TestingNewRecord(100, 1))
	require.Nil(t, err)
	firstDataID := rid.PageID

	// deleting the only record removes the directory entry and frees the page
	assert.Nil(t, f.Delete(rid))
	dp, err := bm.Pin(f.headID, nil, buffer.PinDiskIO)
	require.Nil(t, err)
	assert.Equal(t, int16(0), page.EntryCount(dp))
	assert.Nil(t, bm.Unpin(f.headID, false))

	count, err := f.RecordCount()
	assert.Nil(t, err)
	assert.Equal(t, 0, count)

	// the next insert allocates a data page again, reusing the freed one
	rid2, err := f.Insert(page.TestingNewRecord(100, 2))
	assert.Nil(t, err)
	assert.Equal(t, firstDataID, rid2.PageID)

	got, err := f.Select(rid2)
	assert.Nil(t, err)
	assert.Equal(t, page.TestingNewRecord(100, 2), got)
	assert.Equal(t, bm.NumFrames(), bm.NumUnpinned())
}

func TestDeleteUnlinksEmptyDirectoryPage(t *testing.T) {
	f, bm, err := TestingNewFile("f", buffer.DefaultNumFrames)
	require.Nil(t, err)

	// max-size records occupy one data page each, so MaxEntries+1 inserts
	// fill the head directory page and spill one entry onto a second one
	rids := make([]page.RID, page.MaxEntries+1)
	for i := range rids {
		rid, err := f.Insert(page.TestingNewRecord(page.MaxRecordSize, byte(i)))
		require.Nil(t, err)
		rids[i] = rid
	}

	dp, err := bm.Pin(f.headID, nil, buffer.PinDiskIO)
	require.Nil(t, err)
	assert.Equal(t, int16(page.MaxEntries), page.EntryCount(dp))
	secondDirID := page.GetNextPageID(dp)
	assert.True(t, secondDirID.IsValid())
	assert.Nil(t, bm.Unpin(f.headID, false))

	// deleting the spilled record empties the second directory page,
	// which is unlinked from the chain and freed
	assert.Nil(t, f.Delete(rids[page.MaxEntries]))

	dp, err = bm.Pin(f.headID, nil, buffer.PinDiskIO)
	require.Nil(t, err)
	assert.Equal(t, page.InvalidPageID, page.GetNextPageID(dp))
	assert.Nil(t, bm.Unpin(f.headID, false))

	count, err := f.RecordCount()
	assert.Nil(t, err)
	assert.Equal(t, page.MaxEntries, count)
	assert.Equal(t, bm.NumFrames(), bm.NumUnpinned())
}

func TestHeadDirectoryPageIsRetained(t *testing.T) {
	f, bm, err := TestingNewFile("f", buffer.DefaultNumFrames)
	require.Nil(t, err)
	headID := f.headID

	rid, err := f.Insert(page.TestingNewRecord(10, 1))
	require.Nil(t, err)
	assert.Nil(t, f.Delete(rid))

	// the head stays even when empty, it is the file's identity
	assert.Equal(t, headID, f.headID)
	dp, err := bm.Pin(headID, nil, buffer.PinDiskIO)
	require.Nil(t, err)
	assert.Equal(t, int16(0), page.EntryCount(dp))
	assert.Nil(t, bm.Unpin(headID, false))
}

func TestTemporaryFileDeletedOnClose(t *testing.T) {
	f, _, err := TestingNewFile("", buffer.DefaultNumFrames)
	require.Nil(t, err)
	headID := f.headID

	_, err = f.Insert(page.TestingNewRecord(10, 1))
	require.Nil(t, err)

	assert.Nil(t, f.Close())
	assert.False(t, f.headID.IsValid())

	// the head page went back to the disk manager's free pages
	reused, err := f.dm.AllocatePage(1)
	assert.Nil(t, err)
	assert.Equal(t, headID, reused)
}

func TestDeleteFileRemovesEntry(t *testing.T) {
	f, bm, err := TestingNewFile("users", buffer.DefaultNumFrames)
	require.Nil(t, err)
	_, err = f.Insert(page.TestingNewRecord(10, 1))
	require.Nil(t, err)

	assert.Nil(t, f.DeleteFile())
	_, err = f.dm.GetFileEntry("users")
	assert.True(t, errors.Is(err, disk.ErrNoFileEntry))

	// the name can be used for a fresh file afterwards
	f2, err := Open(bm, f.dm, "users")
	assert.Nil(t, err)
	count, err := f2.RecordCount()
	assert.Nil(t, err)
	assert.Equal(t, 0, count)
}

func TestOpenExisting(t *testing.T) {
	f, bm, err := TestingNewFile("accounts", buffer.DefaultNumFrames)
	require.Nil(t, err)
	rid, err := f.Insert(page.TestingNewRecord(24, 7))
	require.Nil(t, err)

	// a second handle on the same name resolves to the same head page
	f2, err := Open(bm, f.dm, "accounts")
	assert.Nil(t, err)
	assert.Equal(t, f.headID, f2.headID)

	got, err := f2.Select(rid)
	assert.Nil(t, err)
	assert.Equal(t, page.TestingNewRecord(24, 7), got)
}

func TestReopenAcrossProcessBoundary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minidb.db")

	dm, err := disk.NewManager(path, logging.Discard())
	require.Nil(t, err)
	bm, err := buffer.NewManager(dm, buffer.DefaultNumFrames, buffer.ClockPolicy, logging.Discard())
	require.Nil(t, err)
	f, err := Open(bm, dm, "accounts")
	require.Nil(t, err)

	rids := make([]page.RID, 3)
	for i := range rids {
		rid, err := f.Insert(page.TestingNewRecord(50, byte(i)))
		require.Nil(t, err)
		rids[i] = rid
	}
	require.Nil(t, bm.FlushAllPages())
	require.Nil(t, dm.Close())

	// a fresh disk manager and buffer pool over the same file
	dm2, err := disk.NewManager(path, logging.Discard())
	require.Nil(t, err)
	defer dm2.Close()
	bm2, err := buffer.NewManager(dm2, buffer.DefaultNumFrames, buffer.ClockPolicy, logging.Discard())
	require.Nil(t, err)

	f2, err := Open(bm2, dm2, "accounts")
	assert.Nil(t, err)
	count, err := f2.RecordCount()
	assert.Nil(t, err)
	assert.Equal(t, 3, count)

	got, err := f2.Select(rids[1])
	assert.Nil(t, err)
	assert.Equal(t, page.TestingNewRecord(50, 1), got)
}

func TestRecordCountTracksInsertsAndDeletes(t *testing.T) {
	f, _, err := TestingNewFile("f", buffer.DefaultNumFrames)
	require.Nil(t, err)

	var rids []page.RID
	for i := 0; i < 20; i++ {
		rid, err := f.Insert(page.TestingNewRecord(150, byte(i)))
		require.Nil(t, err)
		rids = append(rids, rid)
	}
	for i := 0; i < 5; i++ {
		require.Nil(t, f.Delete(rids[i*2]))
	}
	count, err := f.RecordCount()
	assert.Nil(t, err)
	assert.Equal(t, 15, count)
}

func TestRIDStability(t *testing.T) {
	f, _, err := TestingNewFile("f", buffer.DefaultNumFrames)
	require.Nil(t, err)

	kept, err := f.Insert(page.TestingNewRecord(30, 0x11))
	require.Nil(t, err)
	other, err := f.Insert(page.TestingNewRecord(30, 0x22))
	require.Nil(t, err)
	third, err := f.Insert(page.TestingNewRecord(30, 0x33))
	require.Nil(t, err)

	// churn around the kept record
	require.Nil(t, f.Delete(other))
	_, err = f.Insert(page.TestingNewRecord(30, 0x44))
	require.Nil(t, err)
	require.Nil(t, f.Update(third, page.TestingNewRecord(30, 0x55)))

	got, err := f.Select(kept)
	assert.Nil(t, err)
	assert.Equal(t, page.TestingNewRecord(30, 0x11), got)
}

func TestInsertWithTinyBufferPool(t *testing.T) {
	// every operation has to get by with three frames, so directory and
	// data pages constantly evict each other
	f, bm, err := TestingNewFile("f", 3)
	require.Nil(t, err)

	var rids []page.RID
	for i := 0; i < 12; i++ {
		rid, err := f.Insert(page.TestingNewRecord(300, byte(i)))
		require.Nil(t, err)
		rids = append(rids, rid)
	}
	for i, rid := range rids {
		got, err := f.Select(rid)
		assert.Nil(t, err)
		assert.Equal(t, page.TestingNewRecord(300, byte(i)), got)
	}
	assert.Equal(t, bm.NumFrames(), bm.NumUnpinned())
}

/*
Directory maintenance of the heap file.

The directory chain is walked under the buffer pool's pin discipline: a
directory page is pinned while it is inspected and unpinned before the walk
moves on, clean when nothing was changed and dirty otherwise.
*/
package heap

import (
	"github.com/pkg/errors"

	"github.com/hmachida/minidb/storage/buffer"
	"github.com/hmachida/minidb/storage/page"
)

// availablePage returns a data page whose directory entry promises at least
// needed bytes of free space. When no such page exists a new data page is
// allocated and its entry appended.
func (f *File) availablePage(needed int) (page.PageID, error) {
	dirID := f.headID
	for dirID.IsValid() {
		dp, err := f.bm.Pin(dirID, nil, buffer.PinDiskIO)
		if err != nil {
			return page.InvalidPageID, errors.Wrap(err, "bm.Pin failed")
		}
		n := page.EntryCount(dp)
		for i := int16(0); i < n; i++ {
			if int(page.GetEntryFreeCount(dp, i)) >= needed {
				dataID := page.GetEntryPageID(dp, i)
				if err := f.bm.Unpin(dirID, false); err != nil {
					return page.InvalidPageID, errors.Wrap(err, "bm.Unpin failed")
				}
				return dataID, nil
			}
		}
		next := page.GetNextPageID(dp)
		if err := f.bm.Unpin(dirID, false); err != nil {
			return page.InvalidPageID, errors.Wrap(err, "bm.Unpin failed")
		}
		dirID = next
	}
	return f.allocDataPage()
}

// allocDataPage allocates a new data page and appends its directory entry,
// appending a fresh directory page to the tail of the chain when every
// directory page is full. It returns the new data page's id.
func (f *File) allocDataPage() (page.PageID, error) {
	// find a directory page with room for one more entry
	dirID := f.headID
	var dp page.PagePtr
	for {
		var err error
		dp, err = f.bm.Pin(dirID, nil, buffer.PinDiskIO)
		if err != nil {
			return page.InvalidPageID, errors.Wrap(err, "bm.Pin failed")
		}
		if page.EntryCount(dp) < page.MaxEntries {
			break
		}
		next := page.GetNextPageID(dp)
		if !next.IsValid() {
			// every directory page is full: append a new one to the tail
			newDirID, ndp, err := f.bm.NewPage(page.NewPagePtr(), 1)
			if err != nil {
				f.bm.Unpin(dirID, false)
				return page.InvalidPageID, errors.Wrap(err, "bm.NewPage failed")
			}
			page.InitDirPage(ndp, newDirID)
			page.SetPrevPageID(ndp, dirID)
			page.SetNextPageID(dp, newDirID)
			if err := f.bm.Unpin(dirID, true); err != nil {
				return page.InvalidPageID, errors.Wrap(err, "bm.Unpin failed")
			}
			dirID = newDirID
			dp = ndp
			break
		}
		if err := f.bm.Unpin(dirID, false); err != nil {
			return page.InvalidPageID, errors.Wrap(err, "bm.Unpin failed")
		}
		dirID = next
	}

	// the directory page is pinned and has room; allocate the data page
	dataID, datap, err := f.bm.NewPage(page.NewPagePtr(), 1)
	if err != nil {
		f.bm.Unpin(dirID, false)
		return page.InvalidPageID, errors.Wrap(err, "bm.NewPage failed")
	}
	page.InitDataPage(datap, dataID)
	free := page.FreeSpace(datap)
	if err := f.bm.Unpin(dataID, true); err != nil {
		return page.InvalidPageID, errors.Wrap(err, "bm.Unpin failed")
	}

	i := page.EntryCount(dp)
	page.SetEntryPageID(dp, i, dataID)
	page.SetEntryRecordCount(dp, i, 0)
	page.SetEntryFreeCount(dp, i, free)
	page.SetEntryCount(dp, i+1)
	if err := f.bm.Unpin(dirID, true); err != nil {
		return page.InvalidPageID, errors.Wrap(err, "bm.Unpin failed")
	}
	return dataID, nil
}

// findEntry locates the directory entry describing the data page.
// On success the directory page is returned pinned; the caller unpins it.
func (f *File) findEntry(dataID page.PageID) (page.PageID, page.PagePtr, int16, error) {
	dirID := f.headID
	for dirID.IsValid() {
		dp, err := f.bm.Pin(dirID, nil, buffer.PinDiskIO)
		if err != nil {
			return page.InvalidPageID, nil, 0, errors.Wrap(err, "bm.Pin failed")
		}
		n := page.EntryCount(dp)
		for i := int16(0); i < n; i++ {
			if page.GetEntryPageID(dp, i) == dataID {
				return dirID, dp, i, nil
			}
		}
		next := page.GetNextPageID(dp)
		if err := f.bm.Unpin(dirID, false); err != nil {
			return page.InvalidPageID, nil, 0, errors.Wrap(err, "bm.Unpin failed")
		}
		dirID = next
	}
	return page.InvalidPageID, nil, 0, errors.Errorf("no directory entry for data page %d", dataID)
}

// updateEntry applies a record-count delta and the new free count to the
// data page's directory entry. When the record count drops below one the
// entry is removed and the data page freed.
func (f *File) updateEntry(dataID page.PageID, deltaRecords int, freeCount int16) error {
	dirID, dp, i, err := f.findEntry(dataID)
	if err != nil {
		return err
	}
	recs := int(page.GetEntryRecordCount(dp, i)) + deltaRecords
	if recs < 1 {
		return f.removeEntry(dataID, dirID, dp, i)
	}
	page.SetEntryRecordCount(dp, i, int16(recs))
	page.SetEntryFreeCount(dp, i, freeCount)
	if err := f.bm.Unpin(dirID, true); err != nil {
		return errors.Wrap(err, "bm.Unpin failed")
	}
	return nil
}

// removeEntry frees the data page and removes its directory entry. A
// non-head directory page left with no entries is unlinked from the chain
// and freed as well; the head page is always retained, even when empty,
// because it is the file's identity.
// The directory page arrives pinned and is unpinned here on every path.
func (f *File) removeEntry(dataID, dirID page.PageID, dp page.PagePtr, i int16) error {
	if err := f.bm.FreePage(dataID); err != nil {
		f.bm.Unpin(dirID, false)
		return errors.Wrap(err, "bm.FreePage failed")
	}
	page.CompactEntries(dp, i)
	count := page.EntryCount(dp) - 1
	page.SetEntryCount(dp, count)

	if count > 0 || dirID == f.headID {
		if err := f.bm.Unpin(dirID, true); err != nil {
			return errors.Wrap(err, "bm.Unpin failed")
		}
		return nil
	}

	// the directory page became empty: unlink it from the chain and free it.
	// Its own mutations are discarded with a clean unpin since the page is
	// going away anyway.
	prev := page.GetPrevPageID(dp)
	next := page.GetNextPageID(dp)
	if prev.IsValid() {
		pp, err := f.bm.Pin(prev, nil, buffer.PinDiskIO)
		if err != nil {
			f.bm.Unpin(dirID, false)
			return errors.Wrap(err, "bm.Pin failed")
		}
		page.SetNextPageID(pp, next)
		if err := f.bm.Unpin(prev, true); err != nil {
			f.bm.Unpin(dirID, false)
			return errors.Wrap(err, "bm.Unpin failed")
		}
	}
	if next.IsValid() {
		np, err := f.bm.Pin(next, nil, buffer.PinDiskIO)
		if err != nil {
			f.bm.Unpin(dirID, false)
			return errors.Wrap(err, "bm.Pin failed")
		}
		page.SetPrevPageID(np, prev)
		if err := f.bm.Unpin(next, true); err != nil {
			f.bm.Unpin(dirID, false)
			return errors.Wrap(err, "bm.Unpin failed")
		}
	}
	if err := f.bm.Unpin(dirID, false); err != nil {
		return errors.Wrap(err, "bm.Unpin failed")
	}
	if err := f.bm.FreePage(dirID); err != nil {
		return errors.Wrap(err, "bm.FreePage failed")
	}
	return nil
}

package heap

import (
	"github.com/pkg/errors"

	"github.com/hmachida/minidb/storage/buffer"
	"github.com/hmachida/minidb/storage/page"
)

// Delete removes the record at the rid and updates the directory entry.
// When the data page's record count drops to zero the entry is removed and
// the page freed; see removeEntry for the directory-page unlink rules.
func (f *File) Delete(rid page.RID) error {
	dp, err := f.bm.Pin(rid.PageID, nil, buffer.PinDiskIO)
	if err != nil {
		return errors.Wrap(err, "bm.Pin failed")
	}
	if err := page.DeleteRecord(dp, rid.Slot); err != nil {
		f.bm.Unpin(rid.PageID, false)
		return errors.Wrapf(err, "delete %s", rid)
	}
	free := page.FreeSpace(dp)
	if err := f.bm.Unpin(rid.PageID, true); err != nil {
		return errors.Wrap(err, "bm.Unpin failed")
	}
	return f.updateEntry(rid.PageID, -1, free)
}

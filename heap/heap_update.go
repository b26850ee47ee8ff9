package heap

import (
	"github.com/pkg/errors"

	"github.com/hmachida/minidb/storage/buffer"
	"github.com/hmachida/minidb/storage/page"
)

// Update overwrites the record at the rid in place. The new record must
// have the same length as the stored one; a length-changing update is
// rejected and the caller has to delete and re-insert, which yields a new
// RID. The frame is unpinned clean on failure, nothing was committed.
func (f *File) Update(rid page.RID, rec []byte) error {
	dp, err := f.bm.Pin(rid.PageID, nil, buffer.PinDiskIO)
	if err != nil {
		return errors.Wrap(err, "bm.Pin failed")
	}
	if err := page.UpdateRecord(dp, rid.Slot, rec); err != nil {
		f.bm.Unpin(rid.PageID, false)
		return errors.Wrapf(err, "update %s", rid)
	}
	if err := f.bm.Unpin(rid.PageID, true); err != nil {
		return errors.Wrap(err, "bm.Unpin failed")
	}
	return nil
}

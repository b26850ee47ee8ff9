package heap

import (
	"github.com/pkg/errors"

	"github.com/hmachida/minidb/storage/buffer"
	"github.com/hmachida/minidb/storage/page"
)

// Select reads the record stored at the rid.
func (f *File) Select(rid page.RID) ([]byte, error) {
	dp, err := f.bm.Pin(rid.PageID, nil, buffer.PinDiskIO)
	if err != nil {
		return nil, errors.Wrap(err, "bm.Pin failed")
	}
	rec, err := page.SelectRecord(dp, rid.Slot)
	if uerr := f.bm.Unpin(rid.PageID, false); uerr != nil {
		return nil, errors.Wrap(uerr, "bm.Unpin failed")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select %s", rid)
	}
	return rec, nil
}

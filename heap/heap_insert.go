package heap

import (
	"github.com/pkg/errors"

	"github.com/hmachida/minidb/storage/buffer"
	"github.com/hmachida/minidb/storage/page"
)

// Insert inserts a new record into the file and returns its RID.
// A record larger than one data page can hold is rejected with
// ErrRecordTooLarge before any page is touched.
func (f *File) Insert(rec []byte) (page.RID, error) {
	if len(rec) > page.MaxRecordSize {
		return page.RID{}, errors.Wrapf(ErrRecordTooLarge, "%d bytes, max is %d", len(rec), page.MaxRecordSize)
	}

	// the directory free counts already reserve a slot descriptor, but the
	// search asks for the record plus one more so a page found here is
	// guaranteed to take the insert
	dataID, err := f.availablePage(len(rec) + page.SlotSize)
	if err != nil {
		return page.RID{}, errors.Wrap(err, "availablePage failed")
	}

	dp, err := f.bm.Pin(dataID, nil, buffer.PinDiskIO)
	if err != nil {
		return page.RID{}, errors.Wrap(err, "bm.Pin failed")
	}
	slot, err := page.InsertRecord(dp, rec)
	if err != nil {
		f.bm.Unpin(dataID, false)
		return page.RID{}, errors.Wrap(err, "page.InsertRecord failed")
	}
	free := page.FreeSpace(dp)
	if err := f.bm.Unpin(dataID, true); err != nil {
		return page.RID{}, errors.Wrap(err, "bm.Unpin failed")
	}

	if err := f.updateEntry(dataID, 1, free); err != nil {
		return page.RID{}, errors.Wrap(err, "updateEntry failed")
	}
	return page.NewRID(dataID, slot), nil
}

/*
Heap scan is a cursor over all records of a heap file, the most basic
access path. Records are produced in directory order: data pages in the
order their entries appear on the directory chain, records in slot order
within each page.

The cursor keeps only page ids between calls; every Next() pins the pages
it touches and unpins them before returning, so no pin outlives a call and
an abandoned scan leaks nothing.
*/
package heap

import (
	"github.com/pkg/errors"

	"github.com/hmachida/minidb/storage/buffer"
	"github.com/hmachida/minidb/storage/page"
)

// ErrScanDone is returned by Next when the scan has produced every record.
var ErrScanDone = errors.New("no more records")

// Scan is a sequential scan cursor over a heap file.
type Scan struct {
	f *File
	// dirID is the directory page the cursor reads entries from.
	dirID page.PageID
	// entry is the next entry index on dirID.
	entry int16
	// dataID is the data page being scanned, invalid between pages.
	dataID page.PageID
	// slot is the next slot to inspect on dataID.
	slot int16
	done bool
}

// OpenScan initiates a sequential scan of the heap file.
func (f *File) OpenScan() *Scan {
	return &Scan{
		f:      f,
		dirID:  f.headID,
		dataID: page.InvalidPageID,
	}
}

// Next returns the next record and its RID, or ErrScanDone when the scan is
// exhausted. Records inserted behind the cursor during the scan may or may
// not be produced.
func (s *Scan) Next() (page.RID, []byte, error) {
	for !s.done {
		if !s.dataID.IsValid() {
			if !s.dirID.IsValid() {
				s.done = true
				break
			}
			dp, err := s.f.bm.Pin(s.dirID, nil, buffer.PinDiskIO)
			if err != nil {
				return page.RID{}, nil, errors.Wrap(err, "bm.Pin failed")
			}
			if s.entry >= page.EntryCount(dp) {
				next := page.GetNextPageID(dp)
				if err := s.f.bm.Unpin(s.dirID, false); err != nil {
					return page.RID{}, nil, errors.Wrap(err, "bm.Unpin failed")
				}
				s.dirID = next
				s.entry = 0
				continue
			}
			s.dataID = page.GetEntryPageID(dp, s.entry)
			s.entry++
			s.slot = 0
			if err := s.f.bm.Unpin(s.dirID, false); err != nil {
				return page.RID{}, nil, errors.Wrap(err, "bm.Unpin failed")
			}
		}

		dp, err := s.f.bm.Pin(s.dataID, nil, buffer.PinDiskIO)
		if err != nil {
			return page.RID{}, nil, errors.Wrap(err, "bm.Pin failed")
		}
		count := page.SlotCount(dp)
		for ; s.slot < count; s.slot++ {
			rec, err := page.SelectRecord(dp, s.slot)
			if err != nil {
				if errors.Is(err, page.ErrInvalidRID) {
					// empty slot, keep going
					continue
				}
				s.f.bm.Unpin(s.dataID, false)
				return page.RID{}, nil, errors.Wrap(err, "page.SelectRecord failed")
			}
			rid := page.NewRID(s.dataID, s.slot)
			s.slot++
			if err := s.f.bm.Unpin(s.dataID, false); err != nil {
				return page.RID{}, nil, errors.Wrap(err, "bm.Unpin failed")
			}
			return rid, rec, nil
		}
		if err := s.f.bm.Unpin(s.dataID, false); err != nil {
			return page.RID{}, nil, errors.Wrap(err, "bm.Unpin failed")
		}
		s.dataID = page.InvalidPageID
	}
	return page.RID{}, nil, ErrScanDone
}

// Close ends the scan. The cursor holds no pins between calls, so there is
// nothing to release; further Next calls return ErrScanDone.
func (s *Scan) Close() {
	s.done = true
}

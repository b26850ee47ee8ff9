package page

import "fmt"

// RID is the record id: the pair of the data page id and the slot number
// within that page. An RID stays stable for the lifetime of the record;
// the slot number is reused after the record is deleted.
type RID struct {
	PageID PageID
	Slot   int16
}

// NewRID returns the record id for the given page and slot.
func NewRID(pageID PageID, slot int16) RID {
	return RID{PageID: pageID, Slot: slot}
}

// String implements fmt.Stringer.
func (r RID) String() string {
	return fmt.Sprintf("(%d,%d)", r.PageID, r.Slot)
}

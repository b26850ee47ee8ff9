package page

import (
	"encoding/binary"
)

// header is the common page header and is defined just for understanding the layout.
// The fields are accessed through the get/set functions below instead of
// parsing the whole header into a struct.
//
//	offset  size  field
//	 0       4    prev page id    (int32, InvalidPageID terminator)
//	 4       4    next page id    (int32, InvalidPageID terminator)
//	 8       4    current page id (int32, self id)
//	12       2    free space ptr  (int16, offset of the first byte of the record region)
//	14       2    slot count      (int16, entry count on directory pages)
//	16       2    page type       (int16)
//	18       2    reserved
type header struct {
	prevPage     PageID
	nextPage     PageID
	currentPage  PageID
	freeSpacePtr int16
	slotCount    int16
	pageType     PageType
}

// PageType tells which layout the page payload uses.
type PageType int16

const (
	// TypeData is a slotted data page.
	TypeData PageType = 1
	// TypeDir is a heap file directory page.
	TypeDir PageType = 2
)

// byte offsets of the header fields
const (
	prevPageOffset     = 0
	nextPageOffset     = 4
	currentPageOffset  = 8
	freeSpacePtrOffset = 12
	slotCountOffset    = 14
	pageTypeOffset     = 16
	reservedOffset     = 18
	// HeaderSize is the byte size of the common page header.
	HeaderSize = 20
)

// GetPrevPageID returns the previous page id in the chain.
func GetPrevPageID(p PagePtr) PageID {
	return PageID(binary.BigEndian.Uint32(p[prevPageOffset:nextPageOffset]))
}

// SetPrevPageID sets the previous page id in the chain.
func SetPrevPageID(p PagePtr, id PageID) {
	binary.BigEndian.PutUint32(p[prevPageOffset:nextPageOffset], uint32(id))
}

// GetNextPageID returns the next page id in the chain.
func GetNextPageID(p PagePtr) PageID {
	return PageID(binary.BigEndian.Uint32(p[nextPageOffset:currentPageOffset]))
}

// SetNextPageID sets the next page id in the chain.
func SetNextPageID(p PagePtr, id PageID) {
	binary.BigEndian.PutUint32(p[nextPageOffset:currentPageOffset], uint32(id))
}

// GetCurrentPageID returns the page's own id.
func GetCurrentPageID(p PagePtr) PageID {
	return PageID(binary.BigEndian.Uint32(p[currentPageOffset:freeSpacePtrOffset]))
}

// SetCurrentPageID sets the page's own id.
func SetCurrentPageID(p PagePtr, id PageID) {
	binary.BigEndian.PutUint32(p[currentPageOffset:freeSpacePtrOffset], uint32(id))
}

// GetPageType returns the page type.
func GetPageType(p PagePtr) PageType {
	return PageType(binary.BigEndian.Uint16(p[pageTypeOffset:reservedOffset]))
}

// SetPageType sets the page type.
func SetPageType(p PagePtr, t PageType) {
	binary.BigEndian.PutUint16(p[pageTypeOffset:reservedOffset], uint16(t))
}

// SlotCount returns the number of slots on a data page.
// On directory pages the same field holds the entry count, see EntryCount.
func SlotCount(p PagePtr) int16 {
	return int16(binary.BigEndian.Uint16(p[slotCountOffset:pageTypeOffset]))
}

// setSlotCount sets the slot count field.
func setSlotCount(p PagePtr, n int16) {
	binary.BigEndian.PutUint16(p[slotCountOffset:pageTypeOffset], uint16(n))
}

// getFreeSpacePtr returns the offset of the first byte of the record region.
func getFreeSpacePtr(p PagePtr) int16 {
	return int16(binary.BigEndian.Uint16(p[freeSpacePtrOffset:slotCountOffset]))
}

// setFreeSpacePtr sets the offset of the first byte of the record region.
func setFreeSpacePtr(p PagePtr, off int16) {
	binary.BigEndian.PutUint16(p[freeSpacePtrOffset:slotCountOffset], uint16(off))
}

// initHeader resets the buffer and writes a fresh header into it.
func initHeader(p PagePtr, id PageID, t PageType, freeSpacePtr int16) {
	for i := range p {
		p[i] = 0
	}
	SetPrevPageID(p, InvalidPageID)
	SetNextPageID(p, InvalidPageID)
	SetCurrentPageID(p, id)
	setFreeSpacePtr(p, freeSpacePtr)
	setSlotCount(p, 0)
	SetPageType(p, t)
}

/*
Directory page holds the directory entries of a heap file.

After the common header, an array of 8-byte entries grows forward. Each
entry describes one data page: {pageID:int32, recordCount:int16,
freeCount:int16}. The entry count is stored in the header's slot count
field. Directory pages of one heap file form a doubly-linked list through
the header's prev/next page ids, terminated by InvalidPageID on both ends.
*/
package page

import (
	"encoding/binary"
)

// DirEntrySize is the byte size of one directory entry.
const DirEntrySize = 8

// MaxEntries is the number of directory entries which fit on one page.
const MaxEntries = (Size - HeaderSize) / DirEntrySize

// InitDirPage resets the buffer to an empty directory page with the given id.
func InitDirPage(p PagePtr, id PageID) {
	initHeader(p, id, TypeDir, Size)
}

// EntryCount returns the number of entries on the directory page.
func EntryCount(p PagePtr) int16 {
	return SlotCount(p)
}

// SetEntryCount sets the number of entries on the directory page.
func SetEntryCount(p PagePtr, n int16) {
	setSlotCount(p, n)
}

// entryOffset returns the byte offset of the directory entry.
func entryOffset(i int16) int {
	return HeaderSize + int(i)*DirEntrySize
}

// GetEntryPageID returns the data page id of the entry.
func GetEntryPageID(p PagePtr, i int16) PageID {
	eo := entryOffset(i)
	return PageID(binary.BigEndian.Uint32(p[eo : eo+4]))
}

// SetEntryPageID sets the data page id of the entry.
func SetEntryPageID(p PagePtr, i int16, id PageID) {
	eo := entryOffset(i)
	binary.BigEndian.PutUint32(p[eo:eo+4], uint32(id))
}

// GetEntryRecordCount returns the record count of the entry.
func GetEntryRecordCount(p PagePtr, i int16) int16 {
	eo := entryOffset(i)
	return int16(binary.BigEndian.Uint16(p[eo+4 : eo+6]))
}

// SetEntryRecordCount sets the record count of the entry.
func SetEntryRecordCount(p PagePtr, i int16, n int16) {
	eo := entryOffset(i)
	binary.BigEndian.PutUint16(p[eo+4:eo+6], uint16(n))
}

// GetEntryFreeCount returns the free space count of the entry.
func GetEntryFreeCount(p PagePtr, i int16) int16 {
	eo := entryOffset(i)
	return int16(binary.BigEndian.Uint16(p[eo+6 : eo+8]))
}

// SetEntryFreeCount sets the free space count of the entry.
func SetEntryFreeCount(p PagePtr, i int16, n int16) {
	eo := entryOffset(i)
	binary.BigEndian.PutUint16(p[eo+6:eo+8], uint16(n))
}

// CompactEntries removes the entry at index i by shifting the entries after
// it down by one. The entry count is not decremented here; the caller does
// so together with its entry removal bookkeeping.
func CompactEntries(p PagePtr, i int16) {
	count := EntryCount(p)
	copy(p[entryOffset(i):entryOffset(count-1)], p[entryOffset(i+1):entryOffset(count)])
}

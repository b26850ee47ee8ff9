/*
Data page is implemented with the layout called slotted page.

After the common header, an array of 4-byte slot descriptors grows forward
while the record bytes grow backward from the end of the buffer. The space
between the slot array and the record region is the free space.

	+--------+------------------------------+
	| header | slot0 slot1 ... slotN        |
	+--------+------------------------------+
	|            free space                 |
	+---------------------------------------+
	|        ... record1 record0            |
	+---------------------------------------+

A slot descriptor is {offset:int16, length:int16}. The indirection through
the slot keeps the record id stable even when records move within the page,
and permits variable-length records with constant-time lookup.
A slot whose length is -1 is empty but is retained so that the slot numbers
of the following records do not shift.
*/
package page

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// SlotSize is the byte size of one slot descriptor.
const SlotSize = 4

// MaxRecordSize is the largest record which fits on an empty data page:
// the page minus the header and one slot descriptor.
const MaxRecordSize = Size - HeaderSize - SlotSize

// emptySlotLength marks a slot with no record.
const emptySlotLength int16 = -1

var (
	// ErrInvalidRID is returned when the slot number is out of range, the
	// slot is empty, or an update does not keep the record length.
	ErrInvalidRID = errors.New("invalid rid")
	// ErrNoSpace is returned when the page cannot hold the record plus one
	// slot descriptor.
	ErrNoSpace = errors.New("not enough free space in page")
)

// InitDataPage resets the buffer to an empty data page with the given id.
func InitDataPage(p PagePtr, id PageID) {
	initHeader(p, id, TypeData, Size)
}

// slotOffset returns the byte offset of the slot descriptor.
func slotOffset(slot int16) int {
	return HeaderSize + int(slot)*SlotSize
}

// getSlot returns the record offset and length stored in the slot descriptor.
func getSlot(p PagePtr, slot int16) (off int16, length int16) {
	so := slotOffset(slot)
	off = int16(binary.BigEndian.Uint16(p[so : so+2]))
	length = int16(binary.BigEndian.Uint16(p[so+2 : so+4]))
	return off, length
}

// setSlot stores the record offset and length into the slot descriptor.
func setSlot(p PagePtr, slot int16, off, length int16) {
	so := slotOffset(slot)
	binary.BigEndian.PutUint16(p[so:so+2], uint16(off))
	binary.BigEndian.PutUint16(p[so+2:so+4], uint16(length))
}

// rawFreeSpace returns the contiguous byte count between the slot array and
// the record region.
func rawFreeSpace(p PagePtr) int {
	return int(getFreeSpacePtr(p)) - (HeaderSize + int(SlotCount(p))*SlotSize)
}

// FreeSpace returns the insertable byte count of the data page.
// Room for one more slot descriptor is already reserved, so a record of
// FreeSpace() bytes is guaranteed to fit.
func FreeSpace(p PagePtr) int16 {
	free := rawFreeSpace(p) - SlotSize
	if free < 0 {
		return 0
	}
	return int16(free)
}

// findEmptySlot returns the lowest-numbered empty slot, or -1 when every
// slot is occupied.
func findEmptySlot(p PagePtr) int16 {
	count := SlotCount(p)
	for slot := int16(0); slot < count; slot++ {
		if _, length := getSlot(p, slot); length == emptySlotLength {
			return slot
		}
	}
	return -1
}

// InsertRecord places the record at the highest unused offset of the record
// region and returns the slot number it was assigned. The lowest-numbered
// empty slot is reused when one exists; otherwise a new slot is appended.
func InsertRecord(p PagePtr, rec []byte) (int16, error) {
	if rawFreeSpace(p) < len(rec)+SlotSize {
		return -1, errors.Wrapf(ErrNoSpace, "record of %d bytes", len(rec))
	}

	slot := findEmptySlot(p)
	if slot == -1 {
		slot = SlotCount(p)
		setSlotCount(p, slot+1)
	}

	off := getFreeSpacePtr(p) - int16(len(rec))
	copy(p[off:int(off)+len(rec)], rec)
	setSlot(p, slot, off, int16(len(rec)))
	setFreeSpacePtr(p, off)
	return slot, nil
}

// checkSlot validates the slot number and returns the record's offset and length.
func checkSlot(p PagePtr, slot int16) (off int16, length int16, err error) {
	if slot < 0 || slot >= SlotCount(p) {
		return 0, 0, errors.Wrapf(ErrInvalidRID, "slot %d out of range", slot)
	}
	off, length = getSlot(p, slot)
	if length == emptySlotLength {
		return 0, 0, errors.Wrapf(ErrInvalidRID, "slot %d is empty", slot)
	}
	return off, length, nil
}

// SelectRecord returns a copy of the record bytes stored at the slot.
func SelectRecord(p PagePtr, slot int16) ([]byte, error) {
	off, length, err := checkSlot(p, slot)
	if err != nil {
		return nil, err
	}
	rec := make([]byte, length)
	copy(rec, p[off:off+length])
	return rec, nil
}

// UpdateRecord overwrites the record at the slot in place.
// The new record must have the same length as the old one; callers wanting a
// different length must delete and re-insert, which yields a new RID.
func UpdateRecord(p PagePtr, slot int16, rec []byte) error {
	off, length, err := checkSlot(p, slot)
	if err != nil {
		return err
	}
	if int(length) != len(rec) {
		return errors.Wrapf(ErrInvalidRID, "length mismatch: record is %d bytes, slot %d holds %d", len(rec), slot, length)
	}
	copy(p[off:off+length], rec)
	return nil
}

// DeleteRecord marks the slot empty and compacts the record region by
// shifting the records stored below the deleted one toward the end of the
// page, so the free space stays contiguous. Trailing empty slots are trimmed
// from the slot count.
func DeleteRecord(p PagePtr, slot int16) error {
	off, length, err := checkSlot(p, slot)
	if err != nil {
		return err
	}

	fsp := getFreeSpacePtr(p)
	// move the records between the free space and the deleted record
	copy(p[fsp+length:off+length], p[fsp:off])

	// fix up the offsets of the moved records
	count := SlotCount(p)
	for i := int16(0); i < count; i++ {
		if i == slot {
			continue
		}
		o, l := getSlot(p, i)
		if l != emptySlotLength && o < off {
			setSlot(p, i, o+length, l)
		}
	}
	setFreeSpacePtr(p, fsp+length)
	setSlot(p, slot, 0, emptySlotLength)

	// trim trailing empty slots so appended inserts reuse their space
	for count > 0 {
		if _, l := getSlot(p, count-1); l != emptySlotLength {
			break
		}
		count--
	}
	setSlotCount(p, count)
	return nil
}

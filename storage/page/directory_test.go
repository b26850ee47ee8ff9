package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectoryEntries(t *testing.T) {
	p := NewPagePtr()
	InitDirPage(p, PageID(1))

	SetEntryPageID(p, 0, PageID(9))
	SetEntryRecordCount(p, 0, 4)
	SetEntryFreeCount(p, 0, 512)
	SetEntryCount(p, 1)

	assert.Equal(t, PageID(9), GetEntryPageID(p, 0))
	assert.Equal(t, int16(4), GetEntryRecordCount(p, 0))
	assert.Equal(t, int16(512), GetEntryFreeCount(p, 0))
	assert.Equal(t, int16(1), EntryCount(p))
}

func TestMaxEntries(t *testing.T) {
	assert.Equal(t, (Size-HeaderSize)/DirEntrySize, MaxEntries)

	// the full entry array must fit on the page
	assert.LessOrEqual(t, HeaderSize+MaxEntries*DirEntrySize, Size)
}

func TestCompactEntries(t *testing.T) {
	p := NewPagePtr()
	InitDirPage(p, PageID(1))

	for i := int16(0); i < 4; i++ {
		SetEntryPageID(p, i, PageID(10+i))
		SetEntryRecordCount(p, i, i)
		SetEntryFreeCount(p, i, 100+i)
	}
	SetEntryCount(p, 4)

	CompactEntries(p, 1)
	// the caller decrements the entry count
	SetEntryCount(p, 3)

	assert.Equal(t, PageID(10), GetEntryPageID(p, 0))
	assert.Equal(t, PageID(12), GetEntryPageID(p, 1))
	assert.Equal(t, PageID(13), GetEntryPageID(p, 2))
	assert.Equal(t, int16(102), GetEntryFreeCount(p, 1))
	assert.Equal(t, int16(3), GetEntryRecordCount(p, 2))
}

/*
Heap file is an unordered collection of records stored on a set of data
pages. It supports insert, select, update, delete and a sequential scan
(see scan.go).

The file is represented on disk as a doubly-linked chain of directory
pages. Each directory entry describes one data page: its id, how many
records it holds, and how much free space it has. Every page access goes
through the buffer pool manager; a directory update only becomes durable
when the dirty frame is written back or flushed.

A heap file with an empty name is temporary: it is deleted when the handle
is closed. Named files register their head directory page with the disk
manager and can be reopened by name.
*/
package heap

import (
	"github.com/pkg/errors"

	"github.com/hmachida/minidb/storage/buffer"
	"github.com/hmachida/minidb/storage/disk"
	"github.com/hmachida/minidb/storage/page"
)

// ErrRecordTooLarge is returned when the record cannot fit on one data page.
var ErrRecordTooLarge = errors.New("record is larger than a data page")

// File is a heap file handle.
type File struct {
	bm *buffer.Manager
	dm *disk.Manager
	// name is empty for temporary files.
	name string
	// headID is the head directory page. It exists for the lifetime of the
	// file, even when it has no entries.
	headID page.PageID
	isTemp bool
}

// Open opens the heap file registered under name, creating it when absent.
// An empty name produces a temporary file which is deleted on Close.
func Open(bm *buffer.Manager, dm *disk.Manager, name string) (*File, error) {
	f := &File{
		bm:     bm,
		dm:     dm,
		name:   name,
		headID: page.InvalidPageID,
		isTemp: name == "",
	}
	if !f.isTemp {
		head, err := dm.GetFileEntry(name)
		if err == nil {
			f.headID = head
			return f, nil
		}
		if !errors.Is(err, disk.ErrNoFileEntry) {
			return nil, errors.Wrap(err, "dm.GetFileEntry failed")
		}
	}

	// the file does not exist yet: allocate the head directory page
	headID, hp, err := bm.NewPage(page.NewPagePtr(), 1)
	if err != nil {
		return nil, errors.Wrap(err, "bm.NewPage failed")
	}
	page.InitDirPage(hp, headID)
	if err := bm.Unpin(headID, true); err != nil {
		return nil, errors.Wrap(err, "bm.Unpin failed")
	}
	f.headID = headID

	if !f.isTemp {
		if err := dm.AddFileEntry(name, headID); err != nil {
			// roll the head page back so it does not leak
			if ferr := bm.FreePage(headID); ferr != nil {
				return nil, errors.Wrap(ferr, "bm.FreePage after failed AddFileEntry")
			}
			return nil, errors.Wrap(err, "dm.AddFileEntry failed")
		}
	}
	return f, nil
}

// Close releases the handle. A temporary file is deleted here; the caller
// owns this release, there is no finalizer.
func (f *File) Close() error {
	if f.isTemp && f.headID.IsValid() {
		if err := f.DeleteFile(); err != nil {
			return errors.Wrap(err, "DeleteFile failed")
		}
	}
	f.headID = page.InvalidPageID
	return nil
}

// Name returns the heap file's name. It is empty for temporary files.
func (f *File) Name() string {
	return f.name
}

// RecordCount returns the number of records in the file by summing the
// directory entries.
func (f *File) RecordCount() (int, error) {
	count := 0
	dirID := f.headID
	for dirID.IsValid() {
		dp, err := f.bm.Pin(dirID, nil, buffer.PinDiskIO)
		if err != nil {
			return 0, errors.Wrap(err, "bm.Pin failed")
		}
		n := page.EntryCount(dp)
		for i := int16(0); i < n; i++ {
			count += int(page.GetEntryRecordCount(dp, i))
		}
		next := page.GetNextPageID(dp)
		if err := f.bm.Unpin(dirID, false); err != nil {
			return 0, errors.Wrap(err, "bm.Unpin failed")
		}
		dirID = next
	}
	return count, nil
}

// DeleteFile deletes the heap file, freeing every data page and directory
// page. For a named file the disk manager entry is removed as well, so the
// name can be reused.
func (f *File) DeleteFile() error {
	dirID := f.headID
	for dirID.IsValid() {
		dp, err := f.bm.Pin(dirID, nil, buffer.PinDiskIO)
		if err != nil {
			return errors.Wrap(err, "bm.Pin failed")
		}
		n := page.EntryCount(dp)
		for i := int16(0); i < n; i++ {
			dataID := page.GetEntryPageID(dp, i)
			if err := f.bm.FreePage(dataID); err != nil {
				f.bm.Unpin(dirID, false)
				return errors.Wrap(err, "bm.FreePage failed")
			}
		}
		// advance before freeing the page under the cursor
		next := page.GetNextPageID(dp)
		if err := f.bm.Unpin(dirID, false); err != nil {
			return errors.Wrap(err, "bm.Unpin failed")
		}
		if err := f.bm.FreePage(dirID); err != nil {
			return errors.Wrap(err, "bm.FreePage failed")
		}
		dirID = next
	}
	f.headID = page.InvalidPageID

	if !f.isTemp {
		if err := f.dm.DeleteFileEntry(f.name); err != nil {
			return errors.Wrap(err, "dm.DeleteFileEntry failed")
		}
	}
	return nil
}

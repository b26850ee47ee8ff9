/*
This file defines the storage interface and its implementations.
We don't want to execute disk I/O in test, so it's better to use a byte
slice instead of an actual file there. The implementations are:
- fileStorage: wrapper of os.File
- bufferStorage: byte slice plus the current position within it
*/
package disk

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/hmachida/minidb/storage/page"
)

// storage implements the operations the disk manager needs from its backing file.
type storage interface {
	io.ReadWriteSeeker
	Size() (int64, error)
	Sync() error
	Close() error
}

// fileStorage is file-backed storage.
type fileStorage struct {
	*os.File
}

// Size returns the file's size.
func (fs fileStorage) Size() (int64, error) {
	stat, err := fs.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "Stat failed")
	}
	return stat.Size(), nil
}

// bufferStorage is in-memory storage.
type bufferStorage struct {
	// buf is the actual contents
	buf []byte
	// off is the current position
	off int
}

// newBufferStorage initializes bufferStorage.
func newBufferStorage() *bufferStorage {
	return &bufferStorage{}
}

// Size returns the buffer size.
func (bs *bufferStorage) Size() (int64, error) {
	return int64(len(bs.buf)), nil
}

// Sync doesn't do anything. An in-memory byte slice doesn't need sync.
func (bs *bufferStorage) Sync() error {
	return nil
}

// Close doesn't do anything.
func (bs *bufferStorage) Close() error {
	return nil
}

// Read reads the buffer at the current position into p.
func (bs *bufferStorage) Read(p []byte) (int, error) {
	nread := copy(p, bs.buf[bs.off:])
	bs.off += nread
	if nread != len(p) {
		return nread, io.ErrUnexpectedEOF
	}
	return nread, nil
}

// Write writes p into the buffer at the current position,
// extending the buffer when the write goes past the end.
func (bs *bufferStorage) Write(p []byte) (int, error) {
	if need := bs.off + len(p); need > len(bs.buf) {
		bs.buf = append(bs.buf, make([]byte, need-len(bs.buf))...)
	}
	nwritten := copy(bs.buf[bs.off:], p)
	bs.off += nwritten
	return nwritten, nil
}

// Seek moves the current position.
func (bs *bufferStorage) Seek(offset int64, whence int) (int64, error) {
	if whence != io.SeekStart {
		return 0, errors.Errorf("whence is unexpected: %d", whence)
	}
	bs.off = int(offset)
	return offset, nil
}

// pageOffset returns the byte offset of the page within the storage.
func pageOffset(id page.PageID) int64 {
	return int64(id) * page.Size
}

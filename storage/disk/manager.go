/*
Disk manager deals with the single database file which backs all heap files.

The file is an array of fixed-size pages. Page 0 is the database header: it
persists the page count and the named-file entry table, so a named heap file
can be reopened by name in a later process. Data and directory pages are
allocated from page 1 upward.

Deallocated pages go to an in-memory free list and are reused by later
single-page allocations. The free list is not persisted: space freed in a
previous process lifetime is not reused.
*/
package disk

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/phuslu/log"
	"github.com/pkg/errors"

	"github.com/hmachida/minidb/storage/page"
)

// magic identifies the database file format.
const magic uint32 = 0x4d444231 // "MDB1"

// maxFileNameLen bounds heap file names so the entry table fits the header page.
const maxFileNameLen = 128

var (
	// ErrInvalidPageID is returned when the page id is out of the allocated range.
	ErrInvalidPageID = errors.New("invalid page id")
	// ErrNoFileEntry is returned when no entry exists for the file name.
	ErrNoFileEntry = errors.New("no file entry")
)

// Manager manages the database file: page allocation, raw page I/O and the
// named-file entry table.
type Manager struct {
	st     storage
	logger log.Logger
	// npages is the number of pages in the file, including the header page.
	npages page.PageID
	// freeList holds deallocated page ids available for reuse.
	freeList []page.PageID
	// entries maps heap file names to their head directory page ids.
	entries map[string]page.PageID
}

// NewManager opens the database file at path, creating it when absent.
func NewManager(path string, logger log.Logger) (*Manager, error) {
	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "os.OpenFile failed")
	}
	m, err := newManager(fileStorage{fd}, logger)
	if err != nil {
		fd.Close()
		return nil, err
	}
	return m, nil
}

// newManager initializes the manager over the given storage.
func newManager(st storage, logger log.Logger) (*Manager, error) {
	m := &Manager{
		st:      st,
		logger:  logger,
		npages:  1,
		entries: make(map[string]page.PageID),
	}
	size, err := st.Size()
	if err != nil {
		return nil, errors.Wrap(err, "st.Size failed")
	}
	if size == 0 {
		// fresh database file: write the header page
		if err := m.saveHeader(); err != nil {
			return nil, errors.Wrap(err, "saveHeader failed")
		}
		return m, nil
	}
	if err := m.loadHeader(); err != nil {
		return nil, errors.Wrap(err, "loadHeader failed")
	}
	return m, nil
}

// Close syncs and closes the database file.
func (m *Manager) Close() error {
	if err := m.st.Sync(); err != nil {
		return errors.Wrap(err, "st.Sync failed")
	}
	return m.st.Close()
}

/*
header page layout, big-endian:

	offset  size  field
	 0       4    magic
	 4       4    page count
	 8       2    file entry count
	10       …    file entries: {nameLen:int16, name, headPageID:int32}
*/
func (m *Manager) saveHeader() error {
	h := page.NewPagePtr()
	binary.BigEndian.PutUint32(h[0:4], magic)
	binary.BigEndian.PutUint32(h[4:8], uint32(m.npages))
	binary.BigEndian.PutUint16(h[8:10], uint16(len(m.entries)))
	off := 10
	for name, head := range m.entries {
		binary.BigEndian.PutUint16(h[off:off+2], uint16(len(name)))
		copy(h[off+2:off+2+len(name)], name)
		off += 2 + len(name)
		binary.BigEndian.PutUint32(h[off:off+4], uint32(head))
		off += 4
	}
	if _, err := m.st.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "st.Seek failed")
	}
	if _, err := m.st.Write(h[:]); err != nil {
		return errors.Wrap(err, "st.Write failed")
	}
	return nil
}

// loadHeader parses the header page into the manager.
func (m *Manager) loadHeader() error {
	h := page.NewPagePtr()
	if _, err := m.st.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "st.Seek failed")
	}
	if _, err := io.ReadFull(m.st, h[:]); err != nil {
		return errors.Wrap(err, "io.ReadFull failed")
	}
	if got := binary.BigEndian.Uint32(h[0:4]); got != magic {
		return errors.Errorf("unexpected magic %#x", got)
	}
	m.npages = page.PageID(binary.BigEndian.Uint32(h[4:8]))
	count := int(binary.BigEndian.Uint16(h[8:10]))
	off := 10
	for i := 0; i < count; i++ {
		nameLen := int(binary.BigEndian.Uint16(h[off : off+2]))
		name := string(h[off+2 : off+2+nameLen])
		off += 2 + nameLen
		m.entries[name] = page.PageID(binary.BigEndian.Uint32(h[off : off+4]))
		off += 4
	}
	return nil
}

// headerSpaceLeft reports whether one more entry of the given name length fits.
func (m *Manager) headerSpaceLeft(nameLen int) bool {
	used := 10
	for name := range m.entries {
		used += 2 + len(name) + 4
	}
	return used+2+nameLen+4 <= page.Size
}

// AllocatePage allocates a contiguous run of pages and returns the first
// page id. A single-page request reuses a deallocated page when one exists.
func (m *Manager) AllocatePage(runSize int) (page.PageID, error) {
	if runSize < 1 {
		return page.InvalidPageID, errors.Errorf("invalid run size %d", runSize)
	}
	if runSize == 1 && len(m.freeList) > 0 {
		id := m.freeList[len(m.freeList)-1]
		m.freeList = m.freeList[:len(m.freeList)-1]
		m.logger.Debug().Int("page", int(id)).Msg("reuse deallocated page")
		return id, nil
	}

	first := m.npages
	m.npages += page.PageID(runSize)
	// extend the file with zero pages
	zero := page.NewPagePtr()
	for id := first; id < m.npages; id++ {
		if err := m.writePageAt(id, zero); err != nil {
			return page.InvalidPageID, errors.Wrap(err, "writePageAt failed")
		}
	}
	if err := m.saveHeader(); err != nil {
		return page.InvalidPageID, errors.Wrap(err, "saveHeader failed")
	}
	m.logger.Debug().Int("first", int(first)).Int("run", runSize).Msg("allocate pages")
	return first, nil
}

// DeallocatePage frees a single page for reuse.
func (m *Manager) DeallocatePage(id page.PageID) error {
	if err := m.checkPageID(id); err != nil {
		return err
	}
	m.freeList = append(m.freeList, id)
	m.logger.Debug().Int("page", int(id)).Msg("deallocate page")
	return nil
}

// ReadPage reads the page into the buffer.
func (m *Manager) ReadPage(id page.PageID, p page.PagePtr) error {
	if err := m.checkPageID(id); err != nil {
		return err
	}
	if _, err := m.st.Seek(pageOffset(id), io.SeekStart); err != nil {
		return errors.Wrap(err, "st.Seek failed")
	}
	if _, err := io.ReadFull(m.st, p[:]); err != nil {
		return errors.Wrap(err, "io.ReadFull failed")
	}
	return nil
}

// WritePage writes the buffer to the page.
func (m *Manager) WritePage(id page.PageID, p page.PagePtr) error {
	if err := m.checkPageID(id); err != nil {
		return err
	}
	return m.writePageAt(id, p)
}

// writePageAt writes the buffer at the page's offset without range checks.
func (m *Manager) writePageAt(id page.PageID, p page.PagePtr) error {
	if _, err := m.st.Seek(pageOffset(id), io.SeekStart); err != nil {
		return errors.Wrap(err, "st.Seek failed")
	}
	if _, err := m.st.Write(p[:]); err != nil {
		return errors.Wrap(err, "st.Write failed")
	}
	return nil
}

// checkPageID validates that the id refers to an allocated, non-header page.
func (m *Manager) checkPageID(id page.PageID) error {
	if id < page.FirstPageID || id >= m.npages {
		return errors.Wrapf(ErrInvalidPageID, "page %d, file has %d pages", id, m.npages)
	}
	return nil
}

// AddFileEntry registers the head directory page id under the file name.
func (m *Manager) AddFileEntry(name string, head page.PageID) error {
	if name == "" || len(name) > maxFileNameLen {
		return errors.Errorf("invalid file name %q", name)
	}
	if _, ok := m.entries[name]; ok {
		return errors.Errorf("file entry %q already exists", name)
	}
	if !m.headerSpaceLeft(len(name)) {
		return errors.Errorf("file entry table is full")
	}
	m.entries[name] = head
	if err := m.saveHeader(); err != nil {
		delete(m.entries, name)
		return errors.Wrap(err, "saveHeader failed")
	}
	m.logger.Debug().Str("name", name).Int("head", int(head)).Msg("add file entry")
	return nil
}

// GetFileEntry returns the head directory page id registered under the name.
func (m *Manager) GetFileEntry(name string) (page.PageID, error) {
	head, ok := m.entries[name]
	if !ok {
		return page.InvalidPageID, errors.Wrapf(ErrNoFileEntry, "name %q", name)
	}
	return head, nil
}

// DeleteFileEntry removes the entry registered under the name.
func (m *Manager) DeleteFileEntry(name string) error {
	if _, ok := m.entries[name]; !ok {
		return errors.Wrapf(ErrNoFileEntry, "name %q", name)
	}
	delete(m.entries, name)
	if err := m.saveHeader(); err != nil {
		return errors.Wrap(err, "saveHeader failed")
	}
	m.logger.Debug().Str("name", name).Msg("delete file entry")
	return nil
}

/*
Buffer pool manager caches disk pages in a fixed array of in-memory frames.
Disk I/O is expensive, so every page access of the heap file layer goes
through this manager.

Access rule: pin the page (via Pin()) -> read or write the frame buffer ->
unpin it (via Unpin()) with the dirty flag telling whether the buffer was
modified. A pinned frame is never evicted, so the frame buffer returned by
Pin() stays valid exactly until the matching Unpin(). Dirty frames are
written back to disk when they are evicted or flushed; an unpin with
dirty=true only marks the frame, it does not write.

The page-to-frame map and the frame table are always updated together, so
at any point the map keys are exactly the valid frames.
*/
package buffer

import (
	"github.com/phuslu/log"
	"github.com/pkg/errors"

	"github.com/hmachida/minidb/storage/disk"
	"github.com/hmachida/minidb/storage/page"
)

// DefaultNumFrames is the buffer pool size used when the caller has no
// particular requirement.
const DefaultNumFrames = 64

// ClockPolicy names the clock replacement policy.
const ClockPolicy = "Clock"

// PinMode tells Pin how to obtain the frame contents on a miss.
type PinMode int

const (
	// PinDiskIO reads the page from disk into the frame.
	PinDiskIO PinMode = iota
	// PinMemCopy copies the caller's buffer into the frame.
	PinMemCopy
	// PinNoOp leaves the frame contents undefined.
	PinNoOp
)

var (
	// ErrBufferExhausted is returned when every frame is pinned.
	ErrBufferExhausted = errors.New("all buffer frames are pinned")
	// ErrPagePinned is returned when the operation requires the page to be unpinned.
	ErrPagePinned = errors.New("page is pinned")
	// ErrPageNotResident is returned when the page is not in the pool.
	ErrPageNotResident = errors.New("page is not resident in buffer pool")
	// ErrPageNotPinned is returned when the page's pin count is already zero.
	ErrPageNotPinned = errors.New("page is not pinned")
)

// Manager manages the buffer pool.
type Manager struct {
	// dm is the disk manager the pages are read from and written to.
	dm *disk.Manager
	// frames describes the state of each pool slot.
	frames []*frameDesc
	// pool holds the page buffers, one per frame.
	pool []*[page.Size]byte
	// pageMap maps resident disk page ids to frame indexes.
	pageMap map[page.PageID]int
	// replacer picks eviction victims.
	replacer replacer
	logger   log.Logger
}

// NewManager initializes a buffer pool of numFrames frames.
// Only the "Clock" replacement policy is supported.
func NewManager(dm *disk.Manager, numFrames int, policy string, logger log.Logger) (*Manager, error) {
	if numFrames < 1 {
		return nil, errors.Errorf("invalid frame count %d", numFrames)
	}
	frames := make([]*frameDesc, numFrames)
	pool := make([]*[page.Size]byte, numFrames)
	for i := 0; i < numFrames; i++ {
		frames[i] = newFrameDesc()
		pool[i] = &[page.Size]byte{}
	}
	m := &Manager{
		dm:      dm,
		frames:  frames,
		pool:    pool,
		pageMap: make(map[page.PageID]int),
		logger:  logger,
	}
	switch policy {
	case ClockPolicy:
		m.replacer = newClock(frames)
	default:
		return nil, errors.Errorf("unknown replacement policy %q", policy)
	}
	return m, nil
}

/*
Pin ensures the page is resident, adds one pin to its frame and returns the
frame buffer. The caller has to call Unpin() after it completes using the
buffer, on every exit path.

When the page is already resident, its pin count is incremented. Otherwise a
victim frame is chosen by the replacement policy, written back when dirty,
and the new page is installed into it with contents per mode: read from disk
(PinDiskIO), copied from src (PinMemCopy), or left undefined (PinNoOp).

PinMemCopy with a resident pinned page fails with ErrPagePinned; NewPage
relies on this to catch leaked pins on reallocated page ids.
*/
func (m *Manager) Pin(pageID page.PageID, src page.PagePtr, mode PinMode) (page.PagePtr, error) {
	if !pageID.IsValid() {
		return nil, errors.Errorf("invalid page id %d", pageID)
	}

	if idx, ok := m.pageMap[pageID]; ok {
		fd := m.frames[idx]
		if mode == PinMemCopy {
			if fd.pinCount > 0 {
				return nil, errors.Wrapf(ErrPagePinned, "page %d", pageID)
			}
			copy(m.pool[idx][:], src[:])
		}
		fd.incrementPinCount()
		m.replacer.pinPage(fd)
		return m.pool[idx], nil
	}

	victim := m.replacer.pickVictim()
	if victim == -1 {
		return nil, errors.Wrapf(ErrBufferExhausted, "pin page %d", pageID)
	}
	fd := m.frames[victim]
	if fd.valid {
		if fd.dirty {
			m.logger.Debug().Int("page", int(fd.diskPageID)).Int("frame", victim).Msg("write back dirty victim")
			if err := m.dm.WritePage(fd.diskPageID, m.pool[victim]); err != nil {
				return nil, errors.Wrap(err, "dm.WritePage failed")
			}
			fd.dirty = false
		}
		delete(m.pageMap, fd.diskPageID)
	}

	switch mode {
	case PinDiskIO:
		if err := m.dm.ReadPage(pageID, m.pool[victim]); err != nil {
			fd.invalidate()
			return nil, errors.Wrap(err, "dm.ReadPage failed")
		}
	case PinMemCopy:
		copy(m.pool[victim][:], src[:])
	case PinNoOp:
		// frame contents are irrelevant to the caller
	default:
		fd.invalidate()
		return nil, errors.Errorf("unknown pin mode %d", mode)
	}

	fd.reset(pageID)
	fd.incrementPinCount()
	m.pageMap[pageID] = victim
	m.replacer.pinPage(fd)
	return m.pool[victim], nil
}

// Unpin removes one pin from the page's frame and ORs dirty into its dirty
// bit. When the pin count reaches zero the frame is marked recently used.
func (m *Manager) Unpin(pageID page.PageID, dirty bool) error {
	idx, ok := m.pageMap[pageID]
	if !ok {
		return errors.Wrapf(ErrPageNotResident, "unpin page %d", pageID)
	}
	fd := m.frames[idx]
	if fd.pinCount == 0 {
		return errors.Wrapf(ErrPageNotPinned, "unpin page %d", pageID)
	}
	fd.decrementPinCount()
	if dirty {
		fd.dirty = true
	}
	if fd.pinCount == 0 {
		fd.refBit = true
	}
	m.replacer.unpinPage(fd)
	return nil
}

// NewPage allocates a run of runSize consecutive disk pages and pins the
// first one with the contents of firstPage. It returns the first page id
// and the frame buffer the page now resides in.
// When the allocation succeeds but the pin fails, the run is deallocated so
// the disk pages do not leak.
func (m *Manager) NewPage(firstPage page.PagePtr, runSize int) (page.PageID, page.PagePtr, error) {
	if m.NumUnpinned() == 0 {
		return page.InvalidPageID, nil, errors.Wrap(ErrBufferExhausted, "new page")
	}
	pageID, err := m.dm.AllocatePage(runSize)
	if err != nil {
		return page.InvalidPageID, nil, errors.Wrap(err, "dm.AllocatePage failed")
	}
	fp, err := m.Pin(pageID, firstPage, PinMemCopy)
	if err != nil {
		// undo the allocation, the pages are not reachable by anyone yet
		for i := 0; i < runSize; i++ {
			if derr := m.dm.DeallocatePage(pageID + page.PageID(i)); derr != nil {
				m.logger.Error().Err(derr).Int("page", int(pageID)+i).Msg("deallocate after failed pin")
			}
		}
		return page.InvalidPageID, nil, errors.Wrap(err, "Pin failed")
	}
	m.replacer.newPage(m.frames[m.pageMap[pageID]])
	return pageID, fp, nil
}

// FreePage deallocates a single disk page. It fails with ErrPagePinned when
// the page is resident and pinned. A resident unpinned frame stays valid
// until it is evicted; the page id is only handed out again after the
// deallocation, and a reallocation installs fresh contents over the stale
// frame through the PinMemCopy hit path.
func (m *Manager) FreePage(pageID page.PageID) error {
	if idx, ok := m.pageMap[pageID]; ok {
		fd := m.frames[idx]
		if fd.pinCount > 0 {
			return errors.Wrapf(ErrPagePinned, "free page %d", pageID)
		}
		m.replacer.freePage(fd)
	}
	if err := m.dm.DeallocatePage(pageID); err != nil {
		return errors.Wrap(err, "dm.DeallocatePage failed")
	}
	return nil
}

// FlushPage writes the page's frame to disk when it is dirty and clears the
// dirty bit, so flushing twice writes nothing the second time. The frame
// stays resident and pinned as it was.
func (m *Manager) FlushPage(pageID page.PageID) error {
	idx, ok := m.pageMap[pageID]
	if !ok {
		return errors.Wrapf(ErrPageNotResident, "flush page %d", pageID)
	}
	return m.flushFrame(pageID, idx)
}

// FlushAllPages writes every dirty resident frame to disk.
func (m *Manager) FlushAllPages() error {
	for pageID, idx := range m.pageMap {
		if err := m.flushFrame(pageID, idx); err != nil {
			return err
		}
	}
	return nil
}

// flushFrame writes one frame when dirty and clears its dirty bit.
func (m *Manager) flushFrame(pageID page.PageID, idx int) error {
	fd := m.frames[idx]
	if !fd.valid || !fd.dirty {
		return nil
	}
	m.logger.Debug().Int("page", int(pageID)).Int("frame", idx).Msg("flush page")
	if err := m.dm.WritePage(pageID, m.pool[idx]); err != nil {
		return errors.Wrap(err, "dm.WritePage failed")
	}
	fd.dirty = false
	return nil
}

// NumFrames returns the total number of frames in the pool.
func (m *Manager) NumFrames() int {
	return len(m.frames)
}

// NumUnpinned returns the number of frames with no pins.
func (m *Manager) NumUnpinned() int {
	unpinned := 0
	for _, fd := range m.frames {
		if fd.pinCount == 0 {
			unpinned++
		}
	}
	return unpinned
}

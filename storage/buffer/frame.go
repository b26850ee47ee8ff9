/*
Frame descriptor stores the metadata about each buffer frame.

The fields drive the frame lifecycle jointly with the replacement policy:

1. pin count
- The number of logical holders of the frame. A pinned frame must not be
  evicted. The flow is: pin the frame (via Pin()) -> do anything with the
  frame buffer -> unpin it (via Unpin()) when done.
- IMPORTANT: the caller is responsible for Unpin() on every exit path.

2. dirty bit
- Set when the frame's contents diverge from the page on disk. The frame
  must be written back before eviction, and the bit is sticky: only a flush
  or an eviction write-back clears it.

3. ref bit
- Set when the pin count drops to zero, marking the frame recently used.
  The clock replacer gives such a frame a second chance before evicting it.
*/
package buffer

import (
	"github.com/hmachida/minidb/storage/page"
)

// frameDesc is the descriptor of one buffer frame.
type frameDesc struct {
	// diskPageID is the id of the page cached in the frame.
	diskPageID page.PageID
	// pinCount is the number of logical holders of the frame.
	pinCount int
	// dirty reports whether the frame diverges from disk.
	dirty bool
	// valid reports whether the frame caches any page at all.
	valid bool
	// refBit reports whether the frame was used recently.
	refBit bool
}

// newFrameDesc initializes a free frame descriptor.
func newFrameDesc() *frameDesc {
	return &frameDesc{
		diskPageID: page.InvalidPageID,
	}
}

// incrementPinCount adds one pin to the frame.
func (fd *frameDesc) incrementPinCount() {
	fd.pinCount++
}

// decrementPinCount removes one pin from the frame. It does nothing at zero;
// the manager reports that as an error before getting here.
func (fd *frameDesc) decrementPinCount() {
	if fd.pinCount > 0 {
		fd.pinCount--
	}
}

// reset binds the frame to a freshly installed page with no pins; Pin adds
// the caller's pin right after the reset.
func (fd *frameDesc) reset(id page.PageID) {
	fd.diskPageID = id
	fd.pinCount = 0
	fd.dirty = false
	fd.valid = true
	fd.refBit = false
}

// invalidate returns the frame to the free state.
func (fd *frameDesc) invalidate() {
	fd.diskPageID = page.InvalidPageID
	fd.pinCount = 0
	fd.dirty = false
	fd.valid = false
	fd.refBit = false
}

package heap

import (
	"github.com/pkg/errors"

	"github.com/hmachida/minidb/logging"
	"github.com/hmachida/minidb/storage/buffer"
	"github.com/hmachida/minidb/storage/disk"
)

// TestingNewFile initializes a heap file over an in-memory disk manager and
// a buffer pool of numFrames frames.
func TestingNewFile(name string, numFrames int) (*File, *buffer.Manager, error) {
	dm, err := disk.TestingNewManager()
	if err != nil {
		return nil, nil, errors.Wrap(err, "disk.TestingNewManager failed")
	}
	bm, err := buffer.NewManager(dm, numFrames, buffer.ClockPolicy, logging.Discard())
	if err != nil {
		return nil, nil, errors.Wrap(err, "buffer.NewManager failed")
	}
	f, err := Open(bm, dm, name)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Open failed")
	}
	return f, bm, nil
}

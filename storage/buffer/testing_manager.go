package buffer

import (
	"github.com/pkg/errors"

	"github.com/hmachida/minidb/logging"
	"github.com/hmachida/minidb/storage/disk"
)

// TestingNewManager initializes a buffer pool manager over an in-memory
// disk manager.
func TestingNewManager(numFrames int) (*Manager, error) {
	dm, err := disk.TestingNewManager()
	if err != nil {
		return nil, errors.Wrap(err, "disk.TestingNewManager failed")
	}
	return NewManager(dm, numFrames, ClockPolicy, logging.Discard())
}

package disk

import (
	"github.com/hmachida/minidb/logging"
)

// TestingNewManager initializes a disk manager over in-memory storage
// instead of an actual file. This prevents unnecessary disk I/O in test.
func TestingNewManager() (*Manager, error) {
	return newManager(newBufferStorage(), logging.Discard())
}

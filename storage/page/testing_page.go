package page

import (
	"crypto/rand"

	"github.com/pkg/errors"
)

// TestingNewRandomPage returns a page buffer filled with random bytes.
func TestingNewRandomPage() (PagePtr, error) {
	p := NewPagePtr()
	if _, err := rand.Read(p[:]); err != nil {
		return nil, errors.Wrap(err, "rand.Read failed")
	}
	return p, nil
}

// TestingNewRecord returns a record of the given size whose bytes follow a
// recognizable pattern, so tests can check round-trips.
func TestingNewRecord(size int, seed byte) []byte {
	rec := make([]byte, size)
	for i := range rec {
		rec[i] = seed + byte(i)
	}
	return rec
}

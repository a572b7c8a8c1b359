package core

import "sync/atomic"

// InvalidID is never returned by GenerateID.
const InvalidID uint32 = 0

var lastID atomic.Uint32

// GenerateID returns a process-wide unique, monotonically increasing id.
func GenerateID() uint32 {
	return lastID.Add(1)
}

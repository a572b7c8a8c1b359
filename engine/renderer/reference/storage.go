package reference

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/rhi"
)

// memoryStorage is system memory standing in for device memory.
type memoryStorage struct {
	mu        sync.Mutex
	kind      rhi.BufferKind
	data      []byte
	locked    bool
	destroyed bool
	discards  int
}

func (s *memoryStorage) Lock(offset, size int, opts rhi.LockOptions) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, fmt.Errorf("lock destroyed buffer: %w", core.ErrInvariantViolation)
	}
	if s.locked {
		return nil, core.ErrBufferLocked
	}
	if offset < 0 || size < 0 || offset+size > len(s.data) {
		return nil, core.ErrOutOfBounds
	}
	if opts == rhi.LockDiscard {
		s.discards++
	}
	s.locked = true
	return s.data[offset : offset+size], nil
}

func (s *memoryStorage) Unlock() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.locked {
		return core.ErrBufferNotLocked
	}
	s.locked = false
	return nil
}

func (s *memoryStorage) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	s.data = nil
}

package rhi

import (
	"errors"
	"sync"
)

type memStorage struct {
	data      []byte
	locked    bool
	lastOpts  LockOptions
	locks     int
	destroyed bool
}

func (s *memStorage) Lock(offset, size int, opts LockOptions) ([]byte, error) {
	if s.locked {
		return nil, errors.New("storage already locked")
	}
	s.locked = true
	s.lastOpts = opts
	s.locks++
	return s.data[offset : offset+size], nil
}

func (s *memStorage) Unlock() error {
	if !s.locked {
		return errors.New("storage not locked")
	}
	s.locked = false
	return nil
}

func (s *memStorage) Destroy() {
	s.destroyed = true
}

type memBufferFactory struct {
	storages []*memStorage
}

func (f *memBufferFactory) CreateBufferStorage(kind BufferKind, size int, usage Usage) (BufferStorage, error) {
	s := &memStorage{data: make([]byte, size)}
	f.storages = append(f.storages, s)
	return s, nil
}

type fakeStateFactory struct {
	mu        sync.Mutex
	created   int
	destroyed int
	refuse    error
}

func (f *fakeStateFactory) create() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refuse != nil {
		return nil, f.refuse
	}
	f.created++
	return f.created, nil
}

func (f *fakeStateFactory) CreateBlendState(*BlendState) (any, error)               { return f.create() }
func (f *fakeStateFactory) CreateDepthStencilState(*DepthStencilState) (any, error) { return f.create() }
func (f *fakeStateFactory) CreateRasterizerState(*RasterizerState) (any, error)     { return f.create() }
func (f *fakeStateFactory) CreateSamplerState(*SamplerState) (any, error)           { return f.create() }

func (f *fakeStateFactory) DestroyState(any) {
	f.mu.Lock()
	f.destroyed++
	f.mu.Unlock()
}

// recorder is a goroutine safe execution log.
type recorder struct {
	mu  sync.Mutex
	log []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.log = append(r.log, s)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

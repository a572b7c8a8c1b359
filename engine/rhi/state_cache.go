package rhi

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/spaghettifunk/tiny3d/engine/core"
)

// StateFactory creates the backend objects behind cached states. It must be
// safe for concurrent use.
type StateFactory interface {
	CreateBlendState(desc *BlendState) (any, error)
	CreateDepthStencilState(desc *DepthStencilState) (any, error)
	CreateRasterizerState(desc *RasterizerState) (any, error)
	CreateSamplerState(desc *SamplerState) (any, error)
	DestroyState(handle any)
}

// State is an immutable, shared pipeline state object.
type State[D any] struct {
	core.RefCounted
	desc   D
	hash   uint32
	crc    []byte
	handle any
}

func (s *State[D]) Desc() D {
	return s.desc
}

func (s *State[D]) Hash() uint32 {
	return s.hash
}

// Handle is the backend object created by the StateFactory.
func (s *State[D]) Handle() any {
	return s.handle
}

type (
	BlendStateObject        = State[BlendState]
	DepthStencilStateObject = State[DepthStencilState]
	RasterizerStateObject   = State[RasterizerState]
	SamplerStateObject      = State[SamplerState]
)

type CacheStats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

type stateTable[D any] struct {
	buckets map[uint32][]*State[D]
}

func newStateTable[D any]() *stateTable[D] {
	return &stateTable[D]{buckets: make(map[uint32][]*State[D])}
}

func (t *stateTable[D]) len() int {
	n := 0
	for _, b := range t.buckets {
		n += len(b)
	}
	return n
}

// purge drops every state nobody but the cache references.
func (t *stateTable[D]) purge() int {
	n := 0
	for h, bucket := range t.buckets {
		kept := bucket[:0]
		for _, s := range bucket {
			if s.RefCount() == 1 {
				s.Release()
				n++
				continue
			}
			kept = append(kept, s)
		}
		if len(kept) == 0 {
			delete(t.buckets, h)
		} else {
			t.buckets[h] = kept
		}
	}
	return n
}

type StateCacheOption func(*StateCache)

// WithHashFunc replaces the CRC-32 used to bucket descriptors.
func WithHashFunc(fn func([]byte) uint32) StateCacheOption {
	return func(c *StateCache) {
		c.hash = fn
	}
}

/**
 * @brief StateCache deduplicates pipeline states by content. A descriptor is
 * hashed, and on a hash match the full descriptor bytes are compared before
 * the cached object is reused, so colliding hashes never alias.
 */
type StateCache struct {
	mu      sync.Mutex
	factory StateFactory
	hash    func([]byte) uint32
	logger  *log.Logger

	blend        *stateTable[BlendState]
	depthStencil *stateTable[DepthStencilState]
	rasterizer   *stateTable[RasterizerState]
	sampler      *stateTable[SamplerState]

	hits   uint64
	misses uint64
}

func NewStateCache(factory StateFactory, opts ...StateCacheOption) *StateCache {
	c := &StateCache{
		factory:      factory,
		hash:         crc32.ChecksumIEEE,
		logger:       core.Logger("StateCache"),
		blend:        newStateTable[BlendState](),
		depthStencil: newStateTable[DepthStencilState](),
		rasterizer:   newStateTable[RasterizerState](),
		sampler:      newStateTable[SamplerState](),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// getOrCreate returns a retained state; the caller owns one reference.
func getOrCreate[D any](c *StateCache, table *stateTable[D], desc D, d Descriptor, create func(*D) (any, error)) (*State[D], error) {
	crc := d.CRCData()
	h := c.hash(crc)

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range table.buckets[h] {
		if bytes.Equal(s.crc, crc) {
			s.Retain()
			c.hits++
			return s, nil
		}
	}

	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("create %T: %w", desc, err)
	}
	handle, err := create(&desc)
	if err != nil {
		c.logger.Error("backend refused state", "type", fmt.Sprintf("%T", desc), "err", err)
		return nil, fmt.Errorf("create %T: %w", desc, err)
	}

	s := &State[D]{desc: desc, hash: h, crc: crc, handle: handle}
	factory := c.factory
	s.Init(func() { factory.DestroyState(handle) })
	// one reference for the cache, one for the caller
	s.Retain()
	table.buckets[h] = append(table.buckets[h], s)
	c.misses++
	return s, nil
}

func (c *StateCache) CreateBlendState(desc BlendState) (*BlendStateObject, error) {
	return getOrCreate(c, c.blend, desc, &desc, c.factory.CreateBlendState)
}

func (c *StateCache) CreateDepthStencilState(desc DepthStencilState) (*DepthStencilStateObject, error) {
	return getOrCreate(c, c.depthStencil, desc, &desc, c.factory.CreateDepthStencilState)
}

func (c *StateCache) CreateRasterizerState(desc RasterizerState) (*RasterizerStateObject, error) {
	return getOrCreate(c, c.rasterizer, desc, &desc, c.factory.CreateRasterizerState)
}

func (c *StateCache) CreateSamplerState(desc SamplerState) (*SamplerStateObject, error) {
	return getOrCreate(c, c.sampler, desc, &desc, c.factory.CreateSamplerState)
}

// Purge evicts states only the cache still references and returns how many
// were destroyed.
func (c *StateCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.blend.purge() + c.depthStencil.purge() + c.rasterizer.purge() + c.sampler.purge()
	if n > 0 {
		c.logger.Debug("purged unused states", "count", n)
	}
	return n
}

func (c *StateCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blend.len() + c.depthStencil.len() + c.rasterizer.len() + c.sampler.len()
}

func (c *StateCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Hits:    c.hits,
		Misses:  c.misses,
		Entries: c.blend.len() + c.depthStencil.len() + c.rasterizer.len() + c.sampler.len(),
	}
}

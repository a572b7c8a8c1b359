package core

import (
	"fmt"
	"sync/atomic"
)

// Object is anything whose lifetime is shared between several owners. The
// object is destroyed when the last owner calls Release.
type Object interface {
	Retain()
	Release()
	RefCount() int32
}

// RefCounted is an intrusive, goroutine safe reference count. A zero value is
// not usable: call Init (or NewRefCount) so the creator holds the first
// reference.
type RefCounted struct {
	refs      atomic.Int32
	onDestroy func()
}

func NewRefCount(onDestroy func()) *RefCounted {
	rc := &RefCounted{}
	rc.Init(onDestroy)
	return rc
}

// Init sets the count to 1 and registers the hook run on the 1 -> 0
// transition.
func (rc *RefCounted) Init(onDestroy func()) {
	rc.refs.Store(1)
	rc.onDestroy = onDestroy
}

// SetOnDestroy replaces the destroy hook. Embedding types use it to route
// destruction to their own cleanup.
func (rc *RefCounted) SetOnDestroy(fn func()) {
	rc.onDestroy = fn
}

func (rc *RefCounted) Retain() {
	if rc.refs.Add(1) <= 1 {
		panic(fmt.Errorf("retain on a destroyed object: %w", ErrInvariantViolation))
	}
}

func (rc *RefCounted) Release() {
	n := rc.refs.Add(-1)
	if n < 0 {
		panic(fmt.Errorf("too many releases: %w", ErrInvariantViolation))
	}
	if n == 0 && rc.onDestroy != nil {
		rc.onDestroy()
	}
}

func (rc *RefCounted) RefCount() int32 {
	return rc.refs.Load()
}

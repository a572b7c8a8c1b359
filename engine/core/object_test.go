package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefCountDestroyOnce(t *testing.T) {
	destroyed := 0
	rc := NewRefCount(func() { destroyed++ })

	rc.Retain()
	rc.Retain()
	assert.EqualValues(t, 3, rc.RefCount())

	rc.Release()
	rc.Release()
	assert.Equal(t, 0, destroyed)

	rc.Release()
	assert.Equal(t, 1, destroyed)
	assert.EqualValues(t, 0, rc.RefCount())
}

func TestRefCountConcurrent(t *testing.T) {
	var mu sync.Mutex
	destroyed := 0
	rc := NewRefCount(func() {
		mu.Lock()
		destroyed++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		rc.Retain()
		wg.Add(1)
		go func() {
			defer wg.Done()
			rc.Release()
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, rc.RefCount())
	rc.Release()
	assert.Equal(t, 1, destroyed)
}

func TestRefCountTooManyReleases(t *testing.T) {
	rc := NewRefCount(nil)
	rc.Release()
	assert.Panics(t, func() { rc.Release() })
}

func TestRetainAfterDestroyPanics(t *testing.T) {
	rc := NewRefCount(nil)
	rc.Release()
	assert.Panics(t, func() { rc.Retain() })
}

package rhi

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startThread(t *testing.T, opts ...ThreadOption) *Thread {
	t.Helper()
	th := NewThread(opts...)
	require.NoError(t, th.Init())
	require.NoError(t, th.Start(context.Background()))
	t.Cleanup(th.Stop)
	return th
}

func TestThreadDrainsOneFrameInOrder(t *testing.T) {
	th := startThread(t)
	rec := &recorder{}

	for _, name := range []string{"SetBlendState", "DrawIndexed", "SetBlendState"} {
		name := name
		require.NoError(t, th.Enqueue(name, func() error {
			rec.add(name)
			return nil
		}))
	}
	th.Flush()

	assert.Equal(t, []string{"SetBlendState", "DrawIndexed", "SetBlendState"}, rec.snapshot())
	assert.Equal(t, 0, th.Pending())
	stats := th.Stats()
	assert.EqualValues(t, 3, stats.Executed)
	assert.EqualValues(t, 1, stats.Frames)
}

func TestThreadFIFO(t *testing.T) {
	th := startThread(t)
	rec := &recorder{}
	want := make([]string, 0, 500)
	for i := 1; i <= 500; i++ {
		s := fmt.Sprint(i)
		want = append(want, s)
		require.NoError(t, th.Enqueue("append", func() error {
			rec.add(s)
			return nil
		}))
	}
	th.Flush()
	assert.Equal(t, want, rec.snapshot())
}

func TestThreadNextFrameWaitsForCurrent(t *testing.T) {
	th := startThread(t)
	rec := &recorder{}
	started := make(chan struct{})
	release := make(chan struct{})

	require.NoError(t, th.Enqueue("block", func() error {
		close(started)
		<-release
		rec.add("f1-block")
		return nil
	}))
	require.NoError(t, th.Enqueue("after", func() error {
		rec.add("f1-after")
		return nil
	}))
	th.EndFrame()
	<-started

	// the producer keeps filling the other slot while frame one drains
	for i := 0; i < 3; i++ {
		s := fmt.Sprintf("f2-%d", i)
		require.NoError(t, th.Enqueue("next", func() error {
			rec.add(s)
			return nil
		}))
	}
	assert.Empty(t, rec.snapshot())
	assert.Equal(t, 5, th.Pending())

	close(release)
	th.EndFrame()
	th.Flush()

	assert.Equal(t, []string{"f1-block", "f1-after", "f2-0", "f2-1", "f2-2"}, rec.snapshot())
	assert.EqualValues(t, 2, th.Stats().Frames)
}

func TestThreadExecutesInlineWhenNotRunning(t *testing.T) {
	th := NewThread(WithErrorHandler(func(Command, error) {}))
	ran := false
	require.NoError(t, th.Enqueue("inline", func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)

	boom := errors.New("boom")
	assert.ErrorIs(t, th.Enqueue("fail", func() error { return boom }), boom)
	assert.Equal(t, 0, th.Pending())
}

func TestThreadSurvivesFailingCommands(t *testing.T) {
	rec := &recorder{}
	var failures []string
	th := startThread(t, WithErrorHandler(func(cmd Command, err error) {
		failures = append(failures, cmd.Name())
	}))

	require.NoError(t, th.Enqueue("error", func() error { return errors.New("bad state") }))
	require.NoError(t, th.Enqueue("panic", func() error { panic("driver lost") }))
	require.NoError(t, th.Enqueue("ok", func() error {
		rec.add("ok")
		return nil
	}))
	th.Flush()

	assert.Equal(t, []string{"ok"}, rec.snapshot())
	assert.Equal(t, []string{"error", "panic"}, failures)
	assert.EqualValues(t, 2, th.Stats().Failed)
}

func TestThreadStopDropsQueuedCommands(t *testing.T) {
	th := NewThread()
	require.NoError(t, th.Init())
	require.NoError(t, th.Start(context.Background()))

	rec := &recorder{}
	for i := 0; i < 5; i++ {
		require.NoError(t, th.Enqueue("queued", func() error {
			rec.add("ran")
			return nil
		}))
	}
	th.Stop()

	assert.Empty(t, rec.snapshot())
	assert.EqualValues(t, 5, th.Stats().Dropped)
	assert.Equal(t, ThreadStopped, th.State())
	assert.Equal(t, 0, th.Pending())

	// stopped threads fall back to inline execution
	require.NoError(t, th.Enqueue("inline", func() error {
		rec.add("inline")
		return nil
	}))
	assert.Equal(t, []string{"inline"}, rec.snapshot())
}

func TestThreadCommandCleanupRunsOnce(t *testing.T) {
	th := NewThread()
	require.NoError(t, th.Init())
	require.NoError(t, th.Start(context.Background()))

	var ran, cleaned []string
	require.NoError(t, th.AddCommand(NewCommandWithCleanup("executed",
		func() error { ran = append(ran, "executed"); return nil },
		func() { cleaned = append(cleaned, "executed") })))
	th.Flush()
	assert.Equal(t, []string{"executed"}, ran)
	assert.Equal(t, []string{"executed"}, cleaned)

	for i := 0; i < 3; i++ {
		require.NoError(t, th.AddCommand(NewCommandWithCleanup("queued",
			func() error { ran = append(ran, "queued"); return nil },
			func() { cleaned = append(cleaned, "queued") })))
	}
	th.Stop()

	assert.Equal(t, []string{"executed"}, ran)
	assert.Equal(t, []string{"executed", "queued", "queued", "queued"}, cleaned)
	assert.EqualValues(t, 3, th.Stats().Dropped)

	cmd := NewCommandWithCleanup("inline", func() error { return nil }, func() { cleaned = append(cleaned, "inline") })
	require.NoError(t, th.AddCommand(cmd))
	cmd.(Discarder).Discard()
	assert.Equal(t, []string{"executed", "queued", "queued", "queued", "inline"}, cleaned)
}

func TestThreadStateMachine(t *testing.T) {
	th := NewThread()
	assert.ErrorIs(t, th.Start(context.Background()), core.ErrThreadState)
	require.NoError(t, th.Init())
	assert.ErrorIs(t, th.Init(), core.ErrThreadState)
	assert.Equal(t, ThreadInitialized, th.State())

	th.Stop()
	assert.Equal(t, ThreadStopped, th.State())
	require.NoError(t, th.Init())
}

func TestThreadStopsOnContextCancel(t *testing.T) {
	th := NewThread()
	require.NoError(t, th.Init())
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, th.Start(ctx))
	assert.True(t, th.IsRunning())

	cancel()
	require.Eventually(t, func() bool { return th.State() == ThreadStopped }, time.Second, 5*time.Millisecond)
}

func TestAddNilCommand(t *testing.T) {
	th := NewThread()
	assert.ErrorIs(t, th.AddCommand(nil), core.ErrInvariantViolation)
}

package rhi

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/spaghettifunk/tiny3d/engine/core"
)

type ThreadState uint8

const (
	ThreadStopped ThreadState = iota
	ThreadInitialized
	ThreadRunning
)

func (s ThreadState) String() string {
	switch s {
	case ThreadStopped:
		return "stopped"
	case ThreadInitialized:
		return "initialized"
	case ThreadRunning:
		return "running"
	}
	return fmt.Sprintf("ThreadState(%d)", s)
}

// ErrorHandler receives the failure of a single command. The drain loop
// keeps going after it returns.
type ErrorHandler func(cmd Command, err error)

type ThreadStats struct {
	Frames   uint64
	Executed uint64
	Failed   uint64
	Dropped  uint64
}

type ThreadOption func(*Thread)

func WithErrorHandler(h ErrorHandler) ThreadOption {
	return func(t *Thread) {
		t.onError = h
	}
}

func WithLogger(l *log.Logger) ThreadOption {
	return func(t *Thread) {
		t.logger = l
	}
}

/**
 * @brief Thread owns a double-buffered command queue. The producer appends to
 * the write slot; EndFrame hands that slot to the consumer goroutine, which
 * executes it in FIFO order while the producer fills the other slot. At most
 * one frame is in flight.
 */
type Thread struct {
	mu   sync.Mutex
	cond *sync.Cond

	lists   [2][]Command
	current int
	// a frame has been handed over and is not finished yet
	pending       bool
	state         ThreadState
	stopRequested bool
	stopping      atomic.Bool
	done          chan struct{}

	onError ErrorHandler
	logger  *log.Logger

	frames   atomic.Uint64
	executed atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64
}

func NewThread(opts ...ThreadOption) *Thread {
	t := &Thread{
		logger: core.Logger("RHI"),
	}
	t.cond = sync.NewCond(&t.mu)
	for _, o := range opts {
		o(t)
	}
	if t.onError == nil {
		t.onError = func(cmd Command, err error) {
			t.logger.Error("command failed", "command", cmd.Name(), "err", err)
		}
	}
	return t
}

// Init moves a stopped thread to the initialized state.
func (t *Thread) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != ThreadStopped {
		return fmt.Errorf("init from %s: %w", t.state, core.ErrThreadState)
	}
	t.lists[0] = t.lists[0][:0]
	t.lists[1] = t.lists[1][:0]
	t.current = 0
	t.pending = false
	t.stopRequested = false
	t.stopping.Store(false)
	t.state = ThreadInitialized
	return nil
}

// Start launches the drain goroutine. Cancelling ctx stops the thread.
func (t *Thread) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state != ThreadInitialized {
		state := t.state
		t.mu.Unlock()
		return fmt.Errorf("start from %s: %w", state, core.ErrThreadState)
	}
	t.state = ThreadRunning
	t.done = make(chan struct{})
	done := t.done
	t.mu.Unlock()

	go t.run()
	go func() {
		select {
		case <-ctx.Done():
			t.Stop()
		case <-done:
		}
	}()
	t.logger.Debug("RHI thread started")
	return nil
}

func (t *Thread) State() ThreadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Thread) IsRunning() bool {
	return t.State() == ThreadRunning
}

/**
 * @brief Queues cmd for the next frame. When the thread is not running the
 * command executes inline on the caller and its error is returned.
 */
func (t *Thread) AddCommand(cmd Command) error {
	if cmd == nil {
		return fmt.Errorf("add command: %w", core.ErrNilArgument)
	}
	t.mu.Lock()
	if t.state != ThreadRunning {
		t.mu.Unlock()
		return t.execute(cmd)
	}
	if t.stopRequested {
		t.mu.Unlock()
		t.dropped.Add(1)
		discard(cmd)
		return nil
	}
	t.lists[t.current] = append(t.lists[t.current], cmd)
	t.mu.Unlock()
	return nil
}

// Enqueue is AddCommand for a closure.
func (t *Thread) Enqueue(name string, fn CommandFunc) error {
	return t.AddCommand(NewCommand(name, fn))
}

/**
 * @brief Marks a frame boundary. Blocks until the previous frame finished
 * executing, then hands the write slot to the consumer and redirects the
 * producer to the other, empty, slot.
 */
func (t *Thread) EndFrame() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != ThreadRunning {
		return
	}
	for t.pending && !t.stopRequested {
		t.cond.Wait()
	}
	if t.stopRequested || len(t.lists[t.current]) == 0 {
		return
	}
	t.current = (t.current + 1) % 2
	t.pending = true
	t.cond.Broadcast()
}

// Flush hands over the write slot and waits until it has been executed.
func (t *Thread) Flush() {
	t.EndFrame()
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.pending && !t.stopRequested {
		t.cond.Wait()
	}
}

// Pending returns the number of queued commands not yet executed.
func (t *Thread) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lists[0]) + len(t.lists[1])
}

/**
 * @brief Stops the drain goroutine and waits for it. A command already
 * executing completes; everything still queued is dropped and discarded.
 */
func (t *Thread) Stop() {
	t.mu.Lock()
	switch {
	case t.state == ThreadInitialized:
		t.state = ThreadStopped
		t.mu.Unlock()
		return
	case t.state != ThreadRunning:
		t.mu.Unlock()
		return
	case t.stopRequested:
		done := t.done
		t.mu.Unlock()
		<-done
		return
	}
	t.stopRequested = true
	t.stopping.Store(true)
	done := t.done
	t.cond.Broadcast()
	t.mu.Unlock()

	<-done

	t.mu.Lock()
	var queued []Command
	for i := range t.lists {
		queued = append(queued, t.lists[i]...)
		clear(t.lists[i])
		t.lists[i] = t.lists[i][:0]
	}
	t.pending = false
	t.state = ThreadStopped
	t.cond.Broadcast()
	t.mu.Unlock()

	for _, cmd := range queued {
		discard(cmd)
	}
	dropped := len(queued)
	t.dropped.Add(uint64(dropped))
	if dropped > 0 {
		t.logger.Warn("RHI thread stopped with queued commands", "dropped", dropped)
	} else {
		t.logger.Debug("RHI thread stopped")
	}
}

func (t *Thread) Stats() ThreadStats {
	return ThreadStats{
		Frames:   t.frames.Load(),
		Executed: t.executed.Load(),
		Failed:   t.failed.Load(),
		Dropped:  t.dropped.Load(),
	}
}

func (t *Thread) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(t.done)

	for {
		t.mu.Lock()
		for !t.pending && !t.stopRequested {
			t.cond.Wait()
		}
		if t.stopRequested {
			t.mu.Unlock()
			return
		}
		handle := (t.current + 1) % 2
		cmds := t.lists[handle]
		t.mu.Unlock()

		ran := 0
		for _, cmd := range cmds {
			if t.stopping.Load() {
				break
			}
			_ = t.execute(cmd)
			ran++
		}

		t.mu.Lock()
		// commands skipped because of a stop stay queued and are counted as dropped
		rest := copy(cmds, cmds[ran:])
		clear(cmds[rest:])
		t.lists[handle] = cmds[:rest]
		if rest == 0 {
			t.pending = false
			t.frames.Add(1)
		}
		t.cond.Broadcast()
		t.mu.Unlock()
	}
}

// execute runs one command, turning a panic into an error so one bad
// command cannot take the drain loop down.
func (t *Thread) execute(cmd Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command %s panicked: %v", cmd.Name(), r)
		}
		t.executed.Add(1)
		if err != nil {
			t.failed.Add(1)
			t.onError(cmd, err)
		}
	}()
	return cmd.Execute()
}

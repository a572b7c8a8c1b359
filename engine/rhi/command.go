package rhi

import "sync"

// Command is one deferred GPU-affecting operation. Execute must not block and
// must not enqueue further commands on the thread that runs it.
type Command interface {
	Name() string
	Execute() error
}

// Discarder is implemented by commands holding resources that must be let go
// when the command is dropped without running.
type Discarder interface {
	Discard()
}

// CommandFunc is the body of a command. Arguments are captured by value in
// the closure at enqueue time.
type CommandFunc func() error

type command struct {
	name    string
	fn      CommandFunc
	cleanup func()
	once    sync.Once
}

// NewCommand boxes fn into a Command.
func NewCommand(name string, fn CommandFunc) Command {
	return &command{name: name, fn: fn}
}

// NewCommandWithCleanup boxes fn into a Command whose cleanup runs exactly
// once, after Execute or on Discard, whichever comes first.
func NewCommandWithCleanup(name string, fn CommandFunc, cleanup func()) Command {
	return &command{name: name, fn: fn, cleanup: cleanup}
}

func (c *command) Name() string {
	return c.name
}

func (c *command) Execute() error {
	defer c.Discard()
	if c.fn == nil {
		return nil
	}
	return c.fn()
}

func (c *command) Discard() {
	c.once.Do(func() {
		if c.cleanup != nil {
			c.cleanup()
		}
	})
}

// discard lets go of whatever a dropped command holds.
func discard(cmd Command) {
	if d, ok := cmd.(Discarder); ok {
		d.Discard()
	}
}

package engine

import (
	"github.com/spaghettifunk/tiny3d/engine/systems"
)

/**
 * @brief Game is what an application hands to the engine. Every hook is
 * optional. SystemManager is filled in by Engine.Initialize before
 * FnInitialize runs.
 */
type Game struct {
	ApplicationConfig *ApplicationConfig
	SystemManager     *systems.SystemManager
	State             interface{}
	FnBoot            Boot
	FnInitialize      Initialize
	FnUpdate          Update
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

// Boot runs before any subsystem exists and may still change the config.
type Boot func() error
type Initialize func() error
type Update func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error

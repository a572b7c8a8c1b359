package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/renderer"
	"github.com/spaghettifunk/tiny3d/engine/renderer/reference"
	"github.com/spaghettifunk/tiny3d/engine/renderer/vulkan"
	"github.com/spaghettifunk/tiny3d/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

func (s Stage) String() string {
	switch s {
	case EngineStageUninitialized:
		return "uninitialized"
	case EngineStageBooting:
		return "booting"
	case EngineStageBootComplete:
		return "boot complete"
	case EngineStageInitializing:
		return "initializing"
	case EngineStageInitialized:
		return "initialized"
	case EngineStageRunning:
		return "running"
	case EngineStageShuttingDown:
		return "shutting down"
	}
	return fmt.Sprintf("Stage(%d)", s)
}

var ErrInvalidStage = errors.New("engine is in the wrong stage")

/**
 * @brief Engine drives the frame loop: game update, scene update, culling and
 * queue render per camera, RHI frame boundary, metrics. All of it runs on the
 * goroutine that calls Run or RunFrame.
 */
type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	config        *ApplicationConfig
	bus           *core.EventBus
	systemManager *systems.SystemManager
	clock         *core.Clock
	metrics       *core.FrameMetrics
	lastTime      float64
	quit          atomic.Bool
	width         uint32
	height        uint32
	logger        *log.Logger

	// overrides the configured backend, used by tests
	backend renderer.RendererBackend
}

type EngineOption func(*Engine)

// WithBackend makes the engine render through b instead of the backend named
// in the configuration.
func WithBackend(b renderer.RendererBackend) EngineOption {
	return func(e *Engine) {
		e.backend = b
	}
}

// New boots g. A game without a config runs with the defaults.
func New(g *Game, opts ...EngineOption) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("new engine: %w", core.ErrNilArgument)
	}
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = DefaultApplicationConfig()
	}
	e := &Engine{
		currentStage: EngineStageBooting,
		gameInstance: g,
		clock:        core.NewClock(),
		metrics:      core.NewFrameMetrics(),
		logger:       core.Logger("Engine"),
	}
	for _, o := range opts {
		o(e)
	}

	if g.FnBoot != nil {
		if err := g.FnBoot(); err != nil {
			e.logger.Error("game boot failed", "err", err)
			return nil, err
		}
	}
	if err := g.ApplicationConfig.Validate(); err != nil {
		return nil, err
	}
	e.config = g.ApplicationConfig
	e.width, e.height = e.config.Application.Width, e.config.Application.Height
	core.SetLogLevel(core.ParseLogLevel(e.config.Application.LogLevel))

	e.currentStage = EngineStageBootComplete
	return e, nil
}

func (e *Engine) Stage() Stage                          { return e.currentStage }
func (e *Engine) Events() *core.EventBus                { return e.bus }
func (e *Engine) SystemManager() *systems.SystemManager { return e.systemManager }
func (e *Engine) Metrics() *core.FrameMetrics           { return e.metrics }

func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) expect(stages ...Stage) error {
	for _, s := range stages {
		if e.currentStage == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidStage, e.currentStage)
}

func (e *Engine) createBackend() (renderer.RendererBackend, error) {
	if e.backend != nil {
		return e.backend, nil
	}
	switch t := e.config.RendererType(); t {
	case renderer.Reference:
		return reference.New(), nil
	case renderer.Vulkan:
		return vulkan.New(), nil
	default:
		return nil, fmt.Errorf("%s backend: %w", t, core.ErrUnsupportedState)
	}
}

// Initialize brings every subsystem up and runs the game's initialize hook.
// Cancelling ctx stops the RHI thread.
func (e *Engine) Initialize(ctx context.Context) (err error) {
	if err := e.expect(EngineStageBootComplete); err != nil {
		return err
	}
	e.currentStage = EngineStageInitializing
	defer func() {
		if err != nil {
			e.currentStage = EngineStageBootComplete
		}
	}()

	backend, err := e.createBackend()
	if err != nil {
		return err
	}

	e.bus = core.NewEventBus()
	e.bus.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.bus.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	sm, err := systems.NewSystemManager(ctx, systems.SystemManagerConfig{
		AssetBasePath: e.config.Assets.BasePath,
		WatchAssets:   e.config.Assets.Watch,
		JobWorkers:    e.config.Jobs.Workers,
		JobQueueSize:  e.config.Jobs.QueueSize,
		Backend:       backend,
		BackendConfig: renderer.BackendConfig{
			ApplicationName: e.config.Application.Name,
			Width:           e.width,
			Height:          e.height,
		},
		Threaded: e.config.Renderer.Threaded,
	}, e.bus)
	if err != nil {
		e.bus.Shutdown()
		return err
	}
	e.systemManager = sm
	e.gameInstance.SystemManager = sm

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			e.logger.Error("game initialize failed", "err", err)
			e.systemManager = nil
			e.gameInstance.SystemManager = nil
			err = errors.Join(err, sm.Shutdown())
			e.bus.Shutdown()
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	e.logger.Info("engine initialized", "app", e.config.Application.Name, "backend", backend.Type())
	return nil
}

// Quit asks Run to return after the current frame. Safe from any goroutine.
func (e *Engine) Quit() {
	e.quit.Store(true)
}

/**
 * @brief Runs frames until ctx is done, Quit is called, an
 * EVENT_CODE_APPLICATION_QUIT event is fired or the configured frame limit
 * is reached. Frames are paced to the configured target frame rate.
 */
func (e *Engine) Run(ctx context.Context) error {
	if err := e.expect(EngineStageInitialized); err != nil {
		return err
	}
	e.currentStage = EngineStageRunning
	e.quit.Store(false)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var targetFrameSeconds float64
	if e.config.Renderer.TargetFPS > 0 {
		targetFrameSeconds = 1.0 / e.config.Renderer.TargetFPS
	}
	maxFrames := e.config.Renderer.MaxFrames

	for !e.quit.Load() {
		select {
		case <-ctx.Done():
			e.logger.Info("context done, leaving frame loop")
			return nil
		default:
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		e.lastTime = currentTime

		if _, err := e.RunFrame(delta); err != nil {
			e.logger.Error("frame failed, shutting down", "err", err)
			return err
		}

		if maxFrames > 0 && e.metrics.TotalFrames() >= maxFrames {
			e.logger.Info("frame limit reached", "frames", maxFrames)
			return nil
		}

		if targetFrameSeconds > 0 {
			e.clock.Update()
			remaining := targetFrameSeconds - (e.clock.Elapsed() - currentTime)
			if remaining > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(time.Duration(remaining * float64(time.Second))):
				}
			}
		}
	}
	e.logger.Info("quit requested, leaving frame loop")
	return nil
}

/**
 * @brief Produces one frame. Failing renders of single cameras are reported
 * in the returned error without stopping the frame; a failing game update
 * stops it.
 * @param delta Seconds since the previous frame.
 */
func (e *Engine) RunFrame(delta float64) (renderer.RenderStats, error) {
	var stats renderer.RenderStats
	if err := e.expect(EngineStageInitialized, EngineStageRunning); err != nil {
		return stats, err
	}
	start := time.Now()

	e.systemManager.Update()
	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			return stats, fmt.Errorf("game update: %w", err)
		}
	}

	r := e.systemManager.Renderer()
	if err := r.BeginFrame(); err != nil {
		return stats, err
	}
	stats, renderErr := e.systemManager.SceneManager().RenderFrame(r, e.systemManager.RenderQueue())
	if err := r.EndFrame(); err != nil {
		return stats, errors.Join(renderErr, err)
	}

	e.metrics.Update(time.Since(start).Seconds())
	return stats, renderErr
}

// Shutdown tears everything down in reverse order of creation. Calling it
// before Initialize only moves the stage.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown || e.currentStage == EngineStageUninitialized {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.clock.Stop()

	var errs []error
	if e.gameInstance.FnShutdown != nil && e.systemManager != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	if e.systemManager != nil {
		errs = append(errs, e.systemManager.Shutdown())
		e.systemManager = nil
		e.gameInstance.SystemManager = nil
	}
	if e.bus != nil {
		e.bus.Shutdown()
	}
	e.logger.Info("engine shut down", "frames", e.metrics.TotalFrames())
	e.currentStage = EngineStageUninitialized
	return errors.Join(errs...)
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		e.logger.Info("EVENT_CODE_APPLICATION_QUIT received, shutting down")
		e.Quit()
		return true
	}
	return false
}

// onResized expects the new size in U32[0] and U32[1]. It must be fired from
// the goroutine running the frame loop.
func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height
	e.logger.Debug("resized", "width", width, "height", height)
	if width == 0 || height == 0 {
		e.logger.Info("render surface minimized")
		return false
	}
	if e.systemManager != nil {
		if err := e.systemManager.Renderer().Resized(width, height); err != nil {
			e.logger.Error("renderer resize failed", "err", err)
		}
		for _, camera := range e.systemManager.SceneManager().Cameras() {
			camera.SetViewport(renderer.Viewport{Width: width, Height: height, MaxDepth: 1})
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			e.logger.Error("game resize failed", "err", err)
		}
	}
	return false
}

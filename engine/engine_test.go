package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/tiny3d/engine"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/renderer"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
	"github.com/spaghettifunk/tiny3d/engine/renderer/reference"
	"github.com/spaghettifunk/tiny3d/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseApplicationConfigDefaults(t *testing.T) {
	cfg, err := engine.ParseApplicationConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultApplicationConfig(), cfg)
	assert.Equal(t, renderer.Reference, cfg.RendererType())
	assert.True(t, cfg.Renderer.Threaded)
}

func TestParseApplicationConfig(t *testing.T) {
	cfg, err := engine.ParseApplicationConfig([]byte(`
[application]
name = "Demo"
width = 800
height = 600
log_level = "debug"

[renderer]
backend = "vulkan"
threaded = false
max_frames = 10

[assets]
base_path = "assets"
watch = true

[jobs]
workers = 2
`))
	require.NoError(t, err)
	assert.Equal(t, "Demo", cfg.Application.Name)
	assert.EqualValues(t, 800, cfg.Application.Width)
	assert.Equal(t, renderer.Vulkan, cfg.RendererType())
	assert.False(t, cfg.Renderer.Threaded)
	assert.EqualValues(t, 10, cfg.Renderer.MaxFrames)
	assert.EqualValues(t, 60, cfg.Renderer.TargetFPS)
	assert.True(t, cfg.Assets.Watch)
	assert.Equal(t, 2, cfg.Jobs.Workers)
	assert.Equal(t, 64, cfg.Jobs.QueueSize)
}

func TestParseApplicationConfigErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"syntax":      "[application\nname = 1",
		"unknown key": "[application]\ncolour = 'red'",
		"backend":     "[renderer]\nbackend = 'glide'",
		"size":        "[application]\nwidth = 0",
		"workers":     "[jobs]\nworkers = 0",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := engine.ParseApplicationConfig([]byte(doc))
			assert.ErrorIs(t, err, core.ErrInvalidContent)
		})
	}

	_, err := engine.LoadApplicationConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, core.ErrResourceNotFound)
}

func TestLoadApplicationConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.toml")
	require.NoError(t, os.WriteFile(path, []byte("[application]\nname = 'File'\n"), 0o644))
	cfg, err := engine.LoadApplicationConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "File", cfg.Application.Name)
}

type testGame struct {
	*engine.Game
	updates  int
	resized  [2]uint32
	shutdown bool
	onUpdate func(g *testGame) error
}

func newTestGame(t *testing.T) *testGame {
	t.Helper()
	cfg := engine.DefaultApplicationConfig()
	cfg.Renderer.Threaded = false
	cfg.Renderer.TargetFPS = 0
	cfg.Jobs.Workers = 1

	g := &testGame{Game: &engine.Game{ApplicationConfig: cfg}}
	g.FnInitialize = func() error {
		m := metadata.NewDefaultMaterial()
		t.Cleanup(m.Release)

		root := g.SystemManager.SceneManager().Root()
		camera := scene.NewCamera("camera")
		if err := root.AddChild(camera); err != nil {
			return err
		}
		camera.Release()

		box, err := scene.NewBox(g.SystemManager.Renderer(), "box", 1, 1, 1, m)
		if err != nil {
			return err
		}
		box.SetPosition(math.NewVec3(0, 0, -5))
		if err := root.AddChild(box); err != nil {
			return err
		}
		box.Release()
		return nil
	}
	g.FnUpdate = func(float64) error {
		g.updates++
		if g.onUpdate != nil {
			return g.onUpdate(g)
		}
		return nil
	}
	g.FnOnResize = func(w, h uint32) error {
		g.resized = [2]uint32{w, h}
		return nil
	}
	g.FnShutdown = func() error {
		g.shutdown = true
		return nil
	}
	return g
}

func newTestEngine(t *testing.T, g *testGame) (*engine.Engine, *reference.Backend) {
	t.Helper()
	backend := reference.New()
	e, err := engine.New(g.Game, engine.WithBackend(backend))
	require.NoError(t, err)
	require.NoError(t, e.Initialize(context.Background()))
	return e, backend
}

func TestEngineStages(t *testing.T) {
	_, err := engine.New(nil)
	assert.ErrorIs(t, err, core.ErrNilArgument)

	g := newTestGame(t)
	e, err := engine.New(g.Game, engine.WithBackend(reference.New()))
	require.NoError(t, err)
	assert.Equal(t, engine.EngineStageBootComplete, e.Stage())

	assert.ErrorIs(t, e.Run(context.Background()), engine.ErrInvalidStage)
	_, err = e.RunFrame(0)
	assert.ErrorIs(t, err, engine.ErrInvalidStage)

	require.NoError(t, e.Initialize(context.Background()))
	assert.Equal(t, engine.EngineStageInitialized, e.Stage())
	assert.Same(t, e.SystemManager(), g.SystemManager)
	assert.ErrorIs(t, e.Initialize(context.Background()), engine.ErrInvalidStage)

	require.NoError(t, e.Shutdown())
	assert.True(t, g.shutdown)
	assert.Nil(t, g.SystemManager)
	assert.Equal(t, engine.EngineStageUninitialized, e.Stage())
	assert.NoError(t, e.Shutdown())
}

func TestEngineRunFrameDrawsScene(t *testing.T) {
	g := newTestGame(t)
	e, backend := newTestEngine(t, g)

	stats, err := e.RunFrame(1.0 / 60.0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DrawCalls)
	assert.Equal(t, 12, stats.Primitives)
	assert.Equal(t, 1, g.updates)
	assert.EqualValues(t, 1, e.Metrics().TotalFrames())
	assert.EqualValues(t, 1, backend.Stats().Frames)

	require.NoError(t, e.Shutdown())
}

func TestEngineRunStopsAtFrameLimit(t *testing.T) {
	g := newTestGame(t)
	g.ApplicationConfig.Renderer.MaxFrames = 3
	e, _ := newTestEngine(t, g)

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 3, g.updates)
	assert.EqualValues(t, 3, e.Metrics().TotalFrames())
	require.NoError(t, e.Shutdown())
}

func TestEngineRunStopsOnQuitEvent(t *testing.T) {
	g := newTestGame(t)
	var e *engine.Engine
	g.onUpdate = func(g *testGame) error {
		if g.updates == 2 {
			e.Events().Fire(core.EVENT_CODE_APPLICATION_QUIT, g, core.EventContext{})
		}
		return nil
	}
	e, _ = newTestEngine(t, g)

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 2, g.updates)
	require.NoError(t, e.Shutdown())
}

func TestEngineRunStopsOnContext(t *testing.T) {
	g := newTestGame(t)
	ctx, cancel := context.WithCancel(context.Background())
	g.onUpdate = func(g *testGame) error {
		if g.updates == 4 {
			cancel()
		}
		return nil
	}
	e, _ := newTestEngine(t, g)

	require.NoError(t, e.Run(ctx))
	assert.Equal(t, 4, g.updates)
	require.NoError(t, e.Shutdown())
}

func TestEngineResizeEvent(t *testing.T) {
	g := newTestGame(t)
	e, _ := newTestEngine(t, g)

	var ctx core.EventContext
	ctx.Data.U32[0], ctx.Data.U32[1] = 640, 480
	e.Events().Fire(core.EVENT_CODE_RESIZED, g, ctx)

	w, h := e.GetFramebufferSize()
	assert.EqualValues(t, 640, w)
	assert.EqualValues(t, 480, h)
	assert.Equal(t, [2]uint32{640, 480}, g.resized)
	cameras := e.SystemManager().SceneManager().Cameras()
	require.Len(t, cameras, 1)
	assert.EqualValues(t, 640, cameras[0].Viewport.Width)

	require.NoError(t, e.Shutdown())
}

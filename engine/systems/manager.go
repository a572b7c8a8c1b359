package systems

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spaghettifunk/tiny3d/engine/assets"
	"github.com/spaghettifunk/tiny3d/engine/assets/codec"
	"github.com/spaghettifunk/tiny3d/engine/assets/loaders"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/renderer"
	"github.com/spaghettifunk/tiny3d/engine/scene"
)

type SystemManagerConfig struct {
	/** @brief Root of the asset directory. Empty disables the asset manager. */
	AssetBasePath string
	/** @brief Watch the asset directory and hot reload changed resources. */
	WatchAssets  bool
	JobWorkers   int
	JobQueueSize int

	Backend       renderer.RendererBackend
	BackendConfig renderer.BackendConfig
	Threaded      bool
}

/**
 * @brief SystemManager builds every engine subsystem exactly once and hands
 * them out to the engine and the game.
 *
 * Initialization order: jobs, codecs and loaders, assets, resources,
 * renderer, scene. Shutdown runs in the reverse order, except that the job
 * system drains before the resource cache is dropped.
 */
type SystemManager struct {
	jobSystem       *JobSystem
	codecs          *codec.Registry
	assetManager    *assets.AssetManager
	resourceManager *ResourceManager
	renderer        *renderer.Renderer
	renderQueue     *renderer.RenderQueue
	sceneManager    *scene.SceneManager
	logger          *log.Logger
}

func NewSystemManager(ctx context.Context, config SystemManagerConfig, bus *core.EventBus) (sm *SystemManager, err error) {
	if config.Backend == nil {
		return nil, fmt.Errorf("system manager needs a renderer backend: %w", core.ErrNilArgument)
	}
	sm = &SystemManager{logger: core.Logger("Systems")}
	// tear down whatever came up before a failure
	defer func() {
		if err != nil {
			err = errors.Join(err, sm.Shutdown())
			sm = nil
		}
	}()

	if sm.jobSystem, err = NewJobSystem(config.JobWorkers, config.JobQueueSize); err != nil {
		return sm, err
	}

	sm.codecs = codec.NewDefaultRegistry()
	builtin := loaders.Builtin(loaders.NewImageLoader(sm.codecs))

	if config.AssetBasePath != "" {
		sm.assetManager = assets.NewAssetManager(config.AssetBasePath, loaders.ExtensionTypes(builtin...), bus)
		if err = sm.assetManager.Initialize(config.WatchAssets); err != nil {
			return sm, err
		}
	}

	sm.resourceManager = NewResourceManager(sm.assetManager, sm.jobSystem, bus)
	for _, l := range builtin {
		if err = sm.resourceManager.RegisterLoader(l); err != nil {
			return sm, err
		}
	}

	r := renderer.New(config.Backend, renderer.WithThreaded(config.Threaded))
	if err = r.Initialize(ctx, config.BackendConfig); err != nil {
		return sm, err
	}
	sm.renderer = r
	sm.renderQueue = renderer.NewRenderQueue()
	sm.sceneManager = scene.NewSceneManager()

	sm.logger.Info("systems initialized", "backend", config.Backend.Type(), "workers", config.JobWorkers)
	return sm, nil
}

func (sm *SystemManager) JobSystem() *JobSystem              { return sm.jobSystem }
func (sm *SystemManager) Codecs() *codec.Registry            { return sm.codecs }
func (sm *SystemManager) AssetManager() *assets.AssetManager { return sm.assetManager }
func (sm *SystemManager) ResourceManager() *ResourceManager  { return sm.resourceManager }
func (sm *SystemManager) Renderer() *renderer.Renderer       { return sm.renderer }
func (sm *SystemManager) RenderQueue() *renderer.RenderQueue { return sm.renderQueue }
func (sm *SystemManager) SceneManager() *scene.SceneManager  { return sm.sceneManager }

// Update runs the once-per-frame housekeeping of the subsystems: finished
// job callbacks and pending resource reloads.
func (sm *SystemManager) Update() {
	sm.jobSystem.Update()
	sm.resourceManager.Update()
}

func (sm *SystemManager) Shutdown() error {
	var errs []error
	if sm.sceneManager != nil {
		sm.sceneManager.Destroy()
		sm.sceneManager = nil
	}
	if sm.renderQueue != nil {
		sm.renderQueue.Destroy()
		sm.renderQueue = nil
	}
	if sm.renderer != nil {
		errs = append(errs, sm.renderer.Shutdown())
		sm.renderer = nil
	}
	if sm.jobSystem != nil {
		errs = append(errs, sm.jobSystem.Shutdown())
	}
	if sm.resourceManager != nil {
		errs = append(errs, sm.resourceManager.Shutdown())
	}
	if sm.assetManager != nil {
		errs = append(errs, sm.assetManager.Shutdown())
	}
	return errors.Join(errs...)
}

package systems_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spaghettifunk/tiny3d/engine/assets"
	"github.com/spaghettifunk/tiny3d/engine/assets/loaders"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/renderer"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
	"github.com/spaghettifunk/tiny3d/engine/renderer/reference"
	"github.com/spaghettifunk/tiny3d/engine/systems"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobSystemConfig(t *testing.T) {
	_, err := systems.NewJobSystem(0, 1)
	assert.ErrorIs(t, err, systems.ErrNoWorkers)
	_, err = systems.NewJobSystem(1, -1)
	assert.ErrorIs(t, err, systems.ErrNegativeChannelSize)
}

func TestJobSystemDrainsOnShutdown(t *testing.T) {
	js, err := systems.NewJobSystem(4, 8)
	require.NoError(t, err)

	var ran atomic.Int32
	completed, failed := 0, 0
	for i := 0; i < 32; i++ {
		fail := i%4 == 0
		require.NoError(t, js.Submit(systems.JobTask{
			Name: "job",
			Run: func() (any, error) {
				ran.Add(1)
				if fail {
					return nil, errors.New("boom")
				}
				return 1, nil
			},
			OnComplete: func(result any) { completed += result.(int) },
			OnFailure:  func(error) { failed++ },
		}))
	}
	require.NoError(t, js.Shutdown())

	assert.EqualValues(t, 32, ran.Load())
	assert.Equal(t, 24, completed)
	assert.Equal(t, 8, failed)

	assert.ErrorIs(t, js.Submit(systems.JobTask{Run: func() (any, error) { return nil, nil }}), systems.ErrJobSystemClosed)
	assert.NoError(t, js.Shutdown())
}

func TestJobSystemCallbacksWaitForUpdate(t *testing.T) {
	js, err := systems.NewJobSystem(1, 1)
	require.NoError(t, err)
	defer js.Shutdown()

	var failure error
	require.NoError(t, js.Submit(systems.JobTask{
		Name:      "panics",
		Run:       func() (any, error) { panic("bad job") },
		OnFailure: func(err error) { failure = err },
	}))
	assert.ErrorIs(t, js.Submit(systems.JobTask{Name: "empty"}), core.ErrNilArgument)

	assert.Eventually(t, func() bool { return js.Update() == 1 }, 5*time.Second, 5*time.Millisecond)
	require.Error(t, failure)
	assert.Contains(t, failure.Error(), "bad job")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newResourceManager(t *testing.T, bus *core.EventBus) *systems.ResourceManager {
	t.Helper()
	rm := systems.NewResourceManager(nil, nil, bus)
	require.NoError(t, rm.RegisterLoader(&loaders.TextLoader{}))
	return rm
}

func TestResourceManagerSharesLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.txt")
	writeFile(t, path, "hello")
	rm := newResourceManager(t, nil)

	a, err := rm.Load(path, metadata.ResourceTypeText, nil)
	require.NoError(t, err)
	b, err := rm.Load(path, metadata.ResourceTypeText, nil)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.EqualValues(t, 2, a.RefCount())

	text, ok := systems.As[string](a)
	assert.True(t, ok)
	assert.Equal(t, "hello", text)
	_, ok = systems.As[[]byte](a)
	assert.False(t, ok)

	require.NoError(t, rm.Unload(a))
	assert.Equal(t, 1, rm.Len())
	require.NoError(t, rm.Unload(b))
	assert.Equal(t, 0, rm.Len())
	assert.ErrorIs(t, rm.Unload(a), core.ErrResourceNotFound)
	assert.ErrorIs(t, rm.Unload(nil), core.ErrNilArgument)
}

func TestResourceManagerErrors(t *testing.T) {
	rm := newResourceManager(t, nil)

	assert.ErrorIs(t, rm.RegisterLoader(&loaders.TextLoader{}), core.ErrDuplicateResource)

	res, err := rm.Load(filepath.Join(t.TempDir(), "missing.txt"), metadata.ResourceTypeText, nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, core.ErrResourceNotFound)

	res, err = rm.Load("x.mesh", metadata.ResourceTypeMesh, nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, core.ErrNoLoader)

	_, err = rm.Add("greeting", metadata.ResourceTypeText, "hi")
	require.NoError(t, err)
	_, err = rm.Add("greeting", metadata.ResourceTypeText, "again")
	assert.ErrorIs(t, err, core.ErrDuplicateResource)
	_, err = rm.Add("greeting", metadata.ResourceTypeBinary, []byte("ok"))
	assert.NoError(t, err)

	created, err := rm.Create(metadata.ResourceTypeCustom, 42)
	require.NoError(t, err)
	_, err = uuid.Parse(created.Name())
	assert.NoError(t, err)
	found, ok := rm.Find(created.Name(), metadata.ResourceTypeCustom)
	assert.True(t, ok)
	assert.Same(t, created, found)
}

func TestResourceManagerReloadsChangedAsset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shader.txt")
	writeFile(t, path, "v1")

	bus := core.NewEventBus()
	var reloaded []string
	bus.Register(core.EVENT_CODE_RESOURCE_RELOADED, t, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
		reloaded = append(reloaded, data.Data.C[0])
		return false
	})
	rm := newResourceManager(t, bus)

	res, err := rm.Load(path, metadata.ResourceTypeText, nil)
	require.NoError(t, err)

	writeFile(t, path, "v2")
	var ctx core.EventContext
	ctx.Data.C[0] = path
	ctx.Data.U32[0] = uint32(metadata.ResourceTypeText)
	ctx.Data.U32[1] = uint32(assets.AssetModified)
	bus.Fire(core.EVENT_CODE_ASSET_CHANGED, t, ctx)

	assert.Equal(t, "v1", res.Data())
	assert.Equal(t, 1, rm.Update())
	assert.Equal(t, "v2", res.Data())
	assert.Equal(t, []string{path}, reloaded)

	rm.OnAssetChanged(path, assets.AssetRemoved)
	assert.Equal(t, 0, rm.Update())
	assert.Equal(t, "v2", res.Data())

	rm.OnAssetChanged(filepath.Join(filepath.Dir(path), "other.txt"), assets.AssetModified)
	assert.Equal(t, 0, rm.Update())

	require.NoError(t, rm.Unload(res))
	require.NoError(t, rm.Shutdown())
}

func TestResourceManagerResolvesThroughAssets(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "text", "notes.txt"), "content")

	am := assets.NewAssetManager(root, loaders.ExtensionTypes(&loaders.TextLoader{}), nil)
	require.NoError(t, am.Initialize(false))
	js, err := systems.NewJobSystem(2, 4)
	require.NoError(t, err)
	defer js.Shutdown()

	rm := systems.NewResourceManager(am, js, nil)
	require.NoError(t, rm.RegisterLoader(&loaders.TextLoader{}))

	var got *systems.Resource
	var gotErr error
	require.NoError(t, rm.LoadAsync("text/notes", metadata.ResourceTypeText, nil, func(res *systems.Resource, err error) {
		got, gotErr = res, err
	}))
	var loadErr error
	require.NoError(t, rm.LoadAsync("text/absent", metadata.ResourceTypeText, nil, func(res *systems.Resource, err error) {
		loadErr = err
	}))

	require.Eventually(t, func() bool {
		js.Update()
		return (got != nil || gotErr != nil) && loadErr != nil
	}, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, gotErr)
	assert.Equal(t, "content", got.Data())
	assert.Equal(t, filepath.Join(am.Root(), "text", "notes.txt"), got.Path())
	assert.ErrorIs(t, loadErr, core.ErrResourceNotFound)
}

func TestSystemManagerLifecycle(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "readme.txt"), "tiny3d")
	bus := core.NewEventBus()

	sm, err := systems.NewSystemManager(context.Background(), systems.SystemManagerConfig{
		AssetBasePath: root,
		JobWorkers:    2,
		JobQueueSize:  8,
		Backend:       reference.New(),
		BackendConfig: renderer.BackendConfig{ApplicationName: "test", Width: 320, Height: 240},
	}, bus)
	require.NoError(t, err)

	assert.NotNil(t, sm.JobSystem())
	assert.NotNil(t, sm.Codecs())
	assert.NotNil(t, sm.Renderer())
	assert.NotNil(t, sm.RenderQueue())
	assert.NotNil(t, sm.SceneManager())
	assert.Equal(t, 1, sm.AssetManager().Len())

	res, err := sm.ResourceManager().Load("readme", metadata.ResourceTypeText, nil)
	require.NoError(t, err)
	assert.Equal(t, "tiny3d", res.Data())
	require.NoError(t, sm.ResourceManager().Unload(res))

	sm.Update()
	assert.NoError(t, sm.Shutdown())
}

func TestSystemManagerConfigErrors(t *testing.T) {
	_, err := systems.NewSystemManager(context.Background(), systems.SystemManagerConfig{JobWorkers: 1}, nil)
	assert.ErrorIs(t, err, core.ErrNilArgument)

	sm, err := systems.NewSystemManager(context.Background(), systems.SystemManagerConfig{Backend: reference.New()}, nil)
	assert.Nil(t, sm)
	assert.ErrorIs(t, err, systems.ErrNoWorkers)
}

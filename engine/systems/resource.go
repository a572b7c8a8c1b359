package systems

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spaghettifunk/tiny3d/engine/assets"
	"github.com/spaghettifunk/tiny3d/engine/assets/loaders"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
)

type resourceKey struct {
	name string
	rt   metadata.ResourceType
}

/**
 * @brief A loaded resource shared by everyone who loaded it by name. The
 * payload is whatever the loader for its type produces.
 */
type Resource struct {
	refs   core.RefCounted
	key    resourceKey
	path   string
	params any

	mu   sync.RWMutex
	data any
}

func (r *Resource) Name() string                { return r.key.name }
func (r *Resource) Type() metadata.ResourceType { return r.key.rt }
func (r *Resource) Path() string                { return r.path }
func (r *Resource) RefCount() int32             { return r.refs.RefCount() }

func (r *Resource) Data() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data
}

// setData swaps the payload and releases the previous one when it is
// reference counted.
func (r *Resource) setData(data any) {
	r.mu.Lock()
	old := r.data
	r.data = data
	r.mu.Unlock()
	if obj, ok := old.(core.Object); ok && old != data {
		obj.Release()
	}
}

// As returns the payload of r as a T.
func As[T any](r *Resource) (T, bool) {
	if r == nil {
		var zero T
		return zero, false
	}
	v, ok := r.Data().(T)
	return v, ok
}

/**
 * @brief ResourceManager owns the loader registry and the cache of loaded
 * resources. Loading a name that is already cached hands out another
 * reference to the same Resource; the entry is evicted when the last
 * reference is unloaded. Payloads implementing core.Object are owned by
 * their Resource and released on eviction and on reload.
 */
type ResourceManager struct {
	assets *assets.AssetManager
	jobs   *JobSystem
	bus    *core.EventBus
	logger *log.Logger

	mu        sync.Mutex
	loaders   map[metadata.ResourceType]loaders.Loader
	resources map[resourceKey]*Resource
	stale     map[string]assets.ChangeKind
}

// NewResourceManager wires the manager to its collaborators. Any of them may
// be nil: without an asset manager names are treated as file paths, without
// a job system LoadAsync fails, and without a bus reloads are not announced.
func NewResourceManager(am *assets.AssetManager, jobs *JobSystem, bus *core.EventBus) *ResourceManager {
	rm := &ResourceManager{
		assets:    am,
		jobs:      jobs,
		bus:       bus,
		logger:    core.Logger("Resource"),
		loaders:   make(map[metadata.ResourceType]loaders.Loader),
		resources: make(map[resourceKey]*Resource),
		stale:     make(map[string]assets.ChangeKind),
	}
	if bus != nil {
		bus.Register(core.EVENT_CODE_ASSET_CHANGED, rm, rm.onEvent)
	}
	return rm
}

func (rm *ResourceManager) RegisterLoader(l loaders.Loader) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if _, ok := rm.loaders[l.ResourceType()]; ok {
		return fmt.Errorf("loader for %s: %w", l.ResourceType(), core.ErrDuplicateResource)
	}
	rm.loaders[l.ResourceType()] = l
	rm.logger.Debug("loader registered", "type", l.ResourceType())
	return nil
}

func (rm *ResourceManager) loader(rt metadata.ResourceType) (loaders.Loader, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	l, ok := rm.loaders[rt]
	if !ok {
		return nil, fmt.Errorf("%s: %w", rt, core.ErrNoLoader)
	}
	return l, nil
}

func (rm *ResourceManager) resolve(name string, rt metadata.ResourceType) (string, error) {
	if rm.assets == nil {
		return name, nil
	}
	info, err := rm.assets.Resolve(name, rt)
	if err != nil {
		return "", err
	}
	return info.Path, nil
}

// cached retains and returns the cached resource for key. Callers hold mu.
func (rm *ResourceManager) cached(key resourceKey) *Resource {
	res, ok := rm.resources[key]
	if !ok {
		return nil
	}
	res.refs.Retain()
	return res
}

func (rm *ResourceManager) insert(res *Resource) {
	res.refs.Init(func() {
		delete(rm.resources, res.key)
		res.setData(nil)
	})
	rm.resources[res.key] = res
}

/**
 * @brief Loads the resource called name. A cached resource is retained and
 * returned instead of loading it again.
 * @returns The resource, or nil and the error when loading failed.
 */
func (rm *ResourceManager) Load(name string, rt metadata.ResourceType, params any) (*Resource, error) {
	key := resourceKey{name: name, rt: rt}
	rm.mu.Lock()
	if res := rm.cached(key); res != nil {
		rm.mu.Unlock()
		return res, nil
	}
	rm.mu.Unlock()

	l, err := rm.loader(rt)
	if err != nil {
		rm.logger.Error("cannot load resource", "name", name, "err", err)
		return nil, err
	}
	path, err := rm.resolve(name, rt)
	if err != nil {
		rm.logger.Error("cannot load resource", "name", name, "err", err)
		return nil, err
	}
	data, err := l.Load(path, params)
	if err != nil {
		err = fmt.Errorf("load %s %q: %w", rt, name, err)
		rm.logger.Error("cannot load resource", "name", name, "err", err)
		return nil, err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	// another goroutine may have finished the same load first
	if res := rm.cached(key); res != nil {
		return res, nil
	}
	res := &Resource{key: key, path: filepath.Clean(path), params: params, data: data}
	rm.insert(res)
	rm.logger.Debug("resource loaded", "name", name, "type", rt)
	return res, nil
}

// LoadAsync loads on the job system and reports through done on the next
// JobSystem.Update.
func (rm *ResourceManager) LoadAsync(name string, rt metadata.ResourceType, params any, done func(*Resource, error)) error {
	if rm.jobs == nil {
		return fmt.Errorf("async load of %q: %w", name, ErrJobSystemClosed)
	}
	return rm.jobs.Submit(JobTask{
		Name: "load " + name,
		Run: func() (any, error) {
			return rm.Load(name, rt, params)
		},
		OnComplete: func(result any) {
			if done != nil {
				done(result.(*Resource), nil)
			}
		},
		OnFailure: func(err error) {
			if done != nil {
				done(nil, err)
			}
		},
	})
}

// Add registers data loaded elsewhere under name.
func (rm *ResourceManager) Add(name string, rt metadata.ResourceType, data any) (*Resource, error) {
	key := resourceKey{name: name, rt: rt}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if _, ok := rm.resources[key]; ok {
		return nil, fmt.Errorf("%s %q: %w", rt, name, core.ErrDuplicateResource)
	}
	res := &Resource{key: key, data: data}
	rm.insert(res)
	return res, nil
}

// Create adds data under a generated unique name.
func (rm *ResourceManager) Create(rt metadata.ResourceType, data any) (*Resource, error) {
	return rm.Add(uuid.NewString(), rt, data)
}

/**
 * @brief Drops one reference to res. The resource leaves the cache when the
 * last reference is gone.
 */
func (rm *ResourceManager) Unload(res *Resource) error {
	if res == nil {
		return fmt.Errorf("unload: %w", core.ErrNilArgument)
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.resources[res.key] != res {
		return fmt.Errorf("unload %s %q: %w", res.key.rt, res.key.name, core.ErrResourceNotFound)
	}
	res.refs.Release()
	return nil
}

func (rm *ResourceManager) Find(name string, rt metadata.ResourceType) (*Resource, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	res, ok := rm.resources[resourceKey{name: name, rt: rt}]
	return res, ok
}

func (rm *ResourceManager) Len() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.resources)
}

func (rm *ResourceManager) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	_, path, _, kind := assets.AssetChange(data)
	rm.OnAssetChanged(path, kind)
	return false
}

// OnAssetChanged marks every resource loaded from path as stale. Stale
// resources are reloaded by the next Update. Safe to call from any goroutine.
func (rm *ResourceManager) OnAssetChanged(path string, kind assets.ChangeKind) {
	path = filepath.Clean(path)
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for _, res := range rm.resources {
		if res.path == path {
			rm.stale[path] = kind
			return
		}
	}
}

/**
 * @brief Reloads every stale resource in place and fires
 * EVENT_CODE_RESOURCE_RELOADED for each one that changed. A resource whose
 * file was removed keeps its last data.
 * @returns The number of resources reloaded.
 */
func (rm *ResourceManager) Update() int {
	rm.mu.Lock()
	var pending []*Resource
	for path, kind := range rm.stale {
		for _, res := range rm.resources {
			if res.path != path {
				continue
			}
			if kind == assets.AssetRemoved {
				rm.logger.Warn("resource file removed, keeping loaded data", "name", res.key.name)
				continue
			}
			pending = append(pending, res)
		}
		delete(rm.stale, path)
	}
	rm.mu.Unlock()
	sort.Slice(pending, func(i, j int) bool { return pending[i].key.name < pending[j].key.name })

	reloaded := 0
	for _, res := range pending {
		l, err := rm.loader(res.key.rt)
		if err != nil {
			continue
		}
		data, err := l.Load(res.path, res.params)
		if err != nil {
			rm.logger.Error("reload failed, keeping previous data", "name", res.key.name, "err", err)
			continue
		}
		res.setData(data)
		reloaded++
		rm.logger.Info("resource reloaded", "name", res.key.name, "type", res.key.rt)
		if rm.bus != nil {
			var ctx core.EventContext
			ctx.Data.C[0] = res.key.name
			ctx.Data.U32[0] = uint32(res.key.rt)
			rm.bus.Fire(core.EVENT_CODE_RESOURCE_RELOADED, rm, ctx)
		}
	}
	return reloaded
}

// Shutdown drops the cache. Resources still referenced are logged.
func (rm *ResourceManager) Shutdown() error {
	if rm.bus != nil {
		rm.bus.Unregister(core.EVENT_CODE_ASSET_CHANGED, rm)
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for key, res := range rm.resources {
		rm.logger.Warn("resource still referenced at shutdown", "name", key.name, "type", key.rt, "refs", res.refs.RefCount())
	}
	clear(rm.resources)
	clear(rm.stale)
	return nil
}

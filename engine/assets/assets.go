package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/platform"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
)

type ChangeKind uint32

const (
	AssetCreated ChangeKind = iota
	AssetModified
	AssetRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case AssetCreated:
		return "created"
	case AssetModified:
		return "modified"
	case AssetRemoved:
		return "removed"
	}
	return "unknown"
}

type AssetInfo struct {
	/** @brief Path relative to the asset root, slash separated, no extension. */
	Name string
	/** @brief Absolute path on disk. */
	Path    string
	Type    metadata.ResourceType
	ModTime time.Time
}

// AssetChange decodes the payload of an EVENT_CODE_ASSET_CHANGED event.
func AssetChange(ctx core.EventContext) (name, path string, rt metadata.ResourceType, kind ChangeKind) {
	return ctx.Data.C[1], ctx.Data.C[0], metadata.ResourceType(ctx.Data.U32[0]), ChangeKind(ctx.Data.U32[1])
}

/**
 * @brief AssetManager indexes the files under the asset root by resource
 * type and, when watching, keeps the index current and announces every
 * change as an EVENT_CODE_ASSET_CHANGED event. Events are fired from the
 * watcher goroutine.
 */
type AssetManager struct {
	root  string
	types map[string]metadata.ResourceType
	bus   *core.EventBus

	mu     sync.RWMutex
	assets map[string]AssetInfo

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	logger  *log.Logger
}

// NewAssetManager indexes files whose extension appears in types. Events
// go to bus, which may be nil.
func NewAssetManager(root string, types map[string]metadata.ResourceType, bus *core.EventBus) *AssetManager {
	return &AssetManager{
		root:   root,
		types:  types,
		bus:    bus,
		assets: make(map[string]AssetInfo),
		logger: core.Logger("Assets"),
	}
}

func (am *AssetManager) Root() string {
	return am.root
}

// Initialize scans the asset root and, with watch set, starts watching it.
func (am *AssetManager) Initialize(watch bool) error {
	root, err := filepath.Abs(am.root)
	if err != nil {
		return err
	}
	am.root = root
	if err := am.scan(root, false); err != nil {
		return fmt.Errorf("scan assets in %s: %w", root, err)
	}
	am.logger.Info("indexed assets", "root", root, "count", am.Len())
	if !watch {
		return nil
	}

	if am.watcher, err = fsnotify.NewWatcher(); err != nil {
		return err
	}
	if err := am.watchRecursive(root); err != nil {
		am.watcher.Close()
		am.watcher = nil
		return err
	}
	am.done = make(chan struct{})
	am.wg.Add(1)
	go am.run()
	return nil
}

func (am *AssetManager) Shutdown() error {
	if am.watcher == nil {
		return nil
	}
	close(am.done)
	am.wg.Wait()
	err := am.watcher.Close()
	am.watcher = nil
	return err
}

func (am *AssetManager) Len() int {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return len(am.assets)
}

func (am *AssetManager) nameOf(path string) string {
	rel, err := filepath.Rel(am.root, path)
	if err != nil {
		rel = path
	}
	return strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
}

// index records path and reports whether it was already known. Files with
// an unknown extension are ignored.
func (am *AssetManager) index(path string) (AssetInfo, bool, bool) {
	rt, ok := am.types[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return AssetInfo{}, false, false
	}
	info := AssetInfo{Name: am.nameOf(path), Path: path, Type: rt}
	if st, err := os.Stat(path); err == nil {
		info.ModTime = st.ModTime()
	}
	am.mu.Lock()
	_, existed := am.assets[path]
	am.assets[path] = info
	am.mu.Unlock()
	return info, existed, true
}

func (am *AssetManager) scan(dir string, notify bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if info, existed, ok := am.index(path); ok && notify && !existed {
			am.fire(info, AssetCreated)
		}
		return nil
	})
}

// Resolve finds the asset called name of type rt. name is the slash
// separated path below the root, with or without extension.
func (am *AssetManager) Resolve(name string, rt metadata.ResourceType) (AssetInfo, error) {
	am.mu.RLock()
	defer am.mu.RUnlock()
	for _, info := range am.assets {
		if info.Type != rt {
			continue
		}
		if info.Name == name || info.Name+filepath.Ext(info.Path) == name {
			return info, nil
		}
	}
	return AssetInfo{}, fmt.Errorf("%s asset %q: %w", rt, name, core.ErrResourceNotFound)
}

// Assets lists the indexed assets of type rt sorted by name.
func (am *AssetManager) Assets(rt metadata.ResourceType) []AssetInfo {
	am.mu.RLock()
	var out []AssetInfo
	for _, info := range am.assets {
		if info.Type == rt {
			out = append(out, info)
		}
	}
	am.mu.RUnlock()
	slices.SortFunc(out, func(a, b AssetInfo) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (am *AssetManager) Open(info AssetInfo) (platform.DataStream, error) {
	return platform.OpenFileDataStream(info.Path, platform.FileModeRead)
}

func (am *AssetManager) fire(info AssetInfo, kind ChangeKind) {
	am.logger.Debug("asset changed", "name", info.Name, "type", info.Type, "change", kind)
	if am.bus == nil {
		return
	}
	var ctx core.EventContext
	ctx.Data.C[0] = info.Path
	ctx.Data.C[1] = info.Name
	ctx.Data.U32[0] = uint32(info.Type)
	ctx.Data.U32[1] = uint32(kind)
	am.bus.Fire(core.EVENT_CODE_ASSET_CHANGED, am, ctx)
}

func (am *AssetManager) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return am.watcher.Add(path)
		}
		return nil
	})
}

func (am *AssetManager) run() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.watcher.Events:
			if !ok {
				return
			}
			am.handle(e)
		case err, ok := <-am.watcher.Errors:
			if !ok {
				return
			}
			am.logger.Error("watcher failed", "err", err)
		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handle(e fsnotify.Event) {
	if e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename) {
		am.mu.Lock()
		info, ok := am.assets[e.Name]
		delete(am.assets, e.Name)
		am.mu.Unlock()
		if ok {
			am.fire(info, AssetRemoved)
		}
		return
	}
	if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) {
		return
	}

	st, err := os.Stat(e.Name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			am.logger.Warn("cannot stat changed asset", "path", e.Name, "err", err)
		}
		return
	}
	if st.IsDir() {
		// files created before the watch was added are picked up by the scan
		if err := am.watchRecursive(e.Name); err != nil {
			am.logger.Error("cannot watch directory", "path", e.Name, "err", err)
		}
		if err := am.scan(e.Name, true); err != nil {
			am.logger.Error("cannot scan directory", "path", e.Name, "err", err)
		}
		return
	}
	if info, existed, ok := am.index(e.Name); ok {
		kind := AssetModified
		if !existed {
			kind = AssetCreated
		}
		am.fire(info, kind)
	}
}

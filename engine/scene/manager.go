package scene

import (
	"errors"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/renderer"
)

/** @brief The name of the node every scene hangs from. */
const RootNodeName string = "root"

/**
 * @brief SceneManager owns the root of the node tree and drives the per frame
 * pipeline: transform refresh, culling for each camera, queue rendering.
 */
type SceneManager struct {
	root   *SGTransformNode
	logger *log.Logger
}

func NewSceneManager() *SceneManager {
	return &SceneManager{
		root:   NewTransformNode(RootNodeName),
		logger: core.Logger("Scene"),
	}
}

func (sm *SceneManager) Root() *SGTransformNode {
	return sm.root
}

// Update refreshes every dirty world transform, parents first.
func (sm *SceneManager) Update() {
	sm.root.Visit(func(n Node) bool {
		if w, ok := n.(worldTransformer); ok && n.IsDirty() {
			w.WorldTransform()
		}
		return true
	})
}

// Cameras returns the visible cameras attached to the scene, in render order.
func (sm *SceneManager) Cameras() []*SGCamera {
	var cameras []*SGCamera
	sm.root.Visit(func(n Node) bool {
		if !n.IsVisible() {
			return false
		}
		if c, ok := n.(*SGCamera); ok {
			cameras = append(cameras, c)
		}
		return true
	})
	slices.SortStableFunc(cameras, func(a, b *SGCamera) int {
		return a.Order - b.Order
	})
	return cameras
}

// Cull fills queue with what camera can see.
func (sm *SceneManager) Cull(camera *SGCamera, queue *renderer.RenderQueue) error {
	if camera == nil || queue == nil {
		return fmt.Errorf("cull: %w", core.ErrNilArgument)
	}
	frustum := camera.Frustum()
	return sm.CullFrustum(&frustum, queue)
}

/**
 * @brief Walks the tree and lets every cullable node decide whether it goes
 * into queue. Invisible nodes hide their whole subtree. A failing node is
 * reported but does not stop the walk.
 */
func (sm *SceneManager) CullFrustum(frustum *math.Frustum, queue *renderer.RenderQueue) error {
	var errs []error
	sm.root.Visit(func(n Node) bool {
		if !n.IsVisible() {
			return false
		}
		if c, ok := n.(Cullable); ok {
			if err := c.FrustumCulling(frustum, queue); err != nil {
				errs = append(errs, fmt.Errorf("cull %q: %w", n.Name(), err))
			}
		}
		return true
	})
	return errors.Join(errs...)
}

/**
 * @brief Renders the scene once per camera: viewport, clear, camera
 * transforms, culling, queue render. The queue is cleared before each
 * culling pass and after the last render.
 */
func (sm *SceneManager) RenderFrame(r *renderer.Renderer, queue *renderer.RenderQueue) (renderer.RenderStats, error) {
	var total renderer.RenderStats
	if r == nil || queue == nil {
		return total, fmt.Errorf("render frame: %w", core.ErrNilArgument)
	}
	sm.Update()
	defer queue.Clear()

	var errs []error
	for _, camera := range sm.Cameras() {
		stats, err := sm.renderCamera(camera, r, queue)
		if err != nil {
			sm.logger.Error("camera render failed", "camera", camera.Name(), "err", err)
			errs = append(errs, err)
		}
		total.Groups += stats.Groups
		total.MaterialBinds += stats.MaterialBinds
		total.DrawCalls += stats.DrawCalls
		total.Primitives += stats.Primitives
		total.Lights += stats.Lights
		total.Failed += stats.Failed
	}
	return total, errors.Join(errs...)
}

func (sm *SceneManager) renderCamera(camera *SGCamera, r *renderer.Renderer, queue *renderer.RenderQueue) (renderer.RenderStats, error) {
	var stats renderer.RenderStats
	if err := r.SetViewport(camera.Viewport); err != nil {
		return stats, err
	}
	if camera.ClearFlags != 0 {
		if err := r.Clear(camera.ClearFlags, camera.ClearColour, 1, 0); err != nil {
			return stats, err
		}
	}
	if err := r.SetViewTransform(camera.ViewMatrix()); err != nil {
		return stats, err
	}
	if err := r.SetProjectionTransform(camera.ProjectionMatrix()); err != nil {
		return stats, err
	}

	queue.Clear()
	if err := sm.Cull(camera, queue); err != nil {
		sm.logger.Warn("culling reported errors", "camera", camera.Name(), "err", err)
	}
	return queue.Render(r)
}

// Destroy tears the whole tree down.
func (sm *SceneManager) Destroy() {
	if sm.root == nil {
		return
	}
	sm.root.RemoveAllChildren(true)
	sm.root.Release()
	sm.root = nil
}

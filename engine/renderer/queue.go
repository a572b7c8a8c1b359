package renderer

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
	"github.com/spaghettifunk/tiny3d/engine/rhi"
)

type GroupID uint8

/** @brief Render groups, drawn in ascending order. */
const (
	GroupBackground GroupID = iota
	/** @brief Dynamic lights. Registered with the renderer, never drawn. */
	GroupLight
	GroupSkybox
	GroupSolid
	/** @brief Drawn with a forced wireframe fill mode. */
	GroupWireframe
	GroupTransparent
	/** @brief Editor helpers, forced to wireframe like GroupWireframe. */
	GroupIndicator
	/** @brief Screen space content, drawn with an orthographic projection. */
	GroupOverlay
	GroupCount
)

func (g GroupID) String() string {
	switch g {
	case GroupBackground:
		return "background"
	case GroupLight:
		return "light"
	case GroupSkybox:
		return "skybox"
	case GroupSolid:
		return "solid"
	case GroupWireframe:
		return "wireframe"
	case GroupTransparent:
		return "transparent"
	case GroupIndicator:
		return "indicator"
	case GroupOverlay:
		return "overlay"
	}
	return fmt.Sprintf("GroupID(%d)", g)
}

// Renderable is whatever culling hands to the queue.
type Renderable interface {
	Material() *metadata.Material
	PrimitiveType() rhi.PrimitiveType
	VertexData() *rhi.VertexData
	IndexData() *rhi.IndexData
	WorldTransform() math.Mat4
}

// Light is a renderable of the light group.
type Light interface {
	LightData() metadata.LightData
}

// RenderGroup buckets the renderables of one group by material. Materials
// keep the order in which they were first seen.
type RenderGroup struct {
	materials []*metadata.Material
	buckets   map[*metadata.Material][]Renderable
}

func newRenderGroup() *RenderGroup {
	return &RenderGroup{buckets: make(map[*metadata.Material][]Renderable)}
}

func (g *RenderGroup) add(m *metadata.Material, r Renderable) {
	if _, ok := g.buckets[m]; !ok {
		m.Retain()
		g.materials = append(g.materials, m)
	}
	if o, ok := r.(core.Object); ok {
		o.Retain()
	}
	g.buckets[m] = append(g.buckets[m], r)
}

func (g *RenderGroup) clear() {
	for _, m := range g.materials {
		for _, r := range g.buckets[m] {
			if o, ok := r.(core.Object); ok {
				o.Release()
			}
		}
		m.Release()
	}
	clear(g.buckets)
	clear(g.materials)
	g.materials = g.materials[:0]
}

func (g *RenderGroup) len() int {
	n := 0
	for _, b := range g.buckets {
		n += len(b)
	}
	return n
}

// Materials returns the materials of the group in bucket order.
func (g *RenderGroup) Materials() []*metadata.Material {
	return g.materials
}

type RenderStats struct {
	Groups        int
	MaterialBinds int
	DrawCalls     int
	Primitives    int
	Lights        int
	Failed        int
}

/**
 * @brief RenderQueue collects what culling found visible for one camera and
 * issues it through the renderer group by group. It must be cleared once per
 * frame before the next culling pass.
 */
type RenderQueue struct {
	groups   [GroupCount]*RenderGroup
	fallback *metadata.Material
	logger   *log.Logger
}

func NewRenderQueue() *RenderQueue {
	q := &RenderQueue{
		fallback: metadata.NewDefaultMaterial(),
		logger:   core.Logger("RenderQueue"),
	}
	for i := range q.groups {
		q.groups[i] = newRenderGroup()
	}
	return q
}

// AddRenderable files r under (group, r's material). Renderables without a
// material go to the default material. The material, and r when it is a
// core.Object, stay retained until the queue is cleared.
func (q *RenderQueue) AddRenderable(group GroupID, r Renderable) error {
	if r == nil {
		return fmt.Errorf("add renderable: %w", core.ErrNilArgument)
	}
	if group >= GroupCount {
		return fmt.Errorf("add renderable to %s: %w", group, core.ErrOutOfBounds)
	}
	m := r.Material()
	if m == nil {
		m = q.fallback
	}
	q.groups[group].add(m, r)
	return nil
}

// Bucket returns the renderables of (group, material) in insertion order.
func (q *RenderQueue) Bucket(group GroupID, m *metadata.Material) []Renderable {
	if group >= GroupCount {
		return nil
	}
	if m == nil {
		m = q.fallback
	}
	return q.groups[group].buckets[m]
}

func (q *RenderQueue) Group(group GroupID) *RenderGroup {
	if group >= GroupCount {
		return nil
	}
	return q.groups[group]
}

func (q *RenderQueue) Len() int {
	n := 0
	for _, g := range q.groups {
		n += g.len()
	}
	return n
}

func (q *RenderQueue) Clear() {
	for _, g := range q.groups {
		g.clear()
	}
}

// Destroy releases the fallback material.
func (q *RenderQueue) Destroy() {
	q.Clear()
	if q.fallback != nil {
		q.fallback.Release()
		q.fallback = nil
	}
}

func (q *RenderQueue) applyOverrides(group GroupID, r *Renderer) (restore func() error, err error) {
	switch group {
	case GroupWireframe, GroupIndicator:
		r.PushRenderMode(rhi.FillModeWireframe)
		return r.PopRenderMode, nil
	case GroupOverlay:
		if err := r.PushProjection(r.OrthographicProjection()); err != nil {
			return nil, err
		}
		return r.PopProjection, nil
	}
	return func() error { return nil }, nil
}

func (q *RenderQueue) renderLights(g *RenderGroup, r *Renderer, stats *RenderStats) {
	var lights []metadata.LightData
	for _, m := range g.materials {
		for _, rd := range g.buckets[m] {
			if l, ok := rd.(Light); ok {
				lights = append(lights, l.LightData())
			}
		}
	}
	if err := r.SetLights(lights); err != nil {
		q.logger.Error("failed to register lights", "err", err)
		stats.Failed++
		return
	}
	stats.Lights += len(lights)
}

/**
 * @brief Issues every bucket through r. Within a group each material is
 * bound once per pass, then its renderables are drawn in insertion order.
 * A failing bind or draw is logged and counted; the rest still renders.
 * Group overrides are always undone before the next group.
 */
func (q *RenderQueue) Render(r *Renderer) (RenderStats, error) {
	var stats RenderStats
	if r == nil {
		return stats, fmt.Errorf("render: %w", core.ErrNilArgument)
	}
	var errs []error
	for id, g := range q.groups {
		group := GroupID(id)
		if len(g.materials) == 0 {
			continue
		}
		stats.Groups++
		if group == GroupLight {
			q.renderLights(g, r, &stats)
			continue
		}

		restore, err := q.applyOverrides(group, r)
		if err != nil {
			q.logger.Error("failed to apply group override", "group", group, "err", err)
			stats.Failed++
			continue
		}
		for _, m := range g.materials {
			q.renderBucket(group, m, g.buckets[m], r, &stats)
		}
		if err := restore(); err != nil {
			errs = append(errs, fmt.Errorf("restore %s overrides: %w", group, err))
		}
	}
	return stats, errors.Join(errs...)
}

func (q *RenderQueue) renderBucket(group GroupID, m *metadata.Material, bucket []Renderable, r *Renderer, stats *RenderStats) {
	passes := m.Passes
	if len(passes) == 0 {
		passes = q.fallback.Passes
	}
	for _, pass := range passes {
		if err := r.BindPass(pass); err != nil {
			q.logger.Error("failed to bind material", "group", group, "material", m.GetName(), "pass", pass.Name, "err", err)
			stats.Failed++
			continue
		}
		stats.MaterialBinds++
		for _, rd := range bucket {
			if err := r.SetWorldTransform(rd.WorldTransform()); err != nil {
				q.logger.Error("failed to set world transform", "material", m.GetName(), "err", err)
				stats.Failed++
				continue
			}
			n, err := r.Draw(rd.PrimitiveType(), rd.VertexData(), rd.IndexData())
			if err != nil {
				q.logger.Error("draw failed", "group", group, "material", m.GetName(), "err", err)
				stats.Failed++
				continue
			}
			if n > 0 {
				stats.DrawCalls++
				stats.Primitives += n
			}
		}
	}
}

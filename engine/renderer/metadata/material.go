package metadata

import (
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/rhi"
)

/** @brief The name of the default material. */
const DefaultMaterialName string = "default"

/**
 * @brief A texture binding of a pass: which texture, sampled how.
 */
type TextureUnit struct {
	/** @brief The name of the texture resource. */
	TextureName string
	/** @brief The sampler used for this unit. */
	Sampler rhi.SamplerState
	/** @brief The resolved texture, nil until the resource is loaded. */
	Texture *Texture
	/** @brief Cached sampler state object, created on first bind. */
	SamplerObject *rhi.SamplerStateObject
}

/**
 * @brief One rendering pass of a material: the fixed-function state plus the
 * textures it samples.
 */
type Pass struct {
	Name         string
	Blend        rhi.BlendState
	DepthStencil rhi.DepthStencilState
	Rasterizer   rhi.RasterizerState
	TextureUnits []*TextureUnit

	BlendObject        *rhi.BlendStateObject
	DepthStencilObject *rhi.DepthStencilStateObject
	RasterizerObject   *rhi.RasterizerStateObject
}

func NewPass(name string) *Pass {
	return &Pass{
		Name:         name,
		Blend:        rhi.DefaultBlendState(),
		DepthStencil: rhi.DefaultDepthStencilState(),
		Rasterizer:   rhi.DefaultRasterizerState(),
	}
}

// ReleaseStates drops the cached state objects of the pass.
func (p *Pass) ReleaseStates() {
	if p.BlendObject != nil {
		p.BlendObject.Release()
		p.BlendObject = nil
	}
	if p.DepthStencilObject != nil {
		p.DepthStencilObject.Release()
		p.DepthStencilObject = nil
	}
	if p.RasterizerObject != nil {
		p.RasterizerObject.Release()
		p.RasterizerObject = nil
	}
	for _, tu := range p.TextureUnits {
		if tu.SamplerObject != nil {
			tu.SamplerObject.Release()
			tu.SamplerObject = nil
		}
	}
}

/**
 * @brief A material, which represents various properties
 * of a surface in the world such as texture, colour and blending.
 * Materials are shared; the render queue buckets renderables by material
 * identity.
 */
type Material struct {
	core.RefCounted
	/** @brief The material id. */
	ID uint32
	/** @brief The material name. */
	Name string
	/** @brief The diffuse colour. */
	DiffuseColour math.Vec4
	/** @brief The material shininess. */
	Shininess float32
	/** @brief The passes in draw order. */
	Passes []*Pass
	/** @brief Incremented every time the material is reloaded. */
	Generation uint32
}

func NewMaterial(name string) *Material {
	m := &Material{
		ID:            core.GenerateID(),
		Name:          name,
		DiffuseColour: math.NewVec4(1, 1, 1, 1),
	}
	m.Init(func() {
		for _, p := range m.Passes {
			p.ReleaseStates()
		}
	})
	return m
}

// NewDefaultMaterial returns an opaque single pass material.
func NewDefaultMaterial() *Material {
	m := NewMaterial(DefaultMaterialName)
	m.Passes = append(m.Passes, NewPass("main"))
	return m
}

func (m *Material) GetName() string {
	return m.Name
}

/**
 * @brief Material configuration typically loaded from
 * a file or created in code to load a material from.
 */
type MaterialConfig struct {
	Name          string               `toml:"name"`
	DiffuseColour [4]float32           `toml:"diffuse_colour"`
	Shininess     float32              `toml:"shininess"`
	Passes        []MaterialPassConfig `toml:"pass"`
}

type MaterialPassConfig struct {
	Name string `toml:"name"`
	// opaque | alpha | additive
	Blend      string `toml:"blend"`
	DepthTest  *bool  `toml:"depth_test"`
	DepthWrite *bool  `toml:"depth_write"`
	// solid | wireframe | point
	Fill string `toml:"fill"`
	// none | front | back
	Cull     string                      `toml:"cull"`
	Textures []MaterialTextureUnitConfig `toml:"texture"`
}

type MaterialTextureUnitConfig struct {
	Name string `toml:"name"`
	// point | linear | anisotropic
	Filter        string `toml:"filter"`
	Address       string `toml:"address"`
	MaxAnisotropy uint32 `toml:"max_anisotropy"`
}

package loaders

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
	"github.com/spaghettifunk/tiny3d/engine/rhi"
)

/**
 * @brief MaterialLoader reads TOML material files:
 *
 *	name = "crate"
 *	diffuse_colour = [1.0, 1.0, 1.0, 1.0]
 *	[[pass]]
 *	name = "main"
 *	blend = "alpha"
 *	[[pass.texture]]
 *	name = "crate_diffuse"
 *	filter = "linear"
 */
type MaterialLoader struct{}

func (ml *MaterialLoader) ResourceType() metadata.ResourceType { return metadata.ResourceTypeMaterial }
func (ml *MaterialLoader) Extensions() []string                { return []string{".mat"} }

// Load returns a *metadata.Material holding one reference.
func (ml *MaterialLoader) Load(path string, params any) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, core.ErrResourceNotFound, err)
	}
	cfg, err := ParseMaterialConfig(data)
	if err != nil {
		return nil, fmt.Errorf("material %s: %w", path, err)
	}
	return BuildMaterial(cfg)
}

func ParseMaterialConfig(data []byte) (*metadata.MaterialConfig, error) {
	cfg := &metadata.MaterialConfig{DiffuseColour: [4]float32{1, 1, 1, 1}}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidContent, err)
	}
	if err := validateMaterial(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateMaterial(cfg *metadata.MaterialConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("material name is required: %w", core.ErrInvalidContent)
	}
	for _, c := range cfg.DiffuseColour {
		if c < 0 || c > 1 {
			return fmt.Errorf("diffuse_colour values must be between 0.0 and 1.0: %w", core.ErrInvalidContent)
		}
	}
	if cfg.Shininess < 0 {
		return fmt.Errorf("shininess must be a non-negative value: %w", core.ErrInvalidContent)
	}
	for i, p := range cfg.Passes {
		for j, tu := range p.Textures {
			if tu.Name == "" {
				return fmt.Errorf("pass %d texture %d has no name: %w", i, j, core.ErrInvalidContent)
			}
		}
	}
	return nil
}

/**
 * @brief Builds a material from its configuration. A configuration without
 * passes gets a single default pass. State combinations the backend cannot
 * draw surface later, when the pass is bound.
 */
func BuildMaterial(cfg *metadata.MaterialConfig) (*metadata.Material, error) {
	m := metadata.NewMaterial(cfg.Name)
	m.DiffuseColour = math.NewVec4(cfg.DiffuseColour[0], cfg.DiffuseColour[1], cfg.DiffuseColour[2], cfg.DiffuseColour[3])
	m.Shininess = cfg.Shininess

	passes := cfg.Passes
	if len(passes) == 0 {
		passes = []metadata.MaterialPassConfig{{Name: "main"}}
	}
	for i, pc := range passes {
		p, err := buildPass(pc)
		if err != nil {
			m.Release()
			return nil, fmt.Errorf("material %s pass %d: %w", cfg.Name, i, err)
		}
		m.Passes = append(m.Passes, p)
	}
	return m, nil
}

func buildPass(pc metadata.MaterialPassConfig) (*metadata.Pass, error) {
	name := pc.Name
	if name == "" {
		name = "main"
	}
	p := metadata.NewPass(name)

	switch pc.Blend {
	case "", "opaque":
	case "alpha":
		p.Blend = rhi.AlphaBlendState()
	case "additive":
		p.Blend = rhi.AlphaBlendState()
		for i := range p.Blend.RenderTargets {
			p.Blend.RenderTargets[i].DstBlend = rhi.BlendFactorOne
		}
	default:
		return nil, fmt.Errorf("blend %q: %w", pc.Blend, core.ErrInvalidContent)
	}

	if pc.DepthTest != nil {
		p.DepthStencil.DepthTestEnable = *pc.DepthTest
	}
	if pc.DepthWrite != nil {
		p.DepthStencil.DepthWriteEnable = *pc.DepthWrite
	}

	switch pc.Fill {
	case "", "solid":
	case "wireframe":
		p.Rasterizer.FillMode = rhi.FillModeWireframe
	case "point":
		p.Rasterizer.FillMode = rhi.FillModePoint
	default:
		return nil, fmt.Errorf("fill %q: %w", pc.Fill, core.ErrInvalidContent)
	}

	switch pc.Cull {
	case "", "back":
	case "none":
		p.Rasterizer.CullMode = rhi.CullModeNone
	case "front":
		p.Rasterizer.CullMode = rhi.CullModeFront
	default:
		return nil, fmt.Errorf("cull %q: %w", pc.Cull, core.ErrInvalidContent)
	}

	for _, tc := range pc.Textures {
		s, err := buildSampler(tc)
		if err != nil {
			return nil, err
		}
		p.TextureUnits = append(p.TextureUnits, &metadata.TextureUnit{TextureName: tc.Name, Sampler: s})
	}
	return p, nil
}

func buildSampler(tc metadata.MaterialTextureUnitConfig) (rhi.SamplerState, error) {
	s := rhi.DefaultSamplerState()
	switch tc.Filter {
	case "", "linear":
	case "point":
		s.MinFilter, s.MagFilter, s.MipFilter = rhi.FilterPoint, rhi.FilterPoint, rhi.FilterPoint
	case "anisotropic":
		s.MinFilter, s.MagFilter = rhi.FilterAnisotropic, rhi.FilterAnisotropic
		s.MaxAnisotropy = 16
	default:
		return s, fmt.Errorf("texture %s filter %q: %w", tc.Name, tc.Filter, core.ErrInvalidContent)
	}
	if tc.MaxAnisotropy > 0 {
		s.MaxAnisotropy = tc.MaxAnisotropy
	}

	var mode rhi.TextureAddressMode
	switch tc.Address {
	case "", "wrap":
		mode = rhi.AddressWrap
	case "mirror":
		mode = rhi.AddressMirror
	case "clamp":
		mode = rhi.AddressClamp
	case "border":
		mode = rhi.AddressBorder
	default:
		return s, fmt.Errorf("texture %s address %q: %w", tc.Name, tc.Address, core.ErrInvalidContent)
	}
	s.AddressU, s.AddressV, s.AddressW = mode, mode, mode
	return s, nil
}

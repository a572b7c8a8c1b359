package loaders

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/tiny3d/engine/assets/codec"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
	"github.com/spaghettifunk/tiny3d/engine/rhi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const crateMaterial = `
name = "crate"
diffuse_colour = [0.5, 0.5, 0.5, 1.0]
shininess = 8.0

[[pass]]
name = "main"
cull = "none"

[[pass.texture]]
name = "crate_diffuse"
filter = "point"
address = "clamp"

[[pass]]
name = "glow"
blend = "additive"
depth_write = false
`

func TestParseAndBuildMaterial(t *testing.T) {
	cfg, err := ParseMaterialConfig([]byte(crateMaterial))
	require.NoError(t, err)
	assert.Equal(t, "crate", cfg.Name)
	require.Len(t, cfg.Passes, 2)

	m, err := BuildMaterial(cfg)
	require.NoError(t, err)
	defer m.Release()

	assert.Equal(t, math.NewVec4(0.5, 0.5, 0.5, 1), m.DiffuseColour)
	assert.Equal(t, float32(8), m.Shininess)
	require.Len(t, m.Passes, 2)

	base := m.Passes[0]
	assert.Equal(t, rhi.CullModeNone, base.Rasterizer.CullMode)
	require.Len(t, base.TextureUnits, 1)
	assert.Equal(t, "crate_diffuse", base.TextureUnits[0].TextureName)
	assert.Equal(t, rhi.FilterPoint, base.TextureUnits[0].Sampler.MinFilter)
	assert.Equal(t, rhi.AddressClamp, base.TextureUnits[0].Sampler.AddressV)

	glow := m.Passes[1]
	assert.True(t, glow.Blend.RenderTargets[0].BlendEnable)
	assert.Equal(t, rhi.BlendFactorOne, glow.Blend.RenderTargets[0].DstBlend)
	assert.False(t, glow.DepthStencil.DepthWriteEnable)
	assert.True(t, glow.DepthStencil.DepthTestEnable)
}

func TestMaterialDefaultsAndErrors(t *testing.T) {
	cfg, err := ParseMaterialConfig([]byte(`name = "plain"`))
	require.NoError(t, err)
	m, err := BuildMaterial(cfg)
	require.NoError(t, err)
	defer m.Release()
	require.Len(t, m.Passes, 1)
	assert.Equal(t, rhi.DefaultRasterizerState(), m.Passes[0].Rasterizer)
	assert.Equal(t, math.NewVec4(1, 1, 1, 1), m.DiffuseColour)

	_, err = ParseMaterialConfig([]byte(`shininess = 1.0`))
	assert.ErrorIs(t, err, core.ErrInvalidContent)
	_, err = ParseMaterialConfig([]byte(`name = "x"` + "\n" + `diffuse_colour = [2.0, 0.0, 0.0, 1.0]`))
	assert.ErrorIs(t, err, core.ErrInvalidContent)
	_, err = ParseMaterialConfig([]byte(`name = `))
	assert.ErrorIs(t, err, core.ErrInvalidContent)

	cfg, err = ParseMaterialConfig([]byte("name = \"bad\"\n[[pass]]\nfill = \"dotted\"\n"))
	require.NoError(t, err)
	_, err = BuildMaterial(cfg)
	assert.ErrorIs(t, err, core.ErrInvalidContent)
}

func TestMaterialLoaderReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crate.mat")
	require.NoError(t, os.WriteFile(path, []byte(crateMaterial), 0o644))

	res, err := (&MaterialLoader{}).Load(path, nil)
	require.NoError(t, err)
	m := res.(*metadata.Material)
	defer m.Release()
	assert.Equal(t, "crate", m.Name)

	_, err = (&MaterialLoader{}).Load(filepath.Join(t.TempDir(), "nope.mat"), nil)
	assert.ErrorIs(t, err, core.ErrResourceNotFound)
}

func TestMeshRoundTrip(t *testing.T) {
	vertices, indices, bounds := math.GenerateCube(2, 2, 2, 1, 1)
	in := &metadata.MeshData{
		Name:         "cube",
		Vertices:     vertices,
		Indices:      indices,
		MaterialName: "crate",
		Bounds:       bounds,
	}
	path := filepath.Join(t.TempDir(), "cube.mesh")
	var buf bytes.Buffer
	require.NoError(t, WriteMesh(&buf, in))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	res, err := (&MeshLoader{}).Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, in, res.(*metadata.MeshData))

	corrupt := bytes.Clone(buf.Bytes())
	corrupt[0] ^= 0xff
	_, err = ReadMesh(bytes.NewReader(corrupt))
	assert.ErrorIs(t, err, core.ErrInvalidFileType)

	_, err = ReadMesh(bytes.NewReader(buf.Bytes()[:20]))
	assert.Error(t, err)
}

func TestImageLoaderFlipsRows(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	src.SetNRGBA(0, 1, color.NRGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))
	path := filepath.Join(t.TempDir(), "two.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	loader := NewImageLoader(codec.NewDefaultRegistry())
	res, err := loader.Load(path, nil)
	require.NoError(t, err)
	img := res.(*metadata.Image)
	assert.Equal(t, []byte{255, 0, 0, 255, 0, 0, 255, 255}, img.Data)

	res, err = loader.Load(path, &metadata.ImageResourceParams{FlipY: true})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 255, 255, 255, 0, 0, 255}, res.(*metadata.Image).Data)
}

const testFont = `info face="Test" size=16 bold=0 italic=0 charset="" unicode=1 stretchH=100 smooth=1 aa=1 padding=0,0,0,0 spacing=1,1 outline=0
common lineHeight=18 base=14 scaleW=64 scaleH=32 pages=1 packed=0 alphaChnl=0 redChnl=4 greenChnl=4 blueChnl=4
page id=0 file="test_0.png"
chars count=3
char id=32   x=0     y=0     width=0     height=0     xoffset=0     yoffset=0     xadvance=4     page=0  chnl=15
char id=65   x=0     y=0     width=8     height=10    xoffset=0     yoffset=2     xadvance=9     page=0  chnl=15
char id=66   x=8     y=0     width=8     height=10    xoffset=1     yoffset=2     xadvance=9     page=0  chnl=15
kernings count=1
kerning first=65  second=66  amount=-1
`

func TestBitmapFontLoader(t *testing.T) {
	dir := t.TempDir()
	var sheet bytes.Buffer
	require.NoError(t, png.Encode(&sheet, image.NewNRGBA(image.Rect(0, 0, 64, 32))))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test_0.png"), sheet.Bytes(), 0o644))
	path := filepath.Join(dir, "test.fnt")
	require.NoError(t, os.WriteFile(path, []byte(testFont), 0o644))

	res, err := (&BitmapFontLoader{}).Load(path, nil)
	require.NoError(t, err)
	font := res.(*metadata.FontData)

	assert.Equal(t, "Test", font.Face)
	assert.Equal(t, int32(18), font.LineHeight)
	assert.Equal(t, int32(64), font.AtlasSizeX)
	assert.Equal(t, int32(32), font.AtlasSizeY)
	require.Contains(t, font.Glyphs, int32('B'))
	assert.Equal(t, int16(1), font.Glyphs['B'].XOffset)
	assert.Equal(t, int16(-1), font.Kerning('A', 'B'))
	assert.Equal(t, float32(16), font.TabXAdvance)
	require.Len(t, font.Pages, 1)
	assert.Equal(t, "test_0.png", font.Pages[0].Name)
}

func TestTypeForExtension(t *testing.T) {
	all := Builtin(NewImageLoader(codec.NewDefaultRegistry()))
	rt, ok := TypeForExtension(".dds", all...)
	assert.True(t, ok)
	assert.Equal(t, metadata.ResourceTypeImage, rt)
	rt, ok = TypeForExtension(".mat", all...)
	assert.True(t, ok)
	assert.Equal(t, metadata.ResourceTypeMaterial, rt)
	_, ok = TypeForExtension(".xyz", all...)
	assert.False(t, ok)
}

package testbed

import (
	"fmt"

	"github.com/spaghettifunk/tiny3d/engine"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
	"github.com/spaghettifunk/tiny3d/engine/scene"
	"github.com/spaghettifunk/tiny3d/engine/systems"
)

const (
	crateMaterialName = "materials/crate"
	overlayFontName   = "fonts/ubuntu_mono"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	camera *scene.SGCamera
	boxes  []*scene.SGBox
	sun    *scene.SGLight
	text   *scene.SGText

	// resources held for the lifetime of the game
	resources []*systems.Resource
	materials []*metadata.Material

	elapsed     float64
	frames      int
	sinceReport float64
}

func NewTestGame(config *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State:             &gameState{},
		},
	}

	tg.FnBoot = tg.Boot
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Boot() error {
	core.LogInfo("booting testbed...")
	if g.ApplicationConfig.Application.Name == engine.DefaultApplicationConfig().Application.Name {
		g.ApplicationConfig.Application.Name = "Tiny3D Testbed"
	}
	return nil
}

// material loads name from the assets, falling back to the built-in default
// material when the assets do not provide it.
func (g *TestGame) material(name string) *metadata.Material {
	state := g.State.(*gameState)
	if g.SystemManager.AssetManager() != nil {
		res, err := g.SystemManager.ResourceManager().Load(name, metadata.ResourceTypeMaterial, nil)
		if err == nil {
			if m, ok := systems.As[*metadata.Material](res); ok {
				state.resources = append(state.resources, res)
				return m
			}
			_ = g.SystemManager.ResourceManager().Unload(res)
		}
		core.LogWarn("material %s unavailable, using default: %v", name, err)
	}
	m := metadata.NewDefaultMaterial()
	state.materials = append(state.materials, m)
	return m
}

func (g *TestGame) font(name string) *metadata.FontData {
	state := g.State.(*gameState)
	if g.SystemManager.AssetManager() == nil {
		return nil
	}
	res, err := g.SystemManager.ResourceManager().Load(name, metadata.ResourceTypeBitmapFont, nil)
	if err != nil {
		core.LogWarn("font %s unavailable, overlay disabled: %v", name, err)
		return nil
	}
	state.resources = append(state.resources, res)
	font, _ := systems.As[*metadata.FontData](res)
	return font
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn called!")
	state := g.State.(*gameState)
	sm := g.SystemManager
	root := sm.SceneManager().Root()
	r := sm.Renderer()

	state.camera = scene.NewCamera(scene.DefaultCameraName)
	state.camera.SetPosition(math.NewVec3(0, 2, 10))
	state.camera.Pitch(math.DegToRad(-10))
	if err := root.AddChild(state.camera); err != nil {
		return err
	}
	state.camera.Release()

	crate := g.material(crateMaterialName)
	for i := 0; i < 3; i++ {
		box, err := scene.NewBox(r, fmt.Sprintf("box_%d", i), 1, 1, 1, crate)
		if err != nil {
			return err
		}
		box.SetPosition(math.NewVec3(float32(i-1)*3, 0, 0))
		if err := root.AddChild(box); err != nil {
			return err
		}
		box.Release()
		state.boxes = append(state.boxes, box)
	}
	// the smaller boxes orbit the first one
	for i := 1; i < len(state.boxes); i++ {
		child, err := state.boxes[i].Clone()
		if err != nil {
			return err
		}
		child.SetName(fmt.Sprintf("orbit_%d", i))
		orbit := child.(*scene.SGBox)
		orbit.SetPosition(math.NewVec3(0, float32(i)*1.5, 0))
		orbit.SetScale(math.NewVec3(0.5, 0.5, 0.5))
		if err := state.boxes[0].AddChild(orbit); err != nil {
			return err
		}
		orbit.Release()
	}

	state.sun = scene.NewLight("sun", metadata.LightTypeDirectional)
	state.sun.Pitch(math.DegToRad(-45))
	if err := root.AddChild(state.sun); err != nil {
		return err
	}
	state.sun.Release()

	lamp := scene.NewLight("lamp", metadata.LightTypePoint)
	lamp.SetPosition(math.NewVec3(0, 3, 2))
	lamp.Light.Colour = math.NewVec4(1, 0.8, 0.6, 1)
	if err := root.AddChild(lamp); err != nil {
		return err
	}
	lamp.Release()

	if font := g.font(overlayFontName); font != nil {
		state.text = scene.NewText("overlay", font, g.material("materials/text"))
		state.text.SetPosition(math.NewVec3(-4, 3, 0))
		state.text.SetScale(math.NewVec3(0.02, -0.02, 0.02))
		if err := state.text.SetText(r, "Tiny3D"); err != nil {
			return err
		}
		if err := root.AddChild(state.text); err != nil {
			return err
		}
		state.text.Release()
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	state.elapsed += deltaTime
	state.frames++
	state.sinceReport += deltaTime

	rotation := math.NewQuatFromAxisAngle(math.NewVec3(0, 1, 0), float32(0.5*deltaTime), false)
	for _, box := range state.boxes {
		box.Rotate(rotation)
	}

	if state.sinceReport < 1 {
		return nil
	}
	fps := float64(state.frames) / state.sinceReport
	state.frames, state.sinceReport = 0, 0

	pos := state.camera.WorldPosition()
	status := fmt.Sprintf("FPS: %5.1f Pos=[%7.3f %7.3f %7.3f] t=%.1fs", fps, pos.X, pos.Y, pos.Z, state.elapsed)
	core.LogDebug(status)
	if state.text != nil {
		return state.text.SetText(g.SystemManager.Renderer(), status)
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	core.LogDebug("testbed resized to %dx%d", width, height)
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.State.(*gameState)
	for _, m := range state.materials {
		m.Release()
	}
	state.materials = nil
	for _, res := range state.resources {
		if err := g.SystemManager.ResourceManager().Unload(res); err != nil {
			core.LogError(err.Error())
		}
	}
	state.resources = nil
	return nil
}

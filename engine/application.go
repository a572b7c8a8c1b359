package engine

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/renderer"
)

type ApplicationSettings struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Starting width of the render surface.
	Width uint32 `toml:"width"`
	// Starting height of the render surface.
	Height   uint32 `toml:"height"`
	LogLevel string `toml:"log_level"`
}

type RendererSettings struct {
	// One of reference, vulkan.
	Backend string `toml:"backend"`
	// Run RHI commands on a dedicated goroutine.
	Threaded bool `toml:"threaded"`
	// Stop after this many frames, 0 runs until quit.
	MaxFrames uint64 `toml:"max_frames"`
	// Frame rate cap, 0 disables pacing.
	TargetFPS float64 `toml:"target_fps"`
}

type AssetSettings struct {
	BasePath string `toml:"base_path"`
	Watch    bool   `toml:"watch"`
}

type JobSettings struct {
	Workers   int `toml:"workers"`
	QueueSize int `toml:"queue_size"`
}

type ApplicationConfig struct {
	Application ApplicationSettings `toml:"application"`
	Renderer    RendererSettings    `toml:"renderer"`
	Assets      AssetSettings       `toml:"assets"`
	Jobs        JobSettings         `toml:"jobs"`
}

func DefaultApplicationConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Application: ApplicationSettings{
			Name:     "Tiny3D",
			Width:    1280,
			Height:   720,
			LogLevel: "info",
		},
		Renderer: RendererSettings{
			Backend:   renderer.Reference.String(),
			Threaded:  true,
			TargetFPS: 60,
		},
		Jobs: JobSettings{
			Workers:   4,
			QueueSize: 64,
		},
	}
}

// ParseApplicationConfig decodes a TOML document over the defaults. Unknown
// keys are rejected.
func ParseApplicationConfig(data []byte) (*ApplicationConfig, error) {
	cfg := DefaultApplicationConfig()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("application config %d:%d: %w: %w", row, col, core.ErrInvalidContent, err)
		}
		return nil, fmt.Errorf("application config: %w: %w", core.ErrInvalidContent, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadApplicationConfig(path string) (*ApplicationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("application config %s: %w: %w", path, core.ErrResourceNotFound, err)
	}
	return ParseApplicationConfig(data)
}

func (c *ApplicationConfig) Validate() error {
	var errs []error
	if c.Application.Name == "" {
		errs = append(errs, errors.New("application name is empty"))
	}
	if c.Application.Width == 0 || c.Application.Height == 0 {
		errs = append(errs, fmt.Errorf("invalid size %dx%d", c.Application.Width, c.Application.Height))
	}
	if _, err := renderer.ParseRendererType(c.Renderer.Backend); err != nil {
		errs = append(errs, err)
	}
	if c.Renderer.TargetFPS < 0 {
		errs = append(errs, fmt.Errorf("negative target fps %g", c.Renderer.TargetFPS))
	}
	if c.Jobs.Workers < 1 {
		errs = append(errs, fmt.Errorf("need at least one job worker, got %d", c.Jobs.Workers))
	}
	if c.Jobs.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("negative job queue size %d", c.Jobs.QueueSize))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("application config: %w: %w", core.ErrInvalidContent, err)
	}
	return nil
}

func (c *ApplicationConfig) RendererType() renderer.RendererType {
	t, _ := renderer.ParseRendererType(c.Renderer.Backend)
	return t
}

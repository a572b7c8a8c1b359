/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/tiny3d/engine"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/testbed"
)

func loadConfig(path string) (*engine.ApplicationConfig, error) {
	cfg, err := engine.LoadApplicationConfig(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		core.LogWarn("no config at %s, using defaults", path)
		return engine.DefaultApplicationConfig(), nil
	}
	return cfg, err
}

func main() {
	configPath := flag.String("config", "testbed/config.toml", "path to the application config")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		core.LogError("%v", err)
		os.Exit(1)
	}

	// capture sigterm and other system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	tb := testbed.NewTestGame(cfg)

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogError("%v", err)
		os.Exit(1)
	}

	if err := e.Initialize(ctx); err != nil {
		core.LogError("%v", err)
		os.Exit(1)
	}

	runErr := e.Run(ctx)
	if err := errors.Join(runErr, e.Shutdown()); err != nil {
		core.LogError("%v", err)
		os.Exit(1)
	}
}

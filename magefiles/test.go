//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every test with the race detector.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}

// Runs the tests of a single engine package, e.g. mage test:package rhi.
func (Test) Package(name string) error {
	_, err := executeCmd("go", withArgs("test", "-race", "-v", "./engine/"+name+"/..."), withStream())
	return err
}

//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Compiles every engine package.
func (Build) Engine() error {
	_, err := executeCmd("go", withArgs("build", "./engine/..."), withStream())
	return err
}

// Builds the testbed binary into bin/.
func (Build) Testbed() error {
	_, err := executeCmd("go", withArgs("build", "-o", "bin/testbed", "."), withStream())
	return err
}

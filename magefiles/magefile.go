//go:build mage

// Tools for building and maintaining chirp.
package main

import (
	"os"

	"github.com/magefile/mage/sh"
)

// Builds the demo binaries into ./bin.
func Build() error {
	if err := os.MkdirAll("bin", 0o755); err != nil {
		return err
	}
	for _, d := range []string{"loopback", "node1", "node2"} {
		if _, err := sh.Exec(nil, os.Stdout, os.Stderr, "go", "build", "-o", "bin/"+d, "./"+d); err != nil {
			return err
		}
	}
	return nil
}

// Runs all chirp tests.
// Tests are run with -race.
func Test() error {
	_, err := sh.Exec(nil, os.Stdout, os.Stderr, "go", "test", "./...", "-race", "-count=1")
	return err
}

// Vets the whole module.
func Vet() error {
	_, err := sh.Exec(nil, os.Stdout, os.Stderr, "go", "vet", "./...")
	return err
}

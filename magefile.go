//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Build compiles the ordkort binary into ./bin.
func Build() error {
	return sh.RunV("go", "build", "-o", "bin/ordkort", "./cmd/ordkort")
}

// Test runs all tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Vet runs go vet over the module.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Install builds and installs the binary into GOPATH/bin.
func Install() error {
	mg.Deps(Test)
	return sh.RunV("go", "install", "./cmd/ordkort")
}

// Clean removes build artifacts.
func Clean() error {
	return sh.Rm("bin")
}

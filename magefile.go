//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	BIN_DIR     = "bin"
	ROOM_CLIENT = "./cmd/roomclient"
)

var Default = Build

func fmtPanic(format string, val ...any) {
	panic(fmt.Sprintf(format, val...))
}

// Build compiles the headless room client into bin/.
func Build() error {
	if err := os.MkdirAll(BIN_DIR, 0o755); err != nil {
		fmtPanic("Unable create %s. Err: %s", BIN_DIR, err)
	}
	return sh.RunV("go", "build", "-o", BIN_DIR+"/roomclient", ROOM_CLIENT)
}

// Test runs every package test with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "-count=1", "./...")
}

// TestShort skips packages that need libvpx.
func TestShort() error {
	packages, err := sh.Output("go", "list", "./...")
	if err != nil {
		return err
	}

	args := []string{"test", "-count=1"}
	for _, pkg := range splitLines(packages) {
		if pkg == "github.com/shalloville/shalloville/internal/media/vp8" {
			continue
		}
		args = append(args, pkg)
	}
	return sh.RunV("go", args...)
}

func Lint() error {
	mg.Deps(Vet)
	out, err := sh.Output("gofmt", "-l", ".")
	if err != nil {
		return err
	}
	if out != "" {
		return fmt.Errorf("unformatted files:\n%s", out)
	}
	return nil
}

func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

func Clean() error {
	return sh.Rm(BIN_DIR)
}

func splitLines(s string) []string {
	return strings.Fields(s)
}

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets (unit, integration, cover).
type Test mg.Namespace

// Unit runs all tests that need no external services.
func (Test) Unit() error {
	return sh.RunV(binGo, "test", "./...")
}

// Integration runs the tests behind the integration build tag. They start a
// MySQL container through testcontainers and need a Docker daemon.
func (Test) Integration() error {
	return sh.RunV(binGo, "test", "-tags", "integration", "-count=1", "./internal/mirror/...")
}

// Cover runs unit tests and writes a coverage profile.
func (Test) Cover() error {
	if err := sh.RunV(binGo, "test", "-coverprofile="+coverOutput, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func="+coverOutput)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Verify builds the CLI and checks a single claim.
func Verify(claim string) error {
	mg.Deps(Build)
	return sh.RunV(binPath, "verify", claim)
}

// Serve builds the CLI and starts the HTTP API on the configured address.
func Serve() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "serve")
}

// Cache groups result cache maintenance targets.
type Cache mg.Namespace

// List prints cached results, newest first.
func (Cache) List() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "cache", "list")
}

// Purge deletes expired cache entries.
func (Cache) Purge() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "cache", "purge")
}

// Export writes every cached result to data/cache-export.yaml.
func (Cache) Export() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "cache", "export", "--output", "data/cache-export.yaml")
}

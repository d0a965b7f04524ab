// Eventsource CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
package main

import (
	"context"

	"dagger/eventsource/internal/dagger"
)

// Eventsource is the main module for the eventsource CI/CD pipeline
type Eventsource struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Eventsource CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", "build", "tmp", "_examples"]
	source *dagger.Directory,
) *Eventsource {
	return &Eventsource{
		Source: source,
	}
}

// goContainer returns a Go container with the module caches and the project
// source mounted. Everything builds with CGO disabled.
func (e *Eventsource) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-alpine").
		WithEnvVariable("CGO_ENABLED", "0").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", e.Source)
}

// Test runs the unit tests via "go test"
func (e *Eventsource) Test(ctx context.Context) (string, error) {
	return e.goContainer().
		WithExec([]string{"go", "test", "./..."}).
		Stdout(ctx)
}

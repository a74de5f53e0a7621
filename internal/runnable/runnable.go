/*
Copyright 2025 The YARL Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package runnable runs a process's long-lived servers as one group with
// shared lifecycle: the group stops when the context ends or any member
// fails.
package runnable

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Runnable is a long-running component driven by a context.
type Runnable interface {
	// Start blocks until the component stops. Cancelling the context must
	// shut the component down and make Start return.
	Start(ctx context.Context) error
}

// Func converts a plain function into a Runnable.
type Func func(ctx context.Context) error

// Start implements Runnable.
func (f Func) Start(ctx context.Context) error {
	return f(ctx)
}

// Group starts runnables together and stops them together.
type Group struct {
	runnables []Runnable
}

// Add appends a runnable to the group. Not safe to call after Start.
func (g *Group) Add(r Runnable) {
	g.runnables = append(g.runnables, r)
}

// Start runs every member until the context ends or a member returns an
// error, which cancels the rest. It returns the first error observed.
func (g *Group) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, r := range g.runnables {
		eg.Go(func() error {
			return r.Start(ctx)
		})
	}
	return eg.Wait()
}

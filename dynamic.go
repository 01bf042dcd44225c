// Copyright 2024 cirello.io/supervision - Ulderico Cirello
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package supervision

import (
	"context"
	"log"
	"time"
)

// DynamicTree is a supervisor tree whose child processes are added and
// removed at runtime. It always uses the OneForOne strategy and may cap its
// population.
type DynamicTree struct {
	tree *Tree
}

// DynamicOption are applied to change the behavior of a DynamicTree.
type DynamicOption func(*DynamicTree)

// WithDynamicRestartIntensity defines a custom tolerance for failures in the
// dynamic tree.
func WithDynamicRestartIntensity(maxR int, maxT time.Duration) DynamicOption {
	return func(d *DynamicTree) {
		WithRestartIntensity(maxR, maxT)(d.tree)
	}
}

// DynamicNeverHalt will configure the dynamic tree to never stop in face of
// failure.
func DynamicNeverHalt() DynamicOption {
	return func(d *DynamicTree) {
		NeverHalt()(d.tree)
	}
}

// WithMaxChildren caps the number of child processes. Zero means
// unbounded.
func WithMaxChildren(n int) DynamicOption {
	return func(d *DynamicTree) {
		d.tree.maxChildren = n
	}
}

// WithDynamicLogger plugs a custom logger to the dynamic tree.
func WithDynamicLogger(logger *log.Logger) DynamicOption {
	return func(d *DynamicTree) {
		WithLogger(logger)(d.tree)
	}
}

// WithDynamicStartTimeout defines how long each child process has to
// signal its readiness.
func WithDynamicStartTimeout(timeout time.Duration) DynamicOption {
	return func(d *DynamicTree) {
		WithStartTimeout(timeout)(d.tree)
	}
}

// NewDynamic creates a dynamic tree. It starts with no child processes.
func NewDynamic(opts ...DynamicOption) *DynamicTree {
	d := &DynamicTree{tree: &Tree{}}
	for _, opt := range opts {
		opt(d)
	}
	d.tree.strategy = OneForOne
	d.tree.processes = nil
	d.tree.init()
	return d
}

// StartDynamic creates a dynamic tree and starts it in the background.
func StartDynamic(ctx context.Context, opts ...DynamicOption) (*DynamicTree, error) {
	d := NewDynamic(opts...)
	if err := d.tree.launch(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Start ignites the dynamic tree and blocks until it terminates.
func (d *DynamicTree) Start(ctx context.Context) error {
	return d.tree.Start(ctx)
}

// Stop terminates a dynamic tree started with StartDynamic.
func (d *DynamicTree) Stop() error { return d.tree.Stop() }

// Wait blocks until a dynamic tree started with StartDynamic terminates.
func (d *DynamicTree) Wait() error { return d.tree.Wait() }

// Done is closed when a dynamic tree started with StartDynamic terminates.
func (d *DynamicTree) Done() <-chan struct{} { return d.tree.Done() }

// Monitor registers a read-only observer of the dynamic tree.
func (d *DynamicTree) Monitor() (<-chan Event, func()) { return d.tree.Monitor() }

// Add starts a new child process and returns once it is ready. It fails
// with ErrMaxChildrenReached when the tree is full, ErrDuplicateChild when the
// name is taken, or a *StartError.
func (d *DynamicTree) Add(ctx context.Context, spec ChildProcessSpecification) (ChildInfo, error) {
	switch {
	case spec.Name == "":
		return ChildInfo{}, &StartError{Err: errNoName}
	case spec.Start == nil:
		return ChildInfo{}, &StartError{Name: spec.Name, Err: errNoStartFunction}
	}
	var (
		info ChildInfo
		err  error
	)
	callErr := d.tree.call(ctx, func(n *node) {
		var c *child
		c, err = n.add(spec)
		if err == nil {
			info = c.info()
		}
	})
	if callErr != nil {
		return ChildInfo{}, callErr
	}
	return info, err
}

// Remove stops the named child process within grace and removes it from the
// tree. A nil grace falls back to the shutdown budget of the child process
// specification. The child process is removed even when it had to be
// abandoned, in which case the error wraps ErrShutdownTimeout.
func (d *DynamicTree) Remove(ctx context.Context, name string, grace Shutdown) error {
	var err error
	callErr := d.tree.call(ctx, func(n *node) {
		err = n.removeChild(name, grace)
	})
	if callErr != nil {
		return callErr
	}
	return err
}

// WhichChildren lists the child processes of the dynamic tree in the order
// they were added.
func (d *DynamicTree) WhichChildren(ctx context.Context) ([]ChildInfo, error) {
	return d.tree.WhichChildren(ctx)
}

// CountChildren counts the child processes of the dynamic tree.
func (d *DynamicTree) CountChildren(ctx context.Context) (ChildCount, error) {
	return d.tree.CountChildren(ctx)
}

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
	"fmt"
	"log"
	"time"
)

// TreeOption are applied to change the behavior of a Tree.
type TreeOption func(*Tree)

// WithSpecification defines a custom setup to tweak restart tolerance and
// strategy for the tree.
func WithSpecification(maxR int, maxT time.Duration, strategy Strategy) TreeOption {
	return func(t *Tree) {
		WithRestartIntensity(maxR, maxT)(t)
		WithRestartStrategy(strategy)(t)
	}
}

// WithRestartIntensity defines a custom tolerance for failures in the
// supervisor tree: more than maxR restarts within maxT terminate the tree.
func WithRestartIntensity(maxR int, maxT time.Duration) TreeOption {
	return func(t *Tree) {
		t.maxR, t.maxT = maxR, maxT
	}
}

// Default restart intensity expectations.
const (
	DefaultMaxR = 1
	DefaultMaxT = 5 * time.Second
)

// DefaultRestartIntensity redefines the tolerance for failures in the
// supervisor tree. It defaults to 1 restart (maxR) in the preceding 5 seconds
// (maxT).
func DefaultRestartIntensity() TreeOption {
	return func(t *Tree) {
		t.maxR, t.maxT = DefaultMaxR, DefaultMaxT
	}
}

// NeverHalt will configure the tree to never stop in face of
// failure.
func NeverHalt() TreeOption {
	return func(t *Tree) {
		t.maxR, t.maxT = -1, 0
	}
}

// WithRestartStrategy defines a custom restart strategy for the supervisor
// tree.
func WithRestartStrategy(strategy Strategy) TreeOption {
	return func(t *Tree) {
		t.strategy = strategy
	}
}

// DefaultRestartStrategy redefines the supervisor behavior to use OneForOne.
func DefaultRestartStrategy() TreeOption {
	return func(t *Tree) {
		t.strategy = OneForOne
	}
}

// WithStartTimeout defines how long each child process has to signal its
// readiness. Zero or negative values wait forever.
func WithStartTimeout(d time.Duration) TreeOption {
	return func(t *Tree) {
		if d <= 0 {
			d = -1
		}
		t.startTimeout = d
	}
}

// Processes plugs one or more Permanent child processes to the supervisor tree.
// Processes never reset the child process list.
func Processes(processes ...func(ctx context.Context) error) TreeOption {
	return func(t *Tree) {
		for _, p := range processes {
			Process(ChildProcessSpecification{
				Restart: Permanent,
				Start:   Worker(p),
			})(t)
		}
	}
}

// Process plugs one child processes to the supervisor tree. Process never reset
// the child process list. Missing or repeated names are replaced by unique
// ones.
func Process(spec ChildProcessSpecification) TreeOption {
	return func(t *Tree) {
		if spec.Start == nil {
			panic("child process must always have a function")
		}
		if spec.Name == "" {
			spec.Name = fmt.Sprintf("childproc %d", len(t.processes)+1)
		}
		for t.hasProcess(spec.Name) {
			spec.Name = fmt.Sprintf("%s %d", spec.Name, len(t.processes)+1)
		}
		t.processes = append(t.processes, spec.withDefaults())
	}
}

func (t *Tree) hasProcess(name string) bool {
	for _, p := range t.processes {
		if p.Name == name {
			return true
		}
	}
	return false
}

// WithLogger plugs a custom logger to the tree.
func WithLogger(logger *log.Logger) TreeOption {
	return func(t *Tree) {
		t.logger = logger
	}
}

// WithTree is a shortcut to add a tree as a child process.
func WithTree(subTree *Tree) TreeOption {
	return Process(ChildProcessSpecification{
		Restart:  Permanent,
		Start:    subTree.childProcess(),
		Shutdown: Infinity(),
		Kind:     SupervisorKind,
	})
}

// WithDynamicTree is a shortcut to add a dynamic tree as a child process.
// Every restart of the dynamic tree begins with no child processes.
func WithDynamicTree(subTree *DynamicTree) TreeOption {
	return Process(ChildProcessSpecification{
		Restart:  Permanent,
		Start:    subTree.tree.childProcess(),
		Shutdown: Infinity(),
		Kind:     SupervisorKind,
	})
}

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
	"time"
)

// ChildProcess is the entry point of a supervised child. It receives the
// initialization arguments declared in its specification and must call ready
// once it is fully initialized; the supervisor does not start the next child
// until then. Returning before calling ready is allowed: a nil error is
// treated as a successful start immediately followed by a normal exit, any
// other error aborts the start.
type ChildProcess func(ctx context.Context, args any, ready func()) error

// Worker adapts a plain function into a ChildProcess that is considered ready
// as soon as it is scheduled.
func Worker(f func(ctx context.Context) error) ChildProcess {
	return func(ctx context.Context, _ any, ready func()) error {
		ready()
		return f(ctx)
	}
}

// Restart is the restart disposition of a child process.
type Restart int

// Restart dispositions.
const (
	// Permanent child processes are always restarted.
	Permanent Restart = iota
	// Transient child processes are restarted only if they terminate
	// abnormally, that is, with any error other than a shutdown.
	Transient
	// Temporary child processes are never restarted (not even when the
	// supervisor restart strategy is RestForOne or OneForAll and a sibling
	// death causes the temporary process to be terminated). They are removed
	// from the tree on their first termination.
	Temporary
)

func (r Restart) String() string {
	switch r {
	case Permanent:
		return "permanent"
	case Transient:
		return "transient"
	case Temporary:
		return "temporary"
	default:
		return fmt.Sprintf("restart(%d)", int(r))
	}
}

// Kind tells plain workers apart from nested supervision nodes.
type Kind int

// Child process kinds.
const (
	WorkerKind Kind = iota
	SupervisorKind
)

func (k Kind) String() string {
	if k == SupervisorKind {
		return "supervisor"
	}
	return "worker"
}

// Shutdown defines how long the supervisor waits for a child process to
// honor a stop request before giving up on it.
type Shutdown func() (context.Context, context.CancelFunc)

// Infinity waits forever for the child process to stop.
func Infinity() Shutdown {
	return func() (context.Context, context.CancelFunc) {
		return context.WithCancel(context.Background())
	}
}

// Timeout waits up to d for the child process to stop.
func Timeout(d time.Duration) Shutdown {
	return func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), d)
	}
}

// DefaultChildProcessTimeout is the shutdown budget of worker child processes
// that do not declare one.
const DefaultChildProcessTimeout = 5 * time.Second

// ChildProcessSpecification describes how to start and supervise one child
// process. The tree keeps its own copy once the child is registered.
type ChildProcessSpecification struct {
	// Name is the key of the child process within its tree.
	Name string

	// Start is the child process entry point.
	Start ChildProcess

	// Args is handed to Start on every (re)start.
	Args any

	// Restart is the restart disposition, Permanent if omitted.
	Restart Restart

	// Shutdown is the stop grace budget. Workers default to
	// Timeout(DefaultChildProcessTimeout) and supervisors to Infinity().
	Shutdown Shutdown

	// Kind tags the child process as a worker or a nested supervisor.
	Kind Kind
}

func (spec ChildProcessSpecification) withDefaults() ChildProcessSpecification {
	if spec.Shutdown == nil {
		if spec.Kind == SupervisorKind {
			spec.Shutdown = Infinity()
		} else {
			spec.Shutdown = Timeout(DefaultChildProcessTimeout)
		}
	}
	return spec
}

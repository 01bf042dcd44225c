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
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a child process.
type State int

// Child process states.
const (
	Starting State = iota
	Running
	Stopping
	Terminated
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// child is the handle of a child process owned by a node. Its name is stable
// across restarts, the incarnation is not.
type child struct {
	spec  ChildProcessSpecification
	order int
	state State
	run   *incarnation
}

// incarnation is one execution of a child process.
type incarnation struct {
	ref    uuid.UUID
	cancel context.CancelFunc
	done   chan struct{}
	reason ExitReason // valid once done is closed
}

// childExit is delivered to the owning node when an incarnation returns.
type childExit struct {
	child *child
	run   *incarnation
}

// start launches a new incarnation of the child process and blocks until it
// signals readiness, returns or the start timeout elapses. Once the
// incarnation returns, its exit is delivered to exits, unless finished is
// closed first.
func (c *child) start(parent context.Context, timeout time.Duration, exits chan<- childExit, finished <-chan struct{}) error {
	ctx, cancel := context.WithCancel(parent)
	run := &incarnation{
		ref:    uuid.New(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.run, c.state = run, Starting

	ready := make(chan struct{})
	var once sync.Once
	signal := func() { once.Do(func() { close(ready) }) }

	go func() {
		err := safeRun(ctx, c.spec.Start, c.spec.Args, signal)
		run.reason = exitReasonOf(ctx, err)
		cancel()
		close(run.done)
		select {
		case exits <- childExit{child: c, run: run}:
		case <-finished:
		}
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-ready:
		c.state = Running
		return nil
	case <-run.done:
		select {
		case <-ready:
			c.state = Running
			return nil
		default:
		}
		if run.reason.Kind == ExitNormal {
			c.state = Running
			return nil
		}
		c.state = Terminated
		err := run.reason.Err
		if err == nil {
			err = context.Canceled
		}
		return &StartError{Name: c.spec.Name, Err: err}
	case <-expired:
		cancel()
		c.state = Terminated
		return &StartError{Name: c.spec.Name, Err: ErrStartTimeout}
	}
}

// stop asks the current incarnation to terminate and waits for it within
// grace, or within the shutdown budget of the specification when grace is nil.
// If the budget runs out, the incarnation is abandoned and ErrShutdownTimeout
// is returned.
func (c *child) stop(grace Shutdown) (ExitReason, error) {
	run := c.run
	if run == nil || c.state == Terminated {
		return ExitReason{Kind: ExitShutdown}, nil
	}
	c.state = Stopping
	run.cancel()
	if grace == nil {
		grace = c.spec.Shutdown
	}
	budget, cancel := grace()
	defer cancel()
	select {
	case <-run.done:
		c.state = Terminated
		return run.awaitExit(), nil
	case <-budget.Done():
		c.state = Terminated
		return ExitReason{Kind: ExitShutdown}, fmt.Errorf("%w: %s", ErrShutdownTimeout, c.spec.Name)
	}
}

// awaitExit blocks until the incarnation returns.
func (run *incarnation) awaitExit() ExitReason {
	<-run.done
	return run.reason
}

// ChildInfo is a point-in-time description of a child process.
type ChildInfo struct {
	Name    string
	Ref     uuid.UUID
	State   State
	Kind    Kind
	Restart Restart
	Order   int
}

func (c *child) info() ChildInfo {
	info := ChildInfo{
		Name:    c.spec.Name,
		State:   c.state,
		Kind:    c.spec.Kind,
		Restart: c.spec.Restart,
		Order:   c.order,
	}
	if c.run != nil {
		info.Ref = c.run.ref
	}
	return info
}

// ChildCount summarizes the child processes of a tree.
type ChildCount struct {
	// Active is the number of running child processes.
	Active int
	// Specs is the number of child processes in the tree, running or not.
	Specs       int
	Workers     int
	Supervisors int
}

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
	"errors"
	"sync/atomic"
	"testing"
)

func Test_uniqueName(t *testing.T) {
	noop := Worker(func(ctx context.Context) error { return nil })
	tree := New(
		Process(ChildProcessSpecification{Name: "alpha", Start: noop}),
		Process(ChildProcessSpecification{Name: "alpha", Start: noop}),
		Process(ChildProcessSpecification{Start: noop}),
		Process(ChildProcessSpecification{Start: noop}),
	)
	seenNames := make(map[string]struct{})
	for _, p := range tree.processes {
		if _, ok := seenNames[p.Name]; ok {
			t.Fatalf("unique process name logic has failed: %q repeated", p.Name)
		}
		seenNames[p.Name] = struct{}{}
	}
	if len(seenNames) != 4 {
		t.Fatalf("expected 4 child processes, got %d", len(seenNames))
	}
}

func Test_defaults(t *testing.T) {
	sub := New()
	tree := New(
		Processes(func(ctx context.Context) error { return nil }),
		WithTree(sub),
	)
	if tree.maxR != DefaultMaxR || tree.maxT != DefaultMaxT {
		t.Errorf("unexpected restart intensity: %d/%v", tree.maxR, tree.maxT)
	}
	if tree.strategy != OneForOne {
		t.Errorf("unexpected default strategy: %v", tree.strategy)
	}
	if tree.startTimeout != DefaultStartTimeout {
		t.Errorf("unexpected start timeout: %v", tree.startTimeout)
	}
	if got := tree.processes[0]; got.Kind != WorkerKind || got.Restart != Permanent || got.Shutdown == nil {
		t.Errorf("unexpected worker defaults: %+v", got)
	}
	if got := tree.processes[1]; got.Kind != SupervisorKind {
		t.Errorf("nested tree must be a supervisor: %+v", got)
	}
}

func Test_nodeCountChildren(t *testing.T) {
	children, _ := testChildren([]string{"a", "b", "c"}, nil)
	children[1].spec.Kind = SupervisorKind
	children[2].state = Terminated
	n := &node{children: children}
	got := n.countChildren()
	want := ChildCount{Active: 2, Specs: 3, Workers: 2, Supervisors: 1}
	if got != want {
		t.Errorf("countChildren() = %+v, want %+v", got, want)
	}
}

// detachedContext is a parent context that is never cancelled and counts how
// many derived contexts were released from it.
type detachedContext struct {
	context.Context
	done     chan struct{}
	released atomic.Int32
}

func (c *detachedContext) Done() <-chan struct{} { return c.done }

func (c *detachedContext) AfterFunc(func()) func() bool {
	return func() bool {
		c.released.Add(1)
		return true
	}
}

func Test_launchReleasesContext(t *testing.T) {
	parent := &detachedContext{Context: context.Background(), done: make(chan struct{})}
	tree := New(Processes(func(ctx context.Context) error {
		return errors.New("crashed")
	}))
	if err := tree.launch(parent); err != nil && !errors.Is(err, ErrRestartIntensityExceeded) {
		t.Fatalf("unexpected launch error: %v", err)
	}
	<-tree.Done()
	if err := tree.Wait(); !errors.Is(err, ErrRestartIntensityExceeded) {
		t.Fatalf("unexpected tree error: %v", err)
	}
	if got := parent.released.Load(); got != 1 {
		t.Errorf("tree context released %d times from its parent, want 1", got)
	}
}

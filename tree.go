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
	"io"
	"log"
	"sync"
	"time"
)

// DefaultStartTimeout is how long a child process has to signal readiness.
const DefaultStartTimeout = 5 * time.Second

// Tree is the supervisor tree proper. Its configuration is fixed once it
// starts; all of its runtime state belongs to a single control loop, and
// queries are served by that loop.
type Tree struct {
	initializeOnce sync.Once

	strategy     Strategy
	maxR         int
	maxT         time.Duration
	startTimeout time.Duration
	maxChildren  int
	processes    []ChildProcessSpecification
	logger       *log.Logger
	monitors     monitors

	requests chan request

	mu   sync.Mutex
	live chan struct{} // closed when the current incarnation terminates

	// background incarnation, see StartTree.
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

type request struct {
	f    func(*node)
	done chan struct{}
}

// Oversight creates a supervisor tree and returns it as a child process that
// can be plugged into another tree.
func Oversight(opts ...TreeOption) ChildProcess {
	t := New(opts...)
	return t.childProcess()
}

// New creates a new supervisor tree with the applied options.
func New(opts ...TreeOption) *Tree {
	t := &Tree{}
	for _, opt := range opts {
		opt(t)
	}
	t.init()
	return t
}

func (t *Tree) init() {
	t.initializeOnce.Do(func() {
		if t.maxR == 0 && t.maxT == 0 {
			DefaultRestartIntensity()(t)
		}
		if t.startTimeout == 0 {
			t.startTimeout = DefaultStartTimeout
		}
		if t.logger == nil {
			t.logger = log.New(io.Discard, "", 0)
		}
		t.requests = make(chan request)
	})
}

// StartTree creates a tree and starts it in the background. It returns once
// every child process has started, or with the error that aborted the
// startup. Use Stop to terminate the tree and Wait to collect its result.
func StartTree(ctx context.Context, opts ...TreeOption) (*Tree, error) {
	t := New(opts...)
	if err := t.launch(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) launch(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ready := make(chan struct{})
	var once sync.Once
	t.mu.Lock()
	t.cancel, t.done, t.err = cancel, done, nil
	t.mu.Unlock()
	go func() {
		err := t.run(ctx, func() { once.Do(func() { close(ready) }) })
		cancel()
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		close(done)
	}()
	select {
	case <-ready:
		return nil
	case <-done:
		cancel()
		if err := t.Wait(); err != nil {
			return err
		}
		return ctx.Err()
	}
}

// Start ignites the supervisor tree and blocks until it terminates. It
// returns nil when ctx is cancelled, a *StartError when a child process fails
// to start during the initial startup, and ErrRestartIntensityExceeded when
// child processes restart too often.
func (t *Tree) Start(ctx context.Context) error {
	return t.run(ctx, func() {})
}

func (t *Tree) childProcess() ChildProcess {
	return func(ctx context.Context, _ any, ready func()) error {
		return t.run(ctx, ready)
	}
}

// Stop terminates a tree started with StartTree and returns its final
// error.
func (t *Tree) Stop() error {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel == nil {
		return ErrTreeNotRunning
	}
	cancel()
	return t.Wait()
}

// Wait blocks until a tree started with StartTree terminates and returns
// the reason.
func (t *Tree) Wait() error {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done == nil {
		return ErrTreeNotRunning
	}
	<-done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done is closed when a tree started with StartTree terminates. It is nil
// otherwise.
func (t *Tree) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Monitor registers a read-only observer of the tree lifecycle events. The
// returned function cancels the registration and closes the channel.
func (t *Tree) Monitor() (<-chan Event, func()) {
	return t.monitors.subscribe()
}

// WhichChildren lists the child processes of the tree in start order.
func (t *Tree) WhichChildren(ctx context.Context) ([]ChildInfo, error) {
	var infos []ChildInfo
	err := t.call(ctx, func(n *node) {
		infos = n.whichChildren()
	})
	return infos, err
}

// CountChildren counts the child processes of the tree.
func (t *Tree) CountChildren(ctx context.Context) (ChildCount, error) {
	var count ChildCount
	err := t.call(ctx, func(n *node) {
		count = n.countChildren()
	})
	return count, err
}

// call runs f in the control loop of the current incarnation.
func (t *Tree) call(ctx context.Context, f func(*node)) error {
	t.init()
	t.mu.Lock()
	live := t.live
	t.mu.Unlock()
	if live == nil {
		return ErrTreeNotRunning
	}
	req := request{f: f, done: make(chan struct{})}
	select {
	case t.requests <- req:
	case <-live:
		return ErrTreeNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	<-req.done
	return nil
}

func (t *Tree) run(ctx context.Context, ready func()) error {
	t.init()
	t.mu.Lock()
	if t.live != nil {
		t.mu.Unlock()
		return ErrTreeAlreadyRunning
	}
	live := make(chan struct{})
	t.live = live
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.live = nil
		t.mu.Unlock()
		close(live)
	}()
	n := newNode(ctx, t)
	err := n.loop(ctx, ready)
	t.monitors.publish(Event{Type: TreeTerminated, Err: err})
	return err
}

// node is one incarnation of a tree. Every field is owned by the goroutine
// running loop.
type node struct {
	tree     *Tree
	ctx      context.Context
	cancel   context.CancelFunc
	children []*child
	index    map[string]*child
	restarts *restart
	exits    chan childExit
	finished chan struct{}
	order    int
	retries  []retry
}

// retry is a child process whose restart failed and must be handled as a
// fresh crash.
type retry struct {
	child  *child
	reason ExitReason
}

func newNode(ctx context.Context, t *Tree) *node {
	// Children must not see the cancellation of ctx directly: the loop stops
	// them one by one, in reverse start order.
	childCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &node{
		tree:   t,
		ctx:    childCtx,
		cancel: cancel,
		index:  make(map[string]*child),
		restarts: &restart{
			intensity: t.maxR,
			period:    t.maxT,
		},
		exits:    make(chan childExit),
		finished: make(chan struct{}),
	}
}

func (n *node) loop(ctx context.Context, ready func()) error {
	defer n.cancel()
	defer close(n.finished)

	for _, spec := range n.tree.processes {
		if ctx.Err() != nil {
			n.terminate()
			return nil
		}
		if _, err := n.add(spec); err != nil {
			n.tree.logger.Printf("aborting startup: %v", err)
			n.terminate()
			return err
		}
	}
	ready()

	for {
		if len(n.retries) > 0 {
			if ctx.Err() != nil {
				n.terminate()
				return nil
			}
			r := n.retries[0]
			n.retries = n.retries[1:]
			if err := n.handleFailure(r.child, r.reason); err != nil {
				n.terminate()
				return err
			}
			continue
		}
		select {
		case <-ctx.Done():
			n.terminate()
			return nil
		case ev := <-n.exits:
			if err := n.handleExit(ev); err != nil {
				n.terminate()
				return err
			}
		case req := <-n.tree.requests:
			req.f(n)
			close(req.done)
		}
	}
}

// add registers and starts a new child process. If the start fails, the
// child process is not kept.
func (n *node) add(spec ChildProcessSpecification) (*child, error) {
	if _, ok := n.index[spec.Name]; ok {
		return nil, ErrDuplicateChild
	}
	if n.tree.maxChildren > 0 && len(n.children) >= n.tree.maxChildren {
		return nil, ErrMaxChildrenReached
	}
	c := &child{spec: spec.withDefaults(), order: n.order}
	n.order++
	if err := n.startChild(c); err != nil {
		return nil, err
	}
	n.children = append(n.children, c)
	n.index[c.spec.Name] = c
	n.tree.monitors.publish(Event{Type: ChildStarted, Name: c.spec.Name, Ref: c.run.ref})
	return c, nil
}

func (n *node) startChild(c *child) error {
	err := c.start(n.ctx, n.tree.startTimeout, n.exits, n.finished)
	if err != nil {
		n.tree.logger.Printf("child process %s failed to start: %v", c.spec.Name, err)
		return err
	}
	n.tree.logger.Printf("child process %s started (%s)", c.spec.Name, c.run.ref)
	return nil
}

// stopChild stops a live child process within grace, or within its own
// shutdown budget when grace is nil. Forced abandonments are logged.
func (n *node) stopChild(c *child, grace Shutdown) error {
	if c.state == Terminated {
		return nil
	}
	reason, err := c.stop(grace)
	if err != nil {
		n.tree.logger.Printf("child process %s did not stop in time, abandoning it", c.spec.Name)
		n.tree.monitors.publish(Event{Type: ChildShutdownTimeout, Name: c.spec.Name, Ref: c.run.ref, Err: err})
		return err
	}
	n.tree.monitors.publish(Event{Type: ChildExited, Name: c.spec.Name, Ref: c.run.ref, Reason: reason})
	return nil
}

func (n *node) remove(c *child) {
	delete(n.index, c.spec.Name)
	for i, sibling := range n.children {
		if sibling == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			break
		}
	}
	n.tree.monitors.publish(Event{Type: ChildRemoved, Name: c.spec.Name})
}

// handleExit processes the exit of an incarnation. Exits of incarnations that
// the node has already stopped or replaced are ignored.
func (n *node) handleExit(ev childExit) error {
	c := ev.child
	if n.index[c.spec.Name] != c || c.run != ev.run || c.state != Running {
		return nil
	}
	c.state = Terminated
	reason := ev.run.reason
	n.tree.logger.Printf("child process %s exited: %v", c.spec.Name, reason)
	n.tree.monitors.publish(Event{Type: ChildExited, Name: c.spec.Name, Ref: ev.run.ref, Reason: reason, Err: reason.Err})
	return n.handleFailure(c, reason)
}

// handleFailure applies the restart strategy to a terminated child process.
func (n *node) handleFailure(failed *child, reason ExitReason) error {
	p := n.tree.strategy.plan(n.children, failed, reason)
	if n.restarts.terminate(timeNow(), len(p.restart)) {
		n.tree.logger.Printf("too many failures, last one from %s: %v", failed.spec.Name, reason)
		n.tree.monitors.publish(Event{Type: IntensityExceeded, Name: failed.spec.Name, Reason: reason, Err: ErrRestartIntensityExceeded})
		return ErrRestartIntensityExceeded
	}
	for _, c := range p.stop {
		n.stopChild(c, nil)
	}
	for _, c := range p.remove {
		n.remove(c)
	}
	for _, c := range p.restart {
		if err := n.startChild(c); err != nil {
			n.retries = append(n.retries, retry{
				child:  c,
				reason: ExitReason{Kind: ExitCrashed, Err: err},
			})
			break
		}
		n.tree.monitors.publish(Event{Type: ChildRestarted, Name: c.spec.Name, Ref: c.run.ref})
	}
	return nil
}

// terminate stops every live child process in reverse start order.
func (n *node) terminate() {
	for i := len(n.children) - 1; i >= 0; i-- {
		n.stopChild(n.children[i], nil)
	}
	n.cancel()
}

func (n *node) whichChildren() []ChildInfo {
	infos := make([]ChildInfo, 0, len(n.children))
	for _, c := range n.children {
		infos = append(infos, c.info())
	}
	return infos
}

func (n *node) countChildren() ChildCount {
	var count ChildCount
	for _, c := range n.children {
		count.Specs++
		if c.state == Running {
			count.Active++
		}
		if c.spec.Kind == SupervisorKind {
			count.Supervisors++
		} else {
			count.Workers++
		}
	}
	return count
}

// removeChild stops a child process within grace and removes it by name.
func (n *node) removeChild(name string, grace Shutdown) error {
	c, ok := n.index[name]
	if !ok {
		return ErrChildNotFound
	}
	err := n.stopChild(c, grace)
	n.remove(c)
	return err
}

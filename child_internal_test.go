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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChild(start ChildProcess, shutdown Shutdown) *child {
	return &child{spec: ChildProcessSpecification{
		Name:     "test",
		Start:    start,
		Shutdown: shutdown,
	}.withDefaults()}
}

func TestChild_startHandshake(t *testing.T) {
	t.Parallel()
	exits := make(chan childExit, 1)
	finished := make(chan struct{})
	defer close(finished)

	initialized := make(chan struct{})
	var initOnce sync.Once
	c := newTestChild(func(ctx context.Context, args any, ready func()) error {
		assert.Equal(t, "args", args)
		time.Sleep(50 * time.Millisecond)
		initOnce.Do(func() { close(initialized) })
		ready()
		<-ctx.Done()
		return nil
	}, nil)
	c.spec.Args = "args"

	require.NoError(t, c.start(context.Background(), time.Second, exits, finished))
	select {
	case <-initialized:
	default:
		t.Fatal("start returned before the child process signalled readiness")
	}
	assert.Equal(t, Running, c.state)
	firstRef := c.run.ref

	reason, err := c.stop(nil)
	require.NoError(t, err)
	assert.Equal(t, ExitShutdown, reason.Kind)
	assert.Equal(t, Terminated, c.state)

	require.NoError(t, c.start(context.Background(), time.Second, exits, finished))
	assert.NotEqual(t, firstRef, c.run.ref, "every start must produce a new execution reference")
	_, err = c.stop(nil)
	require.NoError(t, err)
}

func TestChild_startFailures(t *testing.T) {
	t.Parallel()
	errInit := errors.New("init failed")
	tests := []struct {
		name    string
		start   ChildProcess
		wantErr error
	}{
		{
			"error before ready",
			func(context.Context, any, func()) error { return errInit },
			errInit,
		},
		{
			"timeout",
			func(ctx context.Context, _ any, _ func()) error { <-ctx.Done(); return nil },
			ErrStartTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exits := make(chan childExit, 1)
			finished := make(chan struct{})
			defer close(finished)
			c := newTestChild(tt.start, nil)
			err := c.start(context.Background(), 100*time.Millisecond, exits, finished)
			var startErr *StartError
			require.ErrorAs(t, err, &startErr)
			assert.Equal(t, "test", startErr.Name)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, Terminated, c.state)
		})
	}
}

func TestChild_returnBeforeReady(t *testing.T) {
	t.Parallel()
	exits := make(chan childExit, 1)
	finished := make(chan struct{})
	defer close(finished)
	c := newTestChild(func(context.Context, any, func()) error { return nil }, nil)
	require.NoError(t, c.start(context.Background(), time.Second, exits, finished))
	select {
	case ev := <-exits:
		assert.Same(t, c.run, ev.run)
		assert.Equal(t, ExitNormal, ev.run.awaitExit().Kind)
	case <-time.After(time.Second):
		t.Fatal("exit was not delivered")
	}
}

func TestChild_crashDelivery(t *testing.T) {
	t.Parallel()
	exits := make(chan childExit, 1)
	finished := make(chan struct{})
	defer close(finished)
	c := newTestChild(func(_ context.Context, _ any, ready func()) error {
		ready()
		panic("boom")
	}, nil)
	require.NoError(t, c.start(context.Background(), time.Second, exits, finished))
	select {
	case ev := <-exits:
		reason := ev.run.awaitExit()
		assert.True(t, reason.Abnormal())
		assert.Error(t, reason.Err)
	case <-time.After(time.Second):
		t.Fatal("exit was not delivered")
	}
}

func TestChild_stopTimeout(t *testing.T) {
	t.Parallel()
	exits := make(chan childExit, 1)
	finished := make(chan struct{})
	defer close(finished)
	release := make(chan struct{})
	defer close(release)
	c := newTestChild(func(_ context.Context, _ any, ready func()) error {
		ready()
		<-release
		return nil
	}, Timeout(50*time.Millisecond))
	require.NoError(t, c.start(context.Background(), time.Second, exits, finished))
	start := time.Now()
	_, err := c.stop(nil)
	assert.ErrorIs(t, err, ErrShutdownTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, Terminated, c.state)
}

func TestChild_stopGrace(t *testing.T) {
	t.Parallel()
	exits := make(chan childExit, 1)
	finished := make(chan struct{})
	defer close(finished)
	release := make(chan struct{})
	defer close(release)
	c := newTestChild(func(_ context.Context, _ any, ready func()) error {
		ready()
		<-release
		return nil
	}, Infinity())
	require.NoError(t, c.start(context.Background(), time.Second, exits, finished))
	_, err := c.stop(Timeout(50 * time.Millisecond))
	assert.ErrorIs(t, err, ErrShutdownTimeout)
	assert.Equal(t, Terminated, c.state)
}

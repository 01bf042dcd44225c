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

package supervision_test

import (
	"context"
	"testing"
	"time"

	"cirello.io/supervision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTree_Monitor(t *testing.T) {
	p := newRecorder()
	tree, err := supervision.StartTree(context.Background(),
		supervision.WithRestartIntensity(10, time.Minute),
		supervision.Process(p.spec("a", supervision.Permanent)),
	)
	require.NoError(t, err)

	events, cancel := tree.Monitor()
	p.exit(t, "a", errCrash)

	next := func() supervision.Event {
		select {
		case ev := <-events:
			return ev
		case <-time.After(time.Second):
			t.Fatal("missing event")
			return supervision.Event{}
		}
	}
	exited := next()
	assert.Equal(t, supervision.ChildExited, exited.Type)
	assert.Equal(t, "a", exited.Name)
	assert.True(t, exited.Reason.Abnormal())
	assert.ErrorIs(t, exited.Err, errCrash)
	restarted := next()
	assert.Equal(t, supervision.ChildRestarted, restarted.Type)
	assert.NotEqual(t, exited.Ref, restarted.Ref)

	require.NoError(t, tree.Stop())
	var terminated bool
	for len(events) > 0 {
		if ev := <-events; ev.Type == supervision.TreeTerminated {
			terminated = true
		}
	}
	assert.True(t, terminated)

	cancel()
	_, ok := <-events
	assert.False(t, ok, "cancelling the monitor closes its channel")
	cancel()
}

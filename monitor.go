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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType is the type of a tree lifecycle event.
type EventType int

// Event types.
const (
	ChildStarted EventType = iota
	ChildExited
	ChildRestarted
	ChildRemoved
	ChildShutdownTimeout
	IntensityExceeded
	TreeTerminated
)

func (et EventType) String() string {
	switch et {
	case ChildStarted:
		return "child started"
	case ChildExited:
		return "child exited"
	case ChildRestarted:
		return "child restarted"
	case ChildRemoved:
		return "child removed"
	case ChildShutdownTimeout:
		return "child shutdown timeout"
	case IntensityExceeded:
		return "restart intensity exceeded"
	case TreeTerminated:
		return "tree terminated"
	default:
		return fmt.Sprintf("event(%d)", int(et))
	}
}

// Event is a lifecycle event observed through a monitor.
type Event struct {
	Time   time.Time
	Type   EventType
	Name   string
	Ref    uuid.UUID
	Reason ExitReason
	Err    error
}

// monitorBufferSize is the capacity of each monitor channel. Events are
// dropped for monitors that fall behind.
const monitorBufferSize = 64

// monitors is the set of read-only observers of a tree. It is unrelated to
// the exit notifications the tree receives from its own child processes.
type monitors struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func (m *monitors) subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs == nil {
		m.subs = make(map[int]chan Event)
	}
	id := m.next
	m.next++
	ch := make(chan Event, monitorBufferSize)
	m.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

func (m *monitors) publish(e Event) {
	if e.Time.IsZero() {
		e.Time = timeNow()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

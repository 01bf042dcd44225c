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
	"slices"
)

// Strategy defines which siblings are affected when a child process
// terminates. Affected child processes are stopped in the reverse order of
// their start and restarted in start order.
type Strategy int

// Restart strategies.
const (
	// OneForOne ensures that if a child process terminates, only that
	// process is restarted.
	OneForOne Strategy = iota

	// OneForAll ensures that if a child process terminates, all other child
	// processes are terminated, and then all child processes, including the
	// terminated one, are restarted.
	OneForAll

	// RestForOne ensures that if a child process terminates, the rest of
	// the child processes (that is, the child processes after the
	// terminated process in start order) are terminated. Then the
	// terminated child process and the rest of the child processes are
	// restarted.
	RestForOne
)

func (s Strategy) String() string {
	switch s {
	case OneForOne:
		return "one_for_one"
	case OneForAll:
		return "one_for_all"
	case RestForOne:
		return "rest_for_one"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// plan is the outcome of a strategy applied to a terminated child process.
type plan struct {
	stop    []*child // reverse start order, the terminated child excluded
	restart []*child // start order
	remove  []*child
}

// plan computes which child processes must be stopped, restarted and
// removed after failed terminated with reason. children must be in start
// order.
func (s Strategy) plan(children []*child, failed *child, reason ExitReason) plan {
	var p plan
	if !triggers(failed.spec.Restart, reason) {
		if failed.spec.Restart == Temporary {
			p.remove = append(p.remove, failed)
		}
		return p
	}
	var affected []*child
	switch s {
	case OneForAll:
		affected = children
	case RestForOne:
		if i := slices.Index(children, failed); i >= 0 {
			affected = children[i:]
		}
	default:
		affected = []*child{failed}
	}
	for i := len(affected) - 1; i >= 0; i-- {
		if c := affected[i]; c != failed {
			p.stop = append(p.stop, c)
		}
	}
	for _, c := range affected {
		if c.spec.Restart == Temporary {
			p.remove = append(p.remove, c)
			continue
		}
		p.restart = append(p.restart, c)
	}
	return p
}

// triggers reports whether the termination of a child process with the
// given disposition sets the strategy in motion. A temporary child process
// is never restarted itself, but any exit it initiates still affects its
// siblings.
func triggers(restart Restart, reason ExitReason) bool {
	switch restart {
	case Permanent:
		return true
	case Temporary:
		return reason.Kind != ExitShutdown
	default:
		return reason.Abnormal()
	}
}

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
)

// ExitKind classifies how a child process terminated.
type ExitKind int

// Exit kinds.
const (
	// ExitNormal means the child process returned nil on its own.
	ExitNormal ExitKind = iota
	// ExitShutdown means the child process returned after being asked to
	// stop by its supervisor.
	ExitShutdown
	// ExitCrashed means the child process returned an error or panicked.
	ExitCrashed
)

// ExitReason is the reason a child process terminated.
type ExitReason struct {
	Kind ExitKind
	// Err is the crash cause, or whatever the child process returned.
	Err error
}

// Abnormal reports whether the exit was a crash.
func (r ExitReason) Abnormal() bool { return r.Kind == ExitCrashed }

func (r ExitReason) String() string {
	switch r.Kind {
	case ExitNormal:
		return "normal"
	case ExitShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("crashed(%v)", r.Err)
	}
}

// exitReasonOf classifies the return of a child process. A child process whose
// context was cancelled is considered to have been shut down, regardless of
// what it returned.
func exitReasonOf(ctx context.Context, err error) ExitReason {
	switch {
	case ctx.Err() != nil:
		return ExitReason{Kind: ExitShutdown, Err: err}
	case err == nil:
		return ExitReason{Kind: ExitNormal}
	default:
		return ExitReason{Kind: ExitCrashed, Err: err}
	}
}

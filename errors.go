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
	"errors"
	"fmt"
)

var (
	// ErrRestartIntensityExceeded means that the supervisor detected that
	// its child processes have been restarted too often within the
	// configured period and that it decided to fully stop.
	ErrRestartIntensityExceeded = errors.New("restart intensity exceeded")

	// ErrTooManyFailures is kept as an alias of ErrRestartIntensityExceeded.
	ErrTooManyFailures = ErrRestartIntensityExceeded

	// ErrMaxChildrenReached is returned by DynamicTree.Add when the tree is
	// already at its maximum population.
	ErrMaxChildrenReached = errors.New("max children reached")

	// ErrChildNotFound means that the referenced child process is not part
	// of the tree.
	ErrChildNotFound = errors.New("child process not found")

	// ErrDuplicateChild means that a child process with the same name is
	// already part of the tree.
	ErrDuplicateChild = errors.New("child process already exists")

	// ErrShutdownTimeout means that a child process did not stop within its
	// shutdown budget and was abandoned.
	ErrShutdownTimeout = errors.New("child process shutdown timeout")

	// ErrStartTimeout means that a child process did not signal readiness
	// within the start timeout.
	ErrStartTimeout = errors.New("child process start timeout")

	// ErrTreeNotRunning is returned by queries and mutations issued to a
	// tree that is not running.
	ErrTreeNotRunning = errors.New("tree is not running")

	// ErrTreeAlreadyRunning is returned when starting a tree that is
	// already running.
	ErrTreeAlreadyRunning = errors.New("tree is already running")
)

// StartError reports a child process that failed its initialization
// handshake.
type StartError struct {
	Name string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("cannot start %q: %v", e.Name, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

var (
	errNoStartFunction = errors.New("child process must always have a function")
	errNoName          = errors.New("child process must have a name")
)

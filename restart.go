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

import "time"

var timeNow = time.Now

// restart tracks restart events over a sliding window. A negative intensity
// disables the tracker.
type restart struct {
	intensity int
	period    time.Duration
	restarts  []time.Time
}

func (r *restart) record(now time.Time) {
	if r.intensity < 0 {
		return
	}
	r.restarts = append(r.restarts, now)
}

// exceeded prunes the events that fell out of the window and reports whether
// the remaining ones are more than the allowed intensity.
func (r *restart) exceeded(now time.Time) bool {
	if r.intensity < 0 {
		return false
	}
	cutoff := now.Add(-r.period)
	i := 0
	for i < len(r.restarts) && !r.restarts[i].After(cutoff) {
		i++
	}
	r.restarts = r.restarts[i:]
	return len(r.restarts) > r.intensity
}

// terminate records n restart events at now, one by one, and reports whether
// any of them overflowed the window.
func (r *restart) terminate(now time.Time, n int) bool {
	for range n {
		r.record(now)
		if r.exceeded(now) {
			return true
		}
	}
	return false
}

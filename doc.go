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

// Package supervision is an implementation of Erlang supervision trees for
// goroutines.
//
// Refer to: http://erlang.org/doc/design_principles/sup_princ.html
//
// A Tree starts its child processes in declaration order, each one
// signalling readiness before the next is started, and restarts them
// according to a Strategy (OneForOne, OneForAll or RestForOne) and to each
// child process Restart disposition (Permanent, Transient or Temporary). When
// restarts happen more often than the configured intensity, the tree stops
// all of its child processes and returns ErrRestartIntensityExceeded, which a
// parent tree handles like any other crash.
//
//	tree, err := supervision.StartTree(ctx,
//		supervision.WithSpecification(3, 5*time.Second, supervision.RestForOne),
//		supervision.Process(supervision.ChildProcessSpecification{
//			Name:  "cache",
//			Start: supervision.Worker(cache.Serve),
//		}),
//		supervision.Processes(func(ctx context.Context) error {
//			<-ctx.Done()
//			return nil
//		}),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer tree.Stop()
//
// A DynamicTree starts empty; child processes are added and removed at
// runtime, always under the OneForOne strategy.
package supervision // import "cirello.io/supervision"

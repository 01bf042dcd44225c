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

/*
Package easy is an easier interface to use cirello.io/supervision. Its
lifecycle is managed through context.Context. Stop a given tree by cancelling
its context.

	package main

	import "cirello.io/supervision/easy"

	func main() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		// use cancel() to stop the tree
		ctx = easy.WithContext(ctx)
		easy.Add(ctx, func(ctx context.Context) error {
			// ...
		})
	}
*/
package easy // import "cirello.io/supervision/easy"

import (
	"context"
	"errors"
	"log"

	"cirello.io/supervision"
	"github.com/google/uuid"
)

type ctxKey int

const treeKey ctxKey = 0

// ErrNoTreeAttached means that the given context has not been wrapped with
// WithContext, and thus this package cannot detect which tree you are
// referring to.
var ErrNoTreeAttached = errors.New("no supervision tree attached to context")

// Add inserts a supervised function to the attached tree, it launches
// automatically. If the context is not correctly prepared, it returns an
// ErrNoTreeAttached error. The restart policy is Permanent.
func Add(ctx context.Context, f func(context.Context) error) (string, error) {
	tree, ok := extractTree(ctx)
	if !ok {
		return "", ErrNoTreeAttached
	}
	name := uuid.NewString()
	_, err := tree.Add(ctx, supervision.ChildProcessSpecification{
		Name:    name,
		Restart: supervision.Permanent,
		Start:   supervision.Worker(f),
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// Delete stops and removes the given service from the attached tree. If the
// context is not correctly prepared, it returns an ErrNoTreeAttached error.
func Delete(ctx context.Context, name string) error {
	tree, ok := extractTree(ctx)
	if !ok {
		return ErrNoTreeAttached
	}
	return tree.Remove(ctx, name, nil)
}

// WithContext takes a context and prepare it to be used by easy supervisor
// package. Internally, it starts a dynamic tree that never halts, bound to
// the given context.
func WithContext(ctx context.Context, opts ...supervision.DynamicOption) context.Context {
	baseOpts := append([]supervision.DynamicOption{
		supervision.DynamicNeverHalt(),
	}, opts...)
	tree, err := supervision.StartDynamic(ctx, baseOpts...)
	if err != nil {
		// a dynamic tree has nothing to start; only a cancelled context
		// gets here.
		tree = supervision.NewDynamic(baseOpts...)
	}
	return context.WithValue(ctx, treeKey, tree)
}

// WithLogger attaches a logger to the tree.
func WithLogger(logger *log.Logger) supervision.DynamicOption {
	return supervision.WithDynamicLogger(logger)
}

func extractTree(ctx context.Context) (*supervision.DynamicTree, bool) {
	tree, ok := ctx.Value(treeKey).(*supervision.DynamicTree)
	return tree, ok && tree != nil
}

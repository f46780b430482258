// Copyright 2025 Commonwealth Scientific and Industrial Research Organisation (CSIRO) ABN 41 687 119 230
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package memstore implements store.EventStore entirely in process
// memory, for tests. It is not durable and not suitable for production
// use.
package memstore

import (
	"context"
	"sync"

	"github.com/ivcap-works/eventrunner/event"
	"github.com/ivcap-works/eventrunner/eserrors"
	"github.com/ivcap-works/eventrunner/stream"
	"github.com/ivcap-works/eventrunner/store"
)

// HookFunc runs once, immediately before the first Publish call this
// Store serves after the hook is registered, and before that append is
// actually recorded. It
// exists to simulate a concurrent writer racing the engine's own append,
// for tests that exercise version-conflict retries.
type HookFunc func() error

// Store is an in-memory, mutex-guarded event store keyed by stream ID.
type Store struct {
	mu       sync.Mutex
	streams  map[string][]stored
	hook     HookFunc
	hookDone bool
}

type stored struct {
	event   event.Event
	version stream.Version
}

// New returns an empty Store.
func New() *Store {
	return &Store{streams: make(map[string][]stored)}
}

// InjectBeforeFirstAppend registers a hook that runs exactly once, right
// before the next Publish call on this Store takes effect. Used to simulate
// a concurrent writer for optimistic-concurrency tests.
func (s *Store) InjectBeforeFirstAppend(hook HookFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
	s.hookDone = false
}

// ReadStream implements store.EventStore.
func (s *Store) ReadStream(ctx context.Context, streamID stream.ID) (store.EventStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	events, ok := s.streams[streamID.String()]
	if !ok {
		return nil, &eserrors.StreamNotFoundError{Stream: streamID}
	}

	out := make([]event.Event, len(events))
	versions := make([]stream.Version, len(events))
	for i, e := range events {
		out[i] = e.event
		versions[i] = e.version
	}
	return &sliceStream{events: out, versions: versions}, nil
}

// Publish implements store.EventStore.
func (s *Store) Publish(ctx context.Context, streamID stream.ID, events []event.Event, precondition stream.Precondition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	hook := s.hook
	runHook := hook != nil && !s.hookDone
	if runHook {
		s.hookDone = true
	}
	s.mu.Unlock()

	if runHook {
		if err := hook(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.streams[streamID.String()]
	currentVersion, exists := tipVersion(existing)

	if err := checkPrecondition(streamID, precondition, currentVersion, exists); err != nil {
		return err
	}

	next := currentVersion + 1
	if !exists {
		next = 0
	}
	for _, e := range events {
		existing = append(existing, stored{event: e, version: next})
		next++
	}
	s.streams[streamID.String()] = existing
	return nil
}

func tipVersion(events []stored) (stream.Version, bool) {
	if len(events) == 0 {
		return 0, false
	}
	return events[len(events)-1].version, true
}

func checkPrecondition(streamID stream.ID, p stream.Precondition, currentVersion stream.Version, exists bool) error {
	if p.IsNoPrecondition() {
		return nil
	}
	if p.IsNoStream() {
		if exists {
			actual := currentVersion
			return &eserrors.VersionMismatchError{Stream: streamID, Actual: &actual}
		}
		return nil
	}
	expected, _ := p.ExactVersion()
	if !exists {
		exp := expected
		return &eserrors.VersionMismatchError{Stream: streamID, Expected: &exp}
	}
	if currentVersion != expected {
		exp, act := expected, currentVersion
		return &eserrors.VersionMismatchError{Stream: streamID, Expected: &exp, Actual: &act}
	}
	return nil
}

type sliceStream struct {
	events   []event.Event
	versions []stream.Version
	pos      int
}

func (s *sliceStream) Next(ctx context.Context) (event.Event, stream.Version, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, false, err
	}
	if s.pos >= len(s.events) {
		return nil, 0, false, nil
	}
	e, v := s.events[s.pos], s.versions[s.pos]
	s.pos++
	return e, v, true, nil
}

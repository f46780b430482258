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

// Package store defines the port the engine reads and appends through.
// Concrete adapters (memstore, storehttp, ...) implement EventStore
// against a real backend.
package store

import (
	"context"

	"github.com/ivcap-works/eventrunner/event"
	"github.com/ivcap-works/eventrunner/stream"
)

// EventStream pulls events back from a single read_stream call, one at a
// time and in stream order. A nil, false, nil result (zero Event, zero
// Version, ok=false, err=nil) means the stream is exhausted.
type EventStream interface {
	// Next returns the next event and the version it was appended at.
	// Implementations must respect ctx cancellation.
	Next(ctx context.Context) (e event.Event, version stream.Version, ok bool, err error)
}

// EventStore is the port the engine drives: read a stream back in order,
// and append new events to it under a precondition.
//
// Implementations translate backend-specific failures into the
// eserrors taxonomy: a missing stream surfaces as
// *eserrors.StreamNotFoundError (the engine treats it as an empty
// stream, not a fatal error); a failed precondition surfaces as
// *eserrors.VersionMismatchError (the engine retries it); anything else
// is either a named eserrors type or *eserrors.StoreOtherError.
type EventStore interface {
	// ReadStream opens an ordered read over stream_id's full history.
	// Returning a *eserrors.StreamNotFoundError is valid and expected for
	// a stream that has never been appended to.
	ReadStream(ctx context.Context, streamID stream.ID) (EventStream, error)

	// Publish appends events to stream_id, enforcing precondition. An
	// empty events slice is a legal no-op call some adapters may choose
	// to skip entirely; the engine only calls Publish when there is at
	// least one event to append.
	Publish(ctx context.Context, streamID stream.ID, events []event.Event, precondition stream.Precondition) error
}

// SliceStream adapts a pre-loaded slice of (event, version) pairs into an
// EventStream, useful for adapters that read a backend's whole response
// into memory before handing it to the engine.
type SliceStream struct {
	events   []event.Event
	versions []stream.Version
	pos      int
}

// NewSliceStream builds an EventStream over events, whose versions are
// assigned sequentially starting at startVersion.
func NewSliceStream(events []event.Event, startVersion stream.Version) *SliceStream {
	versions := make([]stream.Version, len(events))
	for i := range events {
		versions[i] = startVersion + stream.Version(i)
	}
	return &SliceStream{events: events, versions: versions}
}

// Next implements EventStream.
func (s *SliceStream) Next(ctx context.Context) (event.Event, stream.Version, bool, error) {
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

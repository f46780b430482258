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

// Package storehttp implements store.EventStore against a remote HTTP
// event store: JSON over the generic REST adapter for reads and
// optimistic-concurrency-checked appends, with an r3labs/sse/v2 tail
// reader for following a stream live.
package storehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	bytesize "github.com/inhies/go-bytesize"
	"github.com/r3labs/sse/v2"
	log "go.uber.org/zap"

	"github.com/ivcap-works/eventrunner/eserrors"
	"github.com/ivcap-works/eventrunner/event"
	"github.com/ivcap-works/eventrunner/pkg/adapter"
	"github.com/ivcap-works/eventrunner/store"
	"github.com/ivcap-works/eventrunner/stream"
)

// EventFactory returns a fresh pointer to a concrete event type, boxed as
// event.Event, for encoding/json to unmarshal one wire payload into.
// Factories must return a pointer (e.g. func() event.Event { return
// &OrderCreated{} }) so json.Unmarshal can address the value underneath
// the interface.
type EventFactory func() event.Event

// Registry maps wire event-type tags to concrete Go event types, since
// JSON carries no type information of its own the way a Rust tagged enum
// would.
type Registry struct {
	factories map[string]EventFactory
	def       EventFactory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]EventFactory)}
}

// Register associates eventType with factory. Re-registering the same
// type panics, since it almost always indicates two event definitions
// accidentally sharing a wire tag.
func (r *Registry) Register(eventType string, factory EventFactory) {
	if _, exists := r.factories[eventType]; exists {
		panic(fmt.Sprintf("storehttp: event type %q already registered", eventType))
	}
	r.factories[eventType] = factory
}

// TypeSetter is an optional refinement a default factory's event can
// implement to learn the wire type tag it was decoded under.
type TypeSetter interface {
	SetEventType(eventType string)
}

// RegisterDefault sets the factory used for wire type tags with no
// specific registration, for tooling - such as a generic "print this
// stream" command - that needs to decode events it doesn't know the Go
// type of.
func (r *Registry) RegisterDefault(factory EventFactory) {
	r.def = factory
}

func (r *Registry) decode(eventType string, data json.RawMessage) (event.Event, error) {
	factory, registered := r.factories[eventType]
	if !registered {
		if r.def == nil {
			return nil, fmt.Errorf("storehttp: no event type registered for %q", eventType)
		}
		factory = r.def
	}
	e := factory()
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if !registered {
		if ts, ok := e.(TypeSetter); ok {
			ts.SetEventType(eventType)
		}
	}
	return e, nil
}

// Store is a store.EventStore backed by a remote HTTP event store
// reachable at the URL given in Config.ConnCtxt. It is safe for concurrent use: each call opens
// its own request.
type Store struct {
	adapter     adapter.Adapter
	registry    *Registry
	logger      *log.Logger
	connCtxtURL string
}

// Config configures a Store.
type Config struct {
	ConnCtxt *adapter.ConnectionCtxt
	Client   *http.Client
	Registry *Registry
	Logger   *log.Logger
}

// New builds a Store from cfg.
func New(cfg Config) *Store {
	opts := []adapter.Option{adapter.WithConnContext(cfg.ConnCtxt)}
	if cfg.Client != nil {
		opts = append(opts, adapter.WithHttpClient(cfg.Client))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	baseURL := ""
	if cfg.ConnCtxt != nil {
		baseURL = cfg.ConnCtxt.URL
	}
	return &Store{
		adapter:     adapter.RestAdapter(opts...),
		registry:    cfg.Registry,
		logger:      logger,
		connCtxtURL: baseURL,
	}
}

type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type wirePrecondition struct {
	Kind    string `json:"kind"`
	Version uint64 `json:"version,omitempty"`
}

type publishRequest struct {
	Events       []wireEvent      `json:"events"`
	Precondition wirePrecondition `json:"precondition"`
}

type versionMismatchBody struct {
	Expected *uint64 `json:"expected,omitempty"`
	Actual   *uint64 `json:"actual,omitempty"`
}

// ReadStream implements store.EventStore by GETting the stream's full
// recorded history as a JSON array of {type, data, version} records.
func (s *Store) ReadStream(ctx context.Context, streamID stream.ID) (store.EventStream, error) {
	path := fmt.Sprintf("/streams/%s/events", streamID)
	payload, err := s.adapter.Get(ctx, path, s.logger)
	if err != nil {
		var notFound *adapter.ResourceNotFoundError
		if errors.As(err, &notFound) {
			return nil, &eserrors.StreamNotFoundError{Stream: streamID}
		}
		return nil, &eserrors.StoreOtherError{Source: err}
	}

	var wire []struct {
		wireEvent
		Version uint64 `json:"version"`
	}
	if err := payload.AsType(&wire); err != nil {
		return nil, &eserrors.DeserializationError{Stream: streamID, Source: err}
	}

	s.logger.Debug("read stream",
		log.String("stream", streamID.String()),
		log.Int("count", len(wire)),
		log.String("bytes", bytesize.New(float64(len(payload.AsBytes()))).String()),
	)

	events := make([]event.Event, 0, len(wire))
	versions := make([]stream.Version, 0, len(wire))
	for _, w := range wire {
		e, err := s.registry.decode(w.Type, w.Data)
		if err != nil {
			return nil, &eserrors.DeserializationError{Stream: streamID, Source: err}
		}
		events = append(events, e)
		versions = append(versions, stream.Version(w.Version))
	}

	return &fetchedStream{events: events, versions: versions}, nil
}

// Publish implements store.EventStore by POSTing events and the chosen
// precondition. A 409 response is decoded into a
// *eserrors.VersionMismatchError rather than propagated as a generic API
// error, so the engine's own retry loop can act on it.
func (s *Store) Publish(ctx context.Context, streamID stream.ID, events []event.Event, precondition stream.Precondition) error {
	if len(events) == 0 {
		return nil
	}

	req := publishRequest{Precondition: toWirePrecondition(precondition)}
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return &eserrors.StoreOtherError{Source: err}
		}
		req.Events = append(req.Events, wireEvent{Type: e.EventType(), Data: data})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return &eserrors.StoreOtherError{Source: err}
	}

	path := fmt.Sprintf("/streams/%s/events", streamID)
	_, err = s.adapter.Post(ctx, path, bytes.NewReader(body), int64(len(body)), nil, s.logger)
	if err == nil {
		return nil
	}

	var conflict *adapter.ConflictError
	if errors.As(err, &conflict) {
		return conflictToVersionMismatch(streamID, conflict)
	}
	return &eserrors.StoreOtherError{Source: err}
}

func toWirePrecondition(p stream.Precondition) wirePrecondition {
	if p.IsNoStream() {
		return wirePrecondition{Kind: "no_stream"}
	}
	if v, ok := p.ExactVersion(); ok {
		return wirePrecondition{Kind: "exact", Version: uint64(v)}
	}
	return wirePrecondition{Kind: "none"}
}

func conflictToVersionMismatch(streamID stream.ID, conflict *adapter.ConflictError) error {
	mismatch := &eserrors.VersionMismatchError{Stream: streamID, Source: conflict}
	if conflict.Payload == nil {
		return mismatch
	}
	var body versionMismatchBody
	if err := conflict.Payload.AsType(&body); err != nil {
		return mismatch
	}
	if body.Expected != nil {
		v := stream.Version(*body.Expected)
		mismatch.Expected = &v
	}
	if body.Actual != nil {
		v := stream.Version(*body.Actual)
		mismatch.Actual = &v
	}
	return mismatch
}

// TailStream follows a stream live via server-sent events, decoding each
// event as it arrives and handing it to onEvent. It blocks until ctx is
// cancelled or the connection fails.
func (s *Store) TailStream(ctx context.Context, streamID stream.ID, onEvent func(event.Event, stream.Version) error) error {
	client := sse.NewClient(fmt.Sprintf("%s/streams/%s/tail", s.connCtxtURL, streamID))

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.SubscribeWithContext(ctx, "", func(msg *sse.Event) {
			var w struct {
				wireEvent
				Version uint64 `json:"version"`
			}
			if err := json.Unmarshal(msg.Data, &w); err != nil {
				s.logger.Warn("tail: failed to decode event envelope", log.Error(err))
				return
			}
			e, err := s.registry.decode(w.Type, w.Data)
			if err != nil {
				s.logger.Warn("tail: failed to decode event payload", log.Error(err))
				return
			}
			if err := onEvent(e, stream.Version(w.Version)); err != nil {
				s.logger.Warn("tail: onEvent callback failed", log.Error(err))
			}
		})
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

type fetchedStream struct {
	events   []event.Event
	versions []stream.Version
	pos      int
}

func (f *fetchedStream) Next(ctx context.Context) (event.Event, stream.Version, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, false, err
	}
	if f.pos >= len(f.events) {
		return nil, 0, false, nil
	}
	e, v := f.events[f.pos], f.versions[f.pos]
	f.pos++
	return e, v, true, nil
}

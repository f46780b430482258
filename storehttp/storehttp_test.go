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

package storehttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ivcap-works/eventrunner/eserrors"
	"github.com/ivcap-works/eventrunner/event"
	"github.com/ivcap-works/eventrunner/pkg/adapter"
	"github.com/ivcap-works/eventrunner/stream"
)

type fooHappened struct {
	Value int `json:"value"`
}

func (*fooHappened) EventType() string { return "FooHappened" }

func newTestStore(t *testing.T, url string) *Store {
	t.Helper()
	reg := NewRegistry()
	reg.Register("FooHappened", func() event.Event { return &fooHappened{} })
	return New(Config{
		ConnCtxt: &adapter.ConnectionCtxt{URL: url, TimeoutSec: 5},
		Registry: reg,
	})
}

func TestReadStreamDecodesWireEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"type":"FooHappened","data":{"value":42},"version":0}]`))
	}))
	defer srv.Close()

	s := newTestStore(t, srv.URL)
	id, _ := stream.Of("orders-1")

	reading, err := s.ReadStream(context.Background(), id)
	if err != nil {
		t.Fatalf("ReadStream() unexpected error: %v", err)
	}
	e, version, ok, err := reading.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("Next() = (%v, %v, %v, %v)", e, version, ok, err)
	}
	foo, ok := e.(*fooHappened)
	if !ok {
		t.Fatalf("event = %T, want *fooHappened", e)
	}
	if foo.Value != 42 || version != 0 {
		t.Fatalf("got value=%d version=%d, want 42,0", foo.Value, version)
	}

	_, _, ok, err = reading.Next(context.Background())
	if err != nil || ok {
		t.Fatalf("expected exhausted stream, got ok=%v err=%v", ok, err)
	}
}

func TestReadStreamMissingReturnsStreamNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := newTestStore(t, srv.URL)
	id, _ := stream.Of("missing")

	_, err := s.ReadStream(context.Background(), id)
	var notFound *eserrors.StreamNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("ReadStream() error = %v, want *eserrors.StreamNotFoundError", err)
	}
}

func TestPublishSendsRegisteredEventType(t *testing.T) {
	var gotBody publishRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := newTestStore(t, srv.URL)
	id, _ := stream.Of("orders-1")

	err := s.Publish(context.Background(), id, []event.Event{&fooHappened{Value: 7}}, stream.NoStream())
	if err != nil {
		t.Fatalf("Publish() unexpected error: %v", err)
	}
	if len(gotBody.Events) != 1 || gotBody.Events[0].Type != "FooHappened" {
		t.Fatalf("got request %+v, want one FooHappened event", gotBody)
	}
	if gotBody.Precondition.Kind != "no_stream" {
		t.Fatalf("precondition kind = %q, want no_stream", gotBody.Precondition.Kind)
	}
}

func TestPublishConflictBecomesVersionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		expected := uint64(3)
		actual := uint64(5)
		_ = json.NewEncoder(w).Encode(versionMismatchBody{Expected: &expected, Actual: &actual})
	}))
	defer srv.Close()

	s := newTestStore(t, srv.URL)
	id, _ := stream.Of("orders-1")

	err := s.Publish(context.Background(), id, []event.Event{&fooHappened{Value: 1}}, stream.Exact(3))

	var mismatch *eserrors.VersionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Publish() error = %v, want *eserrors.VersionMismatchError", err)
	}
	if mismatch.Expected == nil || *mismatch.Expected != 3 {
		t.Fatalf("mismatch.Expected = %v, want 3", mismatch.Expected)
	}
	if mismatch.Actual == nil || *mismatch.Actual != 5 {
		t.Fatalf("mismatch.Actual = %v, want 5", mismatch.Actual)
	}
}

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

package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/ivcap-works/eventrunner/aggregate"
	"github.com/ivcap-works/eventrunner/engineconfig"
	"github.com/ivcap-works/eventrunner/eserrors"
	"github.com/ivcap-works/eventrunner/event"
	"github.com/ivcap-works/eventrunner/memstore"
	"github.com/ivcap-works/eventrunner/stream"
)

// fooEvent / barEvent / bazEvent implement event.Event for the folding
// scenarios (S4); oneEvent / twoEvent stand in for the first-write
// scenario (S3).

type fooEvent struct{ Value int }

func (fooEvent) EventType() string { return "Foo" }

type barEvent struct{ Value int }

func (barEvent) EventType() string { return "Bar" }

type bazEvent struct{ Value int }

func (bazEvent) EventType() string { return "Baz" }

type oneEvent struct{ ID string }

func (oneEvent) EventType() string { return "One" }

type twoEvent struct{ ID string }

func (twoEvent) EventType() string { return "Two" }

// fooBarState folds Foo/Bar/Baz events, tracking the running sums needed
// by the stateful command in S4.
type fooBarState struct {
	foo, bar int
}

func (s fooBarState) Apply(e event.Event) aggregate.State {
	switch ev := e.(type) {
	case fooEvent:
		s.foo = ev.Value
	case barEvent:
		s.bar = ev.Value
	}
	return s
}

// noopCommand always returns an empty event list (S1).
type noopCommand struct {
	streamID stream.ID
	state    aggregate.State
}

func (c *noopCommand) EmptyState() aggregate.State { return aggregate.Stateless{} }
func (c *noopCommand) EventStreamID() stream.ID    { return c.streamID }
func (c *noopCommand) GetState() aggregate.State   { return c.state }
func (c *noopCommand) SetState(s aggregate.State)  { c.state = s }
func (c *noopCommand) Handle() ([]event.Event, error) { return nil, nil }
func (c *noopCommand) MarkRetry()                     {}
func (c *noopCommand) OverrideExpectedVersion() (stream.Version, bool) { return 0, false }

// rejectingCommand always fails to decide (S2).
type rejectingCommand struct {
	streamID stream.ID
	state    aggregate.State
}

func (c *rejectingCommand) EmptyState() aggregate.State                     { return aggregate.Stateless{} }
func (c *rejectingCommand) EventStreamID() stream.ID                        { return c.streamID }
func (c *rejectingCommand) GetState() aggregate.State                       { return c.state }
func (c *rejectingCommand) SetState(s aggregate.State)                      { c.state = s }
func (c *rejectingCommand) Handle() ([]event.Event, error)                  { return nil, errors.New("no") }
func (c *rejectingCommand) MarkRetry()                                      {}
func (c *rejectingCommand) OverrideExpectedVersion() (stream.Version, bool) { return 0, false }

// firstWriteCommand always emits One then Two, regardless of state (S3).
type firstWriteCommand struct {
	streamID stream.ID
	id       string
	state    aggregate.State
}

func (c *firstWriteCommand) EmptyState() aggregate.State { return aggregate.Stateless{} }
func (c *firstWriteCommand) EventStreamID() stream.ID    { return c.streamID }
func (c *firstWriteCommand) GetState() aggregate.State   { return c.state }
func (c *firstWriteCommand) SetState(s aggregate.State)  { c.state = s }
func (c *firstWriteCommand) Handle() ([]event.Event, error) {
	return []event.Event{oneEvent{ID: c.id}, twoEvent{ID: c.id}}, nil
}
func (c *firstWriteCommand) MarkRetry()                                      {}
func (c *firstWriteCommand) OverrideExpectedVersion() (stream.Version, bool) { return 0, false }

// sumCommand emits Baz{foo+bar} once it has folded both Foo and Bar (S4).
type sumCommand struct {
	streamID stream.ID
	state    aggregate.State
}

func (c *sumCommand) EmptyState() aggregate.State { return fooBarState{} }
func (c *sumCommand) EventStreamID() stream.ID    { return c.streamID }
func (c *sumCommand) GetState() aggregate.State   { return c.state }
func (c *sumCommand) SetState(s aggregate.State)  { c.state = s }
func (c *sumCommand) Handle() ([]event.Event, error) {
	s := c.state.(fooBarState)
	return []event.Event{bazEvent{Value: s.foo + s.bar}}, nil
}
func (c *sumCommand) MarkRetry()                                      {}
func (c *sumCommand) OverrideExpectedVersion() (stream.Version, bool) { return 0, false }

// appendOnceCommand emits a single marker event every time it is asked to
// decide, used for S5 (retried after a concurrent writer) and S6 (budget
// exhaustion via a forced version override).
type appendOnceCommand struct {
	streamID        stream.ID
	state           aggregate.State
	overrideVersion *stream.Version
	decideCount     int
}

func (c *appendOnceCommand) EmptyState() aggregate.State { return aggregate.Stateless{} }
func (c *appendOnceCommand) EventStreamID() stream.ID    { return c.streamID }
func (c *appendOnceCommand) GetState() aggregate.State   { return c.state }
func (c *appendOnceCommand) SetState(s aggregate.State)  { c.state = s }
func (c *appendOnceCommand) Handle() ([]event.Event, error) {
	c.decideCount++
	return []event.Event{fooEvent{Value: c.decideCount}}, nil
}
func (c *appendOnceCommand) MarkRetry() {}
func (c *appendOnceCommand) OverrideExpectedVersion() (stream.Version, bool) {
	if c.overrideVersion == nil {
		return 0, false
	}
	return *c.overrideVersion, true
}

func seed(t *testing.T, s *memstore.Store, id stream.ID, events ...event.Event) {
	t.Helper()
	if err := s.Publish(context.Background(), id, events, stream.NoStream()); err != nil {
		t.Fatalf("seeding stream %s failed: %v", id, err)
	}
}

func mustStreamID(t *testing.T, raw string) stream.ID {
	t.Helper()
	id, err := stream.Of(raw)
	if err != nil {
		t.Fatalf("stream.Of(%q) failed: %v", raw, err)
	}
	return id
}

func readAll(t *testing.T, s *memstore.Store, id stream.ID) []event.Event {
	t.Helper()
	reading, err := s.ReadStream(context.Background(), id)
	if err != nil {
		t.Fatalf("ReadStream(%s) failed: %v", id, err)
	}
	var out []event.Event
	for {
		e, _, ok, err := reading.Next(context.Background())
		if err != nil {
			t.Fatalf("Next() failed: %v", err)
		}
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out
}

// S1 - no-op command.
func TestExecuteNoopCommandLeavesStreamUnchanged(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	id := mustStreamID(t, "A")
	seed(t, s, id, fooEvent{Value: 1})

	cmd := &noopCommand{streamID: id}
	if err := Execute(ctx, cmd, s, engineconfig.Default()); err != nil {
		t.Fatalf("Execute() unexpected error: %v", err)
	}

	got := readAll(t, s, id)
	if len(got) != 1 {
		t.Fatalf("stream length = %d, want 1", len(got))
	}
}

// S2 - rejection.
func TestExecuteCommandFailedFromHandle(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	id := mustStreamID(t, "A2")

	cmd := &rejectingCommand{streamID: id}
	err := Execute(ctx, cmd, s, engineconfig.Default())

	var failed *eserrors.CommandFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("Execute() error = %v, want *eserrors.CommandFailedError", err)
	}
	if failed.Attempt != 1 || failed.MaxAttempts != 5 {
		t.Fatalf("got attempt=%d maxAttempts=%d, want 1,5", failed.Attempt, failed.MaxAttempts)
	}
}

// S3 - first write, never-seen stream.
func TestExecuteFirstWriteOnNewStream(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	id := mustStreamID(t, "B")

	cmd := &firstWriteCommand{streamID: id, id: "u"}
	if err := Execute(ctx, cmd, s, engineconfig.Default()); err != nil {
		t.Fatalf("Execute() unexpected error: %v", err)
	}

	got := readAll(t, s, id)
	if len(got) != 2 {
		t.Fatalf("stream length = %d, want 2", len(got))
	}
	if _, ok := got[0].(oneEvent); !ok {
		t.Fatalf("got[0] = %T, want oneEvent", got[0])
	}
	if _, ok := got[1].(twoEvent); !ok {
		t.Fatalf("got[1] = %T, want twoEvent", got[1])
	}
}

// S4 - state folding.
func TestExecuteFoldsStateBeforeDeciding(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	id := mustStreamID(t, "C")
	seed(t, s, id, fooEvent{Value: 7}, barEvent{Value: 5})

	cmd := &sumCommand{streamID: id}
	if err := Execute(ctx, cmd, s, engineconfig.Default()); err != nil {
		t.Fatalf("Execute() unexpected error: %v", err)
	}

	got := readAll(t, s, id)
	if len(got) != 3 {
		t.Fatalf("stream length = %d, want 3", len(got))
	}
	baz, ok := got[2].(bazEvent)
	if !ok {
		t.Fatalf("got[2] = %T, want bazEvent", got[2])
	}
	if baz.Value != 12 {
		t.Fatalf("baz.Value = %d, want 12", baz.Value)
	}
}

// S5 - concurrent modification, one retry wins.
func TestExecuteRetriesOnceAfterConcurrentWriter(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	id := mustStreamID(t, "D")
	seed(t, s, id, fooEvent{Value: 1}, barEvent{Value: 2})

	s.InjectBeforeFirstAppend(func() error {
		return s.Publish(ctx, id, []event.Event{fooEvent{Value: 100}}, stream.Exact(1))
	})

	cmd := &appendOnceCommand{streamID: id}
	if err := Execute(ctx, cmd, s, engineconfig.Default()); err != nil {
		t.Fatalf("Execute() unexpected error: %v", err)
	}

	got := readAll(t, s, id)
	if len(got) != 4 {
		t.Fatalf("stream length = %d, want 4", len(got))
	}
	if cmd.decideCount != 2 {
		t.Fatalf("decideCount = %d, want 2 (one failed attempt, one that won)", cmd.decideCount)
	}
	if _, ok := got[2].(fooEvent); !ok {
		t.Fatalf("got[2] = %T, want fooEvent (the interloper)", got[2])
	}
	if _, ok := got[3].(fooEvent); !ok {
		t.Fatalf("got[3] = %T, want fooEvent (the engine's own event at the tip)", got[3])
	}
}

// S6 - budget exhaustion.
func TestExecuteMaxRetriesExceeded(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	id := mustStreamID(t, "D")
	seed(t, s, id, fooEvent{Value: 1}, barEvent{Value: 2})

	forced := stream.Version(0)
	cmd := &appendOnceCommand{streamID: id, overrideVersion: &forced}

	cfg, err := engineconfig.New(engineconfig.WithMaxRetries(2))
	if err != nil {
		t.Fatalf("engineconfig.New() unexpected error: %v", err)
	}

	err = Execute(ctx, cmd, s, cfg)

	var maxRetries *eserrors.MaxRetriesExceededError
	if !errors.As(err, &maxRetries) {
		t.Fatalf("Execute() error = %v, want *eserrors.MaxRetriesExceededError", err)
	}
	if maxRetries.MaxRetries != 2 {
		t.Fatalf("MaxRetries = %d, want 2", maxRetries.MaxRetries)
	}
	if cmd.decideCount != 3 {
		t.Fatalf("decideCount = %d, want 3 (initial attempt plus two retries)", cmd.decideCount)
	}
}

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

// Package command defines the contract the engine drives: read a stream,
// fold it into aggregate state, ask the command to decide, then append
// whatever it produced.
package command

import (
	"github.com/ivcap-works/eventrunner/aggregate"
	"github.com/ivcap-works/eventrunner/event"
	"github.com/ivcap-works/eventrunner/stream"
)

// Command is a single unit of business decision-making against one event
// stream. The engine constructs the aggregate state by replaying every
// event currently on the stream through Apply (or ApplyEvent, see below),
// then calls Handle to obtain the events the command wants appended.
//
// Implementations are not expected to be safe for concurrent use; the
// engine never calls a Command's methods from more than one goroutine at
// a time, and reconstructs fresh state on every retry.
type Command interface {
	// EmptyState returns the aggregate state a brand new stream starts
	// from, before any event has been folded into it.
	EmptyState() aggregate.State

	// EventStreamID returns the stream this command reads from and
	// appends to.
	EventStreamID() stream.ID

	// GetState returns the command's current view of the aggregate.
	GetState() aggregate.State

	// SetState replaces the command's current view of the aggregate.
	SetState(s aggregate.State)

	// Handle decides what happened, given the state folded so far. A
	// non-nil error aborts the attempt with eserrors.CommandFailedError
	// and is never retried by the engine.
	Handle() ([]event.Event, error)

	// MarkRetry is called once per retry, after a version conflict and
	// before the stream is replayed again, so a command can reset any
	// decision it made on the failed attempt. Most commands have nothing
	// to reset and can implement this as a no-op.
	MarkRetry()

	// OverrideExpectedVersion lets a command force the precondition the
	// engine appends under, instead of the version observed while
	// reading. Implementations with no opinion return (0, false).
	OverrideExpectedVersion() (stream.Version, bool)
}

// EventApplier is an optional refinement of Command for aggregates whose
// folding needs more than aggregate.State.Apply - for example, recording
// the version of the last-seen event. When a Command implements
// EventApplier, the engine calls ApplyEvent for each replayed event
// instead of the default fold.
type EventApplier interface {
	Command
	ApplyEvent(e event.Event)
}

// Apply folds a single event into cmd's state using the default rule:
// set_state(get_state().apply(event)). The engine calls this for every
// Command that does not implement EventApplier.
func Apply(cmd Command, e event.Event) {
	cmd.SetState(cmd.GetState().Apply(e))
}

// Fold replays cmd's state forward across events, preferring cmd's own
// ApplyEvent when it implements EventApplier and falling back to the
// default Apply rule otherwise.
func Fold(cmd Command, events []event.Event) {
	applier, custom := cmd.(EventApplier)
	for _, e := range events {
		if custom {
			applier.ApplyEvent(e)
			continue
		}
		Apply(cmd, e)
	}
}

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

// Package engine drives a single Command against a store.EventStore:
// read, fold, decide, append, and retry version conflicts with bounded
// jittered backoff.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/ivcap-works/eventrunner/command"
	"github.com/ivcap-works/eventrunner/engineconfig"
	"github.com/ivcap-works/eventrunner/eserrors"
	"github.com/ivcap-works/eventrunner/event"
	"github.com/ivcap-works/eventrunner/stream"
	"github.com/ivcap-works/eventrunner/store"
)

// Execute runs cmd to completion against es: rebuild its aggregate state
// from the stream, ask it to decide, append what it produced under an
// optimistic-concurrency precondition, and retry on version conflicts
// according to cfg until success, a non-retriable failure, or budget
// exhaustion.
//
// Execute suspends only at three points: drawing the next event while
// reading, sleeping between retries, and the publish call itself -
// mark_retry, apply, handle and delay calculation are synchronous. It
// never calls cmd's methods from more than one goroutine.
func Execute(ctx context.Context, cmd command.Command, es store.EventStore, cfg engineconfig.ExecuteConfig) error {
	var attempt uint32

	for {
		if attempt > cfg.MaxRetries {
			return &eserrors.MaxRetriesExceededError{
				Stream:     cmd.EventStreamID(),
				MaxRetries: cfg.MaxRetries,
			}
		}

		expectedVersion, hasExpectedVersion, err := readAndFold(ctx, cmd, es)
		if err != nil {
			return err
		}

		events, err := cmd.Handle()
		if err != nil {
			return &eserrors.CommandFailedError{
				Message:     err.Error(),
				Attempt:     attempt + 1,
				MaxAttempts: cfg.MaxRetries,
				Source:      err,
			}
		}
		if len(events) == 0 {
			return nil
		}

		precondition := appendPrecondition(cmd, expectedVersion, hasExpectedVersion)

		err = es.Publish(ctx, cmd.EventStreamID(), events, precondition)
		if err == nil {
			return nil
		}

		var mismatch *eserrors.VersionMismatchError
		if !errors.As(err, &mismatch) {
			return err
		}

		delay := cfg.RetryDelay.CalculateDelay(attempt)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		cmd.MarkRetry()
		attempt++
	}
}

// readAndFold replays streamID into cmd and reports the version of the
// last event folded, if any. A missing stream is absorbed as empty.
func readAndFold(ctx context.Context, cmd command.Command, es store.EventStore) (stream.Version, bool, error) {
	cmd.SetState(cmd.EmptyState())

	reading, err := es.ReadStream(ctx, cmd.EventStreamID())
	var notFound *eserrors.StreamNotFoundError
	if errors.As(err, &notFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	var expectedVersion stream.Version
	var hasVersion bool

	for {
		e, version, ok, err := reading.Next(ctx)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			break
		}
		command.Fold(cmd, []event.Event{e})
		expectedVersion = version
		hasVersion = true
	}

	return expectedVersion, hasVersion, nil
}

// appendPrecondition implements the engine's precondition-selection rule:
// a command's own override always wins; otherwise the version observed
// while reading is used; and a stream observed as non-existent appends
// under NoStream, the stricter of the two tolerated shapes, so a
// concurrent first writer is detected rather than silently raced.
func appendPrecondition(cmd command.Command, expectedVersion stream.Version, hasExpectedVersion bool) stream.Precondition {
	if v, ok := cmd.OverrideExpectedVersion(); ok {
		return stream.Exact(v)
	}
	if hasExpectedVersion {
		return stream.Exact(expectedVersion)
	}
	return stream.NoStream()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

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

// Package eserrors defines the closed set of errors the engine and its
// store ports can return. Every error here is a pointer type usable with
// errors.As; those that carry an underlying cause (a Source field) also
// expose it to errors.Is / errors.As through the standard Unwrap
// convention.
package eserrors

import (
	"fmt"

	"github.com/ivcap-works/eventrunner/stream"
)

// StreamNotFoundError indicates that a requested event stream does not
// exist in the backing store.
type StreamNotFoundError struct {
	Stream stream.ID
}

func (e *StreamNotFoundError) Error() string {
	return fmt.Sprintf("stream not found: %s", e.Stream)
}

// VersionMismatchError indicates that an append's precondition did not
// hold against the store's actual state. Expected and Actual are nil
// when the corresponding version is not known or not applicable, mirroring
// the four precondition/actual combinations a NoStream or Exact append can
// fail in.
type VersionMismatchError struct {
	Stream   stream.ID
	Expected *stream.Version
	Actual   *stream.Version
	Source   error
}

func (e *VersionMismatchError) Error() string {
	var detail string
	switch {
	case e.Expected != nil && e.Actual != nil:
		detail = fmt.Sprintf("expected version %d, but stream is at version %d", *e.Expected, *e.Actual)
	case e.Expected != nil && e.Actual == nil:
		detail = fmt.Sprintf("expected version %d, but stream does not exist", *e.Expected)
	case e.Expected == nil && e.Actual != nil:
		detail = fmt.Sprintf("stream exists at version %d, but no version was expected", *e.Actual)
	default:
		detail = "invalid version state"
	}
	return fmt.Sprintf("version mismatch for stream %q: %s", e.Stream, detail)
}

func (e *VersionMismatchError) Unwrap() error { return e.Source }

// DeserializationError indicates that an event read back from the store
// could not be decoded into the caller's event type. It is never retried.
type DeserializationError struct {
	Stream stream.ID
	Source error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("failed to deserialize event from stream %s: %s", e.Stream, e.Source)
}

func (e *DeserializationError) Unwrap() error { return e.Source }

// CommandFailedError wraps an error returned by Command.Handle. It is
// never retried by the engine: a domain decision failure is not a
// concurrency conflict.
type CommandFailedError struct {
	Message     string
	Attempt     uint32
	MaxAttempts uint32
	Source      error
}

func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("command failed (attempt %d of %d): %s", e.Attempt, e.MaxAttempts, e.Message)
}

func (e *CommandFailedError) Unwrap() error { return e.Source }

// MaxRetriesExceededError indicates that the engine exhausted its retry
// budget without a successful append.
type MaxRetriesExceededError struct {
	Stream     stream.ID
	MaxRetries uint32
}

func (e *MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("command execution exceeded maximum retries (%d) for stream %q", e.MaxRetries, e.Stream)
}

// InvalidConfigError indicates a caller-supplied ExecuteConfig value that
// the engine refuses to run with.
type InvalidConfigError struct {
	Message   string
	Parameter string
}

func (e *InvalidConfigError) Error() string {
	if e.Parameter == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Message)
	}
	return fmt.Sprintf("invalid configuration parameter %q: %s", e.Parameter, e.Message)
}

// StoreOtherError wraps any store-level failure that doesn't fit one of
// the named categories above (connection errors, timeouts, transport
// failures and the like).
type StoreOtherError struct {
	Source error
}

func (e *StoreOtherError) Error() string {
	return fmt.Sprintf("event store error: %s", e.Source)
}

func (e *StoreOtherError) Unwrap() error { return e.Source }

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

// Package aggregate defines the pure event-folding contract aggregate
// states implement.
package aggregate

import "github.com/ivcap-works/eventrunner/event"

// State folds a sequence of events into the current value of an
// aggregate. Apply must be pure, total and deterministic: applying the
// same event to an equal state always yields an equal result, and it must
// never panic or perform I/O. Implementations are expected to be value
// types that return a new State rather than mutate the receiver.
type State interface {
	Apply(e event.Event) State
}

// Stateless is the trivial aggregate state for commands that carry no
// domain state of their own: it ignores every event it is handed and
// always folds back to itself.
type Stateless struct{}

// Apply returns the receiver unchanged.
func (s Stateless) Apply(event.Event) State {
	return s
}

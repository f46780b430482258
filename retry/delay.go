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

// Package retry computes the backoff delay the engine sleeps between
// optimistic-concurrency retries.
package retry

import (
	"math/rand/v2"
	"time"
)

// Delay is an exponential-backoff-with-full-jitter schedule, in the style
// of the AWS Architecture Blog's "Exponential Backoff And Jitter" post:
// the nominal delay doubles with every retry up to a cap, then the actual
// sleep is drawn uniformly from [0, nominal].
type Delay struct {
	// BaseDelayMs is the nominal delay, in milliseconds, before the first
	// retry (retryCount == 0).
	BaseDelayMs uint64
	// MaxDelayMs caps the nominal delay regardless of retry count.
	MaxDelayMs uint64
}

// DefaultDelay matches the engine's default retry schedule: 100ms base,
// capped at 30 seconds.
func DefaultDelay() Delay {
	return Delay{BaseDelayMs: 100, MaxDelayMs: 30_000}
}

// CalculateDelay returns the sleep duration for the given zero-based retry
// count. It never panics on large retryCount values: the exponential term
// is computed via bit-shifting and clamped before it can overflow.
func (d Delay) CalculateDelay(retryCount uint32) time.Duration {
	capped := d.MaxDelayMs
	if retryCount < 63 {
		exp := d.BaseDelayMs << retryCount
		// Detect the shift overflowing back below BaseDelayMs.
		if exp >= d.BaseDelayMs && exp < d.MaxDelayMs {
			capped = exp
		}
	}

	jittered := rand.Uint64N(capped + 1)
	return time.Duration(jittered) * time.Millisecond
}

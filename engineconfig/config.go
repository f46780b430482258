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

// Package engineconfig configures the engine's retry budget and backoff
// schedule.
package engineconfig

import (
	"github.com/ivcap-works/eventrunner/eserrors"
	"github.com/ivcap-works/eventrunner/retry"
)

// ExecuteConfig bounds how many times Execute retries a version conflict
// and how long it waits between attempts.
type ExecuteConfig struct {
	// MaxRetries is the number of retries allowed after the first publish
	// attempt; Execute makes at most MaxRetries+1 publish attempts.
	MaxRetries uint32
	// RetryDelay computes the sleep between a version conflict and the
	// next attempt.
	RetryDelay retry.Delay
}

// Default returns the engine's standard configuration: five retries with
// the default 100ms/30s full-jitter backoff schedule.
func Default() ExecuteConfig {
	return ExecuteConfig{
		MaxRetries: 5,
		RetryDelay: retry.DefaultDelay(),
	}
}

// Option customises an ExecuteConfig built from Default.
type Option func(*ExecuteConfig)

// WithMaxRetries overrides the retry budget.
func WithMaxRetries(n uint32) Option {
	return func(c *ExecuteConfig) { c.MaxRetries = n }
}

// WithRetryDelay overrides the backoff schedule.
func WithRetryDelay(d retry.Delay) Option {
	return func(c *ExecuteConfig) { c.RetryDelay = d }
}

// New builds an ExecuteConfig from Default plus the given options, then
// validates it.
func New(opts ...Option) (ExecuteConfig, error) {
	cfg := Default()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return ExecuteConfig{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c ExecuteConfig) Validate() error {
	if c.MaxRetries == 0 {
		return &eserrors.InvalidConfigError{
			Message:   "must be greater than zero",
			Parameter: "max_retries",
		}
	}
	if c.RetryDelay.BaseDelayMs == 0 {
		return &eserrors.InvalidConfigError{
			Message:   "must be greater than zero",
			Parameter: "base_retry_delay_ms",
		}
	}
	if c.RetryDelay.MaxDelayMs < c.RetryDelay.BaseDelayMs {
		return &eserrors.InvalidConfigError{
			Message:   "must be greater than or equal to base_retry_delay_ms",
			Parameter: "max_retry_delay_ms",
		}
	}
	return nil
}

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

package stream

import "testing"

func TestNewIsUniqueAndNonZero(t *testing.T) {
	a := New()
	b := New()
	if a.IsZero() || b.IsZero() {
		t.Fatalf("New() should never produce a zero ID")
	}
	if a.Equal(b) {
		t.Fatalf("two calls to New() produced the same ID: %s", a)
	}
}

func TestOfTrimsAndValidates(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "orders-123", want: "orders-123"},
		{name: "trims whitespace", in: "  orders-123  ", want: "orders-123"},
		{name: "empty is invalid", in: "", wantErr: true},
		{name: "whitespace only is invalid", in: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Of(tt.in)
			if tt.wantErr && err == nil {
				t.Fatalf("Of(%q) = nil error, want error", tt.in)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Of(%q) unexpected error: %v", tt.in, err)
			}
			if !tt.wantErr && id.String() != tt.want {
				t.Fatalf("Of(%q) = %q, want %q", tt.in, id.String(), tt.want)
			}
		})
	}
}

func TestPreconditionAccessors(t *testing.T) {
	if !NoPrecondition().IsNoPrecondition() {
		t.Fatalf("NoPrecondition() should report IsNoPrecondition")
	}
	if !NoStream().IsNoStream() {
		t.Fatalf("NoStream() should report IsNoStream")
	}
	v, ok := Exact(5).ExactVersion()
	if !ok || v != 5 {
		t.Fatalf("Exact(5).ExactVersion() = (%d, %v), want (5, true)", v, ok)
	}
	if _, ok := NoPrecondition().ExactVersion(); ok {
		t.Fatalf("NoPrecondition().ExactVersion() should report ok=false")
	}
}

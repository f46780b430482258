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

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ivcap-works/eventrunner/event"
	"github.com/ivcap-works/eventrunner/stream"
	"github.com/ivcap-works/eventrunner/storehttp"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Inspect event streams",
}

var streamCatCmd = &cobra.Command{
	Use:   "cat stream-id",
	Short: "Print the recorded history of a stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		id, err := stream.Of(args[0])
		if err != nil {
			return err
		}
		s := CreateStore(rawRegistry)

		ctxt, cancel := NewTimeoutContext()
		defer cancel()

		reading, err := s.ReadStream(ctxt, id)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Version", "Type", "Data"})
		for {
			e, version, ok, err := reading.Next(ctxt)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			data, _ := json.Marshal(e)
			t.AppendRow(table.Row{version, e.EventType(), safeTruncString(string(data))})
		}
		t.Render()
		return nil
	},
}

var streamTailCmd = &cobra.Command{
	Use:   "tail stream-id",
	Short: "Follow a stream as new events are appended",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		id, err := stream.Of(args[0])
		if err != nil {
			return err
		}
		s := CreateStore(rawRegistry)

		fmt.Printf("Tailing stream '%s' - Ctrl-C to stop\n", id)
		return s.TailStream(context.Background(), id, func(e event.Event, version stream.Version) error {
			data, _ := json.Marshal(e)
			fmt.Printf("[%d] %s %s\n", version, e.EventType(), data)
			return nil
		})
	},
}

// rawEvent decodes any wire event into its type tag plus the raw JSON
// body, for display commands that only need to print a stream's contents
// back out rather than fold it into a typed aggregate.
type rawEvent struct {
	eventType string
	body      json.RawMessage
}

func (r *rawEvent) EventType() string { return r.eventType }

func (r *rawEvent) SetEventType(eventType string) { r.eventType = eventType }

func (r *rawEvent) UnmarshalJSON(data []byte) error {
	r.body = append([]byte(nil), data...)
	return nil
}

func (r *rawEvent) MarshalJSON() ([]byte, error) {
	return r.body, nil
}

// rawRegistry decodes any event type it is asked to, via rawEvent's
// default factory.
var rawRegistry = newRawRegistry()

func newRawRegistry() *storehttp.Registry {
	reg := storehttp.NewRegistry()
	reg.RegisterDefault(func() event.Event { return &rawEvent{} })
	return reg
}

func init() {
	rootCmd.AddCommand(streamCmd)
	streamCmd.AddCommand(streamCatCmd, streamTailCmd)
}

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
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ivcap-works/eventrunner/aggregate"
	"github.com/ivcap-works/eventrunner/event"
	"github.com/ivcap-works/eventrunner/stream"
)

var replayEventCount int

// tally is the raw aggregate replay folds through: it carries no domain
// meaning, just the count of events applied, standing in for whatever
// state a real Command.EmptyState would return.
type tally int

// Apply implements aggregate.State.
func (t tally) Apply(event.Event) aggregate.State { return t + 1 }

var replayCmd = &cobra.Command{
	Use:   "replay stream-id",
	Short: "Fold a stream's full history, showing progress as events are read",
	Long: `replay reads every event recorded on a stream from the beginning,
folding it through a raw aggregate the same way the engine would before
deciding - useful for eyeballing how large a stream has grown, or for
warming a cache before driving real commands against it.`,
	Args: cobra.ExactArgs(1),
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

		var bar *progressbar.ProgressBar
		if replayEventCount > 0 {
			bar = progressbar.Default(int64(replayEventCount))
		} else {
			bar = progressbar.DefaultBytes(-1, "folding")
		}

		var state aggregate.State = tally(0)
		var lastVersion stream.Version
		for {
			e, version, ok, err := reading.Next(ctxt)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			state = state.Apply(e)
			_ = bar.Add(1)
			lastVersion = version
		}
		_ = bar.Finish()

		fmt.Printf("\nfolded %d event(s), tip version %d\n", state.(tally), lastVersion)
		return nil
	},
}

func init() {
	replayCmd.Flags().IntVar(&replayEventCount, "count", 0, "Expected event count, for a determinate progress bar")
	rootCmd.AddCommand(replayCmd)
}

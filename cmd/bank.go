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

	"github.com/spf13/cobra"

	"github.com/ivcap-works/eventrunner/command"
	"github.com/ivcap-works/eventrunner/engine"
	"github.com/ivcap-works/eventrunner/engineconfig"
	"github.com/ivcap-works/eventrunner/event"
	"github.com/ivcap-works/eventrunner/examples/bank"
	"github.com/ivcap-works/eventrunner/storehttp"
	"github.com/ivcap-works/eventrunner/stream"
)

// bankCmd demonstrates driving the engine against a real store: it opens
// and deposits into accounts kept as bank.Account event streams.
var bankCmd = &cobra.Command{
	Use:   "bank",
	Short: "Drive the bank account example against the active store",
}

var bankOpenCmd = &cobra.Command{
	Use:   "open stream-id initial-balance",
	Short: "Open a new bank account on stream-id",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		id, err := stream.Of(args[0])
		if err != nil {
			return err
		}
		var balance int64
		if _, err := fmt.Sscanf(args[1], "%d", &balance); err != nil {
			return fmt.Errorf("invalid initial balance %q: %w", args[1], err)
		}

		return runBankCommand(&bank.OpenAccount{StreamID: id, AccountID: id.String(), InitialBalance: balance})
	},
}

var bankDepositCmd = &cobra.Command{
	Use:   "deposit stream-id amount",
	Short: "Deposit funds into an existing bank account",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		id, err := stream.Of(args[0])
		if err != nil {
			return err
		}
		var amount int64
		if _, err := fmt.Sscanf(args[1], "%d", &amount); err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[1], err)
		}

		return runBankCommand(&bank.Deposit{StreamID: id, Amount: amount})
	},
}

func bankRegistry() *storehttp.Registry {
	reg := storehttp.NewRegistry()
	reg.Register("bank.AccountOpened", func() event.Event { return &bank.Opened{} })
	reg.Register("bank.FundsDeposited", func() event.Event { return &bank.Deposited{} })
	return reg
}

func runBankCommand(cmd command.Command) error {
	store := CreateStore(bankRegistry())

	cfg, err := engineconfig.New()
	if err != nil {
		return err
	}

	ctxt, cancel := NewTimeoutContext()
	defer cancel()

	if err := engine.Execute(ctxt, cmd, store, cfg); err != nil {
		return err
	}
	fmt.Printf("ok: stream '%s' updated\n", cmd.EventStreamID())
	return nil
}

func init() {
	rootCmd.AddCommand(bankCmd)
	bankCmd.AddCommand(bankOpenCmd, bankDepositCmd)
}

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
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var contextCmd = &cobra.Command{
	Use:     "context",
	Aliases: []string{"contexts", "ctx"},
	Short:   "Manage event store contexts",
}

var contextCreateCmd = &cobra.Command{
	Use:   "create name url",
	Short: "Create or update a context pointing at an event store",
	Args:  cobra.ExactArgs(2),
	Run: func(c *cobra.Command, args []string) {
		ctxt := &Context{Name: args[0], URL: args[1]}
		SetContext(ctxt, false)
		fmt.Printf("Context '%s' set to '%s'\n", ctxt.Name, ctxt.URL)
	},
}

var contextUseCmd = &cobra.Command{
	Use:   "use name",
	Short: "Set the active context",
	Args:  cobra.ExactArgs(1),
	Run: func(c *cobra.Command, args []string) {
		name := args[0]
		// GetContext validates the name exists before we persist it active.
		GetContext(name, false)
		config, _ := ReadConfigFile(true)
		config.ActiveContext = name
		WriteConfigFile(config)
		fmt.Printf("Active context set to '%s'\n", name)
	},
}

var contextListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List known contexts",
	Run: func(c *cobra.Command, args []string) {
		config, _ := ReadConfigFile(true)
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"", "Name", "URL"})
		for _, ctxt := range config.Contexts {
			active := ""
			if ctxt.Name == config.ActiveContext {
				active = "*"
			}
			t.AppendRow(table.Row{active, ctxt.Name, ctxt.URL})
		}
		t.Render()
	},
}

func init() {
	rootCmd.AddCommand(contextCmd)
	contextCmd.AddCommand(contextCreateCmd, contextUseCmd, contextListCmd)
}

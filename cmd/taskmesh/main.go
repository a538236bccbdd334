// Package main provides the taskmesh CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/joss/taskmesh/internal/config"
)

var (
	version = "0.1.0"
	pretty  = true
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskmesh",
		Short: "Dependency-aware task coordination",
		Long: `taskmesh runs plans of interdependent tasks: it builds the dependency
graph, dispatches ready tasks in parallel waves, and checkpoints progress
so runs can be resumed and audited.

Use 'taskmesh run <plan.json>' to execute a plan.
Use 'taskmesh graph check <plan.json>' to validate one without running it.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if config.Env().NoColor || !term.IsTerminal(int(os.Stdout.Fd())) {
				pretty = false
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "Pretty print output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "exec", Title: "Execution:"},
		&cobra.Group{ID: "inspect", Title: "Inspection:"},
	)

	run := runCmd()
	run.GroupID = "exec"
	rootCmd.AddCommand(run)

	graph := graphCmd()
	graph.GroupID = "inspect"
	rootCmd.AddCommand(graph)

	sessions := sessionsCmd()
	sessions.GroupID = "inspect"
	rootCmd.AddCommand(sessions)

	caps := capabilitiesCmd()
	caps.GroupID = "inspect"
	rootCmd.AddCommand(caps)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("taskmesh %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joss/taskmesh/internal/depgraph"
	"github.com/joss/taskmesh/internal/plan"
	"github.com/joss/taskmesh/internal/render"
)

func graphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect plan dependency graphs",
	}

	showCmd := &cobra.Command{
		Use:   "show <plan.json>",
		Short: "Visualize a plan's dependency graph",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			g, err := loadGraph(args[0])
			if err != nil {
				exitOnError(err)
			}
			fmt.Println(render.New(pretty).Graph(g, nil))
		},
	}

	sortCmd := &cobra.Command{
		Use:   "sort <plan.json>",
		Short: "Print a plan's execution order",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			g, err := loadGraph(args[0])
			if err != nil {
				exitOnError(err)
			}
			order, err := g.TopologicalSort()
			if err != nil {
				exitOnError(err)
			}
			for _, id := range order {
				fmt.Println(id)
			}
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check <plan.json>",
		Short: "Validate a plan without running it",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			g, err := loadGraph(args[0])
			if err != nil {
				exitOnError(err)
			}
			v := g.Validate()
			if v.Valid {
				fmt.Println("plan is valid")
				return
			}
			for _, problem := range v.Errors {
				fmt.Fprintf(os.Stderr, "invalid: %s\n", problem)
			}
			os.Exit(1)
		},
	}

	cmd.AddCommand(showCmd, sortCmd, checkCmd)
	return cmd
}

func loadGraph(path string) (*depgraph.Graph, error) {
	doc, err := plan.Load(path)
	if err != nil {
		return nil, err
	}
	return doc.Graph()
}

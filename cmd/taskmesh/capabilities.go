package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joss/taskmesh/internal/capability"
)

func capabilitiesCmd() *cobra.Command {
	var dir string
	var query string

	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "List discovered capabilities",
		Run: func(cmd *cobra.Command, args []string) {
			if dir == "" {
				dir = meshCapabilitiesPath()
			}

			reg := capability.NewRegistry()
			if _, err := capability.NewLoader(reg).Discover(dir); err != nil {
				exitOnError(err)
			}

			caps := reg.List()
			if query != "" {
				caps = reg.Search(query)
			}
			if len(caps) == 0 {
				fmt.Println("No capabilities found")
				return
			}

			lastCategory := ""
			for _, c := range caps {
				if pretty && c.Category != lastCategory {
					fmt.Println(color.CyanString(c.Category))
					lastCategory = c.Category
				}
				if pretty {
					fmt.Printf("  %-24s %s\n", c.Name, truncateStr(c.Description, 60))
				} else {
					fmt.Printf("%s\t%s\t%s\n", c.Category, c.Name, c.Command)
				}
			}
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Manifest directory (default: data dir capabilities)")
	cmd.Flags().StringVarP(&query, "search", "s", "", "Filter by name, description, or tag")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joss/taskmesh/internal/render"
	"github.com/joss/taskmesh/internal/session"
)

func sessionsCmd() *cobra.Command {
	var storeBackend string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect run sessions",
	}
	cmd.PersistentFlags().StringVar(&storeBackend, "store", "file", "Session store backend (file|sqlite)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			store, err := openStore(storeBackend)
			if err != nil {
				exitOnError(err)
			}
			defer store.Close()

			sessions, err := store.List(cmd.Context())
			if err != nil {
				exitOnError(err)
			}
			fmt.Println(render.New(pretty).Sessions(sessions))
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one session as JSON",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store, err := openStore(storeBackend)
			if err != nil {
				exitOnError(err)
			}
			defer store.Close()

			s, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				exitOnError(err)
			}
			out, _ := prettyJSON(s)
			fmt.Println(string(out))
		},
	}

	var clearAll bool
	clearCmd := &cobra.Command{
		Use:   "clear [id...]",
		Short: "Delete sessions by id, or all finished ones with --all",
		Run: func(cmd *cobra.Command, args []string) {
			store, err := openStore(storeBackend)
			if err != nil {
				exitOnError(err)
			}
			defer store.Close()

			ids := args
			if clearAll {
				sessions, err := store.List(cmd.Context())
				if err != nil {
					exitOnError(err)
				}
				for _, s := range sessions {
					if s.Status != session.StatusRunning {
						ids = append(ids, s.ID)
					}
				}
			}

			removed := 0
			for _, id := range ids {
				if err := store.Delete(cmd.Context(), id); err != nil {
					if session.IsNotFound(err) {
						continue
					}
					exitOnError(err)
				}
				removed++
			}
			fmt.Printf("removed %d session(s)\n", removed)
		},
	}
	clearCmd.Flags().BoolVar(&clearAll, "all", false, "Delete every finished session")

	cmd.AddCommand(listCmd, showCmd, clearCmd)
	return cmd
}

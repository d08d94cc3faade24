package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"chatbot-trainer/internal/database"

	"github.com/spf13/cobra"
)

func (a *app) newRunsCmd() *cobra.Command {
	var limit int

	c := &cobra.Command{
		Use:   "runs",
		Short: "Lists recent training runs",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			db, err := a.openRegistry(a.cfg)
			if err != nil {
				return err
			}
			if db == nil {
				return fmt.Errorf("no run registry configured, set TRAINER_REGISTRY_DSN")
			}

			runs, err := database.ListRuns(c.Context(), db, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(c.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMODE\tSTATUS\tCREATED\tMODEL\tERROR")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					run.Id, run.Mode, run.Status,
					run.CreationTime.Local().Format(time.DateTime),
					run.ModelPath.String, run.Error.String,
				)
			}
			return w.Flush()
		},
	}

	c.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show, 0 for all")

	return c
}

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/delegate/pkg/database"
	"github.com/shashiranjanraj/delegate/pkg/deadletter"
)

var deadLetterLimitFlag int

// delegate deadletter:list
var deadLetterListCmd = &cobra.Command{
	Use:   "deadletter:list",
	Short: "List the most recent dead letters",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Connect()
		if err != nil {
			return err
		}
		store, err := deadletter.NewGormStore(db)
		if err != nil {
			return err
		}

		recs, err := store.List(cmd.Context(), deadLetterLimitFlag)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("No dead letters.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tFAILED\tSOURCE\tREASON\tENVELOPE\tPAYLOAD")
		fmt.Fprintln(w, "--\t------\t------\t------\t--------\t-------")
		for _, r := range recs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.FailedAt.Format("2006-01-02 15:04:05"), r.Source, r.Reason, r.EnvelopeID, truncate(r.Payload, 60))
		}
		return w.Flush()
	},
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	deadLetterListCmd.Flags().IntVar(&deadLetterLimitFlag, "limit", 20, "Maximum number of records")
}

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// strategiesCmd lists the strategy catalog in assignment order
func strategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List optimization strategies in agent assignment order",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tNAME\tCATEGORY")
			for i, s := range catalog.All() {
				fmt.Fprintf(w, "%d\t%s\t%s\n", i, s.Name, s.Category)
			}
			return w.Flush()
		},
	}
}

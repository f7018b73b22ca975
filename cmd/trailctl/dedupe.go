package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDedupeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "dedupe-sections",
		Short: "Merge trail sections with identical geometry",
		Long: `Trail sections whose geometry matches point for point are folded into
the one with the lowest id. Trails using a duplicate are moved to the kept
section before the duplicate is deleted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.store()
			if err != nil {
				return err
			}

			deleted, err := st.MergeDuplicateSections(cmd.Context())
			if err != nil {
				return err
			}
			if len(deleted) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no duplicate trail sections")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d duplicate trail section(s): %v\n", len(deleted), deleted)
			return nil
		},
	}
}

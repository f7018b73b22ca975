package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newGraphCmd(c *cli) *cobra.Command {
	var ids []int64
	var components bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the trail section graph as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.store()
			if err != nil {
				return err
			}

			g, err := st.BuildGraph(cmd.Context(), ids)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if components {
				return enc.Encode(g.Components())
			}
			return enc.Encode(g)
		},
	}

	cmd.Flags().Int64SliceVar(&ids, "ids", nil, "only these trail section ids (default: all)")
	cmd.Flags().BoolVar(&components, "components", false, "print the connected node groups instead")
	return cmd
}

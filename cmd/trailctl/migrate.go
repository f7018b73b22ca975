package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client.Migrator().MigrateUp(); err != nil {
				return err
			}
			return printStatus(cmd, c)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down <version>",
		Short: "Roll the schema back to version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.Atoi(args[0])
			if err != nil || target < 0 {
				return fmt.Errorf("invalid version %q", args[0])
			}
			if err := c.client.Migrator().MigrateDown(target); err != nil {
				return err
			}
			return printStatus(cmd, c)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current and latest schema versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStatus(cmd, c)
		},
	})

	return cmd
}

func printStatus(cmd *cobra.Command, c *cli) error {
	status, err := c.client.Migrator().Status()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "backend: %s\n", c.client.Backend())
	fmt.Fprintf(out, "current version: %d\n", status.Current)
	fmt.Fprintf(out, "latest version: %d\n", status.Latest)
	for _, m := range status.Pending {
		fmt.Fprintf(out, "pending: %03d %s\n", m.Version, m.Name)
	}
	return nil
}

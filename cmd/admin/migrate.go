package main

import (
	"github.com/spf13/cobra"
)

const defaultMigrationsDir = "internal/platform/postgres/migrations"

func newMigrateCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	for _, sub := range []struct {
		use, short string
	}{
		{"up", "Apply all pending migrations"},
		{"down", "Roll back the most recent migration"},
		{"status", "Show which migrations are applied"},
		{"version", "Print the current schema version"},
	} {
		command := sub.use
		cmd.AddCommand(&cobra.Command{
			Use:   sub.use,
			Short: sub.short,
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				return cc.migrate(c.Context(), command)
			},
		})
	}

	var dir string
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create an empty SQL migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return cc.create(dir, args[0])
		},
	}
	create.Flags().StringVar(&dir, "dir", defaultMigrationsDir, "Directory the migration is written to")
	cmd.AddCommand(create)

	return cmd
}

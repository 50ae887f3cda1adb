package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/obe-backend/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cmd.Context(), true)
		if err != nil {
			return err
		}
		a.Log.Info("Migrations applied")
		a.Close()
		return nil
	},
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/obe-backend/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and drive queued recalculation jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func runServe(cmd *cobra.Command) error {
	ctx := cmd.Context()
	migrate, _ := cmd.Flags().GetBool("migrate")
	a, err := app.New(ctx, migrate)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		return err
	}
	return a.Run(ctx)
}

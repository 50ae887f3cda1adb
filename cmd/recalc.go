package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/obe-backend/internal/app"
	"github.com/yungbote/obe-backend/internal/grading"
)

var recalcCmd = &cobra.Command{
	Use:   "recalc <course-id>",
	Short: "Recompute every CPMK and CPL score of one course in the foreground",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		courseID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid course id %q: %w", args[0], err)
		}
		ctx := cmd.Context()
		migrate, _ := cmd.Flags().GetBool("migrate")
		a, err := app.New(ctx, migrate)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.Services.Outcomes.GetCourse(ctx, courseID); err != nil {
			return err
		}
		report, err := a.Services.Coordinator.Handle(ctx, grading.CourseCascade(courseID))
		if err != nil {
			return fmt.Errorf("recalculate course %s: %w", courseID, err)
		}
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		if report.Retryable() {
			return fmt.Errorf("recalculate course %s: %d computes skipped, rerun to retry", courseID, len(report.Skipped))
		}
		if !report.Complete() {
			a.Log.Warn("Some score keys were skipped", "skipped", len(report.Skipped))
		}
		return nil
	},
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/portakall/retromeet/internal/app"
	"github.com/portakall/retromeet/internal/data/db"
	"github.com/portakall/retromeet/internal/modules/retro"
	"github.com/portakall/retromeet/internal/platform/logger"
)

var rootCmd = &cobra.Command{
	Use:   "retromeet",
	Short: "Retrospective synthesis backend",
	Long: `retromeet collects retrospective answers, refines them into per-participant
narratives, extracts discussion topics and produces a structured summary.
Without a subcommand it serves the HTTP API.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE:  runMigrate,
}

var refineCmd = &cobra.Command{
	Use:   "refine",
	Short: "Refine one participant's responses into a narrative",
	RunE:  runRefine,
}

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Extract discussion topics for a project",
	RunE:  runTopics,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Generate the retrospective summary for a project",
	RunE:  runSummary,
}

var avatarsCmd = &cobra.Command{
	Use:   "avatars",
	Short: "Render missing participant avatars for a project",
	RunE:  runAvatars,
}

func init() {
	for _, c := range []*cobra.Command{refineCmd, topicsCmd, summaryCmd, avatarsCmd} {
		c.Flags().Uint("project", 0, "project id")
		_ = c.MarkFlagRequired("project")
	}
	refineCmd.Flags().Uint("participant", 0, "participant id")
	_ = refineCmd.MarkFlagRequired("participant")

	rootCmd.AddCommand(serveCmd, migrateCmd, refineCmd, topicsCmd, summaryCmd, avatarsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Start(); err != nil {
		return err
	}
	return a.Run(ctx)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	theDB, err := db.Open(log, db.ConfigFromEnv())
	if err != nil {
		return err
	}
	if err := db.AutoMigrateAll(theDB); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	if sqlDB, err := theDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("Migrations applied")
	return nil
}

func runRefine(cmd *cobra.Command, _ []string) error {
	projectID, _ := cmd.Flags().GetUint("project")
	participantID, _ := cmd.Flags().GetUint("participant")
	return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
		return a.Services.Pipeline.Refine(ctx, retro.RefineInput{
			ParticipantID: participantID,
			ProjectID:     projectID,
		})
	})
}

func runTopics(cmd *cobra.Command, _ []string) error {
	projectID, _ := cmd.Flags().GetUint("project")
	return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
		return a.Services.Pipeline.ExtractTopics(ctx, projectID)
	})
}

func runSummary(cmd *cobra.Command, _ []string) error {
	projectID, _ := cmd.Flags().GetUint("project")
	return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
		return a.Services.Pipeline.GenerateSummary(ctx, projectID)
	})
}

func runAvatars(cmd *cobra.Command, _ []string) error {
	projectID, _ := cmd.Flags().GetUint("project")
	return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
		n, err := a.Services.Avatars.EnsureProjectAvatars(ctx, projectID)
		return map[string]any{"project_id": projectID, "rendered": n}, err
	})
}

// withApp runs one pipeline operation against a fully wired app and prints
// its result as JSON.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) (any, error)) error {
	ctx := cmd.Context()
	a, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := fn(ctx, a)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoffmannjan/adabot/internal/config"
	"github.com/hoffmannjan/adabot/internal/gateway"
	"github.com/hoffmannjan/adabot/internal/ghapi"
	"github.com/hoffmannjan/adabot/internal/report"
	"github.com/hoffmannjan/adabot/internal/usecase"
	"github.com/hoffmannjan/adabot/internal/validator"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Collect library activity and build the libraries report",
	RunE:  runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().StringP("output-file", "o", "", "write the report JSON to this file")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	outputFile, _ := cmd.Flags().GetString("output-file")
	logger := newLogger(verbose)

	cfg := config.FromEnv()
	runTime := time.Now()

	// Scheduled CI runs fire on a single weekday; other days exit cleanly
	// so the pipeline stays green.
	if cfg.CI && cfg.RunDay != 0 && isoWeekday(runTime) != cfg.RunDay {
		fmt.Println("Library update not scheduled for today.")
		fmt.Println("Next update: " + nextRunDate(runTime, cfg.RunDay).Format("2006-01-02"))
		return nil
	}

	ctx := context.Background()
	client := ghapi.NewClient(cfg.GitHubToken, cfg.CI, logger)
	fetcher, err := gateway.NewGitHubGateway(cfg.GitHubToken, cfg.Org, cfg.RepoPrefix, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize gateway: %w", err)
	}
	v := validator.New(client, cfg.Org, validator.DefaultChecks(), logger)
	aggregator := usecase.NewAggregator(client, fetcher, v, cfg.Org, cfg.UmbrellaRepo, cfg.ExcludeRepos, logger)

	repos, err := fetcher.ListRepos(ctx)
	if err != nil {
		return fmt.Errorf("failed to list repositories: %w", err)
	}
	logger.Info("collecting library activity", "org", cfg.Org, "repos", len(repos))

	result := aggregator.Aggregate(ctx, repos)
	doc := report.Build(result, runTime)
	data, err := doc.JSON()
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	if cfg.CI {
		publisher := report.NewPublisher(client, cfg.UpstreamRepo, cfg.ForkRepo, cfg.DefaultBranch, cfg.TargetFile, logger)
		return publisher.Publish(ctx, string(data))
	}

	if outputFile != "" {
		if err := doc.WriteFile(outputFile); err != nil {
			return fmt.Errorf("failed to write %s: %w", outputFile, err)
		}
		logger.Info("wrote report", "path", outputFile)
	}
	fmt.Println(string(data))
	return nil
}

// isoWeekday maps time.Weekday to ISO 8601 numbering, 1=Monday..7=Sunday.
func isoWeekday(t time.Time) int {
	return (int(t.Weekday())+6)%7 + 1
}

// nextRunDate returns the next date on or after t falling on the scheduled
// ISO weekday.
func nextRunDate(t time.Time, day int) time.Time {
	delta := (day - isoWeekday(t) + 7) % 7
	return t.AddDate(0, 0, delta)
}

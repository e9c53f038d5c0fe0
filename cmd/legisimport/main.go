package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"LegisImport/internal/app"
	"LegisImport/internal/config"
	"LegisImport/internal/infrastructure/fetch"
	"LegisImport/internal/infrastructure/scheduler"
	"LegisImport/internal/logging"
	"LegisImport/internal/termctx"
	"LegisImport/internal/usecase"
)

type rootOptions struct {
	configPath string
	verbosity  int
}

type importOptions struct {
	term         string
	forceRefresh bool
	reportOnly   bool
	strict       bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:          "legisimport",
		Short:        "Import legislative record files into the relational store",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config (default: $LEGISIMPORT_CONFIG)")
	cmd.PersistentFlags().CountVarP(&opts.verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")

	cmd.AddCommand(newImportCmd(&opts))
	cmd.AddCommand(newRemoteCmd(&opts))
	cmd.AddCommand(newScheduleCmd(&opts))
	return cmd
}

func newImportCmd(root *rootOptions) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Run one batch import over the configured input directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.term, "term", "", "Only import files of this legislative term (token or ordinal)")
	cmd.Flags().BoolVar(&opts.forceRefresh, "force-refresh", false, "Re-import files whose batch already completed")
	cmd.Flags().BoolVar(&opts.reportOnly, "report-only", false, "Process everything but roll back instead of committing")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Treat schema/integrity warnings as fatal for the whole run")
	return cmd
}

func runImport(ctx context.Context, root *rootOptions, opts importOptions) error {
	cfg, logger := load(root)

	termFilter, err := parseTermFlag(opts.term)
	if err != nil {
		return err
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	summary, err := application.Import(ctx, usecase.Options{
		Strict:       opts.strict || cfg.Importer.Strict,
		ReportOnly:   opts.reportOnly,
		ForceRefresh: opts.forceRefresh,
		TermFilter:   termFilter,
	})
	if err != nil {
		return err
	}

	fmt.Printf("files: %d, skipped: %d, failed: %d, records processed: %d, imported: %d\n",
		summary.Files, summary.Skipped, summary.Failed, summary.Processed, summary.Imported)

	if summary.Failed > 0 {
		return fmt.Errorf("%d file(s) failed", summary.Failed)
	}
	return nil
}

func newRemoteCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remote",
		Short: "List record files published on the configured source indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := load(root)

			scanner := fetch.NewIndexScanner(nil)
			for _, category := range cfg.Source.Categories {
				files, err := scanner.List(cmd.Context(), category.Name, category.IndexURL)
				if err != nil {
					return err
				}
				for _, file := range files {
					fmt.Printf("%s\t%s\t%s\n", file.Category, file.Name, file.URL)
				}
			}
			return nil
		},
	}
}

func newScheduleCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run recurring refresh imports until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := load(root)

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			driver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, 0)
			sched := usecase.NewScheduler(driver, application.Runner(), cfg.Importer.InputDir, usecase.Options{
				Strict:       cfg.Importer.Strict,
				ForceRefresh: true,
			})

			ctx := cmd.Context()
			if err := sched.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return sched.Stop(context.Background())
		},
	}
}

func load(root *rootOptions) (config.Config, *slog.Logger) {
	cfg := loadConfig(root.configPath)
	level := logging.LevelForVerbosity(cfg.Logging.Level, root.verbosity)
	return cfg, logging.New(level)
}

func loadConfig(path string) config.Config {
	if path != "" {
		return config.LoadPath(path)
	}
	return config.Load()
}

func parseTermFlag(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	if ordinal, ok := termctx.OrdinalForToken(value); ok {
		return ordinal, nil
	}
	if ordinal, err := strconv.Atoi(value); err == nil && ordinal > 0 {
		return ordinal, nil
	}
	return 0, fmt.Errorf("unknown term %q", value)
}

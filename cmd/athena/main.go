package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/capitao/athena-tasks/internal/config"
	"github.com/capitao/athena-tasks/internal/server"
	"github.com/capitao/athena-tasks/internal/services"
	"github.com/capitao/athena-tasks/internal/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	root := &cobra.Command{
		Use:          "athena",
		Short:        "Task and project tracker for wilson and athena",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), seedCmd(), archiveCmd(), backupCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the backup and archival schedulers",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := server.New(config.Load())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Reset the task collection and write the initial projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			if err := services.Seed(st); err != nil {
				return err
			}
			fmt.Println("Seed complete.")
			return nil
		},
	}
}

func archiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Run one archival pass over the active task collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			archived, err := services.NewArchiveService(st).Run()
			if err != nil {
				return err
			}
			if len(archived) == 0 {
				fmt.Println("Nothing to archive.")
				return nil
			}
			for month, count := range archived {
				fmt.Printf("%s: %d task(s)\n", month, count)
			}
			return nil
		},
	}
}

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write one snapshot of the active task collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			st, err := store.New(cfg.DataDir)
			if err != nil {
				return err
			}
			path, err := services.NewBackupService(st, cfg.BackupDir).Snapshot()
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	var period, project string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print analytics for a period as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			stats, err := services.NewStatsService(st, nil).Get(period, project)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&period, "period", "all", "week, month, or all")
	cmd.Flags().StringVar(&project, "project", "", "filter by project id")
	return cmd
}

func openStore() (*store.Store, error) {
	return store.New(config.Load().DataDir)
}

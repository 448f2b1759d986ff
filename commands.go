package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"keytrack-backend/internal/platform/auth"
	"keytrack-backend/internal/platform/db"
	"keytrack-backend/internal/platform/server"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "keytrack",
		Short:         "University key inventory tracker backend",
		SilenceUsage:  true,
		// サブコマンド無しは serve
		RunE: runServe,
	}
	root.PersistentFlags().StringVar(&configPath, "config", db.DefaultConfigPath, "path to config.yaml")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP API server",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending schema migrations and exit",
			RunE:  runMigrate,
		},
		newBackupCmd(),
	)
	return root
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := open(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	svc := a.services()
	if err := a.seed(ctx, svc); err != nil {
		return err
	}

	r := server.NewRouter(a.cfg, svc)
	return server.Run(ctx, a.cfg, r)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	a, err := open(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	log.Println("[INFO] migrations are up to date")
	return nil
}

func newBackupCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a snapshot of the store to a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			svc := a.services()
			if out == "" {
				out = svc.Backup.FileName()
			}
			// CLI はホスト上の運用者なので admin として扱う
			operator := auth.Identity{Username: "cli", Role: auth.RoleAdmin}
			if err := svc.Backup.WriteFile(cmd.Context(), operator, out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default keys-backup-<timestamp>.db|json)")
	return cmd
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	api "jobtrail-backend/cmd/api"
	authUsecase "jobtrail-backend/internal/auth/usecase"
	"jobtrail-backend/internal/di"
	emailUsecase "jobtrail-backend/internal/email/usecase"
	"jobtrail-backend/internal/scheduler"
	"jobtrail-backend/pkg/config"
	"jobtrail-backend/pkg/gmail"

	"github.com/spf13/cobra"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

var (
	container *dig.Container

	syncAccount    string
	syncDaysBack   int
	syncMaxResults int

	tokenAccount string
	tokenTTL     time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "jobtrail",
	Short:         "jobtrail - email ingestion and job application tracking backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" {
			return nil
		}

		// Load configuration
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		container, err = di.BuildContainer(cfg)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if container == nil {
			return
		}
		_ = container.Invoke(func(log *zap.Logger) { _ = log.Sync() })
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the sync scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := di.Migrate(container); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return container.Invoke(func(cfg *config.Config, handler *api.Handler, syncScheduler *scheduler.SyncScheduler) error {
			syncScheduler.Start()
			defer syncScheduler.Stop()

			return handler.Start(ctx, ":"+cfg.Server.Port)
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return di.Migrate(container)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync batch for an account and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := di.Migrate(container); err != nil {
			return err
		}

		return container.Invoke(func(syncService emailUsecase.SyncService) error {
			report, err := syncService.FetchBatch(cmd.Context(), syncAccount, syncDaysBack, syncMaxResults)
			if report != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(report); encErr != nil {
					return encErr
				}
			}
			return err
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API bearer token for an account (development only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return container.Invoke(func(auth authUsecase.AuthUsecase) error {
			token, err := auth.IssueToken(tokenAccount, tokenTTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		})
	},
}

var authorizeCmd = &cobra.Command{
	Use:   "gmail-authorize",
	Short: "Authorize Gmail read access for an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return container.Invoke(func(gmailService *gmail.Service) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Open this URL and paste the code:\n%s\n> ", gmailService.AuthCodeURL(tokenAccount))

			code, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read code: %w", err)
			}
			if err := gmailService.Exchange(cmd.Context(), tokenAccount, strings.TrimSpace(code)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token stored for %s\n", tokenAccount)
			return nil
		})
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncAccount, "account", "", "account to sync")
	syncCmd.Flags().IntVar(&syncDaysBack, "days-back", 7, "how many days of mail to look at")
	syncCmd.Flags().IntVar(&syncMaxResults, "max-results", 50, "maximum messages to fetch")
	_ = syncCmd.MarkFlagRequired("account")

	tokenCmd.Flags().StringVar(&tokenAccount, "account", "", "account the token is issued for")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("account")

	authorizeCmd.Flags().StringVar(&tokenAccount, "account", "", "account to authorize")
	_ = authorizeCmd.MarkFlagRequired("account")

	rootCmd.AddCommand(serveCmd, migrateCmd, syncCmd, tokenCmd, authorizeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

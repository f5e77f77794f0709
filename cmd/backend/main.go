package main

import (
	"classroom-live/auth"
	"classroom-live/infrastructure/broker"
	"classroom-live/infrastructure/server"
	"classroom-live/internal"
	"classroom-live/moderation"
	"classroom-live/repositories"
	"classroom-live/runtime"
	"classroom-live/services"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 5 * time.Second

// exitError carries the status code out of a cobra command.
type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string { return e.err.Error() }
func (e exitError) Unwrap() error { return e.err }

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backend terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run(args []string) (int, error) {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			return exit.code, exit.err
		}
		return exitConfig, err
	}
	return exitOK, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "classroom-live-backend",
		Short:         "Development backend for the classroom live client",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and the STOMP brokers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	})
	root.AddCommand(newInspectCmd())
	return root
}

func loadConfig() (internal.BackendConfig, *slog.Logger, error) {
	_ = godotenv.Load()
	var config internal.BackendConfig
	if err := envconfig.Process("", &config); err != nil {
		return config, nil, exitError{exitConfig, fmt.Errorf("config error: %w", err)}
	}
	return config, logs.GetLoggerFromString(config.LogLevel), nil
}

func serve(ctx context.Context) error {
	// 1. Configuration & Logger
	config, logger, err := loadConfig()
	if err != nil {
		return err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitError{exitConfig, err}
	}

	passwords, err := auth.NewPasswordHasher(config.Argon2())
	if err != nil {
		return exitError{exitConfig, err}
	}

	// 2. Moderation dictionary
	var dictionaries fs.FS = moderation.Dictionaries
	if config.CensoredDir != "" {
		dictionaries = os.DirFS(config.CensoredDir)
	}
	dictionary, err := runtime.NewCensoredLoader(dictionaries).LoadAll(moderation.DictionaryDir)
	if err != nil {
		return exitError{exitConfig, fmt.Errorf("censored dictionary: %w", err)}
	}
	moderator, err := moderation.NewModerator(dictionary.Words, charReplacement, logger)
	if err != nil {
		return exitError{exitConfig, err}
	}
	logger.Info("Moderation dictionary loaded", "words", len(dictionary.Words), "languages", dictionary.Languages)

	// 3. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config.BadgerFilepath, logger, ctx))
	if err != nil {
		return exitError{exitRuntime, fmt.Errorf("database opening failed: %w", err)}
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 4. Wiring
	tokens := auth.NewTokenIssuer(config.JWTSecret, config.AuthTokenDuration)
	hub := broker.New(logger, config.SessionBuffer, server.OwnTopicsOnly)
	app := server.New(server.Deps{
		Log:    logger,
		Auth:   services.NewAuthService(repositories.NewUserRepository(db), tokens, passwords),
		Chat:   services.NewChatService(logger, repositories.NewMessageRepository(db, logger), &moderator, hub),
		Inbox:  services.NewInboxService(logger, repositories.NewNotificationRepository(db, logger), &moderator, hub),
		Broker: hub,
		Tokens: tokens,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", config.Address(), "at", time.Now().UTC())
		if err := app.Listen(config.Address()); err != nil {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitError{exitRuntime, err}
	}

	logger.Info("Shutting down gracefully...")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("Shutdown did not complete", "error", err)
	}
	logger.Info("Program stopped cleanly")
	return nil
}

func newInspectCmd() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Dump the stored records of the backend database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, logger, err := loadConfig()
			if err != nil {
				return err
			}
			opts := buildBadgerOpts(config.BadgerFilepath, logger, cmd.Context()).
				WithReadOnly(true).
				WithBypassLockGuard(true).
				WithLoggingLevel(badger.WARNING)
			db, err := badger.Open(opts)
			if err != nil {
				return exitError{exitRuntime, fmt.Errorf("database opening failed: %w", err)}
			}
			defer db.Close()

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Key", "Type", "Timestamp", "Scope", "Entity ID", "Detail"})
			table.SetAutoWrapText(false)
			table.SetAutoFormatHeaders(true)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetCenterSeparator("")
			table.SetColumnSeparator("")
			table.SetRowSeparator("")
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetTablePadding("\t")

			err = repositories.Inspect(db, prefix, func(row repositories.InspectRow) {
				table.Append([]string{row.Key, row.Type, row.Timestamp, row.Scope, row.EntityID, row.Detail})
			})
			if err != nil {
				return exitError{exitRuntime, err}
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix to scan (msg:, notif:, user:)")
	return cmd
}

func buildBadgerOpts(path string, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(path)
	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}
	return options
}

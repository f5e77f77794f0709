package main

import (
	"classroom-live/domain/notification"
	"classroom-live/infrastructure/live"
	"classroom-live/infrastructure/rest"
	"classroom-live/internal"
	"classroom-live/services"
	"classroom-live/sink"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string { return e.err.Error() }
func (e exitError) Unwrap() error { return e.err }

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "classroom-live: %v\n", err)
	}
	os.Exit(code)
}

func run(args []string) (int, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
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
		Use:           "classroom-live",
		Short:         "Live conversations and notifications of the classroom",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newCredentialsCmd("register", "Create an account and print its token"),
		newCredentialsCmd("login", "Log in and print a token"),
		newChatCmd(),
		newNotificationsCmd(),
		newNotifyCmd(),
	)
	return root
}

func loadConfig() (internal.ClientConfig, *slog.Logger, error) {
	_ = godotenv.Load()
	var config internal.ClientConfig
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return config, nil, exitError{exitConfig, fmt.Errorf("config error: %w", err)}
	}
	if err := config.Validate(); err != nil {
		return config, nil, exitError{exitConfig, err}
	}
	return config, logs.GetLoggerFromString(config.LogLevel), nil
}

// loadSession also requires the credentials of a logged-in user.
func loadSession() (internal.ClientConfig, *slog.Logger, *rest.Client, error) {
	config, logger, err := loadConfig()
	if err != nil {
		return config, nil, nil, err
	}
	if config.AuthToken == "" || config.Username == "" {
		return config, nil, nil, exitError{exitConfig, fmt.Errorf("AUTH_TOKEN and USERNAME are required, run login first")}
	}
	api, err := rest.NewClient(logger, config.APIBaseURL, config.AuthToken, config.HTTPTimeout)
	if err != nil {
		return config, nil, nil, exitError{exitConfig, err}
	}
	return config, logger, api, nil
}

func newCredentialsCmd(use, short string) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, logger, err := loadConfig()
			if err != nil {
				return err
			}
			api, err := rest.NewClient(logger, config.APIBaseURL, "", config.HTTPTimeout)
			if err != nil {
				return exitError{exitConfig, err}
			}
			if username == "" {
				username = config.Username
			}
			authenticate := api.Login
			if use == "register" {
				authenticate = api.Register
			}
			token, err := authenticate(cmd.Context(), username, password)
			if err != nil {
				return exitError{exitRuntime, err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "USERNAME=%s\nAUTH_TOKEN=%s\n", username, token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Account name (defaults to USERNAME)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <conversationId>",
		Short: "Open a conversation and chat from the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, logger, api, err := loadSession()
			if err != nil {
				return err
			}
			dialer, err := live.NewDialer(logger, config.ChatBrokerURL, config.AuthToken, config.StompHeartBeat)
			if err != nil {
				return exitError{exitConfig, err}
			}
			svc := services.NewConversationService(logger, api, dialer, config.Username, config.PageSize, config.ReconnectDelay)
			defer svc.Close()
			sink.NewPrinter(cmd.OutOrStdout(), svc.Timeline(), sink.ChatFormat(config.Username), nil)

			svc.Open(cmd.Context(), args[0])
			c := newConsole(cmd.InOrStdin(), cmd.OutOrStdout(), config.LoadMoreThreshold)
			return c.chat(cmd.Context(), svc)
		},
	}
}

func newNotificationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notifications",
		Short: "Follow the notification feed and its unread badge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, logger, api, err := loadSession()
			if err != nil {
				return err
			}
			dialer, err := live.NewDialer(logger, config.NotificationBrokerURL, config.AuthToken, config.StompHeartBeat)
			if err != nil {
				return exitError{exitConfig, err}
			}
			svc := services.NewNotificationService(logger, api, dialer, config.Username, config.PageSize, config.ReconnectDelay)
			defer svc.Close()
			sink.NewPrinter(cmd.OutOrStdout(), svc.Timeline(), sink.NotificationFormat, sink.Badge)

			svc.Start(cmd.Context())
			c := newConsole(cmd.InOrStdin(), cmd.OutOrStdout(), config.LoadMoreThreshold)
			return c.notifications(cmd.Context(), svc)
		},
	}
}

func newNotifyCmd() *cobra.Command {
	var avatar string
	cmd := &cobra.Command{
		Use:   "notify <username> <content...>",
		Short: "Send a notification to a user",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, api, err := loadSession()
			if err != nil {
				return err
			}
			sent, err := api.Notify(cmd.Context(), notification.Notification{
				Username: args[0],
				Content:  strings.Join(args[1:], " "),
				Avatar:   avatar,
			})
			if err != nil {
				return exitError{exitRuntime, err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "notification %s sent to %s\n", sent.ID, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&avatar, "avatar", "", "Avatar url shown with the notification")
	return cmd
}

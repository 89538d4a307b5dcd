package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"kidnector/internal/app"
	"kidnector/internal/service"
)

var (
	// Global flags
	verbose bool
	timeout time.Duration

	logger        *zap.Logger
	application   *app.App
	cancelTimeout context.CancelFunc = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "kidnector",
	Short: "Kidnector - daily affirmations that earn screen time",
	Long: `Kidnector lets children record a daily affirmation and parents approve it
in exchange for the day's screen time.

Sign in once with "kidnector login"; the session is kept in the local store
and refreshed automatically.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if timeout > 0 {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			cmd.SetContext(ctx)
			cancelTimeout = cancel
		}

		cfg, err := app.LoadConfig()
		if err != nil {
			return err
		}

		config := zap.NewProductionConfig()
		if verbose || cfg.Debug {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		application, err = app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}

		_, err = application.Auth.RestoreSession(cmd.Context())
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	rootCmd.AddCommand(signupCmd, loginCmd, logoutCmd, resendCmd, statusCmd)
	rootCmd.AddCommand(onboardingCmd, childCmd, completionsCmd, affirmationsCmd, pushTokenCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	cancelTimeout()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+service.Message(err))
		if logger != nil {
			logger.Debug("command failed", zap.Error(err))
		}
	}

	shutdown()
	if err != nil {
		os.Exit(1)
	}
}

// shutdown keeps any refreshed tokens and releases the local store
func shutdown() {
	if application != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := application.Auth.PersistSession(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("failed to save session", zap.Error(err))
		}
		if err := application.Close(); err != nil {
			logger.Warn("failed to close local store", zap.Error(err))
		}
	}
	if logger != nil {
		_ = logger.Sync()
	}
}

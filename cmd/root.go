// Package cmd defines and implements the CLI commands for the topic-crawler
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-crawler/internal/config"
	"github.com/JakeFAU/topic-crawler/internal/logging"
	pkgconfig "github.com/JakeFAU/topic-crawler/pkg/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App holds what every subcommand needs once configuration is resolved.
type App struct {
	Config config.Config
	Logger *zap.Logger
}

// newApp is the application factory. It's a variable so tests can swap it.
var newApp = func(_ context.Context, v *viper.Viper, cfgFile string) (*App, error) {
	used, err := pkgconfig.InitConfig(v, cfgFile)
	if err != nil {
		return nil, err
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, err
	}
	if used != "" {
		logger.Info("using config file", zap.String("path", used))
	}
	return &App{Config: cfg, Logger: logger}, nil
}

// newRootCmd creates and configures the root command. Each invocation owns a
// fresh Viper instance so flag bindings never leak between commands.
func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "topic-crawler",
		Short: "Crawl a site and report every sentence that mentions a topic.",
		Long: `topic-crawler starts from a seed URL, follows same-site links breadth-first
within a depth and page budget, and prints each sentence containing the topic
keyword as it is found. A crawl log of every attempted page is printed at the end
and can be written to local disk or Google Cloud Storage.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Flags are parsed by now, so bound flags take precedence over env and file.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), v, cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			zap.ReplaceGlobals(appInstance.Logger)
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*App); ok && appInstance != nil {
				_ = appInstance.Logger.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default searches ./config.yaml, $HOME/.topic-crawler)")
	flags.String("log-level", "", "minimum log level (debug, info, warn, error)")
	flags.Bool("log-dev", true, "human-readable development logging")
	mustBind(v, "logging.level", flags.Lookup("log-level"))
	mustBind(v, "logging.development", flags.Lookup("log-dev"))

	cmd.AddCommand(newCrawlCmd(v))
	return cmd
}

func resolveApp(ctx context.Context) (*App, error) {
	appInstance, ok := ctx.Value(appKey).(*App)
	if !ok || appInstance == nil {
		return nil, errors.New("application not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the crawl's
// outstanding fetches, which ends the run through the normal path.
func Execute() {
	os.Exit(execute())
}

func execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

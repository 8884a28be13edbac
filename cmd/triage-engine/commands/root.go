package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/StrawberryNinjago/platformtriage/internal/config"
	"github.com/StrawberryNinjago/platformtriage/internal/utils"
)

// Version is stamped into trace resources and the CLI.
var Version = "0.1.0"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "triage-engine",
	Short: "Detect and rank the primary failure of a Kubernetes workload",
	Long: `triage-engine inspects the pods, deployments, warning events and services
selected for a workload, runs a fixed set of failure detectors and reports
the most likely primary failure together with an overall health verdict.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	var failing *failingHealthError
	if err != nil && !errors.As(err, &failing) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (falls back to $PLATFORMTRIAGE_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newDiagnoseCmd())
}

// loadConfig resolves configuration and builds the stderr logger. client-go
// logging is routed through the same handler.
func loadConfig(stderr io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger := utils.NewLogger(stderr, cfg.Logging.Level, cfg.Logging.JSON)
	klog.SetSlogLogger(logger.With(slog.String("source", "client-go")))
	return cfg, logger, nil
}

// failingHealthError makes diagnose exit non-zero without printing an error
// line; the report itself already says what is wrong.
type failingHealthError struct {
	health string
}

func (e *failingHealthError) Error() string {
	return "workload health is " + e.health
}

// ExitCode maps a command error to a process exit status: 2 for a failing
// or unknown workload, 1 for anything else.
func ExitCode(err error) int {
	var failing *failingHealthError
	if errors.As(err, &failing) {
		return 2
	}
	return 1
}

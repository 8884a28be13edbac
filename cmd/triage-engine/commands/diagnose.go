package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/StrawberryNinjago/platformtriage/internal/models"
	"github.com/StrawberryNinjago/platformtriage/internal/tracing"
)

type diagnoseOptions struct {
	namespace   string
	selector    string
	release     string
	eventLimit  int
	files       []string
	output      string
	explainRank bool
	noColor     bool
	failOnError bool
}

func newDiagnoseCmd() *cobra.Command {
	opts := &diagnoseOptions{}
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Triage one workload and print the report",
		Example: `  triage-engine diagnose -n shop --release checkout
  triage-engine diagnose -n shop -l app=web -o json
  triage-engine diagnose -n shop --release checkout --from-file dump.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiagnose(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.namespace, "namespace", "n", "", "Namespace of the workload (required)")
	cmd.Flags().StringVarP(&opts.selector, "selector", "l", "", "Label selector for the workload's objects")
	cmd.Flags().StringVar(&opts.release, "release", "", "Release name, selects app.kubernetes.io/instance=<release> when no selector is set")
	cmd.Flags().IntVar(&opts.eventLimit, "event-limit", 0, "Maximum warning events to consider (0 uses the configured default)")
	cmd.Flags().StringSliceVarP(&opts.files, "from-file", "f", nil, "Read objects from YAML/JSON manifest dumps instead of the cluster")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&opts.explainRank, "explain-rank", false, "Show the primary failure's score breakdown")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored text output")
	cmd.Flags().BoolVar(&opts.failOnError, "fail", false, "Exit with status 2 when health is FAIL or UNKNOWN")
	_ = cmd.MarkFlagRequired("namespace")
	return cmd
}

func runDiagnose(cmd *cobra.Command, opts *diagnoseOptions) error {
	format := strings.ToLower(strings.TrimSpace(opts.output))
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported output format %q (want text or json)", opts.output)
	}

	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.NewProvider(ctx, cfg.Tracing, Version, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown", slog.Any("error", err))
		}
	}()

	source, err := newSource(cfg, logger, opts.files)
	if err != nil {
		return err
	}
	svc, err := newTriageService(cfg, logger, source, tp.Tracer("platformtriage/cli"))
	if err != nil {
		return err
	}

	result, err := svc.Diagnose(ctx, models.TriageRequest{
		Namespace:  opts.namespace,
		Selector:   opts.selector,
		Release:    opts.release,
		EventLimit: opts.eventLimit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		if !opts.explainRank {
			result.PrimaryFailureDebug = nil
		}
		if err := encodeJSON(out, result); err != nil {
			return err
		}
	} else {
		colorize := !opts.noColor && !color.NoColor
		if err := writeReport(out, result, renderOptions{colorize: colorize, explainRank: opts.explainRank}); err != nil {
			return err
		}
	}

	if opts.failOnError && (result.Health.Overall == models.HealthFail || result.Health.Overall == models.HealthUnknown) {
		return &failingHealthError{health: string(result.Health.Overall)}
	}
	return nil
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

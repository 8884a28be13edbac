package commands

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/StrawberryNinjago/platformtriage/internal/config"
	"github.com/StrawberryNinjago/platformtriage/internal/detectors"
	"github.com/StrawberryNinjago/platformtriage/internal/engine"
	"github.com/StrawberryNinjago/platformtriage/internal/kube"
	"github.com/StrawberryNinjago/platformtriage/internal/services"
)

// newPipeline loads the optional rule pack and registers the built-in
// detectors around the resulting event mapper.
func newPipeline(cfg *config.Config, logger *slog.Logger) (*engine.Pipeline, error) {
	rules, err := engine.LoadRulePack(cfg.Rules.Path, logger)
	if err != nil {
		return nil, err
	}
	mapper := detectors.NewEventMapper(rules)
	pipeline := engine.NewPipeline(logger, detectors.Default(mapper),
		engine.WithParallelDetectors(cfg.Triage.ParallelDetectors),
	)
	logger.Debug("pipeline ready",
		slog.Any("detectors", pipeline.DetectorIDs()),
		slog.Int("eventRules", len(mapper.Rules())),
		slog.Int("packRules", len(rules)),
	)
	return pipeline, nil
}

// newSource returns a file-backed source when manifests are given and a
// live cluster source otherwise.
func newSource(cfg *config.Config, logger *slog.Logger, files []string) (kube.Source, error) {
	if len(files) > 0 {
		return kube.NewFileSource(logger, files...), nil
	}
	client, err := kube.NewClientset(cfg.Kube)
	if err != nil {
		return nil, fmt.Errorf("kubernetes client: %w", err)
	}
	return kube.NewSnapshotBuilder(client, cfg.Kube.PageSize, logger), nil
}

func newTriageService(cfg *config.Config, logger *slog.Logger, source kube.Source, tracer trace.Tracer) (*services.TriageService, error) {
	pipeline, err := newPipeline(cfg, logger)
	if err != nil {
		return nil, err
	}
	return services.NewTriageService(logger, source, pipeline, cfg.Triage, tracer), nil
}

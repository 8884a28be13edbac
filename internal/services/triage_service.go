package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/StrawberryNinjago/platformtriage/internal/config"
	"github.com/StrawberryNinjago/platformtriage/internal/engine"
	"github.com/StrawberryNinjago/platformtriage/internal/kube"
	"github.com/StrawberryNinjago/platformtriage/internal/metrics"
	"github.com/StrawberryNinjago/platformtriage/internal/models"
	"github.com/StrawberryNinjago/platformtriage/internal/utils"
)

var (
	// ErrInvalidRequest marks caller mistakes.
	ErrInvalidRequest = errors.New("invalid triage request")
	// ErrNotConfigured marks missing wiring.
	ErrNotConfigured = errors.New("triage service not configured")
)

// TriageService validates requests, builds snapshots and runs the pipeline.
type TriageService struct {
	logger    *slog.Logger
	source    kube.Source
	pipeline  *engine.Pipeline
	limits    config.TriageConfig
	tracer    trace.Tracer
	latencies *utils.LatencyTracker
	now       func() time.Time
}

// NewTriageService constructs the triage facade. A nil tracer disables spans.
func NewTriageService(logger *slog.Logger, source kube.Source, pipeline *engine.Pipeline, limits config.TriageConfig, tracer trace.Tracer) *TriageService {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("platformtriage")
	}
	return &TriageService{
		logger:    logger,
		source:    source,
		pipeline:  pipeline,
		limits:    limits,
		tracer:    tracer,
		latencies: utils.NewLatencyTracker(1024),
		now:       time.Now,
	}
}

// Diagnose triages the workload described by req.
func (s *TriageService) Diagnose(ctx context.Context, req models.TriageRequest) (models.TriageResult, error) {
	if s.source == nil || s.pipeline == nil {
		return models.TriageResult{}, utils.NewAppError("diagnose", "snapshot source or pipeline missing", ErrNotConfigured)
	}
	dctx, err := s.detectionContext(req)
	if err != nil {
		return models.TriageResult{}, err
	}

	ctx, span := s.tracer.Start(ctx, "triage.Diagnose", trace.WithAttributes(
		attribute.String("k8s.namespace.name", dctx.Namespace),
		attribute.String("triage.selector", kube.EffectiveSelector(dctx)),
		attribute.Int("triage.event_limit", dctx.EventLimit),
	))
	defer span.End()

	s.logger.Debug("diagnose called",
		slog.String("namespace", dctx.Namespace),
		slog.String("selector", dctx.Selector),
		slog.String("release", dctx.Release),
	)

	start := time.Now()
	snapCtx := ctx
	if s.limits.RequestTimeout > 0 {
		var cancel context.CancelFunc
		snapCtx, cancel = context.WithTimeout(ctx, s.limits.RequestTimeout)
		defer cancel()
	}
	snap, err := s.source.Snapshot(snapCtx, dctx)
	if err != nil {
		duration := time.Since(start)
		metrics.ObserveTriage(duration, metrics.OutcomeError)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "snapshot failed")
		s.logger.Error("snapshot failed", slog.String("namespace", dctx.Namespace), slog.Any("error", err))
		return models.TriageResult{}, utils.NewAppError("diagnose", "build snapshot", err)
	}

	report := s.pipeline.Triage(snap, dctx)
	duration := time.Since(start)

	metrics.ObserveTriage(duration, metrics.OutcomeSuccess)
	metrics.ObserveHealth(string(report.Health.Overall))
	for _, f := range report.Findings {
		metrics.ObserveFinding(string(f.Code), string(f.Severity))
	}
	s.latencies.Observe(duration)
	if total := s.latencies.Total(); total%20 == 0 {
		s.logger.Info("triage latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", s.latencies.Count()))
	}

	span.SetAttributes(
		attribute.String("triage.health", string(report.Health.Overall)),
		attribute.Int("triage.findings", len(report.Findings)),
	)
	if report.PrimaryFailure != nil {
		span.SetAttributes(attribute.String("triage.primary_failure", string(report.PrimaryFailure.Code)))
	}

	return models.TriageResult{
		ID:          uuid.NewString(),
		Namespace:   dctx.Namespace,
		Selector:    dctx.Selector,
		Release:     dctx.Release,
		GeneratedAt: s.now().UTC(),
		Report:      report,
	}, nil
}

// detectionContext validates req and clamps the event limit to the
// configured bounds.
func (s *TriageService) detectionContext(req models.TriageRequest) (models.DetectionContext, error) {
	namespace := strings.TrimSpace(req.Namespace)
	if namespace == "" {
		return models.DetectionContext{}, utils.NewAppError("diagnose", "namespace is required", ErrInvalidRequest)
	}
	if req.EventLimit < 0 {
		return models.DetectionContext{}, utils.NewAppError("diagnose", "eventLimit must not be negative", ErrInvalidRequest)
	}

	limit := req.EventLimit
	if limit == 0 {
		limit = s.limits.DefaultEventLimit
	}
	if s.limits.MaxEventLimit > 0 && limit > s.limits.MaxEventLimit {
		limit = s.limits.MaxEventLimit
	}

	return models.DetectionContext{
		Namespace:  namespace,
		Selector:   strings.TrimSpace(req.Selector),
		Release:    strings.TrimSpace(req.Release),
		EventLimit: limit,
	}, nil
}

// LatencyP95 returns the current p95 triage latency.
func (s *TriageService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

package engine

import (
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/StrawberryNinjago/platformtriage/internal/detectors"
	"github.com/StrawberryNinjago/platformtriage/internal/metrics"
	"github.com/StrawberryNinjago/platformtriage/internal/models"
)

// Pipeline runs the registered detectors over a snapshot and reduces their
// findings into a report.
type Pipeline struct {
	logger    *slog.Logger
	detectors []detectors.Detector
	ranker    *Ranker
	parallel  bool
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithParallelDetectors fans detectors out concurrently. Output order is
// unchanged.
func WithParallelDetectors(enabled bool) Option {
	return func(p *Pipeline) {
		p.parallel = enabled
	}
}

// WithRanker replaces the default-weighted ranker.
func WithRanker(r *Ranker) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.ranker = r
		}
	}
}

// NewPipeline sorts the detectors by (order, id) once. Detectors whose id was
// already registered are dropped.
func NewPipeline(logger *slog.Logger, registered []detectors.Detector, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	seen := make(map[string]struct{}, len(registered))
	ordered := make([]detectors.Detector, 0, len(registered))
	for _, d := range registered {
		if d == nil {
			continue
		}
		if _, dup := seen[d.ID()]; dup {
			logger.Warn("duplicate detector id ignored", slog.String("detector", d.ID()))
			continue
		}
		seen[d.ID()] = struct{}{}
		ordered = append(ordered, d)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Order() != ordered[j].Order() {
			return ordered[i].Order() < ordered[j].Order()
		}
		return ordered[i].ID() < ordered[j].ID()
	})

	p := &Pipeline{
		logger:    logger,
		detectors: ordered,
		ranker:    NewRanker(DefaultWeights()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DetectorIDs returns the detector ids in run order.
func (p *Pipeline) DetectorIDs() []string {
	ids := make([]string, 0, len(p.detectors))
	for _, d := range p.detectors {
		ids = append(ids, d.ID())
	}
	return ids
}

// Run executes every detector and concatenates their findings in run order.
func (p *Pipeline) Run(snap *models.ClusterSnapshot, dctx models.DetectionContext) []models.Finding {
	results := make([][]models.Finding, len(p.detectors))

	if p.parallel {
		var g errgroup.Group
		for i, d := range p.detectors {
			g.Go(func() error {
				results[i] = p.runDetector(d, snap, dctx)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, d := range p.detectors {
			results[i] = p.runDetector(d, snap, dctx)
		}
	}

	findings := make([]models.Finding, 0)
	for _, batch := range results {
		findings = append(findings, batch...)
	}
	return findings
}

// Triage runs detection and reduces the findings into a report.
func (p *Pipeline) Triage(snap *models.ClusterSnapshot, dctx models.DetectionContext) models.Report {
	findings := p.Run(snap, dctx)
	health := Aggregate(snap, findings)
	ranking := p.ranker.Rank(findings, snap, health.Overall)

	p.logger.Debug("triage ranked",
		slog.String("namespace", dctx.Namespace),
		slog.String("health", string(health.Overall)),
		slog.Int("findings", len(findings)),
	)

	return models.Report{
		Health:              health,
		Findings:            findings,
		PrimaryFailure:      ranking.PrimaryFailure,
		TopWarning:          ranking.TopWarning,
		PrimaryFailureDebug: ranking.Debug,
	}
}

func (p *Pipeline) runDetector(d detectors.Detector, snap *models.ClusterSnapshot, dctx models.DetectionContext) (findings []models.Finding) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("detector panicked",
				slog.String("detector", d.ID()),
				slog.String("panic", fmt.Sprint(r)),
			)
			metrics.DetectorFailed(d.ID())
			findings = nil
		}
	}()
	return d.Detect(snap, dctx)
}

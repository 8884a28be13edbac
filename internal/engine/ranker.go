package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/StrawberryNinjago/platformtriage/internal/models"
)

// Breakdown keys recorded in RankDebug.
const (
	FactorSeverity         = "severity"
	FactorCodePriority     = "codePriority"
	FactorBlastRadius      = "blastRadius"
	FactorReadinessPenalty = "readinessPenalty"
)

// Weights parameterises the ranking policy.
type Weights struct {
	Severity            map[models.Severity]int
	CodePriority        map[models.FailureCode]int
	DefaultCodePriority int
	// BlastRadiusScale multiplies ln(1+evidence); BlastRadiusCap bounds the result.
	BlastRadiusScale float64
	BlastRadiusCap   int
	ReadinessPenalty int
	// SoftCodes are penalised when every deployment is fully ready.
	SoftCodes map[models.FailureCode]bool
}

// DefaultWeights ranks hard outages above soft signals.
func DefaultWeights() Weights {
	return Weights{
		Severity: map[models.Severity]int{
			models.SeverityError: 1000,
			models.SeverityWarn:  500,
			models.SeverityInfo:  100,
		},
		CodePriority: map[models.FailureCode]int{
			models.CodeNoMatchingObjects:              310,
			models.CodeExternalSecretResolutionFailed: 300,
			models.CodeBadConfig:                      290,
			models.CodeRBACDenied:                     280,
			models.CodeImagePullFailed:                270,
			models.CodeCrashLoop:                      260,
			models.CodeVolumeMountFailed:              220,
			models.CodeReadinessCheckFailed:           150,
			models.CodeInsufficientResources:          140,
			models.CodeServiceSelectorMismatch:        120,
			models.CodePodRestartsDetected:            100,
		},
		DefaultCodePriority: 50,
		BlastRadiusScale:    25,
		BlastRadiusCap:      100,
		ReadinessPenalty:    200,
		SoftCodes: map[models.FailureCode]bool{
			models.CodeReadinessCheckFailed:    true,
			models.CodeInsufficientResources:   true,
			models.CodePodRestartsDetected:     true,
			models.CodeServiceSelectorMismatch: true,
		},
	}
}

// Score is a finding's rank with its per-factor contributions.
type Score struct {
	Total     int
	Breakdown map[string]int
}

// Ranking is the ranker's reduction of a finding list.
type Ranking struct {
	PrimaryFailure *models.Finding
	TopWarning     *models.Finding
	Debug          *models.RankDebug
}

// Ranker scores findings deterministically.
type Ranker struct {
	weights Weights
}

// NewRanker builds a ranker over w.
func NewRanker(w Weights) *Ranker {
	return &Ranker{weights: w}
}

// Score computes the rank of f against snap.
func (r *Ranker) Score(f models.Finding, snap *models.ClusterSnapshot) Score {
	severity := r.weights.Severity[f.Severity]
	priority, ok := r.weights.CodePriority[f.Code]
	if !ok {
		priority = r.weights.DefaultCodePriority
	}
	blast := r.blastRadius(len(f.Evidence))
	penalty := 0
	if r.weights.SoftCodes[f.Code] && allDeploymentsReady(snap) {
		penalty = r.weights.ReadinessPenalty
	}

	return Score{
		Total: severity + priority + blast - penalty,
		Breakdown: map[string]int{
			FactorSeverity:         severity,
			FactorCodePriority:     priority,
			FactorBlastRadius:      blast,
			FactorReadinessPenalty: penalty,
		},
	}
}

func (r *Ranker) blastRadius(evidence int) int {
	if evidence <= 0 {
		return 0
	}
	v := int(math.Round(r.weights.BlastRadiusScale * math.Log(1+float64(evidence))))
	if v > r.weights.BlastRadiusCap {
		return r.weights.BlastRadiusCap
	}
	return v
}

type scored struct {
	index int
	score Score
}

// Rank selects the primary failure and top warning. The primary failure is
// set only for FAIL or UNKNOWN health: the gating finding when present,
// otherwise the best ERROR. Ties keep first-seen order.
func (r *Ranker) Rank(findings []models.Finding, snap *models.ClusterSnapshot, health models.HealthStatus) Ranking {
	if len(findings) == 0 {
		return Ranking{}
	}

	ranked := make([]scored, len(findings))
	for i, f := range findings {
		ranked[i] = scored{index: i, score: r.Score(f, snap)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score.Total > ranked[j].score.Total
	})

	var out Ranking
	var primary *scored
	if health == models.HealthFail || health == models.HealthUnknown {
		for i := range ranked {
			if findings[ranked[i].index].Code == models.CodeNoMatchingObjects {
				primary = &ranked[i]
				break
			}
		}
		if primary == nil {
			for i := range ranked {
				if findings[ranked[i].index].Severity == models.SeverityError {
					primary = &ranked[i]
					break
				}
			}
		}
	}
	if primary != nil {
		f := findings[primary.index]
		out.PrimaryFailure = &f
		out.Debug = &models.RankDebug{
			Score:      primary.score.Total,
			Breakdown:  primary.score.Breakdown,
			Candidates: candidates(findings, ranked),
		}
	}

	for _, s := range ranked {
		if findings[s.index].Severity == models.SeverityWarn {
			f := findings[s.index]
			out.TopWarning = &f
			break
		}
	}
	return out
}

func candidates(findings []models.Finding, ranked []scored) []string {
	out := make([]string, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, fmt.Sprintf("%s(%d)", findings[s.index].Code, s.score.Total))
	}
	return out
}

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrawberryNinjago/platformtriage/internal/models"
)

func findingWithEvidence(code models.FailureCode, severity models.Severity, n int) models.Finding {
	f := models.Finding{Code: code, Severity: severity, Title: string(code)}
	for i := 0; i < n; i++ {
		f.Evidence = append(f.Evidence, models.Evidence{Kind: "Pod", Name: "p"})
	}
	return f
}

func TestBlastRadiusDiminishesAndCaps(t *testing.T) {
	r := NewRanker(DefaultWeights())
	tests := []struct {
		evidence int
		want     int
	}{
		{0, 0},
		{1, 17},
		{2, 27},
		{3, 35},
		{5, 45},
		{50, 98},
		{500, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.blastRadius(tt.evidence), "evidence=%d", tt.evidence)
	}
}

func TestScoreBreakdown(t *testing.T) {
	r := NewRanker(DefaultWeights())
	ready := &models.ClusterSnapshot{Workloads: []models.WorkloadView{deployment("api", 2, 2)}}

	score := r.Score(findingWithEvidence(models.CodeReadinessCheckFailed, models.SeverityError, 1), ready)
	assert.Equal(t, 967, score.Total)
	assert.Equal(t, map[string]int{
		FactorSeverity:         1000,
		FactorCodePriority:     150,
		FactorBlastRadius:      17,
		FactorReadinessPenalty: 200,
	}, score.Breakdown)

	hard := r.Score(findingWithEvidence(models.CodeCrashLoop, models.SeverityError, 1), ready)
	assert.Equal(t, 0, hard.Breakdown[FactorReadinessPenalty])

	notReady := &models.ClusterSnapshot{Workloads: []models.WorkloadView{deployment("api", 2, 2), deployment("worker", 1, 0)}}
	assert.Equal(t, 0, r.Score(findingWithEvidence(models.CodeReadinessCheckFailed, models.SeverityError, 1), notReady).Breakdown[FactorReadinessPenalty])
	assert.Equal(t, 0, r.Score(findingWithEvidence(models.CodeReadinessCheckFailed, models.SeverityError, 1), &models.ClusterSnapshot{}).Breakdown[FactorReadinessPenalty])

	custom := r.Score(findingWithEvidence("CUSTOM", models.SeverityInfo, 0), nil)
	assert.Equal(t, 150, custom.Total)
}

func TestRankEmpty(t *testing.T) {
	ranking := NewRanker(DefaultWeights()).Rank(nil, nil, models.HealthPass)
	assert.Nil(t, ranking.PrimaryFailure)
	assert.Nil(t, ranking.TopWarning)
	assert.Nil(t, ranking.Debug)
}

func TestRankPrefersHardOutagesOverLargeSoftSignals(t *testing.T) {
	findings := []models.Finding{
		findingWithEvidence(models.CodeReadinessCheckFailed, models.SeverityError, 50),
		findingWithEvidence(models.CodeBadConfig, models.SeverityError, 1),
		findingWithEvidence(models.CodeInsufficientResources, models.SeverityWarn, 10),
		findingWithEvidence(models.CodePodRestartsDetected, models.SeverityWarn, 1),
	}

	ranking := NewRanker(DefaultWeights()).Rank(findings, nil, models.HealthFail)

	require.NotNil(t, ranking.PrimaryFailure)
	assert.Equal(t, models.CodeBadConfig, ranking.PrimaryFailure.Code)
	require.NotNil(t, ranking.TopWarning)
	assert.Equal(t, models.CodeInsufficientResources, ranking.TopWarning.Code)
	require.NotNil(t, ranking.Debug)
	assert.Equal(t, 1307, ranking.Debug.Score)
	assert.Equal(t, []string{
		"BAD_CONFIG(1307)",
		"READINESS_CHECK_FAILED(1248)",
		"INSUFFICIENT_RESOURCES(700)",
		"POD_RESTARTS_DETECTED(617)",
	}, ranking.Debug.Candidates)
}

func TestRankTiesKeepFirstSeen(t *testing.T) {
	first := findingWithEvidence(models.CodeCrashLoop, models.SeverityError, 2)
	first.Title = "first"
	second := findingWithEvidence(models.CodeCrashLoop, models.SeverityError, 2)
	second.Title = "second"

	ranking := NewRanker(DefaultWeights()).Rank([]models.Finding{first, second}, nil, models.HealthFail)
	require.NotNil(t, ranking.PrimaryFailure)
	assert.Equal(t, "first", ranking.PrimaryFailure.Title)
}

func TestRankGatingFindingWins(t *testing.T) {
	findings := []models.Finding{
		findingWithEvidence(models.CodeExternalSecretResolutionFailed, models.SeverityError, 20),
		findingWithEvidence(models.CodeNoMatchingObjects, models.SeverityError, 1),
	}

	ranking := NewRanker(DefaultWeights()).Rank(findings, nil, models.HealthUnknown)
	require.NotNil(t, ranking.PrimaryFailure)
	assert.Equal(t, models.CodeNoMatchingObjects, ranking.PrimaryFailure.Code)
	assert.Equal(t, 1327, ranking.Debug.Score)
	assert.Equal(t, "EXTERNAL_SECRET_RESOLUTION_FAILED(1376)", ranking.Debug.Candidates[0])
}

func TestRankNoPrimaryUnlessFailing(t *testing.T) {
	findings := []models.Finding{
		findingWithEvidence(models.CodeCrashLoop, models.SeverityError, 1),
		findingWithEvidence(models.CodePodRestartsDetected, models.SeverityWarn, 1),
	}

	for _, health := range []models.HealthStatus{models.HealthPass, models.HealthWarn} {
		ranking := NewRanker(DefaultWeights()).Rank(findings, nil, health)
		assert.Nil(t, ranking.PrimaryFailure, health)
		assert.Nil(t, ranking.Debug, health)
		require.NotNil(t, ranking.TopWarning, health)
	}
}

func TestRankPrimaryIsACopy(t *testing.T) {
	findings := []models.Finding{findingWithEvidence(models.CodeCrashLoop, models.SeverityError, 1)}
	ranking := NewRanker(DefaultWeights()).Rank(findings, nil, models.HealthFail)
	ranking.PrimaryFailure.Title = "mutated"
	assert.Equal(t, string(models.CodeCrashLoop), findings[0].Title)
}

func TestCustomWeights(t *testing.T) {
	w := DefaultWeights()
	w.CodePriority[models.CodeCrashLoop] = 900
	findings := []models.Finding{
		findingWithEvidence(models.CodeBadConfig, models.SeverityError, 1),
		findingWithEvidence(models.CodeCrashLoop, models.SeverityError, 1),
	}

	ranking := NewRanker(w).Rank(findings, nil, models.HealthFail)
	assert.Equal(t, models.CodeCrashLoop, ranking.PrimaryFailure.Code)
	assert.Equal(t, 260, DefaultWeights().CodePriority[models.CodeCrashLoop])
}

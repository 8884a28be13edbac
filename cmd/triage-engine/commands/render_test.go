package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrawberryNinjago/platformtriage/internal/models"
)

func TestWriteReportPlain(t *testing.T) {
	primary := models.Finding{
		Code:        models.CodeImagePullFailed,
		Severity:    models.SeverityError,
		Owner:       models.OwnerApp,
		Title:       "Image pull failing",
		Explanation: "2 pods cannot pull their image.",
		Evidence:    []models.Evidence{{Kind: "Pod", Name: "web-1", Message: "phase=Pending reason=ErrImagePull restarts=0"}},
		NextSteps:   []string{"Check the image tag exists", "Check registry credentials"},
	}
	warning := models.Finding{Code: models.CodePodRestartsDetected, Severity: models.SeverityWarn, Owner: models.OwnerApp, Title: "Pods restarted"}
	result := models.TriageResult{
		Namespace: "shop",
		Release:   "web",
		Report: models.Report{
			Health:              models.Health{Overall: models.HealthFail, Pods: models.PodCounts{Total: 2, Pending: 2, ImagePullBackOff: 2, NotReady: 2}, DeploymentsReady: "0/1"},
			Findings:            []models.Finding{primary, warning},
			PrimaryFailure:      &primary,
			TopWarning:          &warning,
			PrimaryFailureDebug: &models.RankDebug{Score: 1292, Breakdown: map[string]int{"severity": 1000, "codePriority": 90, "blastRadius": 27}, Candidates: []string{"IMAGE_PULL_FAILED(1117)", "POD_RESTARTS_DETECTED(617)"}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, result, renderOptions{explainRank: true}))
	out := buf.String()

	assert.NotContains(t, out, "\x1b[", "plain output must not carry escape codes")
	assert.Contains(t, out, "Namespace shop (release web)")
	assert.Contains(t, out, "Health FAIL  pods 2 total, 0 running, 2 pending, 0 crashloop, 2 image-pull, 2 not ready  deployments 0/1")
	assert.Contains(t, out, "PRIMARY FAILURE  IMAGE_PULL_FAILED  [ERROR, owner APP]")
	assert.Contains(t, out, "    - Pod/web-1: phase=Pending reason=ErrImagePull restarts=0")
	assert.Contains(t, out, "    2. Check registry credentials")
	assert.Contains(t, out, "rank: score 1292 (severity=1000 codePriority=90 blastRadius=27)")
	assert.Contains(t, out, "candidates: IMAGE_PULL_FAILED(1117), POD_RESTARTS_DETECTED(617)")
	assert.Contains(t, out, "TOP WARNING  POD_RESTARTS_DETECTED  [WARN, owner APP]")
	assert.Contains(t, out, "FINDINGS (2)")
	assert.True(t, strings.Index(out, "PRIMARY FAILURE") < strings.Index(out, "TOP WARNING"))
}

func TestWriteReportHealthy(t *testing.T) {
	result := models.TriageResult{
		Namespace: "shop",
		Selector:  "app=web",
		Report: models.Report{
			Health:   models.Health{Overall: models.HealthPass, Pods: models.PodCounts{Total: 1, Running: 1}, DeploymentsReady: "1/1"},
			Findings: []models.Finding{},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, result, renderOptions{}))
	assert.Contains(t, buf.String(), "Namespace shop (app=web)")
	assert.Contains(t, buf.String(), "No findings.")
	assert.NotContains(t, buf.String(), "PRIMARY FAILURE")
}

func TestWriteReportColorized(t *testing.T) {
	result := models.TriageResult{Namespace: "shop", Report: models.Report{Health: models.Health{Overall: models.HealthWarn, DeploymentsReady: "0/0"}}}

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, result, renderOptions{colorize: true}))
	assert.Contains(t, buf.String(), "\x1b[")
}

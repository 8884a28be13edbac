package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/StrawberryNinjago/platformtriage/internal/models"
)

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		findings []models.Finding
		want     models.HealthStatus
	}{
		{"empty", nil, models.HealthPass},
		{"info only", []models.Finding{{Code: "CUSTOM", Severity: models.SeverityInfo}}, models.HealthPass},
		{"warn", []models.Finding{{Code: models.CodePodRestartsDetected, Severity: models.SeverityWarn}}, models.HealthWarn},
		{"error beats warn", []models.Finding{
			{Code: models.CodePodRestartsDetected, Severity: models.SeverityWarn},
			{Code: models.CodeCrashLoop, Severity: models.SeverityError},
		}, models.HealthFail},
		{"gating beats error", []models.Finding{
			{Code: models.CodeCrashLoop, Severity: models.SeverityError},
			{Code: models.CodeNoMatchingObjects, Severity: models.SeverityError},
		}, models.HealthUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OverallStatus(tt.findings))
		})
	}
}

func TestCountPods(t *testing.T) {
	counts := CountPods([]models.PodView{
		{Name: "a", Phase: models.PodRunning, Ready: true},
		{Name: "b", Phase: models.PodRunning, Reason: "CrashLoopBackOff"},
		{Name: "c", Phase: models.PodPending, Reason: "ImagePullBackOff"},
		{Name: "d", Phase: models.PodPending},
		{Name: "e", Phase: models.PodSucceeded},
	})

	assert.Equal(t, models.PodCounts{
		Total:            5,
		Running:          2,
		Pending:          2,
		CrashLoop:        1,
		ImagePullBackOff: 1,
		NotReady:         3,
	}, counts)
}

func TestAggregate(t *testing.T) {
	snap := &models.ClusterSnapshot{
		Pods: []models.PodView{{Name: "a", Phase: models.PodRunning, Ready: true}},
		Workloads: []models.WorkloadView{
			deployment("api", 2, 2),
			deployment("worker", 3, 1),
			deployment("cron", 0, 0),
		},
	}

	health := Aggregate(snap, nil)
	assert.Equal(t, models.HealthPass, health.Overall)
	assert.Equal(t, "2/3", health.DeploymentsReady)
	assert.Equal(t, 1, health.Pods.Running)

	assert.Equal(t, models.Health{Overall: models.HealthPass, DeploymentsReady: "0/0"}, Aggregate(nil, nil))
}

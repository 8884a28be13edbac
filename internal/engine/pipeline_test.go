package engine

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrawberryNinjago/platformtriage/internal/detectors"
	"github.com/StrawberryNinjago/platformtriage/internal/models"
)

var dctx = models.DetectionContext{Namespace: "payments", Selector: "app.kubernetes.io/instance=ledger", EventLimit: 50}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultPipeline(opts ...Option) *Pipeline {
	return NewPipeline(quietLogger(), detectors.Default(nil), opts...)
}

func deployment(name string, desired, ready int) models.WorkloadView {
	return models.WorkloadView{Kind: "Deployment", Name: name, DesiredReplicas: desired, ReadyReplicas: ready, AvailableReplicas: ready}
}

func warningEvent(reason, kind, name, message string) models.EventView {
	return models.EventView{
		Type:           models.EventWarning,
		Reason:         reason,
		Message:        message,
		InvolvedObject: models.ObjectRef{Kind: kind, Name: name},
		Timestamp:      time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		Count:          1,
	}
}

func findingCodes(findings []models.Finding) []models.FailureCode {
	out := make([]models.FailureCode, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Code)
	}
	return out
}

func TestTriageNoMatchingObjects(t *testing.T) {
	report := defaultPipeline().Triage(&models.ClusterSnapshot{}, dctx)

	require.Equal(t, []models.FailureCode{models.CodeNoMatchingObjects}, findingCodes(report.Findings))
	assert.Equal(t, models.HealthUnknown, report.Health.Overall)
	require.NotNil(t, report.PrimaryFailure)
	assert.Equal(t, models.CodeNoMatchingObjects, report.PrimaryFailure.Code)
	assert.Nil(t, report.TopWarning)
	require.NotNil(t, report.PrimaryFailureDebug)
	assert.Equal(t, 1327, report.PrimaryFailureDebug.Score)
	assert.Equal(t, []string{"NO_MATCHING_OBJECTS(1327)"}, report.PrimaryFailureDebug.Candidates)
	assert.Equal(t, "0/0", report.Health.DeploymentsReady)
}

func TestTriageImagePullAggregated(t *testing.T) {
	snap := &models.ClusterSnapshot{
		Pods: []models.PodView{
			{Name: "ledger-1", Phase: models.PodPending, Reason: "ImagePullBackOff"},
			{Name: "ledger-2", Phase: models.PodPending, Reason: "ImagePullBackOff"},
			{Name: "ledger-3", Phase: models.PodPending, Reason: "ErrImagePull"},
		},
	}

	report := defaultPipeline().Triage(snap, dctx)

	require.Equal(t, []models.FailureCode{models.CodeImagePullFailed}, findingCodes(report.Findings))
	assert.Len(t, report.Findings[0].Evidence, 3)
	assert.Equal(t, models.HealthFail, report.Health.Overall)
	require.NotNil(t, report.PrimaryFailure)
	assert.Equal(t, models.CodeImagePullFailed, report.PrimaryFailure.Code)
	assert.Nil(t, report.TopWarning)
	assert.Equal(t, 3, report.Health.Pods.ImagePullBackOff)
	assert.Equal(t, 3, report.Health.Pods.Pending)
}

func TestTriageRestartsOnlyWarns(t *testing.T) {
	snap := &models.ClusterSnapshot{
		Pods: []models.PodView{
			{Name: "ledger-1", Phase: models.PodRunning, Ready: true, RestartCount: 3},
			{Name: "ledger-2", Phase: models.PodRunning, Ready: true, RestartCount: 1},
		},
		Workloads: []models.WorkloadView{deployment("ledger", 2, 2)},
	}

	report := defaultPipeline().Triage(snap, dctx)

	require.Equal(t, []models.FailureCode{models.CodePodRestartsDetected}, findingCodes(report.Findings))
	assert.Equal(t, models.SeverityWarn, report.Findings[0].Severity)
	assert.Contains(t, report.Findings[0].Explanation, "4 restarts")
	assert.Equal(t, models.HealthWarn, report.Health.Overall)
	assert.Nil(t, report.PrimaryFailure)
	assert.Nil(t, report.PrimaryFailureDebug)
	require.NotNil(t, report.TopWarning)
	assert.Equal(t, models.CodePodRestartsDetected, report.TopWarning.Code)
}

func TestTriageGroupsExternalSecretEvents(t *testing.T) {
	snap := &models.ClusterSnapshot{
		Pods:      []models.PodView{{Name: "ledger-1", Phase: models.PodPending, Reason: "CreateContainerConfigError"}},
		Workloads: []models.WorkloadView{deployment("ledger", 1, 0)},
	}
	for i := 0; i < 5; i++ {
		snap.Events = append(snap.Events, warningEvent("UpdateFailed", "ExternalSecret", "ledger-db", fmt.Sprintf("attempt %d: secret not found in vault", i)))
	}

	report := defaultPipeline().Triage(snap, dctx)

	var secretFindings []models.Finding
	for _, f := range report.Findings {
		if f.Code == models.CodeExternalSecretResolutionFailed {
			secretFindings = append(secretFindings, f)
		}
	}
	require.Len(t, secretFindings, 1)
	assert.Len(t, secretFindings[0].Evidence, 5)
	require.NotNil(t, report.PrimaryFailure)
	assert.Equal(t, models.CodeExternalSecretResolutionFailed, report.PrimaryFailure.Code)
}

func TestTriageIgnoresBackOffForMissingPod(t *testing.T) {
	snap := &models.ClusterSnapshot{
		Pods:      []models.PodView{{Name: "ledger-1", Phase: models.PodRunning, Ready: true}},
		Workloads: []models.WorkloadView{deployment("ledger", 1, 1)},
		Events:    []models.EventView{warningEvent("BackOff", "Pod", "ledger-old-7f9", "Back-off restarting failed container")},
	}

	var report models.Report
	require.NotPanics(t, func() { report = defaultPipeline().Triage(snap, dctx) })
	assert.Empty(t, report.Findings)
	assert.NotNil(t, report.Findings)
	assert.Equal(t, models.HealthPass, report.Health.Overall)
	assert.Nil(t, report.PrimaryFailure)
	assert.Nil(t, report.TopWarning)
}

func TestTriageCrashLoopIsNotDoubleCounted(t *testing.T) {
	snap := &models.ClusterSnapshot{
		Pods: []models.PodView{
			{Name: "ledger-1", Phase: models.PodRunning, Reason: "CrashLoopBackOff", RestartCount: 6},
			{Name: "ledger-2", Phase: models.PodRunning, Reason: "CrashLoopBackOff", RestartCount: 5},
			{Name: "ledger-3", Phase: models.PodRunning, Reason: "CrashLoopBackOff", RestartCount: 7},
		},
		Workloads: []models.WorkloadView{deployment("ledger", 3, 0), deployment("ledger-worker", 1, 0)},
	}

	report := defaultPipeline().Triage(snap, dctx)

	assert.Equal(t, []models.FailureCode{models.CodeCrashLoop}, findingCodes(report.Findings))
	assert.Equal(t, models.HealthFail, report.Health.Overall)
	require.NotNil(t, report.PrimaryFailure)
	assert.Equal(t, models.CodeCrashLoop, report.PrimaryFailure.Code)
	assert.Nil(t, report.TopWarning)
	assert.Equal(t, "0/2", report.Health.DeploymentsReady)
	assert.Equal(t, 3, report.Health.Pods.CrashLoop)
}

func mixedSnapshot() *models.ClusterSnapshot {
	return &models.ClusterSnapshot{
		Pods: []models.PodView{
			{Name: "api-1", Phase: models.PodRunning, Reason: "CrashLoopBackOff", RestartCount: 4},
			{Name: "api-2", Phase: models.PodRunning, Ready: false},
			{Name: "api-3", Phase: models.PodRunning, Ready: true, RestartCount: 2},
			{Name: "api-4", Phase: models.PodPending},
		},
		Workloads: []models.WorkloadView{deployment("api", 4, 1)},
		Events: []models.EventView{
			warningEvent("Forbidden", "ReplicaSet", "api-5d8", "forbidden: cannot create pods"),
			warningEvent("FailedMount", "Pod", "api-4", "Unable to attach or mount volumes"),
		},
		Services: []models.ServiceView{{Name: "api", Selector: map[string]string{"app": "api-v2"}}},
	}
}

func TestTriageIsDeterministic(t *testing.T) {
	snap := mixedSnapshot()
	first := defaultPipeline().Triage(snap, dctx)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, defaultPipeline().Triage(snap, dctx))
	}
	assert.Equal(t, []models.FailureCode{
		models.CodeCrashLoop,
		models.CodeReadinessCheckFailed,
		models.CodeInsufficientResources,
		models.CodePodRestartsDetected,
		models.CodeRBACDenied,
		models.CodeVolumeMountFailed,
		models.CodeServiceSelectorMismatch,
	}, findingCodes(first.Findings))
	require.NotNil(t, first.PrimaryFailure)
	assert.Equal(t, models.CodeRBACDenied, first.PrimaryFailure.Code)
}

func TestParallelRunMatchesSequential(t *testing.T) {
	snap := mixedSnapshot()
	sequential := defaultPipeline().Triage(snap, dctx)
	for i := 0; i < 20; i++ {
		assert.Equal(t, sequential, defaultPipeline(WithParallelDetectors(true)).Triage(snap, dctx))
	}
}

type stubDetector struct {
	id       string
	order    int
	findings []models.Finding
	panics   bool
	calls    atomic.Int32
}

func (s *stubDetector) ID() string { return s.id }

func (s *stubDetector) Order() int { return s.order }

func (s *stubDetector) Detect(*models.ClusterSnapshot, models.DetectionContext) []models.Finding {
	s.calls.Add(1)
	if s.panics {
		panic("index out of range")
	}
	return s.findings
}

func stubFinding(code models.FailureCode, severity models.Severity) models.Finding {
	return models.Finding{Code: code, Severity: severity, Evidence: []models.Evidence{{Kind: "Pod", Name: "x"}}}
}

func TestPipelineOrdersByOrderThenID(t *testing.T) {
	p := NewPipeline(quietLogger(), []detectors.Detector{
		&stubDetector{id: "zeta", order: 5},
		&stubDetector{id: "beta", order: 5},
		&stubDetector{id: "gate", order: -100},
		&stubDetector{id: "alpha", order: 20},
		&stubDetector{id: "beta", order: 1},
	})
	assert.Equal(t, []string{"gate", "beta", "zeta", "alpha"}, p.DetectorIDs())
	assert.Equal(t, []string{"no-matching-objects", "pod-phase", "pod-restarts", "warning-events", "service-endpoints"}, defaultPipeline().DetectorIDs())
}

func TestPipelineIsolatesPanics(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			broken := &stubDetector{id: "broken", order: 1, panics: true}
			after := &stubDetector{id: "after", order: 2, findings: []models.Finding{stubFinding(models.CodeBadConfig, models.SeverityError)}}
			before := &stubDetector{id: "before", order: 0, findings: []models.Finding{stubFinding(models.CodePodRestartsDetected, models.SeverityWarn)}}
			p := NewPipeline(quietLogger(), []detectors.Detector{broken, after, before}, WithParallelDetectors(parallel))

			var report models.Report
			require.NotPanics(t, func() { report = p.Triage(&models.ClusterSnapshot{}, dctx) })
			assert.Equal(t, []models.FailureCode{models.CodePodRestartsDetected, models.CodeBadConfig}, findingCodes(report.Findings))
			assert.Equal(t, int32(1), broken.calls.Load())
			assert.Equal(t, models.HealthFail, report.Health.Overall)
		})
	}
}

func TestGatingFindingDoesNotAbortPipeline(t *testing.T) {
	later := &stubDetector{id: "later", order: 50}
	p := NewPipeline(quietLogger(), append(detectors.Default(nil), later))

	p.Run(&models.ClusterSnapshot{}, dctx)
	assert.Equal(t, int32(1), later.calls.Load())
}

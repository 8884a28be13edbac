package detectors

import (
	"fmt"

	"github.com/StrawberryNinjago/platformtriage/internal/models"
)

// PodRestartsDetector flags pods that are healthy now but restarted in the
// past. Currently unstable pods are the crash-loop detector's concern.
type PodRestartsDetector struct{}

// NewPodRestartsDetector constructs a pod restarts detector.
func NewPodRestartsDetector() *PodRestartsDetector {
	return &PodRestartsDetector{}
}

func (d *PodRestartsDetector) ID() string { return "pod-restarts" }

func (d *PodRestartsDetector) Order() int { return 20 }

// Detect aggregates Running+Ready pods with a nonzero restart count.
func (d *PodRestartsDetector) Detect(snap *models.ClusterSnapshot, dctx models.DetectionContext) []models.Finding {
	if snap == nil {
		return nil
	}

	var evidence []models.Evidence
	total := 0
	for _, pod := range snap.Pods {
		if !pod.IsRunning() || !pod.Ready || pod.RestartCount <= 0 {
			continue
		}
		total += pod.RestartCount
		evidence = append(evidence, podEvidence(pod, fmt.Sprintf("restarts=%d", pod.RestartCount)))
	}
	if len(evidence) == 0 {
		return nil
	}

	return []models.Finding{{
		Code:     models.CodePodRestartsDetected,
		Severity: models.SeverityWarn,
		Owner:    models.OwnerApp,
		Title:    "Pods restarted",
		Explanation: fmt.Sprintf("%s restarted (%s in total) but %s currently running and ready.",
			pluralize(len(evidence), "pod has", "pods have"),
			pluralize(total, "restart", "restarts"),
			pick(len(evidence) == 1, "is", "are")),
		Evidence: evidence,
		NextSteps: []string{
			"Check previous container logs for the cause of the restarts",
			"Look for OOMKilled terminations and compare memory limits with usage",
			"Review liveness probe timeouts",
		},
	}}
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}

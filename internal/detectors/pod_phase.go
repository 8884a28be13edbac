package detectors

import (
	"fmt"
	"strings"

	"github.com/StrawberryNinjago/platformtriage/internal/models"
)

// PodPhaseDetector classifies pods by their current state. It emits at most
// one finding per category, each aggregating every matching pod.
type PodPhaseDetector struct{}

// NewPodPhaseDetector constructs a pod phase detector.
func NewPodPhaseDetector() *PodPhaseDetector {
	return &PodPhaseDetector{}
}

func (d *PodPhaseDetector) ID() string { return "pod-phase" }

func (d *PodPhaseDetector) Order() int { return 10 }

// Detect buckets pods into image-pull, crash-loop, readiness and pending
// categories.
func (d *PodPhaseDetector) Detect(snap *models.ClusterSnapshot, dctx models.DetectionContext) []models.Finding {
	if snap == nil || len(snap.Pods) == 0 {
		return nil
	}

	warnings := snap.WarningEvents()
	backOff := latestMessages(warnings, "BackOff", func(ev models.EventView) bool {
		// kubelet reuses BackOff for image pulls; those are not crash loops.
		return !strings.Contains(strings.ToLower(ev.Message), "pulling image")
	})
	scheduling := latestMessages(warnings, "FailedScheduling", nil)

	var imagePull, crashLoop, notReady, pending []models.Evidence
	for _, pod := range snap.Pods {
		backOffMsg, backedOff := backOff[pod.Name]
		switch {
		case pod.IsImagePullBackOff():
			imagePull = append(imagePull, podEvidence(pod, describePod(pod)))
		case pod.IsCrashLoopBackOff() || backedOff:
			msg := describePod(pod)
			if backedOff && backOffMsg != "" {
				msg = fmt.Sprintf("%s; BackOff: %s", msg, backOffMsg)
			}
			crashLoop = append(crashLoop, podEvidence(pod, msg))
		case pod.IsRunning() && !pod.Ready:
			notReady = append(notReady, podEvidence(pod, describePod(pod)))
		case pod.IsPending():
			msg := describePod(pod)
			if schedMsg, ok := scheduling[pod.Name]; ok && schedMsg != "" {
				msg = fmt.Sprintf("%s; FailedScheduling: %s", msg, schedMsg)
			}
			pending = append(pending, podEvidence(pod, msg))
		}
	}

	findings := make([]models.Finding, 0, 4)
	if len(imagePull) > 0 {
		findings = append(findings, models.Finding{
			Code:     models.CodeImagePullFailed,
			Severity: models.SeverityError,
			Owner:    models.OwnerApp,
			Title:    "Image pull failing",
			Explanation: fmt.Sprintf("%s cannot pull the container image. The image reference, tag or registry credentials are likely wrong.",
				pluralize(len(imagePull), "pod", "pods")),
			Evidence: imagePull,
			NextSteps: []string{
				"Verify the image repository and tag exist in the registry",
				"Check imagePullSecrets on the pod or its service account",
				"Confirm nodes can reach the registry",
			},
		})
	}
	if len(crashLoop) > 0 {
		findings = append(findings, models.Finding{
			Code:     models.CodeCrashLoop,
			Severity: models.SeverityError,
			Owner:    models.OwnerApp,
			Title:    "Containers crash looping",
			Explanation: fmt.Sprintf("%s repeatedly crashing after start. The application is exiting shortly after launch.",
				pluralize(len(crashLoop), "pod is", "pods are")),
			Evidence: crashLoop,
			NextSteps: []string{
				"Inspect the previous container logs (kubectl logs --previous)",
				"Check the container exit code and termination reason",
				"Review recent configuration or image changes",
			},
		})
	}
	if len(notReady) > 0 {
		findings = append(findings, models.Finding{
			Code:     models.CodeReadinessCheckFailed,
			Severity: models.SeverityError,
			Owner:    models.OwnerApp,
			Title:    "Readiness checks failing",
			Explanation: fmt.Sprintf("%s running but not ready, so no traffic is routed to them.",
				pluralize(len(notReady), "pod is", "pods are")),
			Evidence: notReady,
			NextSteps: []string{
				"Check the readiness probe path, port and thresholds",
				"Inspect application logs for dependency failures during startup",
			},
		})
	}
	if len(pending) > 0 {
		findings = append(findings, models.Finding{
			Code:     models.CodeInsufficientResources,
			Severity: models.SeverityWarn,
			Owner:    models.OwnerPlatform,
			Title:    "Pods pending",
			Explanation: fmt.Sprintf("%s not been scheduled or started. The cluster may lack capacity for the requested resources.",
				pluralize(len(pending), "pod has", "pods have")),
			Evidence: pending,
			NextSteps: []string{
				"Compare pod resource requests with allocatable node capacity",
				"Check node selectors, affinity rules and taints",
				"Check namespace ResourceQuota usage",
			},
		})
	}
	return findings
}

func describePod(pod models.PodView) string {
	parts := []string{"phase=" + string(pod.Phase)}
	if pod.Reason != "" {
		parts = append(parts, "reason="+pod.Reason)
	}
	parts = append(parts, fmt.Sprintf("restarts=%d", pod.RestartCount))
	return strings.Join(parts, " ")
}

// latestMessages indexes warning events with the given reason by the name of
// the pod they reference, keeping the newest message per pod. Names are only
// looked up against the current pod list, so events for vanished pods are
// ignored by callers.
func latestMessages(events []models.EventView, reason string, keep func(models.EventView) bool) map[string]string {
	newest := make(map[string]models.EventView)
	for _, ev := range events {
		if ev.Reason != reason || ev.InvolvedObject.Name == "" {
			continue
		}
		if ev.InvolvedObject.Kind != "" && ev.InvolvedObject.Kind != "Pod" {
			continue
		}
		if keep != nil && !keep(ev) {
			continue
		}
		if seen, ok := newest[ev.InvolvedObject.Name]; ok && !ev.Timestamp.After(seen.Timestamp) {
			continue
		}
		newest[ev.InvolvedObject.Name] = ev
	}

	index := make(map[string]string, len(newest))
	for name, ev := range newest {
		index[name] = ev.Message
	}
	return index
}

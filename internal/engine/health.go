package engine

import (
	"fmt"

	"github.com/StrawberryNinjago/platformtriage/internal/models"
)

// Aggregate derives the overall health, pod buckets and deployment readiness
// ratio from a snapshot and its findings.
func Aggregate(snap *models.ClusterSnapshot, findings []models.Finding) models.Health {
	health := models.Health{
		Overall:          OverallStatus(findings),
		DeploymentsReady: "0/0",
	}
	if snap == nil {
		return health
	}
	health.Pods = CountPods(snap.Pods)
	health.DeploymentsReady = DeploymentsReady(snap.Workloads)
	return health
}

// OverallStatus is UNKNOWN when the gating finding fired, else FAIL on any
// ERROR, else WARN on any WARN, else PASS.
func OverallStatus(findings []models.Finding) models.HealthStatus {
	hasError, hasWarn := false, false
	for _, f := range findings {
		if f.Code == models.CodeNoMatchingObjects {
			return models.HealthUnknown
		}
		switch f.Severity {
		case models.SeverityError:
			hasError = true
		case models.SeverityWarn:
			hasWarn = true
		}
	}
	switch {
	case hasError:
		return models.HealthFail
	case hasWarn:
		return models.HealthWarn
	default:
		return models.HealthPass
	}
}

// CountPods buckets pods for display. Buckets overlap: a crash-looping pod
// is counted as Running and NotReady too.
func CountPods(pods []models.PodView) models.PodCounts {
	counts := models.PodCounts{Total: len(pods)}
	for _, pod := range pods {
		switch {
		case pod.IsRunning():
			counts.Running++
		case pod.IsPending():
			counts.Pending++
		}
		if pod.IsCrashLoopBackOff() {
			counts.CrashLoop++
		}
		if pod.IsImagePullBackOff() {
			counts.ImagePullBackOff++
		}
		if !pod.Ready && pod.Phase != models.PodSucceeded {
			counts.NotReady++
		}
	}
	return counts
}

// DeploymentsReady renders "ready/total" over fully ready workloads.
func DeploymentsReady(workloads []models.WorkloadView) string {
	ready := 0
	for _, w := range workloads {
		if w.FullyReady() {
			ready++
		}
	}
	return fmt.Sprintf("%d/%d", ready, len(workloads))
}

// allDeploymentsReady is true when at least one workload exists and every
// workload is fully ready.
func allDeploymentsReady(snap *models.ClusterSnapshot) bool {
	if snap == nil || len(snap.Workloads) == 0 {
		return false
	}
	for _, w := range snap.Workloads {
		if !w.FullyReady() {
			return false
		}
	}
	return true
}

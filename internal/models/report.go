package models

import "time"

// HealthStatus is the overall verdict for a triaged workload.
type HealthStatus string

const (
	HealthPass    HealthStatus = "PASS"
	HealthWarn    HealthStatus = "WARN"
	HealthFail    HealthStatus = "FAIL"
	HealthUnknown HealthStatus = "UNKNOWN"
)

// PodCounts buckets pods for display.
type PodCounts struct {
	Total            int `json:"total"`
	Running          int `json:"running"`
	Pending          int `json:"pending"`
	CrashLoop        int `json:"crashLoop"`
	ImagePullBackOff int `json:"imagePullBackOff"`
	NotReady         int `json:"notReady"`
}

// Health summarises workload state.
type Health struct {
	Overall          HealthStatus `json:"overall"`
	Pods             PodCounts    `json:"pods"`
	DeploymentsReady string       `json:"deploymentsReady"`
}

// RankDebug explains how the primary failure was chosen. It is never read
// back by the engine.
type RankDebug struct {
	Score      int            `json:"score"`
	Breakdown  map[string]int `json:"breakdown"`
	Candidates []string       `json:"candidates"`
}

// Report is the reduction of a finding list.
type Report struct {
	Health              Health     `json:"health"`
	Findings            []Finding  `json:"findings"`
	PrimaryFailure      *Finding   `json:"primaryFailure"`
	TopWarning          *Finding   `json:"topWarning"`
	PrimaryFailureDebug *RankDebug `json:"primaryFailureDebug,omitempty"`
}

// TriageRequest is a caller's triage query.
type TriageRequest struct {
	Namespace  string
	Selector   string
	Release    string
	EventLimit int
}

// TriageResult wraps a report with request metadata.
type TriageResult struct {
	ID          string    `json:"id"`
	Namespace   string    `json:"namespace"`
	Selector    string    `json:"selector,omitempty"`
	Release     string    `json:"release,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
	Report
}

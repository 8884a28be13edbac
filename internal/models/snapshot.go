package models

import "time"

// PodPhase mirrors the Kubernetes pod lifecycle phase.
type PodPhase string

const (
	PodPending   PodPhase = "Pending"
	PodRunning   PodPhase = "Running"
	PodSucceeded PodPhase = "Succeeded"
	PodFailed    PodPhase = "Failed"
	PodUnknown   PodPhase = "Unknown"
)

// EventType is the Kubernetes event category.
type EventType string

const (
	EventNormal  EventType = "Normal"
	EventWarning EventType = "Warning"
)

// ClusterSnapshot is the immutable input to detection. It is built once per
// request and shared read-only by every detector.
type ClusterSnapshot struct {
	Pods       []PodView
	Workloads  []WorkloadView
	Events     []EventView
	Services   []ServiceView
	CapturedAt time.Time
}

// PodView is the subset of pod state the detectors reason about.
type PodView struct {
	Name         string
	Phase        PodPhase
	Ready        bool
	RestartCount int
	Reason       string
}

// IsImagePullBackOff reports whether the pod is stuck pulling its image.
func (p PodView) IsImagePullBackOff() bool {
	switch p.Reason {
	case "ImagePullBackOff", "ErrImagePull", "InvalidImageName", "ErrImageNeverPull":
		return true
	}
	return false
}

// IsCrashLoopBackOff reports whether a container of the pod is crash looping.
func (p PodView) IsCrashLoopBackOff() bool {
	return p.Reason == "CrashLoopBackOff"
}

// IsPending reports whether the pod has not been scheduled or started yet.
func (p PodView) IsPending() bool {
	return p.Phase == PodPending
}

// IsRunning reports whether the pod is in the Running phase.
func (p PodView) IsRunning() bool {
	return p.Phase == PodRunning
}

// WorkloadView summarises a Deployment's replica status.
type WorkloadView struct {
	Kind              string
	Name              string
	DesiredReplicas   int
	ReadyReplicas     int
	AvailableReplicas int
}

// FullyReady reports whether all desired replicas are ready. A workload
// scaled to zero counts as ready.
func (w WorkloadView) FullyReady() bool {
	if w.DesiredReplicas <= 0 {
		return true
	}
	return w.ReadyReplicas >= w.DesiredReplicas
}

// ObjectRef points at the object an event is about.
type ObjectRef struct {
	Kind string
	Name string
}

// EventView is a flattened Kubernetes event.
type EventView struct {
	Type           EventType
	Reason         string
	Message        string
	InvolvedObject ObjectRef
	Timestamp      time.Time
	Count          int
}

// IsWarning reports whether the event participates in detection.
func (e EventView) IsWarning() bool {
	return e.Type == EventWarning
}

// ServiceView summarises a Service and the readiness of its endpoints.
type ServiceView struct {
	Name              string
	Type              string
	Selector          map[string]string
	ReadyEndpoints    int
	NotReadyEndpoints int
}

// WarningEvents returns the warning events in snapshot order.
func (s *ClusterSnapshot) WarningEvents() []EventView {
	if s == nil {
		return nil
	}
	warnings := make([]EventView, 0, len(s.Events))
	for _, ev := range s.Events {
		if ev.IsWarning() {
			warnings = append(warnings, ev)
		}
	}
	return warnings
}

// IsEmpty reports whether the snapshot matched no pods and no workloads.
func (s *ClusterSnapshot) IsEmpty() bool {
	return s == nil || (len(s.Pods) == 0 && len(s.Workloads) == 0)
}

// DetectionContext carries the request parameters threaded unchanged through
// every detector call.
type DetectionContext struct {
	Namespace  string
	Selector   string
	Release    string
	EventLimit int
}

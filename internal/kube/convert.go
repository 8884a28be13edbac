package kube

import (
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"

	"github.com/StrawberryNinjago/platformtriage/internal/models"
)

// waitingReasonRank orders container waiting reasons; lower wins.
func waitingReasonRank(reason string) int {
	switch reason {
	case "CrashLoopBackOff":
		return 0
	case "ImagePullBackOff", "ErrImagePull", "InvalidImageName", "ErrImageNeverPull":
		return 1
	case "CreateContainerConfigError", "CreateContainerError":
		return 2
	default:
		return 3
	}
}

func podView(pod *corev1.Pod) models.PodView {
	view := models.PodView{
		Name:  pod.Name,
		Phase: models.PodPhase(pod.Status.Phase),
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			view.Ready = cond.Status == corev1.ConditionTrue
		}
	}

	best, bestRank := "", 99
	statuses := append(append([]corev1.ContainerStatus(nil), pod.Status.InitContainerStatuses...), pod.Status.ContainerStatuses...)
	for _, cs := range statuses {
		view.RestartCount += int(cs.RestartCount)
		if cs.State.Waiting == nil || cs.State.Waiting.Reason == "" {
			continue
		}
		if rank := waitingReasonRank(cs.State.Waiting.Reason); rank < bestRank {
			best, bestRank = cs.State.Waiting.Reason, rank
		}
	}
	if best == "" {
		best = pod.Status.Reason
	}
	view.Reason = best
	return view
}

func workloadView(dep *appsv1.Deployment) models.WorkloadView {
	desired := int32(1)
	if dep.Spec.Replicas != nil {
		desired = *dep.Spec.Replicas
	}
	return models.WorkloadView{
		Kind:              "Deployment",
		Name:              dep.Name,
		DesiredReplicas:   int(desired),
		ReadyReplicas:     int(dep.Status.ReadyReplicas),
		AvailableReplicas: int(dep.Status.AvailableReplicas),
	}
}

// eventTime picks the most specific timestamp an event carries.
func eventTime(ev *corev1.Event) time.Time {
	switch {
	case !ev.LastTimestamp.IsZero():
		return ev.LastTimestamp.Time
	case !ev.EventTime.IsZero():
		return ev.EventTime.Time
	case ev.Series != nil && !ev.Series.LastObservedTime.IsZero():
		return ev.Series.LastObservedTime.Time
	case !ev.FirstTimestamp.IsZero():
		return ev.FirstTimestamp.Time
	default:
		return ev.CreationTimestamp.Time
	}
}

func eventView(ev *corev1.Event) models.EventView {
	count := int(ev.Count)
	if ev.Series != nil && int(ev.Series.Count) > count {
		count = int(ev.Series.Count)
	}
	return models.EventView{
		Type:           models.EventType(ev.Type),
		Reason:         ev.Reason,
		Message:        ev.Message,
		InvolvedObject: models.ObjectRef{Kind: ev.InvolvedObject.Kind, Name: ev.InvolvedObject.Name},
		Timestamp:      eventTime(ev),
		Count:          count,
	}
}

func serviceView(svc *corev1.Service, slices []discoveryv1.EndpointSlice) models.ServiceView {
	view := models.ServiceView{
		Name:     svc.Name,
		Type:     string(svc.Spec.Type),
		Selector: svc.Spec.Selector,
	}
	for _, slice := range slices {
		for _, ep := range slice.Endpoints {
			// A nil Ready condition means ready.
			if ep.Conditions.Ready == nil || *ep.Conditions.Ready {
				view.ReadyEndpoints++
			} else {
				view.NotReadyEndpoints++
			}
		}
	}
	return view
}

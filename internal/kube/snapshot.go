package kube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"

	"github.com/StrawberryNinjago/platformtriage/internal/models"
	"github.com/StrawberryNinjago/platformtriage/internal/utils"
)

// ReleaseLabel is the Helm-standard instance label used when only a release
// name is supplied.
const ReleaseLabel = "app.kubernetes.io/instance"

// ErrInvalidSelector reports a label selector that does not parse.
var ErrInvalidSelector = errors.New("invalid label selector")

// eventOwnerKinds have events worth surfacing even though no listed pod or
// deployment owns them.
var eventOwnerKinds = map[string]bool{
	"ExternalSecret": true,
	"SecretStore":    true,
	"ServiceAccount": true,
}

// Source produces the snapshot a triage runs over.
type Source interface {
	Snapshot(ctx context.Context, dctx models.DetectionContext) (*models.ClusterSnapshot, error)
}

// SnapshotBuilder reads workload state from the Kubernetes API.
type SnapshotBuilder struct {
	client   kubernetes.Interface
	pageSize int64
	logger   *slog.Logger
	now      func() time.Time
}

// NewSnapshotBuilder constructs a builder. pageSize bounds each list call;
// zero disables pagination.
func NewSnapshotBuilder(client kubernetes.Interface, pageSize int64, logger *slog.Logger) *SnapshotBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotBuilder{client: client, pageSize: pageSize, logger: logger, now: time.Now}
}

// EffectiveSelector returns the label selector for dctx, deriving one from
// the release name when no selector was given.
func EffectiveSelector(dctx models.DetectionContext) string {
	if strings.TrimSpace(dctx.Selector) != "" {
		return dctx.Selector
	}
	if dctx.Release != "" {
		return ReleaseLabel + "=" + dctx.Release
	}
	return ""
}

// Snapshot lists pods, deployments, warning events and services for dctx.
// Pod and deployment failures abort; event and service failures degrade to
// an empty section.
func (b *SnapshotBuilder) Snapshot(ctx context.Context, dctx models.DetectionContext) (*models.ClusterSnapshot, error) {
	if b.client == nil {
		return nil, utils.NewAppError("snapshot", "kubernetes client not configured", nil)
	}
	selector := EffectiveSelector(dctx)
	if _, err := labels.Parse(selector); err != nil {
		return nil, utils.NewAppError("snapshot", selector, fmt.Errorf("%w: %v", ErrInvalidSelector, err))
	}

	pods, err := b.listPods(ctx, dctx.Namespace, selector)
	if err != nil {
		return nil, utils.NewAppError("snapshot", "list pods", err)
	}
	deployments, err := b.listDeployments(ctx, dctx.Namespace, selector)
	if err != nil {
		return nil, utils.NewAppError("snapshot", "list deployments", err)
	}

	snap := &models.ClusterSnapshot{CapturedAt: b.now().UTC()}
	podNames := make(map[string]bool, len(pods))
	for i := range pods {
		snap.Pods = append(snap.Pods, podView(&pods[i]))
		podNames[pods[i].Name] = true
	}
	deploymentNames := make([]string, 0, len(deployments))
	for i := range deployments {
		snap.Workloads = append(snap.Workloads, workloadView(&deployments[i]))
		deploymentNames = append(deploymentNames, deployments[i].Name)
	}

	events, err := b.listWarningEvents(ctx, dctx.Namespace)
	if err != nil {
		b.logger.Warn("warning events unavailable", slog.String("namespace", dctx.Namespace), slog.Any("error", err))
	}
	snap.Events = selectEvents(events, podNames, deploymentNames, dctx.EventLimit)

	services, err := b.matchingServices(ctx, dctx.Namespace, selector, pods)
	if err != nil {
		b.logger.Warn("services unavailable", slog.String("namespace", dctx.Namespace), slog.Any("error", err))
	}
	snap.Services = services

	b.logger.Debug("snapshot built",
		slog.String("namespace", dctx.Namespace),
		slog.String("selector", selector),
		slog.Int("pods", len(snap.Pods)),
		slog.Int("deployments", len(snap.Workloads)),
		slog.Int("events", len(snap.Events)),
		slog.Int("services", len(snap.Services)),
	)
	return snap, nil
}

func (b *SnapshotBuilder) listPods(ctx context.Context, namespace, selector string) ([]corev1.Pod, error) {
	var out []corev1.Pod
	opts := metav1.ListOptions{LabelSelector: selector, Limit: b.pageSize}
	for {
		list, err := b.client.CoreV1().Pods(namespace).List(ctx, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, list.Items...)
		if list.Continue == "" {
			break
		}
		opts.Continue = list.Continue
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (b *SnapshotBuilder) listDeployments(ctx context.Context, namespace, selector string) ([]appsv1.Deployment, error) {
	var out []appsv1.Deployment
	opts := metav1.ListOptions{LabelSelector: selector, Limit: b.pageSize}
	for {
		list, err := b.client.AppsV1().Deployments(namespace).List(ctx, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, list.Items...)
		if list.Continue == "" {
			break
		}
		opts.Continue = list.Continue
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (b *SnapshotBuilder) listWarningEvents(ctx context.Context, namespace string) ([]corev1.Event, error) {
	var out []corev1.Event
	opts := metav1.ListOptions{
		FieldSelector: fields.OneTermEqualSelector("type", corev1.EventTypeWarning).String(),
		Limit:         b.pageSize,
	}
	for {
		list, err := b.client.CoreV1().Events(namespace).List(ctx, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, list.Items...)
		if list.Continue == "" {
			break
		}
		opts.Continue = list.Continue
	}
	return out, nil
}

// selectEvents keeps warning events about the matched objects, newest first,
// truncated to limit when limit is positive.
func selectEvents(events []corev1.Event, podNames map[string]bool, deploymentNames []string, limit int) []models.EventView {
	kept := make([]corev1.Event, 0, len(events))
	for _, ev := range events {
		if ev.Type != corev1.EventTypeWarning {
			continue
		}
		if involvesWorkload(ev.InvolvedObject, podNames, deploymentNames) {
			kept = append(kept, ev)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		ti, tj := eventTime(&kept[i]), eventTime(&kept[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return kept[i].Name < kept[j].Name
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}

	out := make([]models.EventView, 0, len(kept))
	for i := range kept {
		out = append(out, eventView(&kept[i]))
	}
	return out
}

func involvesWorkload(ref corev1.ObjectReference, podNames map[string]bool, deploymentNames []string) bool {
	switch ref.Kind {
	case "Pod":
		return podNames[ref.Name]
	case "Deployment":
		for _, name := range deploymentNames {
			if ref.Name == name {
				return true
			}
		}
	case "ReplicaSet":
		for _, name := range deploymentNames {
			if strings.HasPrefix(ref.Name, name+"-") {
				return true
			}
		}
	default:
		return eventOwnerKinds[ref.Kind]
	}
	return false
}

// matchingServices returns services labelled like the workload or selecting
// at least one of its pods, with endpoint readiness taken from their
// EndpointSlices.
func (b *SnapshotBuilder) matchingServices(ctx context.Context, namespace, selector string, pods []corev1.Pod) ([]models.ServiceView, error) {
	if len(pods) == 0 {
		return nil, nil
	}
	workloadSel, err := labels.Parse(selector)
	if err != nil {
		return nil, err
	}
	list, err := b.client.CoreV1().Services(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list.Items, func(i, j int) bool { return list.Items[i].Name < list.Items[j].Name })

	var out []models.ServiceView
	for i := range list.Items {
		svc := &list.Items[i]
		if len(svc.Spec.Selector) == 0 {
			continue
		}
		labelled := !workloadSel.Empty() && workloadSel.Matches(labels.Set(svc.Labels))
		if !labelled && !selectsAnyPod(svc.Spec.Selector, pods) {
			continue
		}
		slices, err := b.client.DiscoveryV1().EndpointSlices(namespace).List(ctx, metav1.ListOptions{
			LabelSelector: labels.SelectorFromSet(labels.Set{discoveryv1.LabelServiceName: svc.Name}).String(),
		})
		if err != nil {
			return out, fmt.Errorf("list endpointslices for %s: %w", svc.Name, err)
		}
		out = append(out, serviceView(svc, slices.Items))
	}
	return out, nil
}

func selectsAnyPod(selector map[string]string, pods []corev1.Pod) bool {
	sel := labels.SelectorFromSet(selector)
	for i := range pods {
		if sel.Matches(labels.Set(pods[i].Labels)) {
			return true
		}
	}
	return false
}

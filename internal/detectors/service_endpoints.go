package detectors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/StrawberryNinjago/platformtriage/internal/models"
)

// ServiceEndpointsDetector flags services that route to nothing while ready
// pods exist, which usually means the selector does not match pod labels.
type ServiceEndpointsDetector struct{}

// NewServiceEndpointsDetector constructs a service endpoints detector.
func NewServiceEndpointsDetector() *ServiceEndpointsDetector {
	return &ServiceEndpointsDetector{}
}

func (d *ServiceEndpointsDetector) ID() string { return "service-endpoints" }

func (d *ServiceEndpointsDetector) Order() int { return 40 }

func (d *ServiceEndpointsDetector) Detect(snap *models.ClusterSnapshot, dctx models.DetectionContext) []models.Finding {
	if snap == nil || len(snap.Services) == 0 || !hasReadyPod(snap.Pods) {
		return nil
	}

	var evidence []models.Evidence
	for _, svc := range snap.Services {
		if len(svc.Selector) == 0 || svc.ReadyEndpoints > 0 {
			continue
		}
		evidence = append(evidence, models.Evidence{
			Kind:    "Service",
			Name:    svc.Name,
			Message: fmt.Sprintf("selector %s; ready endpoints=0 notReady=%d", formatSelector(svc.Selector), svc.NotReadyEndpoints),
		})
	}
	if len(evidence) == 0 {
		return nil
	}

	return []models.Finding{{
		Code:     models.CodeServiceSelectorMismatch,
		Severity: models.SeverityWarn,
		Owner:    models.OwnerApp,
		Title:    "Service has no ready endpoints",
		Explanation: fmt.Sprintf("%s no ready endpoints although ready pods exist. Traffic sent to the service will fail.",
			pluralize(len(evidence), "service has", "services have")),
		Evidence: evidence,
		NextSteps: []string{
			"Compare the service selector with the pod template labels",
			"Check that targetPort matches a named or numbered container port",
		},
	}}
}

func hasReadyPod(pods []models.PodView) bool {
	for _, pod := range pods {
		if pod.IsRunning() && pod.Ready {
			return true
		}
	}
	return false
}

func formatSelector(selector map[string]string) string {
	keys := make([]string, 0, len(selector))
	for k := range selector {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+selector[k])
	}
	return strings.Join(pairs, ",")
}

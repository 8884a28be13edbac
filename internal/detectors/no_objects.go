package detectors

import (
	"fmt"
	"strings"

	"github.com/StrawberryNinjago/platformtriage/internal/models"
)

// NoMatchingObjectsDetector gates the triage: when nothing matched the query
// health cannot be assessed.
type NoMatchingObjectsDetector struct{}

// NewNoMatchingObjectsDetector constructs the gating detector.
func NewNoMatchingObjectsDetector() *NoMatchingObjectsDetector {
	return &NoMatchingObjectsDetector{}
}

func (d *NoMatchingObjectsDetector) ID() string { return "no-matching-objects" }

func (d *NoMatchingObjectsDetector) Order() int { return -100 }

// Detect emits NO_MATCHING_OBJECTS when the snapshot has no pods and no
// deployments.
func (d *NoMatchingObjectsDetector) Detect(snap *models.ClusterSnapshot, dctx models.DetectionContext) []models.Finding {
	if !snap.IsEmpty() {
		return nil
	}

	scope := []string{fmt.Sprintf("namespace %q", dctx.Namespace)}
	if dctx.Selector != "" {
		scope = append(scope, fmt.Sprintf("selector %q", dctx.Selector))
	}
	if dctx.Release != "" {
		scope = append(scope, fmt.Sprintf("release %q", dctx.Release))
	}

	return []models.Finding{{
		Code:     models.CodeNoMatchingObjects,
		Severity: models.SeverityError,
		Owner:    models.OwnerUnknown,
		Title:    "No pods or deployments matched",
		Explanation: fmt.Sprintf("No pods or deployments were found for %s. Health cannot be assessed; "+
			"this does not mean the workload is healthy.", strings.Join(scope, ", ")),
		Evidence: []models.Evidence{{Kind: "Namespace", Name: dctx.Namespace}},
		NextSteps: []string{
			"Verify the namespace and label selector match the workload's labels",
			"Check that the release was installed into this namespace",
			"Confirm the caller has list permissions on pods and deployments",
		},
	}}
}

package detectors

import (
	"fmt"

	"github.com/StrawberryNinjago/platformtriage/internal/models"
)

// Detector implements one failure-detection heuristic over a snapshot.
// Implementations must be pure: missing evidence yields no findings, never an
// error.
type Detector interface {
	ID() string
	Order() int
	Detect(snap *models.ClusterSnapshot, dctx models.DetectionContext) []models.Finding
}

// Default returns the statically registered detectors. The event detector
// classifies warnings with mapper, or with the built-in table when mapper is
// nil.
func Default(mapper *EventMapper) []Detector {
	if mapper == nil {
		mapper = NewEventMapper(nil)
	}
	return []Detector{
		NewNoMatchingObjectsDetector(),
		NewPodPhaseDetector(),
		NewPodRestartsDetector(),
		NewWarningEventsDetector(mapper),
		NewServiceEndpointsDetector(),
	}
}

func podEvidence(pod models.PodView, message string) models.Evidence {
	return models.Evidence{Kind: "Pod", Name: pod.Name, Message: message}
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}

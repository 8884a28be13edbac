package detectors

import (
	"fmt"

	"github.com/StrawberryNinjago/platformtriage/internal/models"
)

type eventTemplate struct {
	explanation string
	nextSteps   []string
}

var eventTemplates = map[models.FailureCode]eventTemplate{
	models.CodeExternalSecretResolutionFailed: {
		explanation: "Secrets sourced from an external secret store could not be resolved, so pods depending on them cannot start.",
		nextSteps: []string{
			"Check the ExternalSecret status conditions and the referenced SecretStore",
			"Verify the remote key exists in the backing secret manager",
			"Confirm the store's credentials or workload identity are still valid",
		},
	},
	models.CodeBadConfig: {
		explanation: "Containers reference configuration that does not exist or lacks the expected keys.",
		nextSteps: []string{
			"Verify every ConfigMap and Secret referenced by env, envFrom and volumes exists in the namespace",
			"Check referenced keys against the ConfigMap or Secret data",
		},
	},
	models.CodeRBACDenied: {
		explanation: "A controller or service account was denied by RBAC while acting on behalf of the workload.",
		nextSteps: []string{
			"Inspect the denied verb and resource in the event message",
			"Review the Role/RoleBinding granted to the service account",
		},
	},
	models.CodeVolumeMountFailed: {
		explanation: "Volumes required by the pods could not be attached or mounted.",
		nextSteps: []string{
			"Check PersistentVolumeClaim binding and storage class provisioning",
			"Inspect the CSI driver or node plugin logs on the affected nodes",
		},
	},
}

// WarningEventsDetector turns classified warning events into findings, one
// per failure code.
type WarningEventsDetector struct {
	mapper *EventMapper
}

// NewWarningEventsDetector constructs the event detector around mapper.
func NewWarningEventsDetector(mapper *EventMapper) *WarningEventsDetector {
	if mapper == nil {
		mapper = NewEventMapper(nil)
	}
	return &WarningEventsDetector{mapper: mapper}
}

func (d *WarningEventsDetector) ID() string { return "warning-events" }

func (d *WarningEventsDetector) Order() int { return 30 }

type eventGroup struct {
	code     models.FailureCode
	first    EventRule
	lead     models.EventView
	evidence []models.Evidence
}

// Detect classifies every warning event and groups mapped events by code in
// first-occurrence order.
func (d *WarningEventsDetector) Detect(snap *models.ClusterSnapshot, dctx models.DetectionContext) []models.Finding {
	warnings := snap.WarningEvents()
	if len(warnings) == 0 {
		return nil
	}

	var groups []*eventGroup
	byCode := make(map[models.FailureCode]*eventGroup)
	for _, ev := range warnings {
		rule, ok := d.mapper.Classify(ev)
		if !ok {
			continue
		}
		group, seen := byCode[rule.Code]
		if !seen {
			group = &eventGroup{code: rule.Code, first: rule, lead: ev}
			byCode[rule.Code] = group
			groups = append(groups, group)
		}
		group.evidence = append(group.evidence, models.Evidence{
			Kind:    ev.InvolvedObject.Kind,
			Name:    ev.InvolvedObject.Name,
			Message: ev.Message,
		})
	}

	findings := make([]models.Finding, 0, len(groups))
	for _, group := range groups {
		findings = append(findings, group.finding())
	}
	return findings
}

func (g *eventGroup) finding() models.Finding {
	count := len(g.evidence)
	f := models.Finding{
		Code:     g.code,
		Severity: g.first.Severity,
		Owner:    g.first.Owner,
		Title:    g.first.RenderTitle(g.lead, count),
		Evidence: g.evidence,
	}
	if f.Title == "" {
		f.Title = string(g.code)
	}
	if tmpl, ok := eventTemplates[g.code]; ok {
		f.Explanation = tmpl.explanation
		f.NextSteps = append([]string(nil), tmpl.nextSteps...)
		return f
	}
	f.Explanation = fmt.Sprintf("%s classified as %s.", pluralize(count, "warning event was", "warning events were"), g.code)
	f.NextSteps = []string{"Inspect the referenced objects with kubectl describe"}
	return f
}

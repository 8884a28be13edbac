package detectors

import (
	"strconv"
	"strings"

	"github.com/StrawberryNinjago/platformtriage/internal/models"
)

// EventMatch is a predicate over a warning event. Empty fields match
// anything; all non-empty fields must match.
type EventMatch struct {
	// Reasons matches when the event reason equals any entry.
	Reasons []string
	// Kinds matches when the involved object kind equals any entry.
	Kinds []string
	// MessageContains matches when the message contains any entry, case-insensitively.
	MessageContains []string
	// MessageRequires matches when the message contains every entry, case-insensitively.
	MessageRequires []string
}

// Matches evaluates the predicate against ev.
func (m EventMatch) Matches(ev models.EventView) bool {
	if len(m.Reasons) > 0 && !containsFold(m.Reasons, ev.Reason) {
		return false
	}
	if len(m.Kinds) > 0 && !containsFold(m.Kinds, ev.InvolvedObject.Kind) {
		return false
	}
	msg := strings.ToLower(ev.Message)
	if len(m.MessageContains) > 0 {
		found := false
		for _, needle := range m.MessageContains {
			if needle != "" && strings.Contains(msg, strings.ToLower(needle)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, needle := range m.MessageRequires {
		if !strings.Contains(msg, strings.ToLower(needle)) {
			return false
		}
	}
	return true
}

// EventRule maps matching events to a failure category.
type EventRule struct {
	ID       string
	Match    EventMatch
	Code     models.FailureCode
	Severity models.Severity
	Owner    models.Owner
	// Title may reference {kind}, {name} and {count}.
	Title string
}

// RenderTitle expands the title template for a group of events led by first.
func (r EventRule) RenderTitle(first models.EventView, count int) string {
	return strings.NewReplacer(
		"{kind}", first.InvolvedObject.Kind,
		"{name}", first.InvolvedObject.Name,
		"{count}", strconv.Itoa(count),
	).Replace(r.Title)
}

// builtinEventRules is evaluated first-match-wins. BackOff, FailedScheduling
// and Unhealthy are intentionally absent: the pod detectors consume them as
// corroboration.
var builtinEventRules = []EventRule{
	{
		ID:       "external-secret-object",
		Match:    EventMatch{Kinds: []string{"ExternalSecret", "SecretStore", "ClusterSecretStore"}},
		Code:     models.CodeExternalSecretResolutionFailed,
		Severity: models.SeverityError,
		Owner:    models.OwnerPlatform,
		Title:    "External secret {name} failing to sync",
	},
	{
		ID:       "external-secret-sync-error",
		Match:    EventMatch{Reasons: []string{"SecretSyncedError"}},
		Code:     models.CodeExternalSecretResolutionFailed,
		Severity: models.SeverityError,
		Owner:    models.OwnerPlatform,
		Title:    "External secret {name} failing to sync",
	},
	{
		ID: "csi-secret-store-mount",
		Match: EventMatch{
			Reasons:         []string{"FailedMount"},
			MessageContains: []string{"secrets-store", "secretproviderclass"},
		},
		Code:     models.CodeExternalSecretResolutionFailed,
		Severity: models.SeverityError,
		Owner:    models.OwnerPlatform,
		Title:    "Secret store volume cannot be mounted",
	},
	{
		ID:       "container-config-error",
		Match:    EventMatch{Reasons: []string{"CreateContainerConfigError"}},
		Code:     models.CodeBadConfig,
		Severity: models.SeverityError,
		Owner:    models.OwnerApp,
		Title:    "Container configuration invalid",
	},
	{
		ID:       "missing-config-key",
		Match:    EventMatch{Reasons: []string{"Failed"}, MessageContains: []string{"couldn't find key"}},
		Code:     models.CodeBadConfig,
		Severity: models.SeverityError,
		Owner:    models.OwnerApp,
		Title:    "Container configuration invalid",
	},
	{
		ID: "missing-config-reference",
		Match: EventMatch{
			Reasons:         []string{"Failed", "FailedMount"},
			MessageContains: []string{"configmap", "secret"},
			MessageRequires: []string{"not found"},
		},
		Code:     models.CodeBadConfig,
		Severity: models.SeverityError,
		Owner:    models.OwnerApp,
		Title:    "Referenced ConfigMap or Secret missing",
	},
	{
		ID:       "rbac-forbidden-reason",
		Match:    EventMatch{Reasons: []string{"Forbidden"}},
		Code:     models.CodeRBACDenied,
		Severity: models.SeverityError,
		Owner:    models.OwnerSecurity,
		Title:    "Request denied by RBAC",
	},
	// Quota and admission rejections also say "forbidden"; RBAC denials
	// additionally say the subject "cannot" perform the verb.
	{
		ID:       "rbac-forbidden-message",
		Match:    EventMatch{MessageRequires: []string{"forbidden", "cannot"}},
		Code:     models.CodeRBACDenied,
		Severity: models.SeverityError,
		Owner:    models.OwnerSecurity,
		Title:    "Request denied by RBAC",
	},
	{
		ID:       "volume-mount",
		Match:    EventMatch{Reasons: []string{"FailedMount", "FailedAttachVolume"}},
		Code:     models.CodeVolumeMountFailed,
		Severity: models.SeverityError,
		Owner:    models.OwnerPlatform,
		Title:    "Volume cannot be mounted",
	},
}

// BuiltinEventRules returns a copy of the built-in classification table.
func BuiltinEventRules() []EventRule {
	return append([]EventRule(nil), builtinEventRules...)
}

// EventMapper classifies warning events with an ordered rule table.
type EventMapper struct {
	rules []EventRule
}

// NewEventMapper builds a mapper evaluating extra before the built-in rules,
// so operator-supplied rules can override the defaults.
func NewEventMapper(extra []EventRule) *EventMapper {
	rules := make([]EventRule, 0, len(extra)+len(builtinEventRules))
	rules = append(rules, extra...)
	rules = append(rules, builtinEventRules...)
	return &EventMapper{rules: rules}
}

// Classify returns the first rule matching ev. Unmapped events return false.
func (m *EventMapper) Classify(ev models.EventView) (EventRule, bool) {
	if m == nil || !ev.IsWarning() {
		return EventRule{}, false
	}
	for _, rule := range m.rules {
		if rule.Match.Matches(ev) {
			return rule, true
		}
	}
	return EventRule{}, false
}

// Rules returns the rules in evaluation order.
func (m *EventMapper) Rules() []EventRule {
	if m == nil {
		return nil
	}
	return append([]EventRule(nil), m.rules...)
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

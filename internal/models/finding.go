package models

// Severity captures the impact level of a finding.
type Severity string

const (
	SeverityError Severity = "ERROR"
	SeverityWarn  Severity = "WARN"
	SeverityInfo  Severity = "INFO"
)

// ParseSeverity maps a case-sensitive severity name to a Severity.
func ParseSeverity(value string) (Severity, bool) {
	switch Severity(value) {
	case SeverityError, SeverityWarn, SeverityInfo:
		return Severity(value), true
	}
	return "", false
}

// Owner names the team most likely to act on a finding.
type Owner string

const (
	OwnerApp      Owner = "APP"
	OwnerPlatform Owner = "PLATFORM"
	OwnerSecurity Owner = "SECURITY"
	OwnerUnknown  Owner = "UNKNOWN"
)

// ParseOwner maps an owner name to an Owner.
func ParseOwner(value string) (Owner, bool) {
	switch Owner(value) {
	case OwnerApp, OwnerPlatform, OwnerSecurity, OwnerUnknown:
		return Owner(value), true
	}
	return "", false
}

// FailureCode is the closed set of failure categories detectors may emit.
type FailureCode string

const (
	CodeNoMatchingObjects              FailureCode = "NO_MATCHING_OBJECTS"
	CodeImagePullFailed                FailureCode = "IMAGE_PULL_FAILED"
	CodeCrashLoop                      FailureCode = "CRASH_LOOP"
	CodeReadinessCheckFailed           FailureCode = "READINESS_CHECK_FAILED"
	CodeInsufficientResources          FailureCode = "INSUFFICIENT_RESOURCES"
	CodePodRestartsDetected            FailureCode = "POD_RESTARTS_DETECTED"
	CodeBadConfig                      FailureCode = "BAD_CONFIG"
	CodeExternalSecretResolutionFailed FailureCode = "EXTERNAL_SECRET_RESOLUTION_FAILED"
	CodeRBACDenied                     FailureCode = "RBAC_DENIED"
	CodeVolumeMountFailed              FailureCode = "VOLUME_MOUNT_FAILED"
	CodeServiceSelectorMismatch        FailureCode = "SERVICE_SELECTOR_MISMATCH"
)

var knownCodes = map[FailureCode]struct{}{
	CodeNoMatchingObjects:              {},
	CodeImagePullFailed:                {},
	CodeCrashLoop:                      {},
	CodeReadinessCheckFailed:           {},
	CodeInsufficientResources:          {},
	CodePodRestartsDetected:            {},
	CodeBadConfig:                      {},
	CodeExternalSecretResolutionFailed: {},
	CodeRBACDenied:                     {},
	CodeVolumeMountFailed:              {},
	CodeServiceSelectorMismatch:        {},
}

// Known reports whether the code belongs to the closed set.
func (c FailureCode) Known() bool {
	_, ok := knownCodes[c]
	return ok
}

// Evidence references one concrete snapshot object supporting a finding.
type Evidence struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
}

// Finding is one detector's conclusion about a possible failure cause.
type Finding struct {
	Code        FailureCode `json:"code"`
	Severity    Severity    `json:"severity"`
	Owner       Owner       `json:"owner"`
	Title       string      `json:"title"`
	Explanation string      `json:"explanation"`
	Evidence    []Evidence  `json:"evidence"`
	NextSteps   []string    `json:"nextSteps"`
}

package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/StrawberryNinjago/platformtriage/internal/detectors"
	"github.com/StrawberryNinjago/platformtriage/internal/models"
	"github.com/StrawberryNinjago/platformtriage/internal/utils"
)

// RulePackFile is the YAML root of an operator rule pack.
type RulePackFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec is one event classification rule as written in YAML.
type RuleSpec struct {
	ID       string        `yaml:"id"`
	Match    RuleMatchSpec `yaml:"match"`
	Code     string        `yaml:"code"`
	Severity string        `yaml:"severity"`
	Owner    string        `yaml:"owner"`
	Title    string        `yaml:"title"`
}

// RuleMatchSpec mirrors detectors.EventMatch.
type RuleMatchSpec struct {
	Reasons         []string `yaml:"reasons"`
	Kinds           []string `yaml:"kinds"`
	MessageContains []string `yaml:"messageContains"`
	MessageRequires []string `yaml:"messageRequires"`
}

// LoadRulePack reads event rules from path. An empty path or a missing file
// yields no rules and no error.
func LoadRulePack(path string, logger *slog.Logger) ([]detectors.EventRule, error) {
	if path == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("rule pack not found, using built-in event rules", slog.String("path", path))
			return nil, nil
		}
		return nil, utils.NewAppError("rules.load", "read rule pack", err)
	}
	rules, err := ParseRulePack(data)
	if err != nil {
		return nil, utils.NewAppError("rules.load", path, err)
	}
	logger.Info("rule pack loaded", slog.String("path", path), slog.Int("rules", len(rules)))
	return rules, nil
}

// ParseRulePack decodes and validates a YAML rule pack.
func ParseRulePack(data []byte) ([]detectors.EventRule, error) {
	var file RulePackFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode rule pack: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Rules))
	rules := make([]detectors.EventRule, 0, len(file.Rules))
	for i, spec := range file.Rules {
		rule, err := spec.toEventRule()
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, spec.ID, err)
		}
		if _, dup := seen[rule.ID]; dup {
			return nil, fmt.Errorf("rule %d: duplicate id %q", i, rule.ID)
		}
		seen[rule.ID] = struct{}{}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (s RuleSpec) toEventRule() (detectors.EventRule, error) {
	if strings.TrimSpace(s.ID) == "" {
		return detectors.EventRule{}, errors.New("id is required")
	}
	code := models.FailureCode(strings.ToUpper(strings.TrimSpace(s.Code)))
	if !code.Known() {
		return detectors.EventRule{}, fmt.Errorf("unknown failure code %q", s.Code)
	}
	if code == models.CodeNoMatchingObjects {
		return detectors.EventRule{}, fmt.Errorf("code %s is reserved for the gating detector", code)
	}
	severity, ok := models.ParseSeverity(strings.ToUpper(strings.TrimSpace(s.Severity)))
	if !ok {
		return detectors.EventRule{}, fmt.Errorf("unknown severity %q", s.Severity)
	}
	owner := models.OwnerUnknown
	if s.Owner != "" {
		if owner, ok = models.ParseOwner(strings.ToUpper(strings.TrimSpace(s.Owner))); !ok {
			return detectors.EventRule{}, fmt.Errorf("unknown owner %q", s.Owner)
		}
	}
	match := detectors.EventMatch{
		Reasons:         s.Match.Reasons,
		Kinds:           s.Match.Kinds,
		MessageContains: s.Match.MessageContains,
		MessageRequires: s.Match.MessageRequires,
	}
	if len(match.Reasons)+len(match.Kinds)+len(match.MessageContains)+len(match.MessageRequires) == 0 {
		return detectors.EventRule{}, errors.New("match must constrain at least one field")
	}
	title := s.Title
	if title == "" {
		title = string(code)
	}
	return detectors.EventRule{
		ID:       s.ID,
		Match:    match,
		Code:     code,
		Severity: severity,
		Owner:    owner,
		Title:    title,
	}, nil
}

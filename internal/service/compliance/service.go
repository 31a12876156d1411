package compliance

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/patentworks/security-core/internal/domain/compliance"
	"github.com/patentworks/security-core/internal/domain/errors"
)

// Service is the compliance evaluator: a registry of rules with named check
// procedures, evaluated on demand against the store, plus the retention
// policy catalogue.
type Service struct {
	store  Store
	sink   EventSink
	logger *zap.Logger

	mu       sync.Mutex
	rules    []compliance.Rule
	policies map[string]compliance.RetentionPolicy
	checks   map[string]checkFn

	now func() time.Time
}

// NewService creates a compliance evaluator seeded with the default rule set
// and check registry.
func NewService(store Store, sink EventSink, logger *zap.Logger) *Service {
	s := &Service{
		store:    store,
		sink:     sink,
		logger:   logger,
		policies: make(map[string]compliance.RetentionPolicy),
		now:      time.Now,
	}
	s.checks = s.defaultChecks()
	s.rules = defaultRules()
	s.sortRulesLocked()
	return s
}

// defaultRules is the rule set every evaluator starts with. Rules can be
// disabled or replaced through the registry but the defaults cover the
// frameworks the platform is audited against.
func defaultRules() []compliance.Rule {
	return []compliance.Rule{
		{
			ID:             "sox-audit-trail",
			Name:           "Audit trail completeness",
			Regulation:     compliance.RegulationSOX,
			Category:       "auditability",
			Description:    "Every financial-relevant action must land in the audit log",
			RequiredChecks: []string{"audit_log_present", "audit_log_populated"},
			CheckInterval:  compliance.IntervalRealtime,
			Priority:       5,
			Enabled:        true,
		},
		{
			ID:             "gdpr-consent",
			Name:           "Consent records on file",
			Regulation:     compliance.RegulationGDPR,
			Category:       "data_protection",
			Description:    "Processing personal data requires recorded consent",
			RequiredChecks: []string{"consent_records_present", "consent_records_populated"},
			CheckInterval:  compliance.IntervalDaily,
			Priority:       10,
			Enabled:        true,
		},
		{
			ID:             "iso-encryption",
			Name:           "Encryption settings configured",
			Regulation:     compliance.RegulationISO,
			Category:       "cryptography",
			Description:    "Data at rest must have an active encryption configuration",
			RequiredChecks: []string{"encryption_settings_present"},
			CheckInterval:  compliance.IntervalDaily,
			Priority:       10,
			Enabled:        true,
		},
		{
			ID:             "iso-access-control",
			Name:           "Access control catalogue",
			Regulation:     compliance.RegulationISO,
			Category:       "access_control",
			Description:    "Role and permission assignments must be centrally recorded",
			RequiredChecks: []string{"access_controls_present"},
			CheckInterval:  compliance.IntervalHourly,
			Priority:       15,
			Enabled:        true,
		},
		{
			ID:             "gdpr-retention",
			Name:           "Retention policies defined",
			Regulation:     compliance.RegulationGDPR,
			Category:       "data_protection",
			Description:    "Every stored data type needs an enabled retention policy",
			RequiredChecks: []string{"retention_policies_defined"},
			CheckInterval:  compliance.IntervalWeekly,
			Priority:       20,
			Enabled:        true,
		},
		{
			ID:             "backup-coverage",
			Name:           "Backup coverage",
			Regulation:     compliance.RegulationCustom,
			Category:       "resilience",
			Description:    "Backups must exist for disaster recovery",
			RequiredChecks: []string{"backups_present"},
			CheckInterval:  compliance.IntervalDaily,
			Priority:       30,
			Enabled:        true,
		},
	}
}

// AddRule registers a rule and keeps the registry sorted by priority.
func (s *Service) AddRule(rule compliance.Rule) error {
	if rule.ID == "" {
		return errors.NewValidationError("INVALID_RULE", "rule id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rules {
		if r.ID == rule.ID {
			return errors.ErrDuplicateRule
		}
	}
	s.rules = append(s.rules, rule)
	s.sortRulesLocked()
	return nil
}

// UpdateRule replaces a rule by id.
func (s *Service) UpdateRule(rule compliance.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rules {
		if r.ID == rule.ID {
			s.rules[i] = rule
			s.sortRulesLocked()
			return nil
		}
	}
	return errors.ErrRuleNotFound
}

// DeleteRule removes a rule by id.
func (s *Service) DeleteRule(ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rules {
		if r.ID == ruleID {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return errors.ErrRuleNotFound
}

// GetRules returns the registry sorted ascending by priority.
func (s *Service) GetRules() []compliance.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]compliance.Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

func (s *Service) sortRulesLocked() {
	sort.SliceStable(s.rules, func(i, j int) bool {
		return s.rules[i].Priority < s.rules[j].Priority
	})
}

// SetRetentionPolicy creates or replaces the policy for a data type.
func (s *Service) SetRetentionPolicy(policy compliance.RetentionPolicy) error {
	if policy.ID == "" || policy.DataType == "" {
		return errors.NewValidationError("INVALID_POLICY", "policy id and data type are required")
	}
	if policy.RetentionDays <= 0 {
		return errors.NewValidationError("INVALID_POLICY", "retention days must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	policy.UpdatedAt = s.now()
	s.policies[policy.ID] = policy
	return nil
}

// GetRetentionPolicies returns all policies sorted by data type.
func (s *Service) GetRetentionPolicies() []compliance.RetentionPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]compliance.RetentionPolicy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DataType < out[j].DataType
	})
	return out
}

// DeleteRetentionPolicy removes a policy by id.
func (s *Service) DeleteRetentionPolicy(policyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[policyID]; !ok {
		return errors.ErrPolicyNotFound
	}
	delete(s.policies, policyID)
	return nil
}

// enabledPolicyCountLocked is used by the retention check. Caller holds s.mu.
func (s *Service) enabledPolicyCountLocked() int {
	count := 0
	for _, p := range s.policies {
		if p.Enabled {
			count++
		}
	}
	return count
}

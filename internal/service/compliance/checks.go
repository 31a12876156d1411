package compliance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/patentworks/security-core/internal/domain/audit"
	"github.com/patentworks/security-core/internal/domain/compliance"
)

// checkOutcome is the verdict of one named check procedure.
type checkOutcome struct {
	Status         compliance.CheckStatus
	Violation      string
	Recommendation string
}

// checkFn is one named check procedure. Store failures and panics inside a
// check fail that check; they never abort the evaluation run.
type checkFn func(ctx context.Context) checkOutcome

func pass() checkOutcome {
	return checkOutcome{Status: compliance.CheckPass}
}

func fail(violation, recommendation string) checkOutcome {
	return checkOutcome{Status: compliance.CheckFail, Violation: violation, Recommendation: recommendation}
}

func warn(violation, recommendation string) checkOutcome {
	return checkOutcome{Status: compliance.CheckWarning, Violation: violation, Recommendation: recommendation}
}

// defaultChecks builds the named check registry. Most checks are schema and
// row-count probes; the retention check inspects the evaluator's own policy
// catalogue.
func (s *Service) defaultChecks() map[string]checkFn {
	return map[string]checkFn{
		"audit_log_present": s.tablePresent("audit_logs",
			"Create the audit log table and route all actions through it"),
		"audit_log_populated": s.tablePopulated("audit_logs",
			"Verify the audit pipeline is writing entries"),
		"consent_records_present": s.tablePresent("consent_records",
			"Create the consent records table before processing personal data"),
		"consent_records_populated": s.tablePopulated("consent_records",
			"Collect consent from existing users"),
		"encryption_settings_present": s.tablePopulated("encryption_settings",
			"Configure at-rest encryption for stored documents"),
		"access_controls_present": s.tablePopulated("access_controls",
			"Record role and permission assignments centrally"),
		"backups_present": s.tablePopulated("backups",
			"Schedule recurring backups"),
		"retention_policies_defined": s.retentionPoliciesDefined,
	}
}

// tablePresent fails when the table is missing or the schema cannot be read.
func (s *Service) tablePresent(table, recommendation string) checkFn {
	return func(ctx context.Context) checkOutcome {
		exists, err := s.store.TableExists(ctx, table)
		if err != nil {
			return fail(fmt.Sprintf("could not verify table %s: %v", table, err), recommendation)
		}
		if !exists {
			return fail(fmt.Sprintf("required table %s does not exist", table), recommendation)
		}
		return pass()
	}
}

// tablePopulated fails when the table is missing and warns when it exists but
// holds no rows.
func (s *Service) tablePopulated(table, recommendation string) checkFn {
	return func(ctx context.Context) checkOutcome {
		exists, err := s.store.TableExists(ctx, table)
		if err != nil {
			return fail(fmt.Sprintf("could not verify table %s: %v", table, err), recommendation)
		}
		if !exists {
			return fail(fmt.Sprintf("required table %s does not exist", table), recommendation)
		}

		rows, err := s.store.CountRows(ctx, table)
		if err != nil {
			return fail(fmt.Sprintf("could not count rows of %s: %v", table, err), recommendation)
		}
		if rows == 0 {
			return warn(fmt.Sprintf("table %s exists but holds no records", table), recommendation)
		}
		return pass()
	}
}

// retentionPoliciesDefined passes when at least one enabled retention policy
// is on file.
func (s *Service) retentionPoliciesDefined(ctx context.Context) checkOutcome {
	s.mu.Lock()
	count := s.enabledPolicyCountLocked()
	s.mu.Unlock()

	if count == 0 {
		return fail("no enabled retention policies are defined",
			"Define a retention policy for each stored data type")
	}
	return pass()
}

// PerformComplianceCheck evaluates enabled rules and returns one Check per
// rule. With a non-empty ruleID only that rule is evaluated; an unknown or
// disabled id yields an empty result. Every check is logged to the sink.
func (s *Service) PerformComplianceCheck(ctx context.Context, ruleID string) []compliance.Check {
	s.mu.Lock()
	rules := make([]compliance.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if !r.Enabled {
			continue
		}
		if ruleID != "" && r.ID != ruleID {
			continue
		}
		rules = append(rules, r)
	}
	s.mu.Unlock()

	checks := make([]compliance.Check, 0, len(rules))
	for _, rule := range rules {
		check := s.evaluateRule(ctx, rule)
		s.logCheck(ctx, check)
		checks = append(checks, check)
	}
	return checks
}

// evaluateRule runs every required check of a rule and folds the outcomes:
// any failure fails the rule, otherwise any warning downgrades it. A panic in
// a check procedure fails the rule with the panic value as the violation.
func (s *Service) evaluateRule(ctx context.Context, rule compliance.Rule) (check compliance.Check) {
	now := s.now()
	check = compliance.Check{
		ID:         uuid.New(),
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		Regulation: rule.Regulation,
		Status:     compliance.CheckPass,
		CheckedAt:  now,
		NextCheck:  rule.CheckInterval.NextCheckTime(now),
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("check procedure panicked",
				zap.String("rule_id", rule.ID),
				zap.Any("panic", r))
			check.Status = compliance.CheckFail
			check.Violations = append(check.Violations, fmt.Sprintf("check procedure failed: %v", r))
		}
	}()

	for _, name := range rule.RequiredChecks {
		fn, ok := s.checks[name]
		if !ok {
			check.Status = compliance.CheckFail
			check.Violations = append(check.Violations, fmt.Sprintf("unknown check procedure %q", name))
			continue
		}

		outcome := fn(ctx)
		switch outcome.Status {
		case compliance.CheckFail:
			check.Status = compliance.CheckFail
		case compliance.CheckWarning:
			if check.Status == compliance.CheckPass {
				check.Status = compliance.CheckWarning
			}
		}
		if outcome.Violation != "" {
			check.Violations = append(check.Violations, outcome.Violation)
		}
		if outcome.Recommendation != "" {
			check.Recommendations = append(check.Recommendations, outcome.Recommendation)
		}
	}

	return check
}

// logCheck writes one sink entry per evaluated check. Passing checks log at
// info severity, anything else at warning.
func (s *Service) logCheck(ctx context.Context, check compliance.Check) {
	severity := "info"
	if check.Status != compliance.CheckPass {
		severity = "warning"
	}

	s.sink.LogSecurityEvent(ctx, audit.LogEntry{
		EventType: "compliance_check",
		Message:   fmt.Sprintf("compliance check %s: %s", check.RuleID, check.Status),
		Severity:  severity,
		Metadata: map[string]interface{}{
			"rule_id":    check.RuleID,
			"regulation": string(check.Regulation),
			"status":     string(check.Status),
			"violations": check.Violations,
		},
	})
}

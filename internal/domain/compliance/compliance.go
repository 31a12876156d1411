package compliance

import (
	"time"

	"github.com/google/uuid"
)

// Regulation tags the regulatory framework a rule belongs to.
type Regulation string

const (
	RegulationGDPR   Regulation = "GDPR"
	RegulationISO    Regulation = "ISO27001"
	RegulationSOX    Regulation = "SOX"
	RegulationCustom Regulation = "custom"
)

// CheckInterval declares how often a rule must be evaluated.
type CheckInterval string

const (
	IntervalRealtime CheckInterval = "realtime"
	IntervalHourly   CheckInterval = "hourly"
	IntervalDaily    CheckInterval = "daily"
	IntervalWeekly   CheckInterval = "weekly"
	IntervalMonthly  CheckInterval = "monthly"
)

// NextCheckTime computes when a rule is due again after a check at now.
func (i CheckInterval) NextCheckTime(now time.Time) time.Time {
	switch i {
	case IntervalRealtime:
		return now.Add(5 * time.Minute)
	case IntervalHourly:
		return now.Add(time.Hour)
	case IntervalDaily:
		return now.Add(24 * time.Hour)
	case IntervalWeekly:
		return now.Add(7 * 24 * time.Hour)
	case IntervalMonthly:
		return now.AddDate(0, 1, 0)
	default:
		return now.Add(24 * time.Hour)
	}
}

// Rule is a static compliance rule definition.
type Rule struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Regulation     Regulation    `json:"regulation"`
	Category       string        `json:"category"`
	Description    string        `json:"description"`
	RequiredChecks []string      `json:"required_checks,omitempty"`
	CheckInterval  CheckInterval `json:"check_interval"`
	Priority       int           `json:"priority"`
	Enabled        bool          `json:"enabled"`
}

// CheckStatus is the verdict of one rule evaluation.
type CheckStatus string

const (
	CheckPass    CheckStatus = "pass"
	CheckFail    CheckStatus = "fail"
	CheckWarning CheckStatus = "warning"
)

// Check is the result of evaluating one rule once.
type Check struct {
	ID              uuid.UUID   `json:"id"`
	RuleID          string      `json:"rule_id"`
	RuleName        string      `json:"rule_name"`
	Regulation      Regulation  `json:"regulation"`
	Status          CheckStatus `json:"status"`
	Violations      []string    `json:"violations,omitempty"`
	Recommendations []string    `json:"recommendations,omitempty"`
	CheckedAt       time.Time   `json:"checked_at"`
	NextCheck       time.Time   `json:"next_check"`
}

// ComplianceLevel is the aggregate tier of a report.
type ComplianceLevel string

const (
	LevelCompliant          ComplianceLevel = "compliant"
	LevelPartiallyCompliant ComplianceLevel = "partially_compliant"
	LevelNonCompliant       ComplianceLevel = "non_compliant"
)

// LevelForScore maps an overall report score to its compliance tier.
func LevelForScore(score int) ComplianceLevel {
	switch {
	case score >= 90:
		return LevelCompliant
	case score >= 70:
		return LevelPartiallyCompliant
	default:
		return LevelNonCompliant
	}
}

// Report aggregates the checks of a reporting window into an overall score.
type Report struct {
	ID           uuid.UUID       `json:"id"`
	Period       string          `json:"period"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	OverallScore int             `json:"overall_score"`
	Level        ComplianceLevel `json:"compliance_level"`
	Checks       []Check         `json:"checks"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// ScoreChecks computes the overall score of a batch: the rounded percentage of
// passing checks. An empty batch scores zero.
func ScoreChecks(checks []Check) int {
	if len(checks) == 0 {
		return 0
	}
	passed := 0
	for _, c := range checks {
		if c.Status == CheckPass {
			passed++
		}
	}
	return int(float64(passed)/float64(len(checks))*100 + 0.5)
}

// RetentionPolicy declares how long a class of records is kept.
type RetentionPolicy struct {
	ID            string    `json:"id"`
	DataType      string    `json:"data_type"`
	RetentionDays int       `json:"retention_days"`
	Description   string    `json:"description,omitempty"`
	Enabled       bool      `json:"enabled"`
	UpdatedAt     time.Time `json:"updated_at"`
}

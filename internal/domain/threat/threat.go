package threat

import (
	"time"

	"github.com/google/uuid"

	"github.com/patentworks/security-core/internal/domain/values"
)

// IndicatorKind categorizes the detector family that produced an indicator.
type IndicatorKind string

const (
	KindAuthentication  IndicatorKind = "authentication"
	KindDataAccess      IndicatorKind = "data_access"
	KindSystemOperation IndicatorKind = "system_operation"
	KindNetwork         IndicatorKind = "network"
	KindFileOperation   IndicatorKind = "file_operation"
)

// Severity is the severity level of a threat indicator.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Weight returns the score delta an indicator of this severity contributes.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 25
	case SeverityHigh:
		return 15
	case SeverityMedium:
		return 10
	case SeverityLow:
		return 5
	default:
		return 0
	}
}

// Indicator is one detected threat signal. Indicators are transient: they are
// returned to the caller and folded into the subject's score, never stored as
// standalone entities.
type Indicator struct {
	ID          uuid.UUID              `json:"id"`
	Kind        IndicatorKind          `json:"kind"`
	Severity    Severity               `json:"severity"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// Level is the derived risk tier of a subject's threat score.
type Level string

const (
	LevelSafe       Level = "safe"
	LevelLowRisk    Level = "low_risk"
	LevelMediumRisk Level = "medium_risk"
	LevelHighRisk   Level = "high_risk"
	LevelCritical   Level = "critical"
)

// levelTiers are the fixed breakpoints mapping a score to its Level.
var levelTiers = []values.Tier{
	{Min: 80, Name: string(LevelCritical)},
	{Min: 60, Name: string(LevelHighRisk)},
	{Min: 40, Name: string(LevelMediumRisk)},
	{Min: 20, Name: string(LevelLowRisk)},
	{Min: 0, Name: string(LevelSafe)},
}

// LevelForScore maps a clamped score to its risk tier.
func LevelForScore(score int) Level {
	return Level(values.TierName(score, levelTiers))
}

// MaxScoreFactors bounds the list of contributing factor descriptions kept on
// a score.
const MaxScoreFactors = 10

// Score is the accumulated, decaying threat score of one subject.
type Score struct {
	SubjectID string              `json:"subject_id"`
	Value     values.DecayingScore `json:"value"`
	Level     Level               `json:"level"`
	Factors   []string            `json:"factors"`
}

// NewScore creates a zeroed score for a subject, created on the subject's
// first analyzed event.
func NewScore(subjectID string, now time.Time) *Score {
	return &Score{
		SubjectID: subjectID,
		Value:     values.NewDecayingScore(now),
		Level:     LevelSafe,
	}
}

// Apply folds a batch of indicators into the score: decay once for the whole
// batch, add each indicator's severity weight, record its description, then
// reclassify. It never fails.
func (s *Score) Apply(now time.Time, indicators []Indicator) {
	if len(indicators) == 0 {
		return
	}
	s.Value.Decay(now)
	for _, ind := range indicators {
		s.Value.Add(ind.Severity.Weight())
		s.Factors = values.AppendBounded(s.Factors, ind.Description, MaxScoreFactors)
	}
	s.Level = LevelForScore(s.Value.Score)
}

// RuleType classifies a security rule definition.
type RuleType string

const (
	RuleTypeThreshold  RuleType = "threshold"
	RuleTypePattern    RuleType = "pattern"
	RuleTypeAnomaly    RuleType = "anomaly"
	RuleTypeCompliance RuleType = "compliance"
)

// SecurityRule is a named detector/policy definition. Rules are configuration
// entities held in a priority-ordered registry; the built-in detectors are not
// driven by them. The registry is an extensibility surface, not the current
// enforcement path.
type SecurityRule struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Type       RuleType               `json:"type"`
	Conditions map[string]interface{} `json:"conditions,omitempty"`
	Actions    []string               `json:"actions,omitempty"`
	Enabled    bool                   `json:"enabled"`
	Priority   int                    `json:"priority"`
}

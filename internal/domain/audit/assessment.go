package audit

import (
	"time"

	"github.com/patentworks/security-core/internal/domain/values"
)

// MaxAssessmentFactors bounds the weighted factor history on an assessment.
const MaxAssessmentFactors = 10

// AssessmentInterval is the fixed cadence between scheduled reassessments.
const AssessmentInterval = 24 * time.Hour

// Factor is one weighted contribution to a user's risk assessment.
type Factor struct {
	Weight      float64   `json:"weight"`
	Score       int       `json:"score"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// Assessment is the accumulated risk assessment of one user, maintained
// independently of the threat scoring engine: the two look at different
// signals through different heuristics and deliberately do not share state.
type Assessment struct {
	UserID          string               `json:"user_id"`
	Value           values.DecayingScore `json:"value"`
	Level           RiskLevel            `json:"level"`
	Factors         []Factor             `json:"factors"`
	Recommendations []string             `json:"recommendations"`
	LastAssessment  time.Time            `json:"last_assessment"`
	NextAssessment  time.Time            `json:"next_assessment"`
}

// levelTiers map an assessment score to its risk level. Unlike threat levels
// there is no "safe" floor; a quiet user is simply low risk.
var assessmentTiers = []values.Tier{
	{Min: 80, Name: string(RiskCritical)},
	{Min: 60, Name: string(RiskHigh)},
	{Min: 40, Name: string(RiskMedium)},
	{Min: 0, Name: string(RiskLow)},
}

// LevelForAssessmentScore maps a clamped score to its risk level.
func LevelForAssessmentScore(score int) RiskLevel {
	return RiskLevel(values.TierName(score, assessmentTiers))
}

// delta returns the assessment score contribution of one action at this level.
func (l RiskLevel) delta() int {
	switch l {
	case RiskCritical:
		return 10
	case RiskHigh:
		return 7
	case RiskMedium:
		return 4
	default:
		return 1
	}
}

// factorWeight returns the weight recorded for a contribution at this level.
func (l RiskLevel) factorWeight() float64 {
	switch l {
	case RiskCritical:
		return 1.0
	case RiskHigh:
		return 0.8
	case RiskMedium:
		return 0.6
	default:
		return 0.3
	}
}

// NewAssessment creates a zeroed assessment for a user.
func NewAssessment(userID string, now time.Time) *Assessment {
	return &Assessment{
		UserID:          userID,
		Value:           values.NewDecayingScore(now),
		Level:           RiskLow,
		Recommendations: recommendationsFor(RiskLow),
		LastAssessment:  now,
		NextAssessment:  now.Add(AssessmentInterval),
	}
}

// Record folds one classified action into the assessment: decay since the last
// assessment, add the tier-weighted delta, reclassify, append a weighted
// factor, regenerate recommendations from the new level, and schedule the next
// assessment.
func (a *Assessment) Record(now time.Time, level RiskLevel, description string) {
	a.Value.Decay(now)
	delta := level.delta()
	a.Value.Add(delta)
	a.Level = LevelForAssessmentScore(a.Value.Score)

	a.Factors = values.AppendBounded(a.Factors, Factor{
		Weight:      level.factorWeight(),
		Score:       delta,
		Description: description,
		Timestamp:   now,
	}, MaxAssessmentFactors)

	a.Recommendations = recommendationsFor(a.Level)
	a.LastAssessment = now
	a.NextAssessment = now.Add(AssessmentInterval)
}

// recommendationsFor returns the full fixed recommendation list for a level.
// The list is regenerated wholesale on every update; nothing is carried over.
func recommendationsFor(level RiskLevel) []string {
	switch level {
	case RiskCritical:
		return []string{
			"Suspend account pending security review",
			"Require password reset and re-enrollment of MFA",
			"Escalate to the security team immediately",
			"Audit all recent data exports by this user",
		}
	case RiskHigh:
		return []string{
			"Enable enhanced session monitoring",
			"Require MFA on next login",
			"Review recent privileged operations",
		}
	case RiskMedium:
		return []string{
			"Review recent activity for anomalies",
			"Remind user of data handling policy",
		}
	default:
		return []string{
			"No action required",
		}
	}
}

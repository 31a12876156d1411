package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/patentworks/security-core/internal/domain/values"
)

// RiskLevel is the risk classification of a single audited action or of a
// user's accumulated assessment.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Trail is one immutable record of a user action. Entries are append-only and
// held in a FIFO ring capped at MaxTrailEntries.
type Trail struct {
	ID         uuid.UUID              `json:"id"`
	UserID     string                 `json:"user_id"`
	UserName   string                 `json:"user_name"`
	Action     string                 `json:"action"`
	Resource   string                 `json:"resource"`
	ResourceID string                 `json:"resource_id,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Origin     values.Origin          `json:"origin"`
	Timestamp  time.Time              `json:"timestamp"`
	RiskLevel  RiskLevel              `json:"risk_level"`
}

// MaxTrailEntries caps the in-memory audit trail; the oldest entry is evicted
// once the cap is reached.
const MaxTrailEntries = 1000

// Per-verb action weights.
var actionWeights = map[string]int{
	"login":    1,
	"create":   3,
	"update":   2,
	"delete":   5,
	"export":   4,
	"import":   4,
	"download": 3,
	"upload":   4,
}

// Per-resource weights.
var resourceWeights = map[string]int{
	"user":     2,
	"patent":   1,
	"contract": 3,
	"backup":   4,
	"security": 5,
	"system":   5,
}

// Flag bonuses read from the action's details map.
var detailBonuses = map[string]int{
	"sensitiveData":    3,
	"bulkOperation":    2,
	"privilegedAccess": 4,
	"externalAccess":   3,
}

const defaultWeight = 1

// ClassifyAction computes the risk level of a single action. It is a
// deterministic, stateless function of the action alone: verb weight plus
// resource weight plus flag bonuses from details, mapped to a tier.
func ClassifyAction(action, resource string, details map[string]interface{}) RiskLevel {
	score := weightOrDefault(actionWeights, action) + weightOrDefault(resourceWeights, resource)

	for flag, bonus := range detailBonuses {
		if truthy(details[flag]) {
			score += bonus
		}
	}

	switch {
	case score >= 8:
		return RiskCritical
	case score >= 6:
		return RiskHigh
	case score >= 4:
		return RiskMedium
	default:
		return RiskLow
	}
}

func weightOrDefault(weights map[string]int, key string) int {
	if w, ok := weights[key]; ok {
		return w
	}
	return defaultWeight
}

func truthy(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

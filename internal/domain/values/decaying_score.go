package values

import (
	"time"
)

// Score bounds shared by every score-bearing entity.
const (
	ScoreMin = 0
	ScoreMax = 100
)

// DecayingScore is an integer risk score in [ScoreMin, ScoreMax] that loses one
// point per full hour of inactivity. Both the threat scoring engine and the
// audit risk tracker accumulate into one of these; they differ only in the
// deltas they add and the tier table they classify with.
type DecayingScore struct {
	Score       int       `json:"score"`
	LastUpdated time.Time `json:"last_updated"`
}

// NewDecayingScore returns a zero score stamped at now.
func NewDecayingScore(now time.Time) DecayingScore {
	return DecayingScore{Score: ScoreMin, LastUpdated: now}
}

// Decay subtracts one point per full elapsed hour since LastUpdated and stamps
// the score with now. Decay is applied once per update cycle, before any deltas
// are added, and never drives the score below ScoreMin.
func (d *DecayingScore) Decay(now time.Time) {
	if !d.LastUpdated.IsZero() {
		if hours := int(now.Sub(d.LastUpdated).Hours()); hours > 0 {
			d.Score = Clamp(d.Score - hours)
		}
	}
	d.LastUpdated = now
}

// Add applies a delta and clamps the result.
func (d *DecayingScore) Add(delta int) {
	d.Score = Clamp(d.Score + delta)
}

// Clamp bounds a score to [ScoreMin, ScoreMax].
func Clamp(score int) int {
	if score < ScoreMin {
		return ScoreMin
	}
	if score > ScoreMax {
		return ScoreMax
	}
	return score
}

// Tier maps a minimum score to a named classification tier.
type Tier struct {
	Min  int
	Name string
}

// TierName returns the name of the first tier whose Min the score meets.
// The table must be ordered by Min descending; the last entry is the floor
// tier and should carry Min 0 so every score classifies.
func TierName(score int, tiers []Tier) string {
	for _, t := range tiers {
		if score >= t.Min {
			return t.Name
		}
	}
	if len(tiers) == 0 {
		return ""
	}
	return tiers[len(tiers)-1].Name
}

// AppendBounded appends an entry to a history list that keeps only the most
// recent limit entries, dropping the oldest first.
func AppendBounded[T any](list []T, entry T, limit int) []T {
	list = append(list, entry)
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list
}

package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyAction(t *testing.T) {
	tests := []struct {
		name     string
		action   string
		resource string
		details  map[string]interface{}
		want     RiskLevel
	}{
		{
			name:     "login to patent is low",
			action:   "login",
			resource: "patent",
			want:     RiskLow, // 1 + 1 = 2
		},
		{
			name:     "delete on security is critical",
			action:   "delete",
			resource: "security",
			details:  map[string]interface{}{},
			want:     RiskCritical, // 5 + 5 = 10
		},
		{
			name:     "create on contract is high",
			action:   "create",
			resource: "contract",
			want:     RiskHigh, // 3 + 3 = 6
		},
		{
			name:     "update on user is medium",
			action:   "update",
			resource: "user",
			want:     RiskMedium, // 2 + 2 = 4
		},
		{
			name:     "unknown verb and resource default to low",
			action:   "frobnicate",
			resource: "widget",
			want:     RiskLow, // 1 + 1 = 2
		},
		{
			name:     "sensitive bulk export escalates",
			action:   "export",
			resource: "patent",
			details: map[string]interface{}{
				"sensitiveData": true,
				"bulkOperation": true,
			},
			want: RiskCritical, // 4 + 1 + 3 + 2 = 10
		},
		{
			name:     "non-bool flag values are ignored",
			action:   "login",
			resource: "patent",
			details: map[string]interface{}{
				"sensitiveData": "yes",
				"bulkOperation": 1,
			},
			want: RiskLow,
		},
		{
			name:     "privileged external access on backup",
			action:   "download",
			resource: "backup",
			details: map[string]interface{}{
				"privilegedAccess": true,
			},
			want: RiskCritical, // 3 + 4 + 4 = 11
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyAction(tt.action, tt.resource, tt.details))
		})
	}
}

func TestAssessment_Record(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("tier deltas accumulate", func(t *testing.T) {
		a := NewAssessment("user-1", base)
		a.Record(base, RiskCritical, "delete on security")
		assert.Equal(t, 10, a.Value.Score)

		a.Record(base, RiskHigh, "export patent")
		assert.Equal(t, 17, a.Value.Score)

		a.Record(base, RiskLow, "login")
		assert.Equal(t, 18, a.Value.Score)
	})

	t.Run("decay before delta", func(t *testing.T) {
		a := NewAssessment("user-1", base)
		a.Value.Score = 50

		// 5h idle then a medium action: 50 - 5 + 4 = 49.
		a.Record(base.Add(5*time.Hour), RiskMedium, "update user")
		assert.Equal(t, 49, a.Value.Score)
	})

	t.Run("level follows breakpoints", func(t *testing.T) {
		a := NewAssessment("user-1", base)
		for i := 0; i < 8; i++ {
			a.Record(base, RiskCritical, "x")
		}
		assert.Equal(t, 80, a.Value.Score)
		assert.Equal(t, RiskCritical, a.Level)
	})

	t.Run("factors carry weight and delta", func(t *testing.T) {
		a := NewAssessment("user-1", base)
		a.Record(base, RiskHigh, "export patent")

		assert.Len(t, a.Factors, 1)
		assert.Equal(t, 0.8, a.Factors[0].Weight)
		assert.Equal(t, 7, a.Factors[0].Score)
		assert.Equal(t, "export patent", a.Factors[0].Description)
	})

	t.Run("factor history bounded at ten", func(t *testing.T) {
		a := NewAssessment("user-1", base)
		for i := 0; i < 25; i++ {
			a.Record(base, RiskLow, "login")
		}
		assert.Len(t, a.Factors, MaxAssessmentFactors)
	})

	t.Run("recommendations regenerated from current level", func(t *testing.T) {
		a := NewAssessment("user-1", base)
		assert.Equal(t, []string{"No action required"}, a.Recommendations)

		for i := 0; i < 10; i++ {
			a.Record(base, RiskCritical, "x")
		}
		assert.Contains(t, a.Recommendations, "Suspend account pending security review")
		assert.NotContains(t, a.Recommendations, "No action required")
	})

	t.Run("next assessment fixed 24h cadence", func(t *testing.T) {
		a := NewAssessment("user-1", base)
		now := base.Add(3 * time.Hour)
		a.Record(now, RiskLow, "login")

		assert.Equal(t, now, a.LastAssessment)
		assert.Equal(t, now.Add(24*time.Hour), a.NextAssessment)
	})
}

func TestMetric_Increment(t *testing.T) {
	ts := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)
	m := NewMetric("audit", "delete", 10, ts)

	assert.Equal(t, "audit_delete", m.Name)
	assert.Equal(t, StatusNormal, m.Status)
	assert.Equal(t, TrendStable, m.Trend)

	m.Increment()
	assert.Equal(t, 1, m.Value)
	assert.Equal(t, TrendIncreasing, m.Trend)
	assert.Equal(t, StatusNormal, m.Status)

	for i := 0; i < 7; i++ {
		m.Increment()
	}
	// 8 of 10 is at the warning ratio.
	assert.Equal(t, 8, m.Value)
	assert.Equal(t, StatusWarning, m.Status)

	m.Increment()
	m.Increment()
	assert.Equal(t, 10, m.Value)
	assert.Equal(t, StatusCritical, m.Status)
}

func TestMetric_SameBucket(t *testing.T) {
	ts := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)
	m := NewMetric("audit", "login", 100, ts)

	assert.True(t, m.SameBucket("audit_login", ts.Add(2*time.Hour)))
	assert.False(t, m.SameBucket("audit_login", ts.Add(24*time.Hour)))
	assert.False(t, m.SameBucket("audit_delete", ts))
}

package threatscore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patentworks/security-core/internal/domain/threat"
	"github.com/patentworks/security-core/internal/domain/values"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CountEvents(ctx context.Context, subjectID, eventType string, since time.Time) (int, error) {
	args := m.Called(ctx, subjectID, eventType, since)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) CountDistinctIPs(ctx context.Context, subjectID string, since time.Time) (int, error) {
	args := m.Called(ctx, subjectID, since)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) EventsInRange(ctx context.Context, start, end time.Time, subjectID string) ([]threat.StoredEvent, error) {
	args := m.Called(ctx, start, end, subjectID)
	if events := args.Get(0); events != nil {
		return events.([]threat.StoredEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

// noon is a fixed clock well inside business hours so the unusual-time
// detector stays quiet unless a test moves it.
var noon = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(store *mockStore) *Service {
	svc := NewService(store, zap.NewNop(), DefaultConfig())
	svc.now = func() time.Time { return noon }
	return svc
}

func TestService_AnalyzeEvent_FailedLogins(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("CountEvents", ctx, "user-1", "login_failed", mock.AnythingOfType("time.Time")).
		Return(5, nil)

	svc := newTestService(store)
	indicators := svc.AnalyzeEvent(ctx, "user-1", "login_failed", nil, nil)

	require.Len(t, indicators, 1)
	assert.Equal(t, threat.SeverityHigh, indicators[0].Severity)
	assert.Contains(t, indicators[0].Description, "5 failed login attempts")

	score, ok := svc.GetThreatScore("user-1")
	require.True(t, ok)
	assert.Equal(t, 15, score.Value.Score)
	assert.Equal(t, threat.LevelSafe, score.Level)
	assert.Equal(t, []string{indicators[0].Description}, score.Factors)
}

func TestService_AnalyzeEvent_FewFailedLogins(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("CountEvents", ctx, "user-1", "login_failed", mock.AnythingOfType("time.Time")).
		Return(2, nil)

	svc := newTestService(store)
	indicators := svc.AnalyzeEvent(ctx, "user-1", "login_failed", nil, nil)

	assert.Empty(t, indicators)
	_, ok := svc.GetThreatScore("user-1")
	assert.False(t, ok)
}

func TestService_AnalyzeEvent_UnusualTime(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("CountEvents", ctx, "user-1", "login_failed", mock.AnythingOfType("time.Time")).
		Return(0, nil)

	svc := newTestService(store)
	svc.now = func() time.Time {
		return time.Date(2025, 3, 10, 23, 15, 0, 0, time.UTC)
	}

	indicators := svc.AnalyzeEvent(ctx, "user-1", "login_success", nil, nil)

	require.Len(t, indicators, 1)
	assert.Equal(t, threat.SeverityMedium, indicators[0].Severity)
	assert.Contains(t, indicators[0].Description, "unusual time")
}

func TestService_AnalyzeEvent_UnknownEventType(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}

	svc := newTestService(store)
	indicators := svc.AnalyzeEvent(ctx, "user-1", "page_view", nil, nil)

	assert.Empty(t, indicators)
	_, ok := svc.GetThreatScore("user-1")
	assert.False(t, ok)
	store.AssertNotCalled(t, "CountEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_AnalyzeEvent_StoreFailureIsFailOpen(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("CountEvents", ctx, "user-1", "login_failed", mock.AnythingOfType("time.Time")).
		Return(0, assert.AnError)

	svc := newTestService(store)
	indicators := svc.AnalyzeEvent(ctx, "user-1", "login_failed", nil, nil)

	assert.Empty(t, indicators)
	_, ok := svc.GetThreatScore("user-1")
	assert.False(t, ok)
}

func TestService_AnalyzeEvent_ExportFrequency(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("CountEvents", ctx, "user-1", "data_export", mock.AnythingOfType("time.Time")).
		Return(12, nil)

	svc := newTestService(store)
	indicators := svc.AnalyzeEvent(ctx, "user-1", "data_export", nil, nil)

	require.Len(t, indicators, 1)
	assert.Equal(t, threat.SeverityMedium, indicators[0].Severity)
	assert.Contains(t, indicators[0].Description, "12 exports")
}

func TestService_AnalyzeEvent_SensitiveDataAccess(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("CountEvents", ctx, "user-1", "data_export", mock.AnythingOfType("time.Time")).
		Return(0, nil)

	svc := newTestService(store)
	indicators := svc.AnalyzeEvent(ctx, "user-1", "data_access", map[string]interface{}{
		"sensitiveData": true,
		"dataType":      "patent_claims",
	}, nil)

	require.Len(t, indicators, 1)
	assert.Equal(t, threat.SeverityLow, indicators[0].Severity)
	assert.Contains(t, indicators[0].Description, "patent_claims")
}

func TestService_AnalyzeEvent_SystemOperations(t *testing.T) {
	tests := []struct {
		operation string
		severity  threat.Severity
	}{
		{"role_change", threat.SeverityHigh},
		{"permission_grant", threat.SeverityHigh},
		{"config_change", threat.SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.operation, func(t *testing.T) {
			svc := newTestService(&mockStore{})
			indicators := svc.AnalyzeEvent(context.Background(), "admin-1", tt.operation, nil, nil)

			require.Len(t, indicators, 1)
			assert.Equal(t, tt.severity, indicators[0].Severity)
			assert.Equal(t, threat.KindSystemOperation, indicators[0].Kind)
		})
	}
}

func TestService_AnalyzeEvent_Network(t *testing.T) {
	ctx := context.Background()

	t.Run("suspicious address", func(t *testing.T) {
		store := &mockStore{}
		store.On("CountDistinctIPs", ctx, "user-1", mock.AnythingOfType("time.Time")).
			Return(1, nil)

		cfg := DefaultConfig()
		cfg.SuspiciousIPs = []string{"203.0.113.7"}
		svc := NewService(store, zap.NewNop(), cfg)
		svc.now = func() time.Time { return noon }

		indicators := svc.AnalyzeEvent(ctx, "user-1", "page_view", nil,
			&values.Origin{IPAddress: "203.0.113.7"})

		require.Len(t, indicators, 1)
		assert.Equal(t, threat.SeverityMedium, indicators[0].Severity)
		assert.Equal(t, threat.KindNetwork, indicators[0].Kind)
	})

	t.Run("ip hopping", func(t *testing.T) {
		store := &mockStore{}
		store.On("CountDistinctIPs", ctx, "user-1", mock.AnythingOfType("time.Time")).
			Return(6, nil)

		svc := newTestService(store)
		indicators := svc.AnalyzeEvent(ctx, "user-1", "page_view", nil,
			&values.Origin{IPAddress: "198.51.100.20"})

		require.Len(t, indicators, 1)
		assert.Equal(t, threat.SeverityLow, indicators[0].Severity)
		assert.Contains(t, indicators[0].Description, "6 distinct addresses")
	})
}

func TestService_UpdateScore_Decay(t *testing.T) {
	svc := newTestService(&mockStore{})

	svc.UpdateScore("user-1", []threat.Indicator{{Severity: threat.SeverityCritical, Description: "a"}})
	score, _ := svc.GetThreatScore("user-1")
	assert.Equal(t, 25, score.Value.Score)

	// Ten idle hours decay ten points before the next delta lands.
	svc.now = func() time.Time { return noon.Add(10 * time.Hour) }
	svc.UpdateScore("user-1", []threat.Indicator{{Severity: threat.SeverityLow, Description: "b"}})

	score, _ = svc.GetThreatScore("user-1")
	assert.Equal(t, 20, score.Value.Score)
}

func TestService_RuleRegistry(t *testing.T) {
	svc := newTestService(&mockStore{})

	require.NoError(t, svc.AddRule(threat.SecurityRule{ID: "r-medium", Priority: 50, Enabled: true}))
	require.NoError(t, svc.AddRule(threat.SecurityRule{ID: "r-low", Priority: 90}))
	require.NoError(t, svc.AddRule(threat.SecurityRule{ID: "r-high", Priority: 10, Type: threat.RuleTypeThreshold}))

	rules := svc.GetRules()
	require.Len(t, rules, 3)
	assert.Equal(t, []string{"r-high", "r-medium", "r-low"},
		[]string{rules[0].ID, rules[1].ID, rules[2].ID})

	t.Run("duplicate id rejected", func(t *testing.T) {
		err := svc.AddRule(threat.SecurityRule{ID: "r-high", Priority: 1})
		assert.Error(t, err)
	})

	t.Run("update re-sorts", func(t *testing.T) {
		require.NoError(t, svc.UpdateRule(threat.SecurityRule{ID: "r-high", Priority: 99}))
		rules := svc.GetRules()
		assert.Equal(t, "r-high", rules[2].ID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, svc.DeleteRule("r-medium"))
		assert.Len(t, svc.GetRules(), 2)
		assert.Error(t, svc.DeleteRule("r-medium"))
	})
}

func TestService_GenerateThreatReport(t *testing.T) {
	ctx := context.Background()
	start := noon.Add(-24 * time.Hour)

	store := &mockStore{}
	store.On("EventsInRange", ctx, start, noon, "").Return([]threat.StoredEvent{
		{SubjectID: "user-1", Severity: threat.SeverityHigh, Description: "failed logins"},
		{SubjectID: "user-1", Severity: threat.SeverityHigh, Description: "failed logins"},
		{SubjectID: "user-2", Severity: threat.SeverityLow, Description: "sensitive access"},
	}, nil)

	svc := newTestService(store)
	svc.UpdateScore("user-1", []threat.Indicator{{Severity: threat.SeverityHigh, Description: "failed logins"}})

	report := svc.GenerateThreatReport(ctx, start, noon, "")

	assert.Equal(t, 3, report.TotalEvents)
	assert.Equal(t, 2, report.SeverityCounts[threat.SeverityHigh])
	assert.Equal(t, 1, report.SeverityCounts[threat.SeverityLow])
	require.NotEmpty(t, report.TopIndicators)
	assert.Equal(t, "failed logins", report.TopIndicators[0].Description)
	assert.Equal(t, 2, report.TopIndicators[0].Count)
	require.Len(t, report.RiskProfiles, 1)
	assert.Equal(t, "user-1", report.RiskProfiles[0].SubjectID)
}

func TestService_GenerateThreatReport_StoreFailure(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("EventsInRange", ctx, mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time"), "").
		Return(nil, assert.AnError)

	svc := newTestService(store)
	report := svc.GenerateThreatReport(ctx, noon.Add(-time.Hour), noon, "")

	assert.Equal(t, 0, report.TotalEvents)
	assert.Empty(t, report.TopIndicators)
}

package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patentworks/security-core/internal/domain/audit"
	"github.com/patentworks/security-core/internal/domain/compliance"
	"github.com/patentworks/security-core/internal/domain/threat"
	auditriskservice "github.com/patentworks/security-core/internal/service/auditrisk"
	complianceservice "github.com/patentworks/security-core/internal/service/compliance"
	"github.com/patentworks/security-core/internal/service/threatscore"
)

// stubStore satisfies every engine's store interface with canned answers.
type stubStore struct {
	failedLogins int
}

func (s *stubStore) CountEvents(ctx context.Context, subjectID, eventType string, since time.Time) (int, error) {
	if eventType == "login_failed" {
		return s.failedLogins, nil
	}
	return 0, nil
}

func (s *stubStore) CountDistinctIPs(ctx context.Context, subjectID string, since time.Time) (int, error) {
	return 1, nil
}

func (s *stubStore) EventsInRange(ctx context.Context, start, end time.Time, subjectID string) ([]threat.StoredEvent, error) {
	return nil, nil
}

func (s *stubStore) ResolveUserName(ctx context.Context, userID string) (string, error) {
	return "Test User", nil
}

func (s *stubStore) CountUsers(ctx context.Context) (int, error) { return 10, nil }

func (s *stubStore) CountActiveUsers(ctx context.Context, since time.Time) (int, error) {
	return 4, nil
}

func (s *stubStore) CountEventsBySeverity(ctx context.Context, since time.Time) (map[string]int, error) {
	return map[string]int{"low": 2}, nil
}

func (s *stubStore) TableExists(ctx context.Context, table string) (bool, error) { return true, nil }

func (s *stubStore) CountRows(ctx context.Context, table string) (int64, error) { return 5, nil }

type stubSink struct {
	mu      sync.Mutex
	entries []audit.LogEntry
}

func (s *stubSink) LogSecurityEvent(ctx context.Context, entry audit.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *stubSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func newTestHandler(store *stubStore) (*Handler, *stubSink) {
	sink := &stubSink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	zapLogger := zap.NewNop()

	threats := threatscore.NewService(store, zapLogger, threatscore.DefaultConfig())
	auditRisk := auditriskservice.NewService(store, sink, zapLogger, auditriskservice.DefaultConfig())
	comp := complianceservice.NewService(store, sink, zapLogger)

	return NewHandler(threats, auditRisk, comp, sink, logger), sink
}

func doRequest(t *testing.T, h *Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHandler_AnalyzeEvent(t *testing.T) {
	h, sink := newTestHandler(&stubStore{failedLogins: 5})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/events/analyze", AnalyzeEventRequest{
		SubjectID: "user-1",
		EventType: "login_failed",
		IPAddress: "192.0.2.1",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalyzeEventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Indicators)
	require.NotNil(t, resp.Score)
	assert.Equal(t, "user-1", resp.Score.SubjectID)
	assert.Greater(t, resp.Score.Value.Score, 0)

	// The raw event reaches the sink even before analysis.
	assert.Equal(t, 1, sink.count())
}

func TestHandler_AnalyzeEvent_BadRequests(t *testing.T) {
	h, _ := newTestHandler(&stubStore{})

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/events/analyze", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing subject", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/api/v1/events/analyze", AnalyzeEventRequest{
			EventType: "login_failed",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	})

	t.Run("malformed ip", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/api/v1/events/analyze", AnalyzeEventRequest{
			SubjectID: "user-1",
			EventType: "login_failed",
			IPAddress: "not-an-ip",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_GetThreatScore_NotFound(t *testing.T) {
	h, _ := newTestHandler(&stubStore{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/threat/scores/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_ThreatRuleCRUD(t *testing.T) {
	h, _ := newTestHandler(&stubStore{})

	rule := SecurityRuleRequest{
		ID:       "rule-1",
		Name:     "Excessive exports",
		Type:     threat.RuleTypeThreshold,
		Enabled:  true,
		Priority: 10,
	}

	rec := doRequest(t, h, http.MethodPost, "/api/v1/threat/rules", rule)
	assert.Equal(t, http.StatusCreated, rec.Code)

	t.Run("duplicate conflicts", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/api/v1/threat/rules", rule)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/v1/threat/rules", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var rules []threat.SecurityRule
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rules))
		require.Len(t, rules, 1)
		assert.Equal(t, "rule-1", rules[0].ID)
	})

	t.Run("update", func(t *testing.T) {
		updated := rule
		updated.Priority = 99
		rec := doRequest(t, h, http.MethodPut, "/api/v1/threat/rules/rule-1", updated)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodDelete, "/api/v1/threat/rules/rule-1", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = doRequest(t, h, http.MethodDelete, "/api/v1/threat/rules/rule-1", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_RecordAuditEvent(t *testing.T) {
	h, sink := newTestHandler(&stubStore{})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/audit/events", RecordAuditEventRequest{
		UserID:   "user-1",
		Action:   "delete",
		Resource: "security",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var trail audit.Trail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trail))
	assert.Equal(t, audit.RiskCritical, trail.RiskLevel)
	assert.Equal(t, "Test User", trail.UserName)
	assert.Equal(t, 1, sink.count())

	t.Run("trails listed newest first", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/v1/audit/trails?user_id=user-1", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var trails []audit.Trail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trails))
		require.Len(t, trails, 1)
	})

	t.Run("invalid limit", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/v1/audit/trails?limit=abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("assessment exists", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/v1/audit/assessments/user-1", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var assessment audit.Assessment
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assessment))
		assert.Equal(t, 10, assessment.Value.Score)
	})
}

func TestHandler_Dashboard(t *testing.T) {
	h, _ := newTestHandler(&stubStore{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/audit/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var dashboard audit.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dashboard))
	assert.Equal(t, 10, dashboard.TotalUsers)
	assert.Equal(t, 4, dashboard.ActiveUsers)
}

func TestHandler_ComplianceEndpoints(t *testing.T) {
	h, _ := newTestHandler(&stubStore{})

	t.Run("checks", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/api/v1/compliance/checks?rule_id=iso-encryption", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var checks []compliance.Check
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &checks))
		require.Len(t, checks, 1)
		assert.Equal(t, compliance.CheckPass, checks[0].Status)
	})

	t.Run("retention policy round trip", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPut, "/api/v1/compliance/policies", RetentionPolicyRequest{
			ID:            "rp-1",
			DataType:      "audit_logs",
			RetentionDays: 365,
			Enabled:       true,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doRequest(t, h, http.MethodGet, "/api/v1/compliance/policies", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var policies []compliance.RetentionPolicy
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &policies))
		require.Len(t, policies, 1)

		rec = doRequest(t, h, http.MethodDelete, "/api/v1/compliance/policies/rp-1", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("report", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/v1/compliance/report?period=2025-03", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var report compliance.Report
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, "2025-03", report.Period)
		assert.NotEmpty(t, report.Checks)
	})
}

func TestHandler_Health(t *testing.T) {
	h, _ := newTestHandler(&stubStore{})

	rec := doRequest(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/patentworks/security-core/internal/domain/audit"
	"github.com/patentworks/security-core/internal/domain/compliance"
	domainErrors "github.com/patentworks/security-core/internal/domain/errors"
	"github.com/patentworks/security-core/internal/domain/threat"
	"github.com/patentworks/security-core/internal/domain/values"
	auditriskservice "github.com/patentworks/security-core/internal/service/auditrisk"
	complianceservice "github.com/patentworks/security-core/internal/service/compliance"
	"github.com/patentworks/security-core/internal/service/threatscore"
)

const defaultReportWindow = 24 * time.Hour

// EventSink receives raw analyzed events for asynchronous persistence.
type EventSink interface {
	LogSecurityEvent(ctx context.Context, entry audit.LogEntry)
}

// Handler exposes the three engines over HTTP.
type Handler struct {
	threats    *threatscore.Service
	auditRisk  *auditriskservice.Service
	compliance *complianceservice.Service
	sink       EventSink
	logger     *slog.Logger
	validate   *validator.Validate
}

// NewHandler wires the engines into one HTTP handler.
func NewHandler(threats *threatscore.Service, auditRisk *auditriskservice.Service, comp *complianceservice.Service, sink EventSink, logger *slog.Logger) *Handler {
	return &Handler{
		threats:    threats,
		auditRisk:  auditRisk,
		compliance: comp,
		sink:       sink,
		logger:     logger,
		validate:   validator.New(),
	}
}

// Routes builds the route table.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/events/analyze", h.instrument("/api/v1/events/analyze", h.handleAnalyzeEvent))

	mux.HandleFunc("GET /api/v1/threat/scores", h.instrument("/api/v1/threat/scores", h.handleListThreatScores))
	mux.HandleFunc("GET /api/v1/threat/scores/{subjectID}", h.instrument("/api/v1/threat/scores/{subjectID}", h.handleGetThreatScore))
	mux.HandleFunc("GET /api/v1/threat/report", h.instrument("/api/v1/threat/report", h.handleThreatReport))
	mux.HandleFunc("GET /api/v1/threat/rules", h.instrument("/api/v1/threat/rules", h.handleListThreatRules))
	mux.HandleFunc("POST /api/v1/threat/rules", h.instrument("/api/v1/threat/rules", h.handleCreateThreatRule))
	mux.HandleFunc("PUT /api/v1/threat/rules/{ruleID}", h.instrument("/api/v1/threat/rules/{ruleID}", h.handleUpdateThreatRule))
	mux.HandleFunc("DELETE /api/v1/threat/rules/{ruleID}", h.instrument("/api/v1/threat/rules/{ruleID}", h.handleDeleteThreatRule))

	mux.HandleFunc("POST /api/v1/audit/events", h.instrument("/api/v1/audit/events", h.handleRecordAuditEvent))
	mux.HandleFunc("GET /api/v1/audit/trails", h.instrument("/api/v1/audit/trails", h.handleListAuditTrails))
	mux.HandleFunc("GET /api/v1/audit/metrics", h.instrument("/api/v1/audit/metrics", h.handleListSecurityMetrics))
	mux.HandleFunc("GET /api/v1/audit/assessments", h.instrument("/api/v1/audit/assessments", h.handleListAssessments))
	mux.HandleFunc("GET /api/v1/audit/assessments/{userID}", h.instrument("/api/v1/audit/assessments/{userID}", h.handleGetAssessment))
	mux.HandleFunc("GET /api/v1/audit/dashboard", h.instrument("/api/v1/audit/dashboard", h.handleDashboard))

	mux.HandleFunc("POST /api/v1/compliance/checks", h.instrument("/api/v1/compliance/checks", h.handleComplianceCheck))
	mux.HandleFunc("GET /api/v1/compliance/report", h.instrument("/api/v1/compliance/report", h.handleComplianceReport))
	mux.HandleFunc("GET /api/v1/compliance/rules", h.instrument("/api/v1/compliance/rules", h.handleListComplianceRules))
	mux.HandleFunc("POST /api/v1/compliance/rules", h.instrument("/api/v1/compliance/rules", h.handleCreateComplianceRule))
	mux.HandleFunc("PUT /api/v1/compliance/rules/{ruleID}", h.instrument("/api/v1/compliance/rules/{ruleID}", h.handleUpdateComplianceRule))
	mux.HandleFunc("DELETE /api/v1/compliance/rules/{ruleID}", h.instrument("/api/v1/compliance/rules/{ruleID}", h.handleDeleteComplianceRule))
	mux.HandleFunc("GET /api/v1/compliance/policies", h.instrument("/api/v1/compliance/policies", h.handleListRetentionPolicies))
	mux.HandleFunc("PUT /api/v1/compliance/policies", h.instrument("/api/v1/compliance/policies", h.handleSetRetentionPolicy))
	mux.HandleFunc("DELETE /api/v1/compliance/policies/{policyID}", h.instrument("/api/v1/compliance/policies/{policyID}", h.handleDeleteRetentionPolicy))

	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func (h *Handler) handleAnalyzeEvent(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeEventRequest
	if !h.decode(w, r, &req) {
		return
	}

	origin := originFrom(req.IPAddress, req.UserAgent)

	// The raw event goes to the sink regardless of what analysis finds.
	h.sink.LogSecurityEvent(r.Context(), audit.LogEntry{
		EventType: req.EventType,
		Message:   "security event received",
		Severity:  "info",
		UserID:    req.SubjectID,
		Origin:    origin,
		Metadata:  req.Metadata,
	})

	indicators := h.threats.AnalyzeEvent(r.Context(), req.SubjectID, req.EventType, req.Metadata, origin)

	eventsAnalyzedTotal.Inc()
	for _, ind := range indicators {
		indicatorsTotal.WithLabelValues(string(ind.Severity)).Inc()
	}

	resp := AnalyzeEventResponse{Indicators: indicators}
	if score, ok := h.threats.GetThreatScore(req.SubjectID); ok {
		resp.Score = &score
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListThreatScores(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.threats.GetAllThreatScores())
}

func (h *Handler) handleGetThreatScore(w http.ResponseWriter, r *http.Request) {
	score, ok := h.threats.GetThreatScore(r.PathValue("subjectID"))
	if !ok {
		h.writeAppError(w, domainErrors.ErrSubjectNotFound)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (h *Handler) handleThreatReport(w http.ResponseWriter, r *http.Request) {
	end := time.Now()
	start := end.Add(-defaultReportWindow)

	if parsed, err := queryTime(r, "start"); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_TIMESTAMP", "start must be RFC 3339")
		return
	} else if !parsed.IsZero() {
		start = parsed
	}
	if parsed, err := queryTime(r, "end"); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_TIMESTAMP", "end must be RFC 3339")
		return
	} else if !parsed.IsZero() {
		end = parsed
	}

	report := h.threats.GenerateThreatReport(r.Context(), start, end, r.URL.Query().Get("subject_id"))
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleListThreatRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.threats.GetRules())
}

func (h *Handler) handleCreateThreatRule(w http.ResponseWriter, r *http.Request) {
	var req SecurityRuleRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.threats.AddRule(securityRuleFrom(req)); err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.threats.GetRules())
}

func (h *Handler) handleUpdateThreatRule(w http.ResponseWriter, r *http.Request) {
	var req SecurityRuleRequest
	if !h.decode(w, r, &req) {
		return
	}
	rule := securityRuleFrom(req)
	rule.ID = r.PathValue("ruleID")
	if err := h.threats.UpdateRule(rule); err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *Handler) handleDeleteThreatRule(w http.ResponseWriter, r *http.Request) {
	if err := h.threats.DeleteRule(r.PathValue("ruleID")); err != nil {
		h.writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRecordAuditEvent(w http.ResponseWriter, r *http.Request) {
	var req RecordAuditEventRequest
	if !h.decode(w, r, &req) {
		return
	}

	trail := h.auditRisk.RecordAuditEvent(r.Context(), req.UserID, req.Action, req.Resource,
		req.ResourceID, req.Details, values.Origin{IPAddress: req.IPAddress, UserAgent: req.UserAgent})

	auditEventsTotal.WithLabelValues(string(trail.RiskLevel)).Inc()
	writeJSON(w, http.StatusCreated, trail)
}

func (h *Handler) handleListAuditTrails(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := parsePositiveInt(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	start, err := queryTime(r, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_TIMESTAMP", "start must be RFC 3339")
		return
	}
	end, err := queryTime(r, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_TIMESTAMP", "end must be RFC 3339")
		return
	}

	writeJSON(w, http.StatusOK, h.auditRisk.GetAuditTrails(r.URL.Query().Get("user_id"), start, end, limit))
}

func (h *Handler) handleListSecurityMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.auditRisk.GetSecurityMetrics())
}

func (h *Handler) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.auditRisk.GetAllRiskAssessments())
}

func (h *Handler) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	assessment, ok := h.auditRisk.GetUserRiskAssessment(r.PathValue("userID"))
	if !ok {
		h.writeAppError(w, domainErrors.ErrSubjectNotFound)
		return
	}
	writeJSON(w, http.StatusOK, assessment)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.auditRisk.GenerateSecurityDashboard(r.Context()))
}

func (h *Handler) handleComplianceCheck(w http.ResponseWriter, r *http.Request) {
	checks := h.compliance.PerformComplianceCheck(r.Context(), r.URL.Query().Get("rule_id"))
	for _, c := range checks {
		complianceChecksTotal.WithLabelValues(string(c.Status)).Inc()
	}
	writeJSON(w, http.StatusOK, checks)
}

func (h *Handler) handleComplianceReport(w http.ResponseWriter, r *http.Request) {
	end := time.Now()
	start := end.AddDate(0, -1, 0)
	period := r.URL.Query().Get("period")
	if period == "" {
		period = end.Format("2006-01")
	}

	report := h.compliance.GenerateComplianceReport(r.Context(), period, start, end)
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleListComplianceRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.compliance.GetRules())
}

func (h *Handler) handleCreateComplianceRule(w http.ResponseWriter, r *http.Request) {
	var req ComplianceRuleRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.compliance.AddRule(complianceRuleFrom(req)); err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.compliance.GetRules())
}

func (h *Handler) handleUpdateComplianceRule(w http.ResponseWriter, r *http.Request) {
	var req ComplianceRuleRequest
	if !h.decode(w, r, &req) {
		return
	}
	rule := complianceRuleFrom(req)
	rule.ID = r.PathValue("ruleID")
	if err := h.compliance.UpdateRule(rule); err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *Handler) handleDeleteComplianceRule(w http.ResponseWriter, r *http.Request) {
	if err := h.compliance.DeleteRule(r.PathValue("ruleID")); err != nil {
		h.writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListRetentionPolicies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.compliance.GetRetentionPolicies())
}

func (h *Handler) handleSetRetentionPolicy(w http.ResponseWriter, r *http.Request) {
	var req RetentionPolicyRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.compliance.SetRetentionPolicy(compliance.RetentionPolicy{
		ID:            req.ID,
		DataType:      req.DataType,
		RetentionDays: req.RetentionDays,
		Description:   req.Description,
		Enabled:       req.Enabled,
	}); err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.compliance.GetRetentionPolicies())
}

func (h *Handler) handleDeleteRetentionPolicy(w http.ResponseWriter, r *http.Request) {
	if err := h.compliance.DeleteRetentionPolicy(r.PathValue("policyID")); err != nil {
		h.writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Time: time.Now().UTC()})
}

// decode parses and validates a JSON request body, writing the 400 itself on
// failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, http.StatusBadRequest, "VALIDATION_FAILED",
				"invalid field "+verrs[0].Field())
			return false
		}
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "request validation failed")
		return false
	}
	return true
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	var appErr *domainErrors.AppError
	if errors.As(err, &appErr) {
		writeError(w, appErr.StatusCode, appErr.Code, appErr.Message)
		return
	}
	h.logger.Error("unhandled error", "error", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// queryTime parses an optional RFC 3339 query parameter; absence is a zero
// time, not an error.
func queryTime(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be positive")
	}
	return n, nil
}

func originFrom(ip, userAgent string) *values.Origin {
	if ip == "" && userAgent == "" {
		return nil
	}
	return &values.Origin{IPAddress: ip, UserAgent: userAgent}
}

func securityRuleFrom(req SecurityRuleRequest) threat.SecurityRule {
	return threat.SecurityRule{
		ID:         req.ID,
		Name:       req.Name,
		Type:       req.Type,
		Conditions: req.Conditions,
		Actions:    req.Actions,
		Enabled:    req.Enabled,
		Priority:   req.Priority,
	}
}

func complianceRuleFrom(req ComplianceRuleRequest) compliance.Rule {
	return compliance.Rule{
		ID:             req.ID,
		Name:           req.Name,
		Regulation:     req.Regulation,
		Category:       req.Category,
		Description:    req.Description,
		RequiredChecks: req.RequiredChecks,
		CheckInterval:  req.CheckInterval,
		Priority:       req.Priority,
		Enabled:        req.Enabled,
	}
}

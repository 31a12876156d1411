package rest

import (
	"time"

	"github.com/patentworks/security-core/internal/domain/compliance"
	"github.com/patentworks/security-core/internal/domain/threat"
)

// AnalyzeEventRequest submits one security event for threat analysis.
type AnalyzeEventRequest struct {
	SubjectID string                 `json:"subject_id" validate:"required"`
	EventType string                 `json:"event_type" validate:"required"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	IPAddress string                 `json:"ip_address,omitempty" validate:"omitempty,ip"`
	UserAgent string                 `json:"user_agent,omitempty"`
}

// AnalyzeEventResponse returns the emitted indicators and the subject's score
// after the event was folded in. Score is null when the subject has no
// tracked score yet.
type AnalyzeEventResponse struct {
	Indicators []threat.Indicator `json:"indicators"`
	Score      *threat.Score      `json:"score,omitempty"`
}

// RecordAuditEventRequest records one user action in the audit trail.
type RecordAuditEventRequest struct {
	UserID     string                 `json:"user_id" validate:"required"`
	Action     string                 `json:"action" validate:"required"`
	Resource   string                 `json:"resource" validate:"required"`
	ResourceID string                 `json:"resource_id,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	IPAddress  string                 `json:"ip_address,omitempty" validate:"omitempty,ip"`
	UserAgent  string                 `json:"user_agent,omitempty"`
}

// SecurityRuleRequest creates or replaces a threat scoring rule.
type SecurityRuleRequest struct {
	ID         string                 `json:"id" validate:"required"`
	Name       string                 `json:"name" validate:"required"`
	Type       threat.RuleType        `json:"type" validate:"required,oneof=threshold pattern anomaly compliance"`
	Conditions map[string]interface{} `json:"conditions,omitempty"`
	Actions    []string               `json:"actions,omitempty"`
	Enabled    bool                   `json:"enabled"`
	Priority   int                    `json:"priority" validate:"gte=0"`
}

// ComplianceRuleRequest creates or replaces a compliance rule.
type ComplianceRuleRequest struct {
	ID             string                   `json:"id" validate:"required"`
	Name           string                   `json:"name" validate:"required"`
	Regulation     compliance.Regulation    `json:"regulation" validate:"required,oneof=GDPR ISO27001 SOX custom"`
	Category       string                   `json:"category,omitempty"`
	Description    string                   `json:"description,omitempty"`
	RequiredChecks []string                 `json:"required_checks,omitempty"`
	CheckInterval  compliance.CheckInterval `json:"check_interval" validate:"required,oneof=realtime hourly daily weekly monthly"`
	Priority       int                      `json:"priority" validate:"gte=0"`
	Enabled        bool                     `json:"enabled"`
}

// RetentionPolicyRequest creates or replaces a retention policy.
type RetentionPolicyRequest struct {
	ID            string `json:"id" validate:"required"`
	DataType      string `json:"data_type" validate:"required"`
	RetentionDays int    `json:"retention_days" validate:"required,gt=0"`
	Description   string `json:"description,omitempty"`
	Enabled       bool   `json:"enabled"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the machine-readable code and human message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

package auditrisk

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/patentworks/security-core/internal/domain/audit"
)

const (
	dashboardRecentTrails   = 10
	dashboardTopAssessments = 10
	dashboardRecentMetrics  = 10
)

// GenerateSecurityDashboard assembles a point-in-time overview. Store counts
// that fail are reported as zero so the in-memory sections still render, and
// alerts are rebuilt from scratch on every call.
func (s *Service) GenerateSecurityDashboard(ctx context.Context) *audit.Dashboard {
	now := s.now()
	dashboard := &audit.Dashboard{
		ThreatCounts: make(map[string]int),
		GeneratedAt:  now,
	}

	if total, err := s.store.CountUsers(ctx); err != nil {
		s.logger.Warn("user count unavailable for dashboard", zap.Error(err))
	} else {
		dashboard.TotalUsers = total
	}

	if active, err := s.store.CountActiveUsers(ctx, now.Add(-s.config.ActiveUserWindow)); err != nil {
		s.logger.Warn("active user count unavailable for dashboard", zap.Error(err))
	} else {
		dashboard.ActiveUsers = active
	}

	if counts, err := s.store.CountEventsBySeverity(ctx, now.Add(-s.config.ActiveUserWindow)); err != nil {
		s.logger.Warn("severity counts unavailable for dashboard", zap.Error(err))
	} else {
		dashboard.ThreatCounts = counts
	}

	dashboard.RecentTrails = s.GetAuditTrails("", time.Time{}, time.Time{}, dashboardRecentTrails)

	// Only elevated users surface on the dashboard; GetAllRiskAssessments
	// already sorts by score descending.
	elevated := []audit.Assessment{}
	for _, a := range s.GetAllRiskAssessments() {
		if a.Level == audit.RiskCritical || a.Level == audit.RiskHigh {
			elevated = append(elevated, a)
		}
	}
	dashboard.TopAssessments = elevated
	if len(dashboard.TopAssessments) > dashboardTopAssessments {
		dashboard.TopAssessments = dashboard.TopAssessments[:dashboardTopAssessments]
	}

	metrics := s.GetSecurityMetrics()

	dashboard.RecentMetrics = metrics
	if len(dashboard.RecentMetrics) > dashboardRecentMetrics {
		dashboard.RecentMetrics = dashboard.RecentMetrics[:dashboardRecentMetrics]
	}

	// Alerts scan every elevated assessment and metric, not just the
	// truncated display slices.
	dashboard.Alerts = s.buildAlerts(elevated, metrics, now)
	return dashboard
}

// buildAlerts derives transient alerts from elevated assessments and metric
// buckets that crossed their threshold.
func (s *Service) buildAlerts(elevated []audit.Assessment, metrics []audit.Metric, now time.Time) []audit.Alert {
	alerts := []audit.Alert{}

	for _, a := range elevated {
		alerts = append(alerts, audit.Alert{
			ID:       uuid.New(),
			Type:     "user_risk",
			Severity: a.Level,
			Message: fmt.Sprintf("user %s risk level is %s (score %d)",
				a.UserID, a.Level, a.Value.Score),
			UserID:    a.UserID,
			CreatedAt: now,
		})
	}

	for _, m := range metrics {
		if m.Status != audit.StatusCritical {
			continue
		}
		alerts = append(alerts, audit.Alert{
			ID:       uuid.New(),
			Type:     "metric_threshold",
			Severity: audit.RiskHigh,
			Message: fmt.Sprintf("metric %s reached %d (threshold %d)",
				m.Name, m.Value, m.Threshold),
			CreatedAt: now,
		})
	}

	return alerts
}

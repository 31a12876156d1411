package threatscore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/patentworks/security-core/internal/domain/threat"
	"github.com/patentworks/security-core/internal/domain/values"
)

// detectorFn inspects one event plus the subject's stored history and emits
// zero or more indicators. Detectors are pure with respect to engine state;
// they only read the event and the store.
type detectorFn func(ctx context.Context, subjectID, eventType string, metadata map[string]interface{}, origin *values.Origin) ([]threat.Indicator, error)

type detector struct {
	name string
	fn   detectorFn
}

// detectorsFor selects the detectors applicable to an event. The category is
// derived from the event type; the network detector additionally runs for any
// event that carries an origin address, whatever its type. An event matching
// no category and carrying no origin gets no detectors at all.
func (s *Service) detectorsFor(eventType string, metadata map[string]interface{}, origin *values.Origin) []detector {
	var detectors []detector

	switch {
	case isAuthenticationEvent(eventType):
		detectors = append(detectors, detector{"authentication", s.detectAuthentication})
	case isDataAccessEvent(eventType):
		detectors = append(detectors, detector{"data_access", s.detectDataAccess})
	case isSystemOperation(eventType, metadata):
		detectors = append(detectors, detector{"system_operation", s.detectSystemOperation})
	}

	if origin != nil && origin.IPAddress != "" {
		detectors = append(detectors, detector{"network", s.detectNetwork})
	}

	return detectors
}

func isAuthenticationEvent(eventType string) bool {
	return strings.HasPrefix(eventType, "login") || strings.HasPrefix(eventType, "auth")
}

func isDataAccessEvent(eventType string) bool {
	switch eventType {
	case "data_export", "export", "data_access", "file_download":
		return true
	}
	return strings.HasPrefix(eventType, "data_")
}

func isSystemOperation(eventType string, metadata map[string]interface{}) bool {
	switch operationFrom(eventType, metadata) {
	case "role_change", "permission_grant", "config_change":
		return true
	}
	return false
}

// operationFrom reads the operation name from metadata, falling back to the
// event type itself.
func operationFrom(eventType string, metadata map[string]interface{}) string {
	if op, ok := metadata["operation"].(string); ok && op != "" {
		return op
	}
	return eventType
}

// detectAuthentication flags brute-force login attempts and activity outside
// business hours.
func (s *Service) detectAuthentication(ctx context.Context, subjectID, eventType string, metadata map[string]interface{}, origin *values.Origin) ([]threat.Indicator, error) {
	var indicators []threat.Indicator
	now := s.now()

	failed, err := s.store.CountEvents(ctx, subjectID, "login_failed", now.Add(-s.config.FailedLoginWindow))
	if err != nil {
		return nil, err
	}
	if failed >= s.config.FailedLoginThreshold {
		indicators = append(indicators, s.newIndicator(
			threat.KindAuthentication,
			threat.SeverityHigh,
			fmt.Sprintf("%d failed login attempts in the last %d minutes",
				failed, int(s.config.FailedLoginWindow.Minutes())),
			map[string]interface{}{"failed_attempts": failed},
		))
	}

	if hour := now.Hour(); hour >= s.config.QuietHourStart || hour < s.config.QuietHourEnd {
		indicators = append(indicators, s.newIndicator(
			threat.KindAuthentication,
			threat.SeverityMedium,
			fmt.Sprintf("authentication activity at unusual time (%02d:00)", hour),
			nil,
		))
	}

	return indicators, nil
}

// detectDataAccess flags unusually frequent exports and informationally notes
// access to records marked sensitive.
func (s *Service) detectDataAccess(ctx context.Context, subjectID, eventType string, metadata map[string]interface{}, origin *values.Origin) ([]threat.Indicator, error) {
	var indicators []threat.Indicator

	exports, err := s.store.CountEvents(ctx, subjectID, "data_export", s.now().Add(-s.config.ExportWindow))
	if err != nil {
		return nil, err
	}
	if exports >= s.config.ExportThreshold {
		indicators = append(indicators, s.newIndicator(
			threat.KindDataAccess,
			threat.SeverityMedium,
			fmt.Sprintf("high export frequency: %d exports in the last %d minutes",
				exports, int(s.config.ExportWindow.Minutes())),
			map[string]interface{}{"export_count": exports},
		))
	}

	if sensitive, _ := metadata["sensitiveData"].(bool); sensitive {
		if dataType, _ := metadata["dataType"].(string); dataType != "" {
			indicators = append(indicators, s.newIndicator(
				threat.KindDataAccess,
				threat.SeverityLow,
				fmt.Sprintf("sensitive data access: %s", dataType),
				map[string]interface{}{"data_type": dataType},
			))
		}
	}

	return indicators, nil
}

// detectSystemOperation flags privileged configuration and permission changes.
func (s *Service) detectSystemOperation(ctx context.Context, subjectID, eventType string, metadata map[string]interface{}, origin *values.Origin) ([]threat.Indicator, error) {
	op := operationFrom(eventType, metadata)

	switch op {
	case "role_change", "permission_grant":
		return []threat.Indicator{s.newIndicator(
			threat.KindSystemOperation,
			threat.SeverityHigh,
			fmt.Sprintf("privileged operation: %s", op),
			map[string]interface{}{"operation": op},
		)}, nil
	case "config_change":
		return []threat.Indicator{s.newIndicator(
			threat.KindSystemOperation,
			threat.SeverityMedium,
			"system configuration change",
			map[string]interface{}{"operation": op},
		)}, nil
	}

	return nil, nil
}

// detectNetwork flags known-bad origin addresses and subjects hopping across
// many addresses.
func (s *Service) detectNetwork(ctx context.Context, subjectID, eventType string, metadata map[string]interface{}, origin *values.Origin) ([]threat.Indicator, error) {
	var indicators []threat.Indicator

	if _, bad := s.suspiciousIPs[origin.IPAddress]; bad {
		indicators = append(indicators, s.newIndicator(
			threat.KindNetwork,
			threat.SeverityMedium,
			fmt.Sprintf("event from suspicious address %s", origin.IPAddress),
			map[string]interface{}{"ip_address": origin.IPAddress},
		))
	}

	distinct, err := s.store.CountDistinctIPs(ctx, subjectID, s.now().Add(-s.config.DistinctIPWindow))
	if err != nil {
		// The suspicious-address indicator above is still worth returning.
		return indicators, nil
	}
	if distinct > s.config.DistinctIPThreshold {
		indicators = append(indicators, s.newIndicator(
			threat.KindNetwork,
			threat.SeverityLow,
			fmt.Sprintf("IP hopping: %d distinct addresses in %d hours",
				distinct, int(s.config.DistinctIPWindow/time.Hour)),
			map[string]interface{}{"distinct_ips": distinct},
		))
	}

	return indicators, nil
}

func (s *Service) newIndicator(kind threat.IndicatorKind, severity threat.Severity, description string, metadata map[string]interface{}) threat.Indicator {
	return threat.Indicator{
		ID:          uuid.New(),
		Kind:        kind,
		Severity:    severity,
		Description: description,
		Metadata:    metadata,
		Timestamp:   s.now(),
	}
}

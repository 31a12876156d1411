package threatscore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/patentworks/security-core/internal/domain/threat"
)

// maxReportIndicators bounds the ranked indicator list on a report.
const maxReportIndicators = 10

// GenerateThreatReport reconstructs threat activity over a window from the
// event log and joins it with the current in-memory risk profiles. It is a
// pure read: no score state is touched. A store failure degrades the report
// to in-memory data only.
func (s *Service) GenerateThreatReport(ctx context.Context, start, end time.Time, subjectID string) *threat.Report {
	report := &threat.Report{
		ID:             uuid.New(),
		StartDate:      start,
		EndDate:        end,
		SubjectID:      subjectID,
		SeverityCounts: make(map[threat.Severity]int),
		GeneratedAt:    s.now(),
	}

	events, err := s.store.EventsInRange(ctx, start, end, subjectID)
	if err != nil {
		s.logger.Warn("event log unavailable for report, using in-memory state only",
			zap.Error(err))
		events = nil
	}

	byDescription := make(map[string]int)
	for _, ev := range events {
		report.TotalEvents++
		report.SeverityCounts[ev.Severity]++
		if ev.Description != "" {
			byDescription[ev.Description]++
		}
	}

	for desc, count := range byDescription {
		report.TopIndicators = append(report.TopIndicators, threat.IndicatorCount{
			Description: desc,
			Count:       count,
		})
	}
	sort.Slice(report.TopIndicators, func(i, j int) bool {
		if report.TopIndicators[i].Count != report.TopIndicators[j].Count {
			return report.TopIndicators[i].Count > report.TopIndicators[j].Count
		}
		return report.TopIndicators[i].Description < report.TopIndicators[j].Description
	})
	if len(report.TopIndicators) > maxReportIndicators {
		report.TopIndicators = report.TopIndicators[:maxReportIndicators]
	}

	if subjectID != "" {
		if score, ok := s.GetThreatScore(subjectID); ok {
			report.RiskProfiles = []threat.Score{score}
		}
	} else {
		report.RiskProfiles = s.GetAllThreatScores()
	}

	return report
}

package auditrisk

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/patentworks/security-core/internal/domain/audit"
	"github.com/patentworks/security-core/internal/domain/values"
)

// defaultTrailLimit is the page size used when a caller does not ask for a
// specific number of trail entries.
const defaultTrailLimit = 100

// Service is the audit risk tracker: every recorded action produces a trail
// entry, bumps a daily metric bucket, folds into the user's risk assessment,
// and is logged to the event sink. All four effects are unconditional; none
// is gated on the others succeeding.
type Service struct {
	store  Store
	sink   EventSink
	logger *zap.Logger
	config Config

	mu          sync.Mutex
	trails      []audit.Trail
	metrics     []*audit.Metric
	assessments *lru.Cache[string, *audit.Assessment]

	now func() time.Time
}

// NewService creates an audit risk tracker. Assessments live in an LRU
// bounded at AssessmentCacheSize; trails and metrics are FIFO-capped lists.
func NewService(store Store, sink EventSink, logger *zap.Logger, cfg Config) *Service {
	if cfg.AssessmentCacheSize <= 0 {
		cfg.AssessmentCacheSize = DefaultConfig().AssessmentCacheSize
	}
	assessments, _ := lru.New[string, *audit.Assessment](cfg.AssessmentCacheSize)

	return &Service{
		store:       store,
		sink:        sink,
		logger:      logger,
		config:      cfg,
		assessments: assessments,
		now:         time.Now,
	}
}

// RecordAuditEvent records one user action. The action is classified once and
// the resulting risk level drives all four side effects. A failed user lookup
// records the trail under "Unknown" rather than dropping it.
func (s *Service) RecordAuditEvent(ctx context.Context, userID, action, resource, resourceID string, details map[string]interface{}, origin values.Origin) audit.Trail {
	level := audit.ClassifyAction(action, resource, details)

	userName, err := s.store.ResolveUserName(ctx, userID)
	if err != nil || userName == "" {
		if err != nil {
			s.logger.Warn("user lookup failed, recording as Unknown",
				zap.String("user_id", userID),
				zap.Error(err))
		}
		userName = "Unknown"
	}

	now := s.now()
	trail := audit.Trail{
		ID:         uuid.New(),
		UserID:     userID,
		UserName:   userName,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		Origin:     origin,
		Timestamp:  now,
		RiskLevel:  level,
	}

	s.mu.Lock()
	s.trails = values.AppendBounded(s.trails, trail, audit.MaxTrailEntries)
	s.incrementMetricLocked(resource, action, now)
	s.updateAssessmentLocked(userID, level, action, resource, now)
	s.mu.Unlock()

	s.sink.LogSecurityEvent(ctx, audit.LogEntry{
		EventType: "audit_" + action,
		Message:   action + " on " + resource,
		Severity:  string(level),
		UserID:    userID,
		Origin:    &origin,
		Metadata: map[string]interface{}{
			"resource":    resource,
			"resource_id": resourceID,
			"risk_level":  string(level),
		},
	})

	if level == audit.RiskCritical || level == audit.RiskHigh {
		s.logger.Warn("high risk action recorded",
			zap.String("user_id", userID),
			zap.String("action", action),
			zap.String("resource", resource),
			zap.String("risk_level", string(level)))
	}

	return trail
}

// incrementMetricLocked finds or creates the (resource, action) bucket for the
// day containing ts and bumps it. Caller holds s.mu.
func (s *Service) incrementMetricLocked(resource, action string, ts time.Time) {
	name := audit.MetricName(resource, action)
	for _, m := range s.metrics {
		if m.SameBucket(name, ts) {
			m.Increment()
			return
		}
	}

	m := audit.NewMetric(resource, action, s.config.MetricThreshold, ts)
	m.Increment()
	s.metrics = values.AppendBounded(s.metrics, m, audit.MaxMetricEntries)
}

// updateAssessmentLocked folds one classified action into the user's
// assessment, creating it on first sight. Caller holds s.mu.
func (s *Service) updateAssessmentLocked(userID string, level audit.RiskLevel, action, resource string, now time.Time) {
	assessment, ok := s.assessments.Get(userID)
	if !ok {
		assessment = audit.NewAssessment(userID, now)
		s.assessments.Add(userID, assessment)
	}
	assessment.Record(now, level, action+" on "+resource)
}

// GetAuditTrails returns trail entries newest first, optionally filtered to
// one user and a time window. Zero start/end values leave that edge of the
// window open; a non-positive limit means the default page size.
func (s *Service) GetAuditTrails(userID string, start, end time.Time, limit int) []audit.Trail {
	if limit <= 0 {
		limit = defaultTrailLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]audit.Trail, 0, limit)
	for i := len(s.trails) - 1; i >= 0 && len(out) < limit; i-- {
		t := s.trails[i]
		if userID != "" && t.UserID != userID {
			continue
		}
		if !start.IsZero() && t.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && t.Timestamp.After(end) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// GetSecurityMetrics returns copies of every metric bucket, newest day first.
func (s *Service) GetSecurityMetrics() []audit.Metric {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]audit.Metric, 0, len(s.metrics))
	for _, m := range s.metrics {
		out = append(out, *m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Day.After(out[j].Day)
	})
	return out
}

// GetUserRiskAssessment returns a copy of one user's assessment.
func (s *Service) GetUserRiskAssessment(userID string) (audit.Assessment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	assessment, ok := s.assessments.Get(userID)
	if !ok {
		return audit.Assessment{}, false
	}
	return copyAssessment(assessment), true
}

// GetAllRiskAssessments returns copies of every assessment, highest score
// first.
func (s *Service) GetAllRiskAssessments() []audit.Assessment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]audit.Assessment, 0, s.assessments.Len())
	for _, key := range s.assessments.Keys() {
		if assessment, ok := s.assessments.Peek(key); ok {
			out = append(out, copyAssessment(assessment))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Value.Score > out[j].Value.Score
	})
	return out
}

// CleanupOldData drops trail entries and metric buckets older than the
// configured retention window and evicts assessments that have not been
// updated inside it. It returns the number of items removed.
func (s *Service) CleanupOldData() int {
	cutoff := s.now().Add(-s.config.MaxEntryAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0

	kept := s.trails[:0]
	for _, t := range s.trails {
		if t.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	s.trails = kept

	keptMetrics := s.metrics[:0]
	for _, m := range s.metrics {
		if m.Day.Before(cutoff.Truncate(24 * time.Hour)) {
			removed++
			continue
		}
		keptMetrics = append(keptMetrics, m)
	}
	s.metrics = keptMetrics

	for _, key := range s.assessments.Keys() {
		if assessment, ok := s.assessments.Peek(key); ok {
			if assessment.LastAssessment.Before(cutoff) {
				s.assessments.Remove(key)
				removed++
			}
		}
	}

	if removed > 0 {
		s.logger.Info("audit retention cleanup complete",
			zap.Int("removed", removed),
			zap.Time("cutoff", cutoff))
	}
	return removed
}

func copyAssessment(a *audit.Assessment) audit.Assessment {
	out := *a
	out.Factors = make([]audit.Factor, len(a.Factors))
	copy(out.Factors, a.Factors)
	out.Recommendations = make([]string, len(a.Recommendations))
	copy(out.Recommendations, a.Recommendations)
	return out
}

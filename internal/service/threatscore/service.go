package threatscore

import (
	"context"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/patentworks/security-core/internal/domain/errors"
	"github.com/patentworks/security-core/internal/domain/threat"
	"github.com/patentworks/security-core/internal/domain/values"
)

// Service is the threat scoring engine: it runs a battery of detectors over
// incoming security events and folds the resulting indicators into decaying
// per-subject scores. One instance per process; all state is in memory.
type Service struct {
	store  EventStore
	logger *zap.Logger
	config Config

	mu            sync.Mutex
	scores        *lru.Cache[string, *threat.Score]
	rules         []threat.SecurityRule
	suspiciousIPs map[string]struct{}

	now func() time.Time
}

// NewService creates a threat scoring engine. The per-subject score map is an
// LRU bounded at SubjectCacheSize; an evicted subject simply starts from zero
// again, which is consistent with the decay semantics.
func NewService(store EventStore, logger *zap.Logger, cfg Config) *Service {
	if cfg.SubjectCacheSize <= 0 {
		cfg.SubjectCacheSize = DefaultConfig().SubjectCacheSize
	}
	scores, _ := lru.New[string, *threat.Score](cfg.SubjectCacheSize)

	suspicious := make(map[string]struct{}, len(cfg.SuspiciousIPs))
	for _, ip := range cfg.SuspiciousIPs {
		suspicious[ip] = struct{}{}
	}

	return &Service{
		store:         store,
		logger:        logger,
		config:        cfg,
		scores:        scores,
		suspiciousIPs: suspicious,
		now:           time.Now,
	}
}

// AnalyzeEvent runs every detector applicable to the event's category,
// updates the subject's score with whatever indicators were emitted, and
// returns them. It never fails: detector errors are logged and produce no
// indicator, and an unrecognized event type yields an empty batch without
// touching the score.
func (s *Service) AnalyzeEvent(ctx context.Context, subjectID, eventType string, metadata map[string]interface{}, origin *values.Origin) []threat.Indicator {
	indicators := []threat.Indicator{}

	for _, det := range s.detectorsFor(eventType, metadata, origin) {
		batch, err := det.fn(ctx, subjectID, eventType, metadata, origin)
		if err != nil {
			s.logger.Warn("detector failed, skipping",
				zap.String("detector", det.name),
				zap.String("subject_id", subjectID),
				zap.Error(err))
			continue
		}
		indicators = append(indicators, batch...)
	}

	s.UpdateScore(subjectID, indicators)
	return indicators
}

// UpdateScore folds a batch of indicators into the subject's score. An empty
// batch is a no-op: the score is neither created nor decayed.
func (s *Service) UpdateScore(subjectID string, indicators []threat.Indicator) {
	if len(indicators) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	score, ok := s.scores.Get(subjectID)
	if !ok {
		score = threat.NewScore(subjectID, now)
		s.scores.Add(subjectID, score)
	}
	score.Apply(now, indicators)

	if score.Level == threat.LevelCritical || score.Level == threat.LevelHighRisk {
		s.logger.Warn("subject risk level elevated",
			zap.String("subject_id", subjectID),
			zap.Int("score", score.Value.Score),
			zap.String("level", string(score.Level)))
	}
}

// GetThreatScore returns a copy of the subject's current score.
func (s *Service) GetThreatScore(subjectID string) (threat.Score, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	score, ok := s.scores.Get(subjectID)
	if !ok {
		return threat.Score{}, false
	}
	return copyScore(score), true
}

// GetAllThreatScores returns copies of every tracked score, highest first.
func (s *Service) GetAllThreatScores() []threat.Score {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]threat.Score, 0, s.scores.Len())
	for _, key := range s.scores.Keys() {
		if score, ok := s.scores.Peek(key); ok {
			out = append(out, copyScore(score))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Value.Score > out[j].Value.Score
	})
	return out
}

// AddRule registers a security rule and keeps the registry sorted by priority.
func (s *Service) AddRule(rule threat.SecurityRule) error {
	if rule.ID == "" {
		return errors.NewValidationError("INVALID_RULE", "rule id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rules {
		if r.ID == rule.ID {
			return errors.ErrDuplicateRule
		}
	}
	s.rules = append(s.rules, rule)
	s.sortRulesLocked()
	return nil
}

// UpdateRule replaces a rule by id, preserving the priority ordering.
func (s *Service) UpdateRule(rule threat.SecurityRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rules {
		if r.ID == rule.ID {
			s.rules[i] = rule
			s.sortRulesLocked()
			return nil
		}
	}
	return errors.ErrRuleNotFound
}

// DeleteRule removes a rule by id.
func (s *Service) DeleteRule(ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rules {
		if r.ID == ruleID {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return errors.ErrRuleNotFound
}

// GetRules returns the registry sorted ascending by priority.
func (s *Service) GetRules() []threat.SecurityRule {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]threat.SecurityRule, len(s.rules))
	copy(out, s.rules)
	return out
}

func (s *Service) sortRulesLocked() {
	sort.SliceStable(s.rules, func(i, j int) bool {
		return s.rules[i].Priority < s.rules[j].Priority
	})
}

func copyScore(score *threat.Score) threat.Score {
	out := *score
	out.Factors = make([]string, len(score.Factors))
	copy(out.Factors, score.Factors)
	return out
}

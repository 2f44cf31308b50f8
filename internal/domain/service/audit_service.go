package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KynuxDev/DiscordLite/internal/domain/models"
	"github.com/KynuxDev/DiscordLite/internal/domain/repository"
	"github.com/KynuxDev/DiscordLite/internal/utils/metrics"
)

// EventPublisher pushes security events to an external bus; best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event *models.SecurityEvent) error
}

// riskRecorder is the slice of the risk tracker the sink feeds.
type riskRecorder interface {
	RecordEvent(origin string, kind models.EventKind, severity int)
}

const (
	persistTimeout     = 5 * time.Second
	suppressionWindow  = 5 * time.Minute
	suppressionTrigger = 3
)

// AuditService is the security event sink. Record never fails to its caller:
// persistence and publication errors are logged and swallowed, because the
// event log is analytics, not an authorization input.
type AuditService struct {
	logger    *zap.Logger
	events    repository.EventRepository
	risk      riskRecorder
	publisher EventPublisher

	// Duplicate suppression for store-failure logging. Affects log volume
	// only, never event handling.
	mu       sync.Mutex
	errSeen  map[string]int
	errMuted map[string]time.Time
}

func NewAuditService(logger *zap.Logger, events repository.EventRepository, risk riskRecorder, publisher EventPublisher) *AuditService {
	return &AuditService{
		logger:    logger,
		events:    events,
		risk:      risk,
		publisher: publisher,
		errSeen:   make(map[string]int),
		errMuted:  make(map[string]time.Time),
	}
}

// Record persists the event asynchronously, forwards origin-bearing events to
// the risk tracker, and publishes to the event bus when configured.
func (s *AuditService) Record(event *models.SecurityEvent) {
	if event == nil {
		return
	}
	metrics.SecurityEvents.WithLabelValues(string(event.Kind)).Inc()

	// Risk feed is synchronous: autoban must fire within the same
	// event-processing step.
	if s.risk != nil && event.Origin != "" && event.Severity >= 2 && feedsRisk(event.Kind) {
		s.risk.RecordEvent(event.Origin, event.Kind, event.Severity)
	}

	go s.persist(event)

	if s.publisher != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			if err := s.publisher.Publish(ctx, event); err != nil {
				s.logSuppressed("publish", err)
			}
		}()
	}
}

func (s *AuditService) persist(event *models.SecurityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.events.Save(ctx, event); err != nil {
		s.logSuppressed("persist", err)
	}
}

// Query exposes the event log to the administrative surface.
func (s *AuditService) Query(ctx context.Context, filter models.EventFilter, limit, offset int) ([]*models.SecurityEvent, int64, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	list, err := s.events.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.events.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// PruneOlderThan drops events past the retention horizon.
func (s *AuditService) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.events.DeleteOlderThan(ctx, cutoff)
}

// feedsRisk excludes enforcement outcomes from the risk window. A ban is the
// response to risk, not a new signal; feeding it back would pin the origin at
// its elevated level.
func feedsRisk(kind models.EventKind) bool {
	return kind != models.EventBan && kind != models.EventUnban
}

// logSuppressed rate-limits repeated identical failure logs so an outage does
// not turn into an alert storm.
func (s *AuditService) logSuppressed(op string, err error) {
	key := op + ":" + err.Error()
	now := time.Now()

	s.mu.Lock()
	if until, muted := s.errMuted[key]; muted {
		if now.Before(until) {
			s.mu.Unlock()
			return
		}
		delete(s.errMuted, key)
		delete(s.errSeen, key)
	}
	s.errSeen[key]++
	count := s.errSeen[key]
	if count >= suppressionTrigger {
		s.errMuted[key] = now.Add(suppressionWindow)
	}
	s.mu.Unlock()

	fields := []zap.Field{zap.String("op", op), zap.Error(err)}
	if count >= suppressionTrigger {
		fields = append(fields, zap.Duration("muted_for", suppressionWindow))
	}
	s.logger.Warn("security event delivery failed", fields...)
}

package service

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KynuxDev/DiscordLite/internal/config"
	"github.com/KynuxDev/DiscordLite/internal/domain/models"
	"github.com/KynuxDev/DiscordLite/internal/utils/metrics"
)

// autobanner is the slice of the ban enforcer the tracker escalates to.
type autobanner interface {
	Autoban(origin string, score int)
	AutobanFixed(origin, reason string, duration time.Duration)
}

type riskEvent struct {
	kind     models.EventKind
	severity int
	at       time.Time
}

// originWindow holds one origin's sliding event window. Each origin has its own
// lock so the tick thread never contends with unrelated origins.
type originWindow struct {
	mu     sync.Mutex
	events []riskEvent
	level  models.ThreatLevel
}

type failedAttempt struct {
	count     int
	firstSeen time.Time
	lastSeen  time.Time
}

// RiskTracker keeps a per-origin sliding window of security events and derives
// a bounded risk score and threat level from it. It also runs the cheaper
// fixed-threshold failed-attempt path; the two autoban paths are deliberately
// redundant.
type RiskTracker struct {
	logger   *zap.Logger
	cfg      config.RiskConfig
	banCfg   config.BanConfig
	windows  sync.Map // origin -> *originWindow
	failures sync.Map // origin -> *failedAttempt, entries replaced whole under failMu
	failMu   sync.Mutex
	enforcer autobanner

	elevated sync.Map // origin -> struct{}, origins above LOW, for the gauge
}

func NewRiskTracker(logger *zap.Logger, cfg config.RiskConfig, banCfg config.BanConfig) *RiskTracker {
	return &RiskTracker{
		logger: logger,
		cfg:    cfg,
		banCfg: banCfg,
	}
}

// BindEnforcer wires the ban enforcer after construction; the enforcer in turn
// clears failure counters through the tracker, so neither can own the other.
func (t *RiskTracker) BindEnforcer(e autobanner) {
	t.enforcer = e
}

// RecordEvent appends an event to the origin's window, recomputes the score and
// level, and escalates to an autoban when the score crosses the critical
// threshold. Score computation happens under the origin lock; enforcement
// happens after it is released.
func (t *RiskTracker) RecordEvent(origin string, kind models.EventKind, severity int) {
	if origin == "" {
		return
	}
	v, _ := t.windows.LoadOrStore(origin, &originWindow{})
	w := v.(*originWindow)

	w.mu.Lock()
	now := time.Now()
	w.events = append(w.events, riskEvent{kind: kind, severity: severity, at: now})
	w.events = pruneWindow(w.events, now.Add(-t.cfg.Window))
	score := t.score(w.events)
	newLevel := t.levelFor(score)
	oldLevel := w.level
	w.level = newLevel
	w.mu.Unlock()

	if newLevel != oldLevel {
		t.logger.Warn("threat level changed",
			zap.String("origin", origin),
			zap.Stringer("from", oldLevel),
			zap.Stringer("to", newLevel),
			zap.Int("score", score))
		t.trackElevated(origin, newLevel)
	}

	if newLevel == models.ThreatCritical && t.enforcer != nil {
		t.enforcer.Autoban(origin, score)
	}

	// Failure kinds also advance the fixed-threshold counter, so a burst of
	// failed logins trips the fast path even when the score stays low.
	if kind == models.EventFailedLogin || kind == models.EventBruteForce {
		t.RecordFailure(origin, string(kind))
	}
}

// RecordFailure advances the fixed-threshold failed-attempt counter. Reaching
// the limit within the window triggers the fast-path autoban.
func (t *RiskTracker) RecordFailure(origin, reason string) {
	if origin == "" {
		return
	}
	now := time.Now()

	t.failMu.Lock()
	var fa *failedAttempt
	if v, ok := t.failures.Load(origin); ok {
		fa = v.(*failedAttempt)
	}
	if fa == nil || now.Sub(fa.lastSeen) > t.banCfg.FailedAttemptWindow {
		fa = &failedAttempt{count: 1, firstSeen: now, lastSeen: now}
	} else {
		fa = &failedAttempt{count: fa.count + 1, firstSeen: fa.firstSeen, lastSeen: now}
	}
	t.failures.Store(origin, fa)
	count := fa.count
	t.failMu.Unlock()

	t.logger.Warn("failed attempt recorded",
		zap.String("origin", origin),
		zap.String("reason", reason),
		zap.Int("count", count),
		zap.Int("limit", t.banCfg.FailedAttemptLimit))

	if count >= t.banCfg.FailedAttemptLimit && t.enforcer != nil {
		t.enforcer.AutobanFixed(origin, "repeated failed attempts", t.banCfg.AutobanDuration)
	}
}

// ClearFailures resets the failed-attempt counter, e.g. after a successful
// challenge approval or a completed ban.
func (t *RiskTracker) ClearFailures(origin string) {
	t.failures.Delete(origin)
}

// CurrentLevel returns the origin's threat level, LOW for unseen origins. The
// window is pruned on read so a long-quiet origin decays without new events.
func (t *RiskTracker) CurrentLevel(origin string) models.ThreatLevel {
	v, ok := t.windows.Load(origin)
	if !ok {
		return models.ThreatLow
	}
	w := v.(*originWindow)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = pruneWindow(w.events, time.Now().Add(-t.cfg.Window))
	w.level = t.levelFor(t.score(w.events))
	return w.level
}

// FailureCount reports the current failed-attempt count for an origin.
func (t *RiskTracker) FailureCount(origin string) int {
	if v, ok := t.failures.Load(origin); ok {
		return v.(*failedAttempt).count
	}
	return 0
}

// Sweep drops stale windows and expired failure counters. Called from the
// periodic cleanup job.
func (t *RiskTracker) Sweep() {
	cutoff := time.Now().Add(-t.cfg.Window)
	t.windows.Range(func(key, value any) bool {
		w := value.(*originWindow)
		w.mu.Lock()
		w.events = pruneWindow(w.events, cutoff)
		empty := len(w.events) == 0
		w.mu.Unlock()
		if empty {
			t.windows.Delete(key)
			t.trackElevated(key.(string), models.ThreatLow)
		}
		return true
	})

	now := time.Now()
	t.failures.Range(func(key, value any) bool {
		if now.Sub(value.(*failedAttempt).lastSeen) > t.banCfg.FailedAttemptWindow {
			t.failures.Delete(key)
		}
		return true
	})
}

// score implements the policy formula:
//
//	min(100, eventWeight*n + severityWeight*sum(sev) + kindWeight*kinds + burstBonus)
//
// with the burst bonus applied when the window's span is within BurstSpan.
func (t *RiskTracker) score(events []riskEvent) int {
	if len(events) == 0 {
		return 0
	}

	score := t.cfg.EventWeight * len(events)

	kinds := make(map[models.EventKind]struct{}, len(events))
	for _, e := range events {
		score += t.cfg.SeverityWeight * e.severity
		kinds[e.kind] = struct{}{}
	}
	score += t.cfg.KindWeight * len(kinds)

	span := events[len(events)-1].at.Sub(events[0].at)
	if span <= t.cfg.BurstSpan {
		score += t.cfg.BurstBonus
	}

	if score > 100 {
		return 100
	}
	return score
}

func (t *RiskTracker) levelFor(score int) models.ThreatLevel {
	switch {
	case score >= t.cfg.CriticalThreshold:
		return models.ThreatCritical
	case score >= t.cfg.HighThreshold:
		return models.ThreatHigh
	case score >= t.cfg.MediumThreshold:
		return models.ThreatMedium
	default:
		return models.ThreatLow
	}
}

func (t *RiskTracker) trackElevated(origin string, level models.ThreatLevel) {
	if level == models.ThreatLow {
		if _, loaded := t.elevated.LoadAndDelete(origin); loaded {
			metrics.ActiveThreats.Dec()
		}
		return
	}
	if _, loaded := t.elevated.LoadOrStore(origin, struct{}{}); !loaded {
		metrics.ActiveThreats.Inc()
	}
}

func pruneWindow(events []riskEvent, cutoff time.Time) []riskEvent {
	i := 0
	for i < len(events) && events[i].at.Before(cutoff) {
		i++
	}
	if i == 0 {
		return events
	}
	return append(events[:0:0], events[i:]...)
}

package gameserver

import (
	"sync"

	"go.uber.org/zap"

	"github.com/KynuxDev/DiscordLite/internal/domain/interfaces"
)

type session struct {
	id        string
	accountID string
	origin    string
	frozen    bool
}

// Registry tracks live sessions and implements interfaces.GameSessions.
// Reads take the lock directly; mutations are marshaled onto the scheduler
// goroutine so they interleave safely with the rest of the game state.
type Registry struct {
	logger    *zap.Logger
	scheduler *Scheduler

	mu        sync.RWMutex
	byID      map[string]*session
	byAccount map[string]string

	// kick and message are the embedding server's transport callbacks. Both
	// run on the scheduler goroutine.
	kick    func(sessionID, reason string)
	message func(sessionID, text string)
}

var _ interfaces.GameSessions = (*Registry)(nil)

func NewRegistry(logger *zap.Logger, scheduler *Scheduler) *Registry {
	return &Registry{
		logger:    logger,
		scheduler: scheduler,
		byID:      make(map[string]*session),
		byAccount: make(map[string]string),
		kick:      func(string, string) {},
		message:   func(string, string) {},
	}
}

// OnKick registers the transport callback invoked when a session is kicked.
func (r *Registry) OnKick(fn func(sessionID, reason string)) { r.kick = fn }

// OnMessage registers the transport callback for chat delivery.
func (r *Registry) OnMessage(fn func(sessionID, text string)) { r.message = fn }

// Add registers a live session. Called from the session-start hook.
func (r *Registry) Add(sessionID, accountID, origin string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[sessionID] = &session{id: sessionID, accountID: accountID, origin: origin}
	r.byAccount[accountID] = sessionID
}

// Remove drops a session. Called from the session-quit hook.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[sessionID]
	if !ok {
		return
	}
	delete(r.byID, sessionID)
	if r.byAccount[s.accountID] == sessionID {
		delete(r.byAccount, s.accountID)
	}
}

func (r *Registry) Lookup(accountID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byAccount[accountID]
	return id, ok
}

func (r *Registry) OriginOf(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[sessionID]
	if !ok {
		return "", false
	}
	return s.origin, true
}

func (r *Registry) SessionsByOrigin(origin string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, s := range r.byID {
		if s.origin == origin {
			ids = append(ids, id)
		}
	}
	return ids
}

// IsFrozen reports whether the session is held awaiting a challenge verdict.
// The server's movement and command handlers consult this every tick.
func (r *Registry) IsFrozen(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[sessionID]
	return ok && s.frozen
}

func (r *Registry) Freeze(sessionID string) {
	r.scheduler.Submit(func() { r.setFrozen(sessionID, true) })
}

func (r *Registry) Unfreeze(sessionID string) {
	r.scheduler.Submit(func() { r.setFrozen(sessionID, false) })
}

func (r *Registry) Kick(sessionID, reason string) {
	r.scheduler.Submit(func() {
		r.mu.Lock()
		s, ok := r.byID[sessionID]
		if ok {
			delete(r.byID, sessionID)
			if r.byAccount[s.accountID] == sessionID {
				delete(r.byAccount, s.accountID)
			}
		}
		r.mu.Unlock()
		if !ok {
			return
		}
		r.logger.Info("session kicked",
			zap.String("session_id", sessionID),
			zap.String("account_id", s.accountID),
			zap.String("reason", reason))
		r.kick(sessionID, reason)
	})
}

func (r *Registry) Message(sessionID, text string) {
	r.scheduler.Submit(func() {
		r.mu.RLock()
		_, ok := r.byID[sessionID]
		r.mu.RUnlock()
		if ok {
			r.message(sessionID, text)
		}
	})
}

func (r *Registry) RunOnGameThread(fn func()) {
	r.scheduler.Submit(fn)
}

func (r *Registry) setFrozen(sessionID string, frozen bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[sessionID]; ok {
		s.frozen = frozen
	}
}

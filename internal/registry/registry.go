package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/mancala-backend/internal/apperror"
	"github.com/rocketscienceinc/mancala-backend/internal/entity"
	"github.com/rocketscienceinc/mancala-backend/internal/pkg"
)

const (
	roleHost   = 0
	roleJoiner = 1
)

// Session pairs a game with its two participant identities. Slot 0 is the
// host, slot 1 the joiner; an empty string means the slot is free.
//
// All reads and writes of Game and the participant slots must happen with the
// session lock held; the registry only claims the joiner slot itself.
type Session struct {
	mu sync.Mutex

	Game         *entity.Game
	participants [2]string
	createdAt    time.Time
}

func (that *Session) Lock() { that.mu.Lock() }

func (that *Session) Unlock() { that.mu.Unlock() }

// RoleOf resolves a participant identity to its role. Callers must hold the
// session lock. Client-declared roles are never trusted; this is the only
// source of truth.
func (that *Session) RoleOf(participantID string) (int, bool) {
	if participantID == "" {
		return 0, false
	}

	if that.participants[roleHost] == participantID {
		return roleHost, true
	}

	if that.participants[roleJoiner] == participantID {
		return roleJoiner, true
	}

	return 0, false
}

// Registry is the process-wide session table. It owns session lifetimes:
// creation, the atomic joiner-slot claim, and eviction after the grace period.
type Registry struct {
	logger        *slog.Logger
	evictionGrace time.Duration
	onEvict       func(gameID string)

	mu            sync.RWMutex
	sessions      map[string]*Session
	byParticipant map[string]string
	evictions     map[string]*time.Timer
}

// New creates a registry. onEvict is called after a session has been removed,
// outside any registry lock; it may be nil.
func New(logger *slog.Logger, evictionGrace time.Duration, onEvict func(gameID string)) *Registry {
	return &Registry{
		logger:        logger.With("component", "registry"),
		evictionGrace: evictionGrace,
		onEvict:       onEvict,

		sessions:      make(map[string]*Session),
		byParticipant: make(map[string]string),
		evictions:     make(map[string]*time.Timer),
	}
}

// Create opens a new session hosted by hostID and returns it with a fresh
// waiting game under an unguessable id.
func (that *Registry) Create(hostID string) *Session {
	session := &Session{
		Game:         entity.NewGame(pkg.GenerateGameID()),
		participants: [2]string{hostID, ""},
		createdAt:    time.Now(),
	}

	that.mu.Lock()
	that.sessions[session.Game.ID] = session
	that.byParticipant[hostID] = session.Game.ID
	that.mu.Unlock()

	that.logger.Info("session created", "gameID", session.Game.ID)

	return session
}

func (that *Registry) Get(gameID string) (*Session, error) {
	that.mu.RLock()
	session, ok := that.sessions[gameID]
	that.mu.RUnlock()

	if !ok {
		return nil, apperror.ErrSessionNotFound
	}

	return session, nil
}

// Join claims the free joiner slot for joinerID. The claim is a single
// compare-and-set under the session lock: of two concurrent callers exactly
// one succeeds, the other gets ErrSessionFull. A participant already in the
// session gets its existing role back without any state change.
func (that *Registry) Join(gameID, joinerID string) (*Session, int, error) {
	session, err := that.Get(gameID)
	if err != nil {
		return nil, 0, err
	}

	session.Lock()

	if role, ok := session.RoleOf(joinerID); ok {
		session.Unlock()
		return session, role, nil
	}

	if session.participants[roleJoiner] != "" {
		session.Unlock()
		return nil, 0, apperror.ErrSessionFull
	}

	if !session.Game.IsWaiting() {
		// The host left before anyone joined; the session is on its way out.
		session.Unlock()
		return nil, 0, apperror.ErrSessionNotFound
	}

	session.participants[roleJoiner] = joinerID
	session.Game.Status = entity.StatusInProgress
	session.Unlock()

	that.mu.Lock()
	that.byParticipant[joinerID] = gameID
	that.mu.Unlock()

	that.logger.Info("participant joined session", "gameID", gameID)

	return session, roleJoiner, nil
}

// ByParticipant returns the session the given identity takes part in.
func (that *Registry) ByParticipant(participantID string) (*Session, error) {
	that.mu.RLock()
	gameID, ok := that.byParticipant[participantID]
	that.mu.RUnlock()

	if !ok {
		return nil, apperror.ErrSessionNotFound
	}

	return that.Get(gameID)
}

// Remove drops the session and its participant mappings. Safe to call more
// than once for the same id.
func (that *Registry) Remove(gameID string) {
	that.mu.Lock()
	session, ok := that.sessions[gameID]
	if !ok {
		that.mu.Unlock()
		return
	}

	delete(that.sessions, gameID)

	if timer, pending := that.evictions[gameID]; pending {
		timer.Stop()
		delete(that.evictions, gameID)
	}
	that.mu.Unlock()

	session.Lock()
	participants := session.participants
	session.Unlock()

	that.mu.Lock()
	for _, participantID := range participants {
		if participantID != "" && that.byParticipant[participantID] == gameID {
			delete(that.byParticipant, participantID)
		}
	}
	that.mu.Unlock()

	that.logger.Info("session removed", "gameID", gameID)

	if that.onEvict != nil {
		that.onEvict(gameID)
	}
}

// ScheduleEviction arms the grace timer for a finished or cancelled session.
// Re-arming replaces any pending timer.
func (that *Registry) ScheduleEviction(gameID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.sessions[gameID]; !ok {
		return
	}

	if timer, pending := that.evictions[gameID]; pending {
		timer.Stop()
	}

	that.evictions[gameID] = time.AfterFunc(that.evictionGrace, func() {
		that.Remove(gameID)
	})
}

// CancelEviction disarms a pending eviction, used when a rematch revives a
// finished session.
func (that *Registry) CancelEviction(gameID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if timer, pending := that.evictions[gameID]; pending {
		timer.Stop()
		delete(that.evictions, gameID)
	}
}

// RunStaleSweeper periodically evicts sessions that never got a second
// participant. Blocks until ctx is done.
func (that *Registry) RunStaleSweeper(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			that.sweepStale(maxAge)
		}
	}
}

func (that *Registry) sweepStale(maxAge time.Duration) {
	that.mu.RLock()
	candidates := make([]*Session, 0, len(that.sessions))
	for _, session := range that.sessions {
		candidates = append(candidates, session)
	}
	that.mu.RUnlock()

	cutoff := time.Now().Add(-maxAge)

	for _, session := range candidates {
		session.Lock()
		stale := session.Game.IsWaiting() && session.createdAt.Before(cutoff)
		gameID := session.Game.ID
		session.Unlock()

		if stale {
			that.logger.Info("removing stale waiting session", "gameID", gameID)
			that.Remove(gameID)
		}
	}
}

package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clinicbook/internal/logging"
)

// SessionRegistry keeps server-side booking sessions by id and expires idle
// ones.
type SessionRegistry struct {
	resolver SlotResolver
	writer   ReservationCreator
	cfg      SessionConfig
	idleTTL  time.Duration
	log      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionRegistry(resolver SlotResolver, writer ReservationCreator, cfg SessionConfig, idleTTL time.Duration, log *zap.Logger) *SessionRegistry {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SessionRegistry{
		resolver: resolver,
		writer:   writer,
		cfg:      cfg,
		idleTTL:  idleTTL,
		log:      logging.OrNop(log),
		sessions: make(map[string]*Session),
	}
}

func (r *SessionRegistry) Create() *Session {
	s := NewSession(uuid.NewString(), r.resolver, r.writer, r.cfg)
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	return s
}

func (r *SessionRegistry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove abandons and forgets the session.
func (r *SessionRegistry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Abandon()
	return nil
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep abandons sessions idle for longer than the TTL and returns how many
// were removed.
func (r *SessionRegistry) Sweep() int {
	cutoff := r.cfg.Now().Add(-r.idleTTL)
	var expired []*Session

	r.mu.Lock()
	for id, s := range r.sessions {
		if s.LastActive().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Abandon()
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done, then abandons all sessions.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.Info("expired idle booking sessions", zap.Int("count", n))
			}
		}
	}
}

func (r *SessionRegistry) closeAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Abandon()
	}
}

package handlers

import (
	"sync"
	"time"

	"github.com/kozaktomas/facevote/internal/protocol"
)

type sessionEntry struct {
	session *protocol.Session
	endedAt time.Time
}

// SessionRegistry holds the verification sessions started over HTTP. Ended
// sessions stay readable until the sweeper has seen them ended for a full
// interval, so a client can still fetch the final state.
type SessionRegistry struct {
	sessions map[string]*sessionEntry
	mu       sync.RWMutex
	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionRegistry creates an empty registry. Call Start to run the sweeper.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*sessionEntry),
		stop:     make(chan struct{}),
	}
}

func (r *SessionRegistry) Add(s *protocol.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = &sessionEntry{session: s}
}

// Get returns the session or nil.
func (r *SessionRegistry) Get(id string) *protocol.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[id]; ok {
		return e.session
	}
	return nil
}

func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops sessions that ended at least retention before now and returns
// how many were dropped.
func (r *SessionRegistry) Sweep(now time.Time, retention time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for id, e := range r.sessions {
		select {
		case <-e.session.Done():
		default:
			continue
		}
		if e.endedAt.IsZero() {
			e.endedAt = now
		}
		if now.Sub(e.endedAt) >= retention {
			delete(r.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Start runs Sweep every interval until Stop is called.
func (r *SessionRegistry) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case now := <-ticker.C:
				r.Sweep(now, interval)
			}
		}
	}()
}

// Stop halts the sweeper and cancels every session still active.
func (r *SessionRegistry) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.sessions {
		e.session.Cancel()
	}
}

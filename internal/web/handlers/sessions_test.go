package handlers

import (
	"testing"
	"time"

	"github.com/kozaktomas/facevote/internal/protocol"
	"github.com/kozaktomas/facevote/internal/verify"
)

func beginRemote(t *testing.T, p *protocol.Protocol) *protocol.Session {
	t.Helper()
	s, err := p.BeginVerification(t.Context(), "V1", nil)
	if err != nil {
		t.Fatalf("BeginVerification failed: %v", err)
	}
	return s
}

func TestSessionRegistry_SweepKeepsEndedSessionForOneInterval(t *testing.T) {
	store, _ := setupElection(t)
	p := protocol.New(store, verify.NewEngine(0.6, 3), protocol.DefaultPolicy(), testLogger())

	registry := NewSessionRegistry()
	active := beginRemote(t, p)
	ended := beginRemote(t, p)
	registry.Add(active)
	registry.Add(ended)
	t.Cleanup(registry.Stop)

	ended.Cancel()
	now := time.Now()

	if dropped := registry.Sweep(now, time.Minute); dropped != 0 {
		t.Errorf("first sweep must only mark the ended session, dropped %d", dropped)
	}
	if registry.Get(ended.ID) == nil {
		t.Fatal("ended session should still be readable")
	}

	if dropped := registry.Sweep(now.Add(time.Minute), time.Minute); dropped != 1 {
		t.Errorf("expected one session dropped, got %d", dropped)
	}
	if registry.Get(ended.ID) != nil {
		t.Error("ended session should be gone")
	}
	if registry.Get(active.ID) == nil {
		t.Error("active session must be kept")
	}
}

func TestSessionRegistry_StopCancelsActiveSessions(t *testing.T) {
	store, _ := setupElection(t)
	p := protocol.New(store, verify.NewEngine(0.6, 3), protocol.DefaultPolicy(), testLogger())

	registry := NewSessionRegistry()
	registry.Start(time.Hour)
	s := beginRemote(t, p)
	registry.Add(s)

	registry.Stop()
	registry.Stop()

	select {
	case <-s.Done():
	default:
		t.Fatal("expected session to be cancelled")
	}
	if s.State() != protocol.StateIdle {
		t.Errorf("expected idle, got %s", s.State())
	}
}

func TestSessionRegistry_Remove(t *testing.T) {
	store, _ := setupElection(t)
	p := protocol.New(store, verify.NewEngine(0.6, 3), protocol.DefaultPolicy(), testLogger())

	registry := NewSessionRegistry()
	s := beginRemote(t, p)
	registry.Add(s)
	t.Cleanup(s.Cancel)

	registry.Remove(s.ID)
	if registry.Len() != 0 {
		t.Errorf("expected empty registry, got %d", registry.Len())
	}
}

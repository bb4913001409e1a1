package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eidolonFIRE/xcNav-reflector/internal/proto"
	"github.com/eidolonFIRE/xcNav-reflector/internal/store"
)

// frame is one recorded outbound message.
type frame struct {
	action string
	body   any
}

// fakeConn records every frame sent to it.
type fakeConn struct {
	mu     sync.Mutex
	frames []frame
}

func (f *fakeConn) Send(action string, body any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame{action: action, body: body})
	return nil
}

func (f *fakeConn) all() []frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]frame(nil), f.frames...)
}

// last returns the most recent frame with the given action, or fails the test.
func (f *fakeConn) last(t *testing.T, action string) frame {
	t.Helper()
	frames := f.all()
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].action == action {
			return frames[i]
		}
	}
	t.Fatalf("no %q frame sent, got %+v", action, frames)
	return frame{}
}

func (f *fakeConn) count(action string) int {
	n := 0
	for _, fr := range f.all() {
		if fr.action == action {
			n++
		}
	}
	return n
}

// fakeStore is an in-memory profile store.
type fakeStore struct {
	mu       sync.Mutex
	profiles map[string]store.Profile
}

func newFakeStore() *fakeStore {
	return &fakeStore{profiles: make(map[string]store.Profile)}
}

func (s *fakeStore) FetchProfile(_ context.Context, id string) (*store.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *fakeStore) PersistProfile(_ context.Context, p store.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
	return nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) get(id string) (store.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	return p, ok
}

// fakeTier resolves identity hashes from a fixed table.
type fakeTier struct {
	tiers map[string]string
}

func (f *fakeTier) CheckHash(_ context.Context, hash string) (string, error) {
	return f.tiers[hash], nil
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	logger := zerolog.Nop()
	st := newFakeStore()
	reg := NewRegistry(&logger)
	svc := NewService(reg, st, &fakeTier{tiers: map[string]string{}}, &logger)
	return svc, st
}

// authPilot establishes an authenticated session with a fresh identity.
func authPilot(t *testing.T, svc *Service, name string) (*Client, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	client := svc.AuthRequest(context.Background(), conn, proto.AuthRequest{
		Pilot:      proto.PilotMeta{Name: name},
		APIVersion: proto.ProtocolVersion,
	})
	if client == nil {
		t.Fatalf("auth for %q failed: %+v", name, conn.all())
	}
	resp, ok := conn.last(t, proto.ActionAuthResponse).body.(proto.AuthResponse)
	if !ok || resp.Status != proto.StatusSuccess {
		t.Fatalf("unexpected auth response for %q: %+v", name, resp)
	}
	return client, conn
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

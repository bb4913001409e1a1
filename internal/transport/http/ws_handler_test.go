package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/eidolonFIRE/xcNav-reflector/internal/config"
	"github.com/eidolonFIRE/xcNav-reflector/internal/core"
	"github.com/eidolonFIRE/xcNav-reflector/internal/proto"
	"github.com/eidolonFIRE/xcNav-reflector/internal/store"
)

// memStore is a minimal in-memory profile store for transport tests.
type memStore struct {
	mu       sync.Mutex
	profiles map[string]store.Profile
}

func (s *memStore) FetchProfile(_ context.Context, id string) (*store.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *memStore) PersistProfile(_ context.Context, p store.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
	return nil
}

func (s *memStore) Close() error { return nil }

type nopTier struct{}

func (nopTier) CheckHash(context.Context, string) (string, error) { return "", nil }

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zerolog.Nop()
	reg := core.NewRegistry(&logger)
	svc := core.NewService(reg, &memStore{profiles: map[string]store.Profile{}}, nopTier{}, &logger)

	server := NewServer(svc, &config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func sendFrame(ctx context.Context, t *testing.T, conn *websocket.Conn, action string, body any) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal %s body: %v", action, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Envelope{Action: action, Body: raw}); err != nil {
		t.Fatalf("write %s: %v", action, err)
	}
}

// readFrame reads frames until one with the wanted action arrives.
func readFrame(ctx context.Context, t *testing.T, conn *websocket.Conn, action string, into any) {
	t.Helper()
	for {
		var env proto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			t.Fatalf("read waiting for %s: %v", action, err)
		}
		if env.Action != action {
			continue
		}
		if err := json.Unmarshal(env.Body, into); err != nil {
			t.Fatalf("unmarshal %s body: %v", action, err)
		}
		return
	}
}

func dialAndAuth(ctx context.Context, t *testing.T, wsURL, name, groupID string) (*websocket.Conn, proto.AuthResponse) {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })

	sendFrame(ctx, t, conn, proto.ActionAuthRequest, proto.AuthRequest{
		Pilot:      proto.PilotMeta{Name: name},
		GroupID:    groupID,
		APIVersion: proto.ProtocolVersion,
	})

	var resp proto.AuthResponse
	readFrame(ctx, t, conn, proto.ActionAuthResponse, &resp)
	if resp.Status != proto.StatusSuccess {
		t.Fatalf("auth failed for %q: %+v", name, resp)
	}
	return conn, resp
}

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestGroupEndpointUnknownGroup(t *testing.T) {
	ts := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/api/groups/nope")
	if err != nil {
		t.Fatalf("group request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketAuthAndChat(t *testing.T) {
	ts := startTestServer(t)
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA, respA := dialAndAuth(ctx, t, wsURL, "Ada", "")
	if respA.PilotID == "" || respA.GroupID == "" || respA.SecretToken == "" {
		t.Fatalf("incomplete auth response: %+v", respA)
	}

	connB, respB := dialAndAuth(ctx, t, wsURL, "Bea", respA.GroupID)
	if respB.GroupID != respA.GroupID {
		t.Fatalf("second pilot landed in %q, want %q", respB.GroupID, respA.GroupID)
	}

	sendFrame(ctx, t, connB, proto.ActionChatMessage, proto.ChatMessage{
		Timestamp: time.Now().Unix(),
		GroupID:   respB.GroupID,
		Text:      "on glide",
	})

	var msg proto.ChatMessage
	readFrame(ctx, t, connA, proto.ActionChatMessage, &msg)
	if msg.Text != "on glide" || msg.PilotID != respB.PilotID {
		t.Fatalf("unexpected chat relay: %+v", msg)
	}

	// The REST surface sees the same group.
	httpResp, err := ts.Client().Get(ts.URL + "/api/groups/" + respA.GroupID)
	if err != nil {
		t.Fatalf("group request failed: %v", err)
	}
	defer httpResp.Body.Close()
	var group GroupResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&group); err != nil {
		t.Fatalf("decode group response: %v", err)
	}
	if len(group.Pilots) != 2 {
		t.Fatalf("expected 2 pilots in group, got %+v", group)
	}
}

func TestWebSocketFrameBeforeAuthIsDropped(t *testing.T) {
	ts := startTestServer(t)
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// Unauthenticated traffic is ignored, not fatal.
	sendFrame(ctx, t, conn, proto.ActionChatMessage, proto.ChatMessage{Text: "too eager"})

	sendFrame(ctx, t, conn, proto.ActionAuthRequest, proto.AuthRequest{
		Pilot:      proto.PilotMeta{Name: "Ada"},
		APIVersion: proto.ProtocolVersion,
	})

	var resp proto.AuthResponse
	readFrame(ctx, t, conn, proto.ActionAuthResponse, &resp)
	if resp.Status != proto.StatusSuccess {
		t.Fatalf("auth after dropped frame failed: %+v", resp)
	}
}

func TestWebSocketWaypointSyncBroadcast(t *testing.T) {
	ts := startTestServer(t)
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA, respA := dialAndAuth(ctx, t, wsURL, "Ada", "")
	connB, _ := dialAndAuth(ctx, t, wsURL, "Bea", respA.GroupID)

	sendFrame(ctx, t, connA, proto.ActionWaypointsSync, proto.WaypointsSync{
		Timestamp: time.Now().Unix(),
		Waypoints: map[string]proto.Waypoint{
			"w1": {ID: "w1", Name: "launch", LatLng: [][]float64{{37.1, -122.2}}},
		},
	})

	var sync proto.WaypointsSync
	readFrame(ctx, t, connB, proto.ActionWaypointsSync, &sync)
	if sync.Waypoints["w1"].Name != "launch" {
		t.Fatalf("plan not relayed: %+v", sync)
	}
}

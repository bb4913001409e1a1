package core

import (
	"context"
	"testing"
	"time"

	"github.com/eidolonFIRE/xcNav-reflector/internal/proto"
	"github.com/eidolonFIRE/xcNav-reflector/internal/store"
)

func TestChatMessageStampedAndRelayed(t *testing.T) {
	svc, _ := newTestService(t)
	reg := svc.Registry()

	a, _ := authPilot(t, svc, "Ada")
	b, connB := authPilot(t, svc, "Bea")
	groupID := reg.ClientGroup(a)
	reg.AddPilotToGroup(b.PilotID(), groupID)

	svc.ChatMessage(a, proto.ChatMessage{
		Timestamp: time.Now().Unix(),
		GroupID:   groupID,
		PilotID:   "spoofed",
		Text:      "anyone flying?",
	})

	msg := connB.last(t, proto.ActionChatMessage).body.(proto.ChatMessage)
	if msg.PilotID != a.PilotID() {
		t.Fatalf("sender id not stamped: %q", msg.PilotID)
	}
	if msg.Text != "anyone flying?" {
		t.Fatalf("unexpected text: %q", msg.Text)
	}
}

func TestChatMessageWrongGroupDropped(t *testing.T) {
	svc, _ := newTestService(t)
	reg := svc.Registry()

	a, _ := authPilot(t, svc, "Ada")
	b, connB := authPilot(t, svc, "Bea")
	reg.AddPilotToGroup(b.PilotID(), reg.ClientGroup(a))

	svc.ChatMessage(a, proto.ChatMessage{GroupID: "stale-group", Text: "hello?"})

	if connB.count(proto.ActionChatMessage) != 0 {
		t.Fatal("mismatched-group chat was relayed")
	}
}

func TestTelemetryStampedAndRelayed(t *testing.T) {
	svc, _ := newTestService(t)
	reg := svc.Registry()

	a, _ := authPilot(t, svc, "Ada")
	b, connB := authPilot(t, svc, "Bea")
	reg.AddPilotToGroup(b.PilotID(), reg.ClientGroup(a))

	svc.PilotTelemetry(a, proto.PilotTelemetry{Timestamp: time.Now().Unix()})

	msg := connB.last(t, proto.ActionPilotTelemetry).body.(proto.PilotTelemetry)
	if msg.PilotID != a.PilotID() {
		t.Fatalf("sender id not stamped: %q", msg.PilotID)
	}
}

func TestStaleTelemetryDropped(t *testing.T) {
	svc, _ := newTestService(t)
	reg := svc.Registry()

	a, _ := authPilot(t, svc, "Ada")
	b, connB := authPilot(t, svc, "Bea")
	reg.AddPilotToGroup(b.PilotID(), reg.ClientGroup(a))

	svc.PilotTelemetry(a, proto.PilotTelemetry{
		Timestamp: time.Now().Add(-10 * time.Minute).Unix(),
	})

	if connB.count(proto.ActionPilotTelemetry) != 0 {
		t.Fatal("stale telemetry was relayed")
	}
}

func TestJoinGroupMovesAndNotifies(t *testing.T) {
	svc, _ := newTestService(t)
	reg := svc.Registry()

	a, connA := authPilot(t, svc, "Ada")
	b, connB := authPilot(t, svc, "Bea")
	groupID := reg.ClientGroup(a)

	svc.JoinGroup(b, proto.JoinGroupRequest{GroupID: groupID})

	resp := connB.last(t, proto.ActionJoinGroupResponse).body.(proto.JoinGroupResponse)
	if resp.Status != proto.StatusSuccess || resp.GroupID != groupID {
		t.Fatalf("unexpected join response: %+v", resp)
	}

	notice := connA.last(t, proto.ActionPilotJoinedGroup).body.(proto.PilotJoinedGroup)
	if notice.Pilot.ID != b.PilotID() || notice.Pilot.Name != "Bea" {
		t.Fatalf("unexpected notification: %+v", notice)
	}
}

func TestJoinCurrentGroupIsNoOp(t *testing.T) {
	svc, _ := newTestService(t)

	a, connA := authPilot(t, svc, "Ada")
	groupID := svc.Registry().ClientGroup(a)

	svc.JoinGroup(a, proto.JoinGroupRequest{GroupID: groupID})

	resp := connA.last(t, proto.ActionJoinGroupResponse).body.(proto.JoinGroupResponse)
	if resp.Status != proto.StatusNoOp || resp.GroupID != groupID {
		t.Fatalf("expected no_op for current group, got %+v", resp)
	}
}

func TestJoinEmptyGroupIDMintsGroup(t *testing.T) {
	svc, _ := newTestService(t)

	a, connA := authPilot(t, svc, "Ada")
	before := svc.Registry().ClientGroup(a)

	svc.JoinGroup(a, proto.JoinGroupRequest{})

	resp := connA.last(t, proto.ActionJoinGroupResponse).body.(proto.JoinGroupResponse)
	if resp.Status != proto.StatusSuccess {
		t.Fatalf("unexpected status: %v", resp.Status)
	}
	if resp.GroupID == "" || resp.GroupID == before {
		t.Fatalf("expected a fresh group, got %q (was %q)", resp.GroupID, before)
	}
}

func TestGroupInfoMergesLiveAndStoredProfiles(t *testing.T) {
	svc, st := newTestService(t)
	reg := svc.Registry()

	a, connA := authPilot(t, svc, "Ada")
	groupID := reg.ClientGroup(a)

	// An offline member still in the group roster.
	st.profiles["ghost"] = store.Profile{ID: "ghost", Name: "Gus", AvatarHash: "gh", Tier: "gold"}
	reg.mu.Lock()
	reg.groups[groupID].pilots["ghost"] = struct{}{}
	reg.mu.Unlock()

	reg.ReplacePlan(groupID, map[string]proto.Waypoint{"w1": {ID: "w1", Name: "launch"}})
	reg.SetSelection(groupID, a.PilotID(), "w1")

	svc.GroupInfo(context.Background(), a, proto.GroupInfoRequest{GroupID: groupID})

	resp := connA.last(t, proto.ActionGroupInfoResponse).body.(proto.GroupInfoResponse)
	if resp.Status != proto.StatusSuccess {
		t.Fatalf("unexpected status: %v", resp.Status)
	}
	if len(resp.Pilots) != 2 {
		t.Fatalf("expected 2 pilots, got %+v", resp.Pilots)
	}
	byID := map[string]proto.PilotMeta{}
	for _, p := range resp.Pilots {
		if p.SecretToken != "" {
			t.Fatalf("secret token leaked for %q", p.ID)
		}
		byID[p.ID] = p
	}
	if byID[a.PilotID()].Name != "Ada" {
		t.Fatalf("live member missing: %+v", byID)
	}
	if ghost := byID["ghost"]; ghost.Name != "Gus" || ghost.Tier != "gold" {
		t.Fatalf("stored member not merged: %+v", ghost)
	}
	if resp.Waypoints["w1"].Name != "launch" {
		t.Fatalf("plan missing from info: %+v", resp.Waypoints)
	}
	if resp.Selections[a.PilotID()] != "w1" {
		t.Fatalf("selections missing from info: %+v", resp.Selections)
	}
}

func TestGroupInfoUnknownGroup(t *testing.T) {
	svc, _ := newTestService(t)

	a, connA := authPilot(t, svc, "Ada")

	svc.GroupInfo(context.Background(), a, proto.GroupInfoRequest{GroupID: "nothing-here"})

	resp := connA.last(t, proto.ActionGroupInfoResponse).body.(proto.GroupInfoResponse)
	if resp.Status != proto.StatusUnknownError {
		t.Fatalf("expected unknown_error, got %v", resp.Status)
	}
	if len(resp.Pilots) != 0 {
		t.Fatalf("expected empty roster, got %+v", resp.Pilots)
	}
}

func TestClientDropped(t *testing.T) {
	svc, _ := newTestService(t)
	reg := svc.Registry()

	a, _ := authPilot(t, svc, "Ada")
	groupID := reg.ClientGroup(a)

	svc.ClientDropped(a)

	if reg.Client(a.PilotID()) != nil {
		t.Fatal("session survived drop")
	}
	members, _, _, _ := reg.GroupState(groupID)
	if len(members) != 0 {
		t.Fatalf("membership survived drop: %v", members)
	}
}

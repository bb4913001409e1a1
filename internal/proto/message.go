package proto

import "encoding/json"

// ProtocolVersion must be bumped on every meaningful change to the wire format.
const ProtocolVersion = 6.0

// Envelope is the frame received from a client. Body stays raw until the
// dispatcher knows which action it carries.
type Envelope struct {
	Action string          `json:"action"`
	Body   json.RawMessage `json:"body"`
}

// Frame is the outbound counterpart of Envelope.
type Frame struct {
	Action string `json:"action"`
	Body   any    `json:"body"`
}

// Inbound action names.
const (
	ActionAuthRequest           = "authRequest"
	ActionUpdateProfile         = "updateProfile"
	ActionChatMessage           = "chatMessage"
	ActionPilotTelemetry        = "pilotTelemetry"
	ActionGroupInfoRequest      = "groupInfoRequest"
	ActionJoinGroupRequest      = "joinGroupRequest"
	ActionWaypointsSync         = "waypointsSync"
	ActionWaypointsUpdate       = "waypointsUpdate"
	ActionPilotSelectedWaypoint = "pilotSelectedWaypoint"
)

// Outbound action names.
const (
	ActionAuthResponse          = "authResponse"
	ActionUpdateProfileResponse = "updateProfileResponse"
	ActionGroupInfoResponse     = "groupInfoResponse"
	ActionJoinGroupResponse     = "joinGroupResponse"
	ActionPilotJoinedGroup      = "pilotJoinedGroup"
)

// Status is the result code carried in response bodies.
type Status int

const (
	StatusSuccess Status = iota
	StatusUnknownError
	StatusInvalidID
	StatusInvalidSecretToken
	StatusDeniedGroupAccess
	StatusMissingData
	StatusNoOp
)

// WaypointAction selects the kind of delta in a WaypointsUpdate.
type WaypointAction int

const (
	WaypointActionNone WaypointAction = iota
	WaypointActionUpdate
	WaypointActionDelete
)

// PilotMeta is the public identity of a pilot. SecretToken only travels on
// the auth/profile paths, never in broadcasts.
type PilotMeta struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AvatarHash  string `json:"avatarHash"`
	SecretToken string `json:"secretToken,omitempty"`
	Tier        string `json:"tier,omitempty"`
}

// Waypoint is one entry of a group's shared plan.
type Waypoint struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	LatLng [][]float64 `json:"latlng"`
	Icon   string      `json:"icon,omitempty"`
	Color  int         `json:"color,omitempty"`
	Length float64     `json:"length,omitempty"`
}

// AuthRequest opens a session. An empty pilot id asks the server to mint one.
type AuthRequest struct {
	SecretToken string    `json:"secretToken"`
	Pilot       PilotMeta `json:"pilot"`
	GroupID     string    `json:"group_id"`
	TierHash    string    `json:"tierHash,omitempty"`
	APIVersion  float64   `json:"apiVersion"`
}

type AuthResponse struct {
	Status        Status  `json:"status"`
	SecretToken   string  `json:"secretToken"`
	PilotID       string  `json:"pilot_id"`
	PilotMetaHash string  `json:"pilotMetaHash"`
	GroupID       string  `json:"group_id"`
	Tier          string  `json:"tier,omitempty"`
	APIVersion    float64 `json:"apiVersion"`
}

type UpdateProfileRequest struct {
	Pilot       PilotMeta `json:"pilot"`
	SecretToken string    `json:"secretToken"`
}

type UpdateProfileResponse struct {
	Status Status `json:"status"`
}

// ChatMessage timestamps are unix seconds.
type ChatMessage struct {
	Timestamp int64  `json:"timestamp"`
	GroupID   string `json:"group_id"`
	PilotID   string `json:"pilot_id"`
	Text      string `json:"text"`
	Emergency bool   `json:"emergency"`
}

// PilotTelemetry carries an opaque telemetry blob; the server only inspects
// the timestamp to drop stale samples.
type PilotTelemetry struct {
	Timestamp int64           `json:"timestamp"`
	PilotID   string          `json:"pilot_id"`
	Telemetry json.RawMessage `json:"telemetry"`
}

// WaypointsSync is a full last-writer-wins replacement of a group's plan.
type WaypointsSync struct {
	Timestamp int64               `json:"timestamp"`
	Waypoints map[string]Waypoint `json:"waypoints"`
}

// WaypointsUpdate is a single delta against the shared plan. Hash is the
// sender's fingerprint of its local plan after the delta.
type WaypointsUpdate struct {
	Timestamp int64          `json:"timestamp"`
	Hash      string         `json:"hash"`
	Action    WaypointAction `json:"action"`
	Waypoint  *Waypoint      `json:"waypoint"`
}

// PilotSelectedWaypoint announces the sender's current selection. PilotID is
// stamped by the server before rebroadcast.
type PilotSelectedWaypoint struct {
	WaypointID string `json:"waypoint_id"`
	PilotID    string `json:"pilot_id,omitempty"`
}

type GroupInfoRequest struct {
	GroupID string `json:"group_id"`
}

type GroupInfoResponse struct {
	Status     Status              `json:"status"`
	GroupID    string              `json:"group_id"`
	Pilots     []PilotMeta         `json:"pilots"`
	Waypoints  map[string]Waypoint `json:"waypoints"`
	Selections map[string]string   `json:"selections"`
}

type JoinGroupRequest struct {
	GroupID string `json:"group_id"`
}

type JoinGroupResponse struct {
	Status  Status `json:"status"`
	GroupID string `json:"group_id"`
}

// PilotJoinedGroup notifies a group of a new or updated member.
type PilotJoinedGroup struct {
	Pilot PilotMeta `json:"pilot"`
}

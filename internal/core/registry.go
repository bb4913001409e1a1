package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/eidolonFIRE/xcNav-reflector/internal/proto"
	"github.com/eidolonFIRE/xcNav-reflector/internal/utils"
)

const groupIDLength = 8

// Group is an ad hoc set of pilots sharing telemetry, chat, and a waypoint
// plan. All fields are guarded by the owning Registry's lock.
type Group struct {
	id         string
	pilots     map[string]struct{}
	waypoints  map[string]proto.Waypoint
	planBackup map[string]proto.Waypoint
	selections map[string]string
	created    time.Time
}

func newGroup(id string, now time.Time) *Group {
	return &Group{
		id:         id,
		pilots:     make(map[string]struct{}),
		waypoints:  make(map[string]proto.Waypoint),
		selections: make(map[string]string),
		created:    now,
	}
}

// Registry is the in-memory store of live sessions and groups. It is owned by
// the service and injected per run; there are no package-level singletons.
type Registry struct {
	mu      sync.Mutex
	log     *zerolog.Logger
	clients map[string]*Client
	groups  map[string]*Group
	now     func() time.Time
}

// NewRegistry builds an empty registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{
		log:     logger,
		clients: make(map[string]*Client),
		groups:  make(map[string]*Group),
		now:     time.Now,
	}
}

// Register creates and stores the session for a freshly authenticated pilot.
// A surviving session for the same pilot id is replaced; the stale entry can
// no longer evict the new one on its late socket close (see DropClient).
func (r *Registry) Register(conn Conn, pilot proto.PilotMeta, apiVersion float64) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[pilot.ID]; exists {
		r.log.Warn().Str("pilot_id", pilot.ID).Msg("already have a client for pilot, replacing")
	}

	c := &Client{
		conn:       conn,
		pilot:      pilot,
		apiVersion: apiVersion,
		created:    r.now(),
	}
	r.clients[pilot.ID] = c
	return c
}

// DropClient removes the stored session for the client's pilot, but only if
// the stored session is not newer than the given one. A reconnect can replace
// a session before the old socket finishes closing; the old close event must
// not evict the new session.
func (r *Registry) DropClient(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.clients[c.PilotID()]
	if !ok {
		return
	}
	if stored != c && stored.created.After(c.created) {
		r.log.Debug().Str("pilot_id", c.PilotID()).Msg("ignoring close of superseded session")
		return
	}

	if stored.groupID != "" {
		r.popPilotLocked(stored.pilot.ID, stored.groupID)
	}
	delete(r.clients, c.PilotID())
}

// Client returns the live session for a pilot id, or nil.
func (r *Registry) Client(pilotID string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clients[pilotID]
}

// Meta returns a copy of the client's current profile fields.
func (r *Registry) Meta(c *Client) proto.PilotMeta {
	r.mu.Lock()
	defer r.mu.Unlock()
	return c.pilot
}

// LiveMeta returns the profile of a pilot's live session, if one exists.
func (r *Registry) LiveMeta(pilotID string) (proto.PilotMeta, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[pilotID]
	if !ok {
		return proto.PilotMeta{}, false
	}
	return c.pilot, true
}

// SetProfile updates the mutable profile fields of a session and returns the
// resulting profile.
func (r *Registry) SetProfile(c *Client, name, avatarHash string) proto.PilotMeta {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.pilot.Name = name
	c.pilot.AvatarHash = avatarHash
	return c.pilot
}

// ClientGroup returns the client's current group id, or "" when not grouped.
func (r *Registry) ClientGroup(c *Client) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return c.groupID
}

// NewGroupID generates a short group id that does not collide with an
// existing group.
func (r *Registry) NewGroupID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		id := utils.ShortID(groupIDLength)
		if _, exists := r.groups[id]; !exists {
			return id
		}
	}
}

// AddPilotToGroup moves a pilot into a group, creating the group if needed.
// The pilot must have a live session. Leaving the previous group, joining the
// new one, and updating the session's group id happen in one critical section
// so the two views never diverge.
func (r *Registry) AddPilotToGroup(pilotID, groupID string) bool {
	if pilotID == "" || groupID == "" {
		r.log.Error().Str("pilot_id", pilotID).Str("group_id", groupID).Msg("refusing group join with empty id")
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[pilotID]
	if !ok {
		r.log.Error().Str("pilot_id", pilotID).Msg("unknown pilot, cannot join group")
		return false
	}

	if c.groupID != "" && c.groupID != groupID {
		r.popPilotLocked(pilotID, c.groupID)
	}

	g, ok := r.groups[groupID]
	if !ok {
		g = newGroup(groupID, r.now())
		r.groups[groupID] = g
	}
	g.pilots[pilotID] = struct{}{}
	c.groupID = groupID
	return true
}

// PopPilotFromGroup removes a pilot from a group's member set. When the pilot
// is not actually a member this is a logged no-op; other members are never
// touched.
func (r *Registry) PopPilotFromGroup(pilotID, groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.popPilotLocked(pilotID, groupID)
}

func (r *Registry) popPilotLocked(pilotID, groupID string) {
	g, ok := r.groups[groupID]
	if !ok {
		r.log.Warn().Str("pilot_id", pilotID).Str("group_id", groupID).Msg("pop from unknown group, ignoring")
		return
	}
	if _, member := g.pilots[pilotID]; !member {
		r.log.Warn().Str("pilot_id", pilotID).Str("group_id", groupID).Msg("pop of non-member, ignoring")
		return
	}

	delete(g.pilots, pilotID)
	delete(g.selections, pilotID)

	// Clear the session's group pointer only when it still points here; a
	// desynced session may already belong elsewhere.
	if c, ok := r.clients[pilotID]; ok && c.groupID == groupID {
		c.groupID = ""
	}
}

// CleanGroups deletes every group created before cutoff that has no member
// whose live session still points at it. A single active member vetoes
// deletion regardless of age. Returns the number of groups removed.
func (r *Registry) CleanGroups(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, g := range r.groups {
		if !g.created.Before(cutoff) {
			continue
		}
		active := false
		for pilotID := range g.pilots {
			if c, ok := r.clients[pilotID]; ok && c.groupID == id {
				active = true
				break
			}
		}
		if !active {
			delete(r.groups, id)
			removed++
		}
	}
	return removed
}

// member is one broadcast destination, snapshotted under the lock.
type member struct {
	client  *Client
	pilotID string
	groupID string
	version float64
}

// fanout snapshots the deliverable members of a group: pilots with a live
// session. Concurrent membership changes cannot disturb the returned slice.
func (r *Registry) fanout(groupID string) []member {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupID]
	if !ok {
		return nil
	}

	out := make([]member, 0, len(g.pilots))
	for pilotID := range g.pilots {
		c, ok := r.clients[pilotID]
		if !ok {
			continue
		}
		out = append(out, member{
			client:  c,
			pilotID: pilotID,
			groupID: c.groupID,
			version: c.apiVersion,
		})
	}
	return out
}

// GroupState returns a snapshot of a group's members, waypoint plan, and
// selections. The maps are copies; mutating them does not affect the group.
func (r *Registry) GroupState(groupID string) (members []string, waypoints map[string]proto.Waypoint, selections map[string]string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, found := r.groups[groupID]
	if !found {
		return nil, nil, nil, false
	}

	members = make([]string, 0, len(g.pilots))
	for pilotID := range g.pilots {
		members = append(members, pilotID)
	}
	return members, clonePlan(g.waypoints), cloneSelections(g.selections), true
}

// Stats reports current live session and group counts.
func (r *Registry) Stats() (clients, groups int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients), len(r.groups)
}

func clonePlan(plan map[string]proto.Waypoint) map[string]proto.Waypoint {
	out := make(map[string]proto.Waypoint, len(plan))
	for id, wp := range plan {
		latlng := make([][]float64, len(wp.LatLng))
		for i, pair := range wp.LatLng {
			latlng[i] = append([]float64(nil), pair...)
		}
		wp.LatLng = latlng
		out[id] = wp
	}
	return out
}

func cloneSelections(sel map[string]string) map[string]string {
	out := make(map[string]string, len(sel))
	for k, v := range sel {
		out[k] = v
	}
	return out
}

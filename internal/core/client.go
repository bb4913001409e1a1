package core

import (
	"time"

	"github.com/eidolonFIRE/xcNav-reflector/internal/proto"
)

// Conn is the transport handle owned by a session. Implementations must be
// safe for concurrent use and preserve per-connection submission order.
type Conn interface {
	Send(action string, body any) error
}

// Client is one live connected session bound to a pilot and a transport.
// Mutable fields are guarded by the owning Registry's lock.
type Client struct {
	conn       Conn
	pilot      proto.PilotMeta
	groupID    string
	apiVersion float64
	created    time.Time
}

// PilotID is assigned at auth and never changes for the lifetime of the
// session, so it is safe to read without the registry lock.
func (c *Client) PilotID() string {
	return c.pilot.ID
}

// Created reports when the session was established. Two sessions for the same
// pilot are ordered by this timestamp; only the latest is authoritative.
func (c *Client) Created() time.Time {
	return c.created
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/eidolonFIRE/xcNav-reflector/internal/core"
	"github.com/eidolonFIRE/xcNav-reflector/internal/proto"
)

// GroupHandlers provides read-only REST views of live groups.
type GroupHandlers struct {
	svc *core.Service
	log *zerolog.Logger
}

// NewGroupHandlers creates a new group handlers instance.
func NewGroupHandlers(svc *core.Service, logger *zerolog.Logger) *GroupHandlers {
	return &GroupHandlers{svc: svc, log: logger}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatsResponse reports current live session and group counts.
type StatsResponse struct {
	Pilots int `json:"pilots"`
	Groups int `json:"groups"`
}

// GroupResponse is the REST view of one group.
type GroupResponse struct {
	GroupID    string                    `json:"group_id"`
	Pilots     []string                  `json:"pilots"`
	Waypoints  map[string]proto.Waypoint `json:"waypoints"`
	Selections map[string]string         `json:"selections"`
}

// Stats reports registry counters.
// GET /api/stats
func (h *GroupHandlers) Stats(c *gin.Context) {
	pilots, groups := h.svc.Registry().Stats()
	c.JSON(http.StatusOK, StatsResponse{Pilots: pilots, Groups: groups})
}

// GetGroup returns a snapshot of one group.
// GET /api/groups/:id
func (h *GroupHandlers) GetGroup(c *gin.Context) {
	groupID := c.Param("id")

	members, waypoints, selections, ok := h.svc.Registry().GroupState(groupID)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "group not found"})
		return
	}

	c.JSON(http.StatusOK, GroupResponse{
		GroupID:    groupID,
		Pilots:     members,
		Waypoints:  waypoints,
		Selections: selections,
	})
}

package proto

import (
	"sort"
	"strconv"
	"strings"
)

// WaypointsHash is a cheap change detector for a plan, not a digest. Keys are
// visited in sorted order so the result is stable across map iterations, and
// coordinates are rounded to 5 decimal places to absorb float jitter.
func WaypointsHash(plan map[string]Waypoint) string {
	var b strings.Builder
	b.WriteString("Plan")

	ids := make([]string, 0, len(plan))
	for id := range plan {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		wp := plan[id]
		b.WriteString(id)
		b.WriteString(wp.Name)
		b.WriteString(wp.Icon)
		if wp.Color != 0 {
			b.WriteString(strconv.Itoa(wp.Color))
		}
		for _, g := range wp.LatLng {
			if len(g) < 2 {
				continue
			}
			b.WriteString(strconv.FormatFloat(g[0], 'f', 5, 64))
			b.WriteString(strconv.FormatFloat(g[1], 'f', 5, 64))
		}
	}
	return dirtyHash(b.String())
}

// PilotMetaHash fingerprints the broadcast-visible profile fields so peers can
// cheaply detect a stale profile.
func PilotMetaHash(pilot PilotMeta) string {
	return dirtyHash("Meta" + pilot.Name + pilot.ID + pilot.AvatarHash + pilot.Tier)
}

// dirtyHash folds a string with a 31-multiplier rolling hash truncated to
// 24 bits, sign-folded to non-negative, rendered as lowercase hex.
func dirtyHash(s string) string {
	var h int64
	for _, r := range s {
		h = ((h << 5) - h + int64(r)) & 0xffffff
	}
	if h < 0 {
		h = -h * 2
	}
	return strconv.FormatInt(h, 16)
}

package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewPilotID mints a fresh public pilot id: the tail of a UUID, long enough
// to be collision-free for this population without being unwieldy in chat.
func NewPilotID() string {
	u := uuid.NewString()
	return u[strings.LastIndex(u, "-")+1:]
}

// NewSecretToken issues a session secret for a pilot.
func NewSecretToken() string {
	return uuid.NewString()
}

// ShortID returns n random hex characters, for group ids.
func ShortID(n int) string {
	buf := make([]byte, (n+1)/2)
	if _, err := rand.Read(buf); err != nil {
		// Fallback to timestamp if crypto/rand is unavailable.
		s := strconv.FormatInt(time.Now().UnixNano(), 16)
		if len(s) > n {
			s = s[len(s)-n:]
		}
		return s
	}
	return hex.EncodeToString(buf)[:n]
}

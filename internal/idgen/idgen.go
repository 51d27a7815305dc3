// Package idgen mints the UUIDs used as row and server identifiers across
// the system. spec.md §4.2's serialization rules fix the on-the-wire form
// as "32 hex characters", so every identifier is stripped of its dashes at
// the single point it is minted rather than reformatted later at encode
// time — callers never see the dashed google/uuid form.
package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a fresh UUID v4 as 32 lowercase hex characters, with no
// dashes, per spec.md §4.2.
func New() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

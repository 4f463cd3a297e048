// Package hostid generates the per-process opaque host identifier used to
// build the default mDNS host name (spec.md §6: "Android_<32 hex
// chars>.local"). The identifier is stable for the lifetime of the
// process and carries no information about the host itself.
package hostid

import (
	"strings"

	"github.com/google/uuid"
)

// Generate returns a fresh 32-hex-character opaque identifier, derived
// from a random UUIDv4 with its dashes stripped and folded to uppercase
// to match the reference "Android_<hex>.local" convention.
func Generate() string {
	id := uuid.New()
	hex := strings.ReplaceAll(id.String(), "-", "")
	return strings.ToUpper(hex)
}

// DefaultHostLabel returns the first label of the default per-process
// host name, e.g. "Android_000102030405060708090A0B0C0D0E0F".
func DefaultHostLabel() string {
	return "Android_" + Generate()
}

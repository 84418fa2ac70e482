// Package uuid wraps github.com/google/uuid with the string forms
// used on the Minecraft wire and by the Mojang session service.
package uuid

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"

	guuid "github.com/google/uuid"
)

// UUID is a 128 bit player or entity id.
type UUID guuid.UUID

// Nil is the empty UUID, all zeros.
var Nil = UUID(guuid.Nil)

// String returns the dashed form xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx.
func (i UUID) String() string {
	return guuid.UUID(i).String()
}

// Undashed returns the 32 hex digit form used in session server
// responses and legacy forwarding.
func (i UUID) Undashed() string {
	return hex.EncodeToString(i[:])
}

func (i UUID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(i.String())), nil
}

func (i *UUID) UnmarshalJSON(b []byte) (err error) {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("expected quoted uuid, but got %s: %w", b, err)
	}
	*i, err = Parse(s)
	return
}

// Parse decodes s into a UUID. The dashed and the undashed
// (raw hex) forms are both accepted.
func Parse(s string) (UUID, error) {
	id, err := guuid.Parse(s)
	return UUID(id), err
}

// FromBytes creates a new UUID from a 16 byte slice.
// The bytes are copied from the slice.
func FromBytes(b []byte) (UUID, error) {
	id, err := guuid.FromBytes(b)
	return UUID(id), err
}

// OfflinePlayerUUID returns the name based (version 3) UUID a vanilla
// server assigns to a player when it runs in offline mode.
func OfflinePlayerUUID(username string) UUID {
	const version = 3
	id := md5.Sum([]byte("OfflinePlayer:" + username))
	id[6] = (id[6] & 0x0f) | uint8((version&0xf)<<4)
	id[8] = (id[8] & 0x3f) | 0x80 // RFC 4122 variant
	return id
}

// New creates a new random UUID or panics.
func New() UUID { return UUID(guuid.New()) }

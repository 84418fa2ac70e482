// Package profile defines the identity of a player as resolved by the login.
package profile

import (
	"encoding/json"
	"fmt"

	"github.com/dualspiral/velocity/pkg/util/uuid"
)

// GameProfile is a player's id, name and signed properties such as skin textures.
type GameProfile struct {
	ID         uuid.UUID
	Name       string
	Properties []Property
}

// Property is one signed entry of a profile. Signature is empty on
// properties added by the proxy.
type Property struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

// NewOffline is the profile of a player who skipped authentication, with
// the id a vanilla server would derive from the name.
func NewOffline(username string) *GameProfile {
	return &GameProfile{ID: uuid.OfflinePlayerUUID(username), Name: username}
}

// WithProperties copies g and appends props to the copy.
func (g GameProfile) WithProperties(props ...Property) *GameProfile {
	merged := make([]Property, 0, len(g.Properties)+len(props))
	g.Properties = append(append(merged, g.Properties...), props...)
	return &g
}

func (g *GameProfile) String() string {
	return fmt.Sprintf("%s(%s, %d properties)", g.Name, g.ID, len(g.Properties))
}

// sessionJSON is the profile encoding of the session server, which writes
// ids without dashes.
type sessionJSON struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Properties []Property `json:"properties"`
}

func (g *GameProfile) MarshalJSON() ([]byte, error) {
	return json.Marshal(sessionJSON{ID: g.ID.Undashed(), Name: g.Name, Properties: g.Properties})
}

func (g *GameProfile) UnmarshalJSON(data []byte) error {
	var s sessionJSON
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return fmt.Errorf("profile id %q: %w", s.ID, err)
	}
	*g = GameProfile{ID: id, Name: s.Name, Properties: s.Properties}
	return nil
}

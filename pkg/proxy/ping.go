package proxy

import (
	"bytes"
	"encoding/json"

	"go.minekube.com/common/minecraft/component"

	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/util"
	"github.com/dualspiral/velocity/pkg/util/modinfo"
	"github.com/dualspiral/velocity/pkg/util/uuid"
)

// ServerPing is a 1.7 and above server list ping response.
type ServerPing struct {
	Version     PingVersion         `json:"version"`
	Players     *PingPlayers        `json:"players,omitempty"`
	Description component.Component `json:"description"`
	Favicon     string              `json:"favicon,omitempty"`
	ModInfo     *modinfo.ModInfo    `json:"modinfo,omitempty"`
}

// PingVersion is the version the proxy tells a pinging client.
type PingVersion struct {
	Protocol proto.Protocol `json:"protocol"`
	Name     string         `json:"name"`
}

// PingPlayers is the player count with an optional sample.
type PingPlayers struct {
	Online int            `json:"online"`
	Max    int            `json:"max"`
	Sample []SamplePlayer `json:"sample,omitempty"`
}

// SamplePlayer is a player shown in the hover text of the player count.
type SamplePlayer struct {
	Name string    `json:"name"`
	ID   uuid.UUID `json:"id"`
}

var _ json.Marshaler = (*ServerPing)(nil)

func (p *ServerPing) MarshalJSON() ([]byte, error) {
	description := p.Description
	if description == nil {
		description = &component.Text{}
	}
	b := new(bytes.Buffer)
	err := util.JsonCodec(p.Version.Protocol).Marshal(b, description)
	if err != nil {
		return nil, err
	}

	type Alias ServerPing
	return json.Marshal(&struct {
		Description json.RawMessage `json:"description"`
		*Alias
	}{
		Description: b.Bytes(),
		Alias:       (*Alias)(p),
	})
}

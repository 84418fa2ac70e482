package packet

import (
	"io"

	"go.minekube.com/common/minecraft/component"

	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/util"
)

// Disconnect ends a connection in the login or play state with a json
// chat component as Reason.
type Disconnect struct {
	Reason string
}

func (d *Disconnect) Encode(_ *proto.PacketContext, wr io.Writer) error {
	return util.WriteString(wr, d.Reason)
}

func (d *Disconnect) Decode(_ *proto.PacketContext, rd io.Reader) (err error) {
	d.Reason, err = util.ReadString(rd)
	return err
}

// DisconnectWith encodes reason for protocol. A reason that fails to encode
// becomes an empty text.
func DisconnectWith(reason component.Component, protocol proto.Protocol) *Disconnect {
	s, err := util.Marshal(protocol, reason)
	if err != nil {
		s = `{"text":""}`
	}
	return &Disconnect{Reason: s}
}

var _ proto.Packet = (*Disconnect)(nil)

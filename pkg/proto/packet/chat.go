package packet

import (
	"io"

	"go.minekube.com/common/minecraft/component"

	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/util"
)

// Positions a Chat message is shown at.
const (
	ChatMessageType byte = iota
	SystemMessageType
	GameInfoMessageType // above the hotbar
)

// Chat shows a json chat component to the client.
type Chat struct {
	Message string
	Type    byte
}

func (ch *Chat) Encode(_ *proto.PacketContext, wr io.Writer) error {
	w := util.NewFieldWriter(wr)
	w.Text(ch.Message)
	w.Uint8(ch.Type)
	return w.Err()
}

func (ch *Chat) Decode(_ *proto.PacketContext, rd io.Reader) error {
	r := util.NewFieldReader(rd)
	ch.Message = r.Text(0)
	ch.Type = r.Uint8()
	return r.Err()
}

// ChatWith encodes msg as a system message.
func ChatWith(msg component.Component, protocol proto.Protocol) (*Chat, error) {
	s, err := util.Marshal(protocol, msg)
	if err != nil {
		return nil, err
	}
	return &Chat{Message: s, Type: SystemMessageType}, nil
}

var _ proto.Packet = (*Chat)(nil)

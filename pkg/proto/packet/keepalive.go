package packet

import (
	"io"

	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/util"
	"github.com/dualspiral/velocity/pkg/proto/version"
)

// KeepAlive must be echoed with the same id. The id is a long since
// 1.12.2 and a VarInt before.
type KeepAlive struct {
	RandomID int64
}

func longKeepAlive(c *proto.PacketContext) bool {
	return c.Protocol.GreaterEqual(version.Minecraft_1_12_2)
}

func (k *KeepAlive) Encode(c *proto.PacketContext, wr io.Writer) error {
	if longKeepAlive(c) {
		return util.WriteInt64(wr, k.RandomID)
	}
	return util.WriteVarInt(wr, int(k.RandomID))
}

func (k *KeepAlive) Decode(c *proto.PacketContext, rd io.Reader) error {
	r := util.NewFieldReader(rd)
	if longKeepAlive(c) {
		k.RandomID = r.Int64()
	} else {
		k.RandomID = int64(r.VarInt())
	}
	return r.Err()
}

var _ proto.Packet = (*KeepAlive)(nil)

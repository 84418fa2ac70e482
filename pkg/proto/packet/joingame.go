package packet

import (
	"io"

	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/util"
	"github.com/dualspiral/velocity/pkg/proto/version"
)

// JoinGame puts the client into a world. It is the first play packet of a
// backend and the one a server switch is built around.
type JoinGame struct {
	EntityID          int
	Gamemode          int16
	Dimension         int
	PartialHashedSeed int64 // 1.15+
	Difficulty        int16 // before 1.14
	MaxPlayers        int16
	LevelType         string
	ViewDistance      int // 1.14+
	ReducedDebugInfo  bool
	ShowRespawnScreen bool // 1.15+
}

// joinGameLayout tells which fields a protocol has.
type joinGameLayout struct {
	intDimension, difficulty, seed, viewDistance, respawnScreen bool
}

func layoutOf(protocol proto.Protocol) joinGameLayout {
	return joinGameLayout{
		intDimension:  protocol.GreaterEqual(version.Minecraft_1_9_1),
		difficulty:    protocol.Lower(version.Minecraft_1_14),
		seed:          protocol.GreaterEqual(version.Minecraft_1_15),
		viewDistance:  protocol.GreaterEqual(version.Minecraft_1_14),
		respawnScreen: protocol.GreaterEqual(version.Minecraft_1_15),
	}
}

func (j *JoinGame) Encode(c *proto.PacketContext, wr io.Writer) error {
	l := layoutOf(c.Protocol)
	w := util.NewFieldWriter(wr)
	w.Int32(int32(j.EntityID))
	w.Uint8(uint8(j.Gamemode))
	if l.intDimension {
		w.Int32(int32(j.Dimension))
	} else {
		w.Int8(int8(j.Dimension))
	}
	if l.difficulty {
		w.Uint8(uint8(j.Difficulty))
	}
	if l.seed {
		w.Int64(j.PartialHashedSeed)
	}
	w.Uint8(uint8(j.MaxPlayers))
	w.Text(j.LevelType)
	if l.viewDistance {
		w.VarInt(j.ViewDistance)
	}
	w.Bool(j.ReducedDebugInfo)
	if l.respawnScreen {
		w.Bool(j.ShowRespawnScreen)
	}
	return w.Err()
}

func (j *JoinGame) Decode(c *proto.PacketContext, rd io.Reader) error {
	l := layoutOf(c.Protocol)
	r := util.NewFieldReader(rd)
	j.EntityID = int(r.Int32())
	j.Gamemode = int16(r.Uint8())
	if l.intDimension {
		j.Dimension = int(r.Int32())
	} else {
		j.Dimension = int(r.Int8())
	}
	if l.difficulty {
		j.Difficulty = int16(r.Uint8())
	}
	if l.seed {
		j.PartialHashedSeed = r.Int64()
	}
	j.MaxPlayers = int16(r.Uint8())
	j.LevelType = r.Text(16)
	if l.viewDistance {
		j.ViewDistance = r.VarInt()
	}
	j.ReducedDebugInfo = r.Bool()
	if l.respawnScreen {
		j.ShowRespawnScreen = r.Bool()
	}
	return r.Err()
}

var _ proto.Packet = (*JoinGame)(nil)

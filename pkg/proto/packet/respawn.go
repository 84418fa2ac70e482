package packet

import (
	"io"

	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/util"
)

// Respawn moves the client to another world without a new JoinGame.
type Respawn struct {
	Dimension         int
	PartialHashedSeed int64 // 1.15+
	Difficulty        int16 // before 1.14
	Gamemode          int16
	LevelType         string
}

func (r *Respawn) Encode(c *proto.PacketContext, wr io.Writer) error {
	l := layoutOf(c.Protocol)
	w := util.NewFieldWriter(wr)
	w.Int32(int32(r.Dimension))
	if l.difficulty {
		w.Uint8(uint8(r.Difficulty))
	}
	if l.seed {
		w.Int64(r.PartialHashedSeed)
	}
	w.Uint8(uint8(r.Gamemode))
	w.Text(r.LevelType)
	return w.Err()
}

func (r *Respawn) Decode(c *proto.PacketContext, rd io.Reader) error {
	l := layoutOf(c.Protocol)
	f := util.NewFieldReader(rd)
	r.Dimension = int(f.Int32())
	if l.difficulty {
		r.Difficulty = int16(f.Uint8())
	}
	if l.seed {
		r.PartialHashedSeed = f.Int64()
	}
	r.Gamemode = int16(f.Uint8())
	r.LevelType = f.Text(16)
	return f.Err()
}

// RespawnFromJoinGame is the Respawn into the world of j.
func RespawnFromJoinGame(j *JoinGame) *Respawn {
	return &Respawn{
		Dimension:         j.Dimension,
		PartialHashedSeed: j.PartialHashedSeed,
		Difficulty:        j.Difficulty,
		Gamemode:          j.Gamemode,
		LevelType:         j.LevelType,
	}
}

var _ proto.Packet = (*Respawn)(nil)

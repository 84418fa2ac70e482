package util

import (
	"encoding/binary"
	"io"

	"github.com/dualspiral/velocity/pkg/util/profile"
	"github.com/dualspiral/velocity/pkg/util/uuid"
)

func WriteString(wr io.Writer, val string) error {
	return WriteBytes(wr, []byte(val))
}

func WriteVarInt(wr io.Writer, val int) (err error) {
	uval := uint32(val)
	for uval >= 0x80 {
		if err = WriteUint8(wr, byte(uval)|0x80); err != nil {
			return
		}
		uval >>= 7
	}
	return WriteUint8(wr, byte(uval))
}

// VarIntLen returns the number of bytes val occupies as VarInt.
func VarIntLen(val int) int {
	uval := uint32(val)
	n := 1
	for uval >= 0x80 {
		uval >>= 7
		n++
	}
	return n
}

func WriteBool(wr io.Writer, val bool) error {
	if val {
		return WriteUint8(wr, 1)
	}
	return WriteUint8(wr, 0)
}

func WriteUint8(wr io.Writer, val uint8) error {
	if bw, ok := wr.(io.ByteWriter); ok {
		return bw.WriteByte(val)
	}
	_, err := wr.Write([]byte{val})
	return err
}

func WriteInt8(wr io.Writer, val int8) error {
	return WriteUint8(wr, uint8(val))
}

func WriteUint16(wr io.Writer, val uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], val)
	_, err := wr.Write(b[:])
	return err
}

func WriteInt16(wr io.Writer, val int16) error {
	return WriteUint16(wr, uint16(val))
}

func WriteInt32(wr io.Writer, val int32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(val))
	_, err := wr.Write(b[:])
	return err
}

func WriteInt64(wr io.Writer, val int64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(val))
	_, err := wr.Write(b[:])
	return err
}

// WriteBytes writes a VarInt length prefixed byte array.
func WriteBytes(wr io.Writer, b []byte) error {
	if err := WriteVarInt(wr, len(b)); err != nil {
		return err
	}
	_, err := wr.Write(b)
	return err
}

func WriteUUID(wr io.Writer, id uuid.UUID) error {
	_, err := wr.Write(id[:])
	return err
}

func WriteProperties(wr io.Writer, props []profile.Property) error {
	if err := WriteVarInt(wr, len(props)); err != nil {
		return err
	}
	for _, p := range props {
		if err := WriteString(wr, p.Name); err != nil {
			return err
		}
		if err := WriteString(wr, p.Value); err != nil {
			return err
		}
		signed := p.Signature != ""
		if err := WriteBool(wr, signed); err != nil {
			return err
		}
		if signed {
			if err := WriteString(wr, p.Signature); err != nil {
				return err
			}
		}
	}
	return nil
}

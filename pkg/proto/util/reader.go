package util

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/dualspiral/velocity/pkg/util/profile"
	"github.com/dualspiral/velocity/pkg/util/uuid"
)

// ErrVarIntTooBig is returned when a VarInt has more than 5 bytes.
var ErrVarIntTooBig = errors.New("decode: VarInt is too big")

func ReadString(rd io.Reader) (string, error) {
	return ReadStringMax(rd, bufio.MaxScanTokenSize)
}

// ReadStringMax reads a string of at most max characters.
func ReadStringMax(rd io.Reader, max int) (string, error) {
	length, err := ReadVarInt(rd)
	if err != nil {
		return "", err
	}
	if length < 0 {
		return "", fmt.Errorf("got negative string length %d", length)
	}
	if length > max*4 { // *4 since an UTF8 character has up to 4 bytes
		return "", fmt.Errorf("bad string length (got %d, max. %d)", length, max)
	}
	str := make([]byte, length)
	if _, err = io.ReadFull(rd, str); err != nil {
		return "", err
	}
	return string(str), nil
}

// ReadBytesLen reads a length prefixed byte array of at most maxLength bytes.
func ReadBytesLen(rd io.Reader, maxLength int) ([]byte, error) {
	length, err := ReadVarInt(rd)
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, fmt.Errorf("decode, bytes length is < 0: %d", length)
	}
	if length > maxLength {
		return nil, fmt.Errorf("decode, bytes length %d is above given maximum: %d", length, maxLength)
	}
	b := make([]byte, length)
	_, err = io.ReadFull(rd, b)
	return b, err
}

// ReadRemaining reads all bytes left in rd.
func ReadRemaining(rd io.Reader) ([]byte, error) {
	return io.ReadAll(rd)
}

func ReadVarInt(rd io.Reader) (int, error) {
	var (
		result uint32
		b      byte
		err    error
	)
	for i := 0; ; i++ {
		if i >= 5 {
			return 0, ErrVarIntTooBig
		}
		if b, err = ReadUint8(rd); err != nil {
			return 0, err
		}
		result |= uint32(b&0x7F) << uint32(7*i)
		if b&0x80 == 0 {
			break
		}
	}
	return int(int32(result)), nil
}

func ReadBool(rd io.Reader) (bool, error) {
	b, err := ReadUint8(rd)
	return b != 0, err
}

func ReadUint8(rd io.Reader) (byte, error) {
	if br, ok := rd.(io.ByteReader); ok {
		return br.ReadByte()
	}
	var b [1]byte
	_, err := io.ReadFull(rd, b[:])
	return b[0], err
}

func ReadInt8(rd io.Reader) (int8, error) {
	b, err := ReadUint8(rd)
	return int8(b), err
}

func ReadUint16(rd io.Reader) (uint16, error) {
	var b [2]byte
	_, err := io.ReadFull(rd, b[:])
	return binary.BigEndian.Uint16(b[:]), err
}

func ReadInt32(rd io.Reader) (int32, error) {
	var b [4]byte
	_, err := io.ReadFull(rd, b[:])
	return int32(binary.BigEndian.Uint32(b[:])), err
}

func ReadInt64(rd io.Reader) (int64, error) {
	var b [8]byte
	_, err := io.ReadFull(rd, b[:])
	return int64(binary.BigEndian.Uint64(b[:])), err
}

func ReadUUID(rd io.Reader) (uuid.UUID, error) {
	b := make([]byte, 16)
	if _, err := io.ReadFull(rd, b); err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(b)
}

// ReadProperties reads a profile property list as sent in the Play phase.
func ReadProperties(rd io.Reader) (props []profile.Property, err error) {
	size, err := ReadVarInt(rd)
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("got negative property count %d", size)
	}
	props = make([]profile.Property, 0, size)
	for i := 0; i < size; i++ {
		var p profile.Property
		if p.Name, err = ReadString(rd); err != nil {
			return nil, err
		}
		if p.Value, err = ReadString(rd); err != nil {
			return nil, err
		}
		signed, err := ReadBool(rd)
		if err != nil {
			return nil, err
		}
		if signed {
			if p.Signature, err = ReadString(rd); err != nil {
				return nil, err
			}
		}
		props = append(props, p)
	}
	return props, nil
}

package util

import (
	"bufio"
	"io"
)

// FieldWriter writes packet fields in order. After the first failed write
// every later one is skipped and Err reports the failure.
type FieldWriter struct {
	w   io.Writer
	err error
}

func NewFieldWriter(w io.Writer) *FieldWriter { return &FieldWriter{w: w} }

func (f *FieldWriter) Err() error { return f.err }

func (f *FieldWriter) do(write func(io.Writer) error) {
	if f.err == nil {
		f.err = write(f.w)
	}
}

func (f *FieldWriter) VarInt(v int)  { f.do(func(w io.Writer) error { return WriteVarInt(w, v) }) }
func (f *FieldWriter) Text(s string) { f.do(func(w io.Writer) error { return WriteString(w, s) }) }
func (f *FieldWriter) Bool(b bool)   { f.do(func(w io.Writer) error { return WriteBool(w, b) }) }
func (f *FieldWriter) Uint8(v uint8) { f.do(func(w io.Writer) error { return WriteUint8(w, v) }) }
func (f *FieldWriter) Int8(v int8)   { f.do(func(w io.Writer) error { return WriteInt8(w, v) }) }
func (f *FieldWriter) Int16(v int16) { f.do(func(w io.Writer) error { return WriteInt16(w, v) }) }
func (f *FieldWriter) Int32(v int32) { f.do(func(w io.Writer) error { return WriteInt32(w, v) }) }
func (f *FieldWriter) Int64(v int64) { f.do(func(w io.Writer) error { return WriteInt64(w, v) }) }

// Bytes writes b with a VarInt length prefix.
func (f *FieldWriter) Bytes(b []byte) { f.do(func(w io.Writer) error { return WriteBytes(w, b) }) }

// Raw writes b as is, for trailing data that runs to the end of the packet.
func (f *FieldWriter) Raw(b []byte) {
	f.do(func(w io.Writer) error {
		_, err := w.Write(b)
		return err
	})
}

// FieldReader is the reading counterpart of FieldWriter. Reads after a
// failure return zero values.
type FieldReader struct {
	r   io.Reader
	err error
}

func NewFieldReader(r io.Reader) *FieldReader { return &FieldReader{r: r} }

func (f *FieldReader) Err() error { return f.err }

func read[T any](f *FieldReader, fn func(io.Reader) (T, error)) T {
	var v T
	if f.err == nil {
		v, f.err = fn(f.r)
	}
	return v
}

func (f *FieldReader) VarInt() int    { return read(f, ReadVarInt) }
func (f *FieldReader) Bool() bool     { return read(f, ReadBool) }
func (f *FieldReader) Uint8() uint8   { return read(f, ReadUint8) }
func (f *FieldReader) Int8() int8     { return read(f, ReadInt8) }
func (f *FieldReader) Uint16() uint16 { return read(f, ReadUint16) }
func (f *FieldReader) Int32() int32   { return read(f, ReadInt32) }
func (f *FieldReader) Int64() int64   { return read(f, ReadInt64) }

// Text reads a string of at most max characters. A max of 0 allows the
// protocol's largest string.
func (f *FieldReader) Text(max int) string {
	if max == 0 {
		max = bufio.MaxScanTokenSize
	}
	return read(f, func(r io.Reader) (string, error) { return ReadStringMax(r, max) })
}

// Bytes reads a length prefixed array of at most max bytes.
func (f *FieldReader) Bytes(max int) []byte {
	return read(f, func(r io.Reader) ([]byte, error) { return ReadBytesLen(r, max) })
}

// Remaining reads everything up to the end of the packet.
func (f *FieldReader) Remaining() []byte { return read(f, ReadRemaining) }

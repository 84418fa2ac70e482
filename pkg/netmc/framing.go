package netmc

import (
	"bufio"
	"errors"
	"io"
	"net"
	"time"

	"github.com/go-logr/logr"

	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/codec"
	"github.com/dualspiral/velocity/pkg/util/errs"
)

// frameReader decodes frames from the socket. The cipher, once enabled,
// sits between the socket buffer and the decoder.
type frameReader struct {
	log  logr.Logger
	conn net.Conn
	idle time.Duration
	buf  *bufio.Reader
	dec  *codec.Decoder
}

func newFrameReader(conn net.Conn, direction proto.Direction, idle time.Duration, log logr.Logger) *frameReader {
	buf := bufio.NewReader(conn)
	return &frameReader{
		log:  log.WithName("reader"),
		conn: conn,
		idle: idle,
		buf:  buf,
		dec:  codec.NewDecoder(buf, direction, log.V(2)),
	}
}

// next blocks for the next frame. Every error ends the connection.
func (r *frameReader) next() (*proto.PacketContext, error) {
	if r.idle > 0 {
		_ = r.conn.SetReadDeadline(time.Now().Add(r.idle))
	}
	pc, err := r.dec.Decode()
	if errors.Is(err, proto.ErrDecoderLeftBytes) {
		return pc, nil
	}
	if err != nil {
		r.logReadErr(err)
		return nil, err
	}
	return pc, nil
}

func (r *frameReader) logReadErr(err error) {
	var (
		opErr   *net.OpError
		timeout interface{ Timeout() bool }
	)
	switch {
	case errors.As(err, &timeout) && timeout.Timeout():
		r.log.V(1).Info("peer idle for too long", "timeout", r.idle)
	case errs.IsSilent(err):
		r.log.V(1).Info("invalid data from peer", "error", err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe),
		errors.As(err, &opErr) && errs.IsConnClosedErr(opErr.Err):
		r.log.V(1).Info("connection closed while reading", "error", err)
	default:
		r.log.Error(err, "unable to read frame")
	}
}

// encrypt deciphers everything after the frame being dispatched.
func (r *frameReader) encrypt(secret []byte) error {
	rd, err := codec.NewDecryptReader(r.buf, secret)
	if err != nil {
		return err
	}
	r.dec.SetReader(rd)
	return nil
}

// frameWriter buffers encoded frames until flush.
type frameWriter struct {
	conn    net.Conn
	timeout time.Duration
	level   int
	buf     *bufio.Writer
	enc     *codec.Encoder
}

func newFrameWriter(conn net.Conn, direction proto.Direction, timeout time.Duration, level int, log logr.Logger) *frameWriter {
	buf := bufio.NewWriter(conn)
	return &frameWriter{
		conn:    conn,
		timeout: timeout,
		level:   level,
		buf:     buf,
		enc:     codec.NewEncoder(buf, direction, log.V(2)),
	}
}

func (w *frameWriter) flush() error {
	if w.timeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
			return err
		}
	}
	// The encoder lock keeps a concurrent WritePacket out of the buffer while it is flushed.
	return w.enc.Sync(w.buf.Flush)
}

func (w *frameWriter) setCompression(threshold int) error {
	return w.enc.SetCompression(threshold, w.level)
}

// encrypt flushes what was written in plain and enciphers the rest.
func (w *frameWriter) encrypt(secret []byte) error {
	if err := w.flush(); err != nil {
		return err
	}
	wr, err := codec.NewEncryptWriter(w.buf, secret)
	if err != nil {
		return err
	}
	w.enc.SetWriter(wr)
	return nil
}

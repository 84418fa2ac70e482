package netutil

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostAndPort(t *testing.T) {
	for _, tc := range []struct {
		addr net.Addr
		host string
		port uint16
	}{
		{NewAddr("play.example.com:25566", "tcp"), "play.example.com", 25566},
		{NewAddr("play.example.com", "tcp"), "play.example.com", 0},
		{NewAddr("[::1]", "tcp"), "::1", 0},
		{NewAddr("host:notaport", "tcp"), "host", 0},
		{&net.TCPAddr{IP: net.IPv6loopback, Port: 25565}, "::1", 25565},
		{&net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 80}, "10.0.0.1", 80},
	} {
		assert.Equal(t, tc.host, Host(tc.addr), tc.addr.String())
		assert.Equal(t, tc.port, Port(tc.addr), tc.addr.String())
	}
}

func TestNewAddr(t *testing.T) {
	addr := NewAddr("lobby:25566", "tcp")
	assert.Equal(t, "lobby:25566", addr.String())
	assert.Equal(t, "tcp", addr.Network())
}

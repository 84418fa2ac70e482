// Package netutil reads addresses of which the port is optional.
package netutil

import (
	"net"
	"strconv"
	"strings"
)

// NewAddr returns addr as a net.Addr on network. addr is not validated.
func NewAddr(addr, network string) net.Addr { return textAddr{network: network, addr: addr} }

type textAddr struct{ network, addr string }

func (a textAddr) Network() string { return a.network }
func (a textAddr) String() string  { return a.addr }

// Host returns the host of addr without brackets. An address without port
// is all host.
func Host(addr net.Addr) string {
	host, _ := split(addr.String())
	return host
}

// Port returns the port of addr, or 0 if there is no numeric port.
func Port(addr net.Addr) uint16 {
	_, port := split(addr.String())
	return port
}

func split(s string) (host string, port uint16) {
	host, p, err := net.SplitHostPort(s)
	if err != nil {
		return strings.TrimSuffix(strings.TrimPrefix(s, "["), "]"), 0
	}
	n, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return host, 0
	}
	return host, uint16(n)
}

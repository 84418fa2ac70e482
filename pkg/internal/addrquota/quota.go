// Package addrquota rate limits events per IP address block.
package addrquota

import (
	"net"
	"net/netip"
	"sync"

	"github.com/golang/groupcache/lru"
	"golang.org/x/time/rate"
)

// Block sizes addresses are grouped by.
const (
	v4Bits = 24
	v6Bits = 64
)

// Quota hands every address block its own token bucket. Only the
// maxEntries most recently seen blocks are remembered.
type Quota struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets *lru.Cache // netip.Prefix -> *rate.Limiter
}

// NewQuota allows eventsPerSecond events per block with bursts of burst.
func NewQuota(eventsPerSecond float32, burst, maxEntries int) *Quota {
	return &Quota{
		limit:   rate.Limit(eventsPerSecond),
		burst:   burst,
		buckets: lru.New(maxEntries),
	}
}

// Blocked takes one event from the bucket of addr's block and reports
// whether the bucket was empty. Addresses that carry no ip always pass.
func (q *Quota) Blocked(addr net.Addr) bool {
	block, ok := blockOf(addr)
	if !ok {
		return false
	}
	return !q.bucket(block).Allow()
}

func (q *Quota) bucket(block netip.Prefix) *rate.Limiter {
	q.mu.Lock()
	defer q.mu.Unlock()
	if v, ok := q.buckets.Get(block); ok {
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(q.limit, q.burst)
	q.buckets.Add(block, l)
	return l
}

func blockOf(addr net.Addr) (netip.Prefix, bool) {
	ip, ok := addrIP(addr)
	if !ok {
		return netip.Prefix{}, false
	}
	ip = ip.Unmap()
	bits := v6Bits
	if ip.Is4() {
		bits = v4Bits
	}
	block, err := ip.Prefix(bits)
	return block, err == nil
}

func addrIP(addr net.Addr) (netip.Addr, bool) {
	switch a := addr.(type) {
	case nil:
		return netip.Addr{}, false
	case *net.TCPAddr:
		return netip.AddrFromSlice(a.IP)
	}
	s := addr.String()
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr(), true
	}
	ip, err := netip.ParseAddr(s)
	return ip, err == nil
}

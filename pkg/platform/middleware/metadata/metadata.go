package metadata

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"cliquey/pkg/requestcontext"
)

// Resolver derives the client IP of a request. Forwarding headers are only
// honoured when the peer is one of the trusted proxies.
type Resolver struct {
	trusted []netip.Prefix
}

// NewResolver trusts X-Forwarded-For and X-Real-IP from peers inside trusted.
// With no prefixes the peer address is always the client.
func NewResolver(trusted ...netip.Prefix) *Resolver {
	return &Resolver{trusted: trusted}
}

// ClientMetadata extracts client IP address and User-Agent from the request
// and adds them to the context for audit events and rate limiting.
func (res *Resolver) ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), res.ClientIP(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientMetadata is ClientMetadata of a Resolver that trusts no proxy.
func ClientMetadata(next http.Handler) http.Handler {
	return NewResolver().ClientMetadata(next)
}

// ClientIP returns the client address. When the peer is trusted, the
// X-Forwarded-For chain is walked from the right and the first hop outside the
// trusted ranges wins; X-Real-IP is used when no chain is present.
func (res *Resolver) ClientIP(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	if !res.isTrusted(peer) {
		if peer == "" {
			return "unknown"
		}
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !res.isTrusted(hop) || i == 0 {
				return hop
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func (res *Resolver) isTrusted(ip string) bool {
	if len(res.trusted) == 0 || ip == "" {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range res.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// ParseTrustedProxies reads a list of CIDRs or bare addresses. A bare address
// becomes a single-host prefix.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

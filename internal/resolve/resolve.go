// Package resolve turns a user supplied host into a server address.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/gamequery/pkg/quake"
)

// DefaultTimeout bounds a single DNS exchange.
const DefaultTimeout = 3 * time.Second

var (
	// ErrInvalidHostname is returned for hosts that are neither an IP literal
	// nor a valid domain name.
	ErrInvalidHostname = errors.New("invalid hostname")

	// ErrNotFound is returned when a name has no usable address records.
	ErrNotFound = errors.New("no address found")
)

// Resolver resolves domain names with miekg/dns against the configured
// nameservers and falls back to the system resolver.
type Resolver struct {
	client *dns.Client

	// Servers are nameserver addresses in host:port form.
	Servers []string
}

// New returns a resolver using the nameservers of /etc/resolv.conf, if any.
func New(timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	r := &Resolver{client: &dns.Client{Net: "udp", Timeout: timeout}}

	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		log.Debug().Err(err).Msg("No resolv.conf, using system resolver only")
		return r
	}
	for _, s := range conf.Servers {
		r.Servers = append(r.Servers, net.JoinHostPort(s, conf.Port))
	}

	return r
}

// Resolve returns the address of host. An IP literal is returned as is.
// For a domain name the name is stored in extra.Hostname unless the caller
// already set one.
func (r *Resolver) Resolve(host string, extra *quake.ExtraSettings) (netip.Addr, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return netip.Addr{}, fmt.Errorf("%w: empty", ErrInvalidHostname)
	}

	if ip, err := netip.ParseAddr(host); err == nil {
		return ip.Unmap(), nil
	}

	host = strings.TrimSuffix(host, ".")
	if _, ok := dns.IsDomainName(host); !ok || strings.ContainsAny(host, " /:") {
		return netip.Addr{}, fmt.Errorf("%w: %q", ErrInvalidHostname, host)
	}

	ip, err := r.lookup(host)
	if err != nil {
		return netip.Addr{}, err
	}

	if extra != nil && extra.Hostname == "" {
		extra.Hostname = host
	}

	log.Debug().Str("host", host).Str("ip", ip.String()).Msg("Hostname resolved")
	return ip, nil
}

func (r *Resolver) lookup(host string) (netip.Addr, error) {
	for _, server := range r.Servers {
		for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
			ip, err := r.exchange(server, host, qtype)
			if err == nil {
				return ip, nil
			}
			log.Trace().
				Err(err).
				Str("server", server).
				Str("type", dns.TypeToString[qtype]).
				Msg("DNS lookup failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.client.Timeout)
	defer cancel()

	ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("resolve %s: %w", host, err)
	}
	for _, ip := range ips {
		if ip.Unmap().Is4() {
			return ip.Unmap(), nil
		}
	}
	if len(ips) > 0 {
		return ips[0], nil
	}

	return netip.Addr{}, fmt.Errorf("%w: %s", ErrNotFound, host)
}

// exchange asks server for a single record type and returns the first address.
func (r *Resolver) exchange(server, host string, qtype uint16) (netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), qtype)
	m.RecursionDesired = true

	in, _, err := r.client.Exchange(m, server)
	if err != nil {
		return netip.Addr{}, err
	}
	if in.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("%w: %s rcode %s", ErrNotFound, host, dns.RcodeToString[in.Rcode])
	}

	for _, rr := range in.Answer {
		switch rec := rr.(type) {
		case *dns.A:
			if ip, ok := netip.AddrFromSlice(rec.A); ok {
				return ip.Unmap(), nil
			}
		case *dns.AAAA:
			if ip, ok := netip.AddrFromSlice(rec.AAAA); ok {
				return ip, nil
			}
		}
	}

	return netip.Addr{}, fmt.Errorf("%w: %s", ErrNotFound, host)
}

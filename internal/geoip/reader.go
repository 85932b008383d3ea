package geoip

import (
	"net"
	"net/netip"

	"github.com/oschwald/geoip2-golang"
)

// Provider wraps the GeoIP2 database reader to provide country lookup functionality.
// A nil Provider is valid and annotates nothing.
type Provider struct {
	db *geoip2.Reader
}

// Open initializes the GeoIP database reader from a specific file path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Provider{db: db}, nil
}

// Close closes the underlying GeoIP database reader.
func (p *Provider) Close() error {
	if p == nil {
		return nil
	}

	return p.db.Close()
}

// Country returns the ISO country code (e.g., "US", "DE") of ip, or an empty
// string for private, invalid or unknown addresses.
func (p *Provider) Country(ip netip.Addr) string {
	if p == nil || !ip.IsValid() || ip.IsPrivate() || ip.IsLoopback() || ip.IsUnspecified() {
		return ""
	}

	record, err := p.db.Country(net.IP(ip.Unmap().AsSlice()))
	if err != nil {
		return ""
	}

	return record.Country.IsoCode
}

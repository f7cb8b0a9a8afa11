// Package geoip maps client IP addresses to ISO country codes for analytics.
package geoip

import (
	"encoding/json"
	"net"
	"os"

	"github.com/oschwald/geoip2-golang"
)

// GeoIP looks up countries in a MaxMind database. When the file at the
// configured path is not a MaxMind database it is read as a JSON list of
// {"net": "<cidr>", "country": "<iso>"} entries, which is handy for tests
// and local development.
type GeoIP struct {
	db     *geoip2.Reader
	ranges []countryRange
}

type countryRange struct {
	net     *net.IPNet
	country string
}

// Init opens the database at path.
func Init(path string) (*GeoIP, error) {
	db, err := geoip2.Open(path)
	if err == nil {
		return &GeoIP{db: db}, nil
	}

	data, rerr := os.ReadFile(path)
	if rerr != nil {
		return nil, err
	}
	var entries []struct {
		Net     string `json:"net"`
		Country string `json:"country"`
	}
	if json.Unmarshal(data, &entries) != nil {
		return nil, err
	}
	g := &GeoIP{}
	for _, e := range entries {
		if _, n, perr := net.ParseCIDR(e.Net); perr == nil {
			g.ranges = append(g.ranges, countryRange{net: n, country: e.Country})
		}
	}
	return g, nil
}

// Country returns the ISO country code for ip, or "" when unknown. A nil
// *GeoIP is valid and knows nothing.
func (g *GeoIP) Country(ip net.IP) string {
	if g == nil {
		return ""
	}
	if g.db != nil {
		if rec, err := g.db.Country(ip); err == nil {
			return rec.Country.IsoCode
		}
	}
	for _, r := range g.ranges {
		if r.net.Contains(ip) {
			return r.country
		}
	}
	return ""
}

// Close releases the database.
func (g *GeoIP) Close() error {
	if g != nil && g.db != nil {
		return g.db.Close()
	}
	return nil
}

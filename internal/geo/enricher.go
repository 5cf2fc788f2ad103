package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Enricher annotates IPs with GeoLite2 country and ASN data when the
// corresponding databases are configured. Every lookup is nil-safe: a
// missing reader just yields no annotation.
type Enricher struct {
	country *geoip2.Reader
	asn     *geoip2.Reader
}

// Open loads the configured mmdb files. Empty paths are skipped; an
// Enricher with no readers is valid and annotates nothing.
func Open(countryPath, asnPath string) (*Enricher, error) {
	e := &Enricher{}

	if countryPath != "" {
		reader, err := geoip2.Open(countryPath)
		if err != nil {
			return nil, fmt.Errorf("geo: open country database: %w", err)
		}
		e.country = reader
	}

	if asnPath != "" {
		reader, err := geoip2.Open(asnPath)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("geo: open asn database: %w", err)
		}
		e.asn = reader
	}

	return e, nil
}

// Annotate returns country/ASN tags for the IP, or nil when nothing is
// known.
func (e *Enricher) Annotate(ip string) map[string]any {
	if e == nil {
		return nil
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil
	}

	tags := make(map[string]any)

	if e.country != nil {
		if record, err := e.country.Country(parsed); err == nil && record.Country.IsoCode != "" {
			tags["country"] = record.Country.IsoCode
		}
	}

	if e.asn != nil {
		if record, err := e.asn.ASN(parsed); err == nil {
			if record.AutonomousSystemNumber != 0 {
				tags["asn"] = record.AutonomousSystemNumber
			}
			if record.AutonomousSystemOrganization != "" {
				tags["asn_org"] = record.AutonomousSystemOrganization
			}
		}
	}

	if len(tags) == 0 {
		return nil
	}
	return tags
}

func (e *Enricher) Close() {
	if e == nil {
		return
	}
	if e.country != nil {
		_ = e.country.Close()
		e.country = nil
	}
	if e.asn != nil {
		_ = e.asn.Close()
		e.asn = nil
	}
}

// Package geocode locates candidate addresses through a cascade of providers
// (Census, Google, PostGIS TIGER) with a shared result cache, and estimates
// driving times through the Google Distance Matrix API.
package geocode

import (
	"context"
	"strings"
)

// Client geocodes addresses.
type Client interface {
	// Geocode geocodes a single address. An unmatched address is not an
	// error; the result has Matched=false.
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)

	// BatchGeocode geocodes multiple addresses. Results are in input order;
	// a failed lookup sets Result.Err instead of failing the batch.
	BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error)
}

// AddressInput represents an address to geocode.
type AddressInput struct {
	ID      string // Optional identifier for batch correlation
	Street  string
	City    string
	State   string
	ZipCode string
	Country string
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude  float64
	Longitude float64
	Source    string // "census", "google", "tiger" or "cascade"
	Quality   string // "rooftop", "range", "centroid", "approximate"
	Matched   bool
	Rating    int   // TIGER rating, lower is better
	Err       error // batch only: every provider failed or the lookup timed out
}

// formatOneLine formats an address as a single comma-separated line.
func formatOneLine(addr AddressInput) string {
	parts := []string{addr.Street, addr.City, addr.State, addr.ZipCode, addr.Country}
	var nonEmpty []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

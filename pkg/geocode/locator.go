package geocode

import (
	"context"

	"github.com/sells-group/visit-planner/internal/model"
)

// Locator adapts a Client to the planner's address lookup.
type Locator struct {
	client Client
}

// NewLocator wraps c.
func NewLocator(c Client) *Locator {
	return &Locator{client: c}
}

// GeocodeAll locates addrs through one batch call. Outcomes are in input
// order; empty addresses are skipped and come back unlocated.
func (l *Locator) GeocodeAll(ctx context.Context, addrs []model.Address) []model.Geocoded {
	out := make([]model.Geocoded, len(addrs))

	var inputs []AddressInput
	var index []int
	for i, a := range addrs {
		if a.IsZero() {
			continue
		}
		inputs = append(inputs, AddressInput{
			Street:  a.Street,
			City:    a.City,
			State:   a.State,
			ZipCode: a.PostalCode,
			Country: a.Country,
		})
		index = append(index, i)
	}
	if len(inputs) == 0 {
		return out
	}

	results, err := l.client.BatchGeocode(ctx, inputs)
	if err != nil {
		for _, i := range index {
			out[i].Err = err
		}
		return out
	}
	for n, i := range index {
		if n >= len(results) {
			break
		}
		r := results[n]
		switch {
		case r.Err != nil:
			out[i].Err = r.Err
		case r.Matched:
			out[i].Location = &model.Coordinates{Lat: r.Latitude, Lng: r.Longitude}
		}
	}
	return out
}

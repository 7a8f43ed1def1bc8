package store

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/visit-planner/internal/model"
)

// encodePoint converts coordinates to EWKB bytes with SRID 4326. A nil
// location encodes as NULL.
func encodePoint(c *model.Coordinates) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	p := geom.NewPointFlat(geom.XY, []float64{c.Lng, c.Lat}).SetSRID(4326)
	data, err := ewkb.Marshal(p, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode point")
	}
	return data, nil
}

// decodePoint parses an EWKB point. Empty input means no location.
func decodePoint(data []byte) (*model.Coordinates, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "store: decode point")
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return nil, eris.Errorf("store: expected point, got %T", g)
	}
	return &model.Coordinates{Lat: p.Y(), Lng: p.X()}, nil
}

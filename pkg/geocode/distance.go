package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/visit-planner/internal/model"
	"github.com/sells-group/visit-planner/internal/resilience"
)

const (
	googleDistanceMatrixURL = "https://maps.googleapis.com/maps/api/distancematrix/json"
	maxMatrixDestinations   = 25
)

type distanceMatrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Duration struct {
				Value float64 `json:"value"` // seconds
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// DistanceMatrix estimates driving times with the Google Distance Matrix API.
type DistanceMatrix struct {
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewDistanceMatrix creates a DistanceMatrix client.
func NewDistanceMatrix(apiKey string, hc *http.Client, rps float64) *DistanceMatrix {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &DistanceMatrix{
		apiKey:     apiKey,
		httpClient: hc,
		limiter:    newLimiter(rps),
		retry:      resilience.DefaultRetryConfig("google-distance-matrix"),
	}
}

// TravelMinutes returns the driving minutes from origin to each destination.
// Entries the API cannot route are nil.
func (d *DistanceMatrix) TravelMinutes(ctx context.Context, origin model.Coordinates, dests []model.Coordinates) ([]*float64, error) {
	if d.apiKey == "" {
		return nil, eris.New("geocode: distance matrix api key not configured")
	}
	out := make([]*float64, len(dests))
	for start := 0; start < len(dests); start += maxMatrixDestinations {
		end := min(start+maxMatrixDestinations, len(dests))
		if err := d.fetch(ctx, origin, dests[start:end], out[start:end]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *DistanceMatrix) fetch(ctx context.Context, origin model.Coordinates, dests []model.Coordinates, out []*float64) error {
	points := make([]string, len(dests))
	for i, c := range dests {
		points[i] = latLng(c)
	}
	params := url.Values{
		"origins":      {latLng(origin)},
		"destinations": {strings.Join(points, "|")},
		"mode":         {"driving"},
		"key":          {d.apiKey},
	}

	var resp distanceMatrixResponse
	err := resilience.Do(ctx, d.retry, func(ctx context.Context) error {
		if err := d.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "geocode: distance matrix rate limit")
		}
		return getJSON(ctx, d.httpClient, googleDistanceMatrixURL+"?"+params.Encode(), "distance matrix", &resp)
	})
	if err != nil {
		return err
	}
	if resp.Status != "OK" {
		return eris.Errorf("geocode: distance matrix status %s", resp.Status)
	}
	if len(resp.Rows) == 0 {
		return nil
	}
	for i, el := range resp.Rows[0].Elements {
		if i >= len(out) || el.Status != "OK" {
			continue
		}
		minutes := el.Duration.Value / 60
		out[i] = &minutes
	}
	return nil
}

func latLng(c model.Coordinates) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

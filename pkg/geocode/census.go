package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/visit-planner/internal/resilience"
)

const (
	censusOneLineURL = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"
	censusBenchmark  = "Public_AR_Current"
)

// censusOneLineResponse is the JSON response from the Census single-address API.
type censusOneLineResponse struct {
	Result struct {
		AddressMatches []censusAddressMatch `json:"addressMatches"`
	} `json:"result"`
}

type censusAddressMatch struct {
	Coordinates struct {
		X float64 `json:"x"` // longitude
		Y float64 `json:"y"` // latitude
	} `json:"coordinates"`
	MatchedAddress string `json:"matchedAddress"`
}

// CensusProvider geocodes US addresses via the Census one-line API.
type CensusProvider struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewCensusProvider creates a CensusProvider limited to rps requests per second.
func NewCensusProvider(hc *http.Client, rps float64) *CensusProvider {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &CensusProvider{
		httpClient: hc,
		limiter:    newLimiter(rps),
		retry:      resilience.DefaultRetryConfig("census"),
	}
}

// Name implements Provider.
func (p *CensusProvider) Name() string { return "census" }

// Available implements Provider.
func (p *CensusProvider) Available() bool { return true }

// Geocode implements Provider. Non-US addresses are reported unmatched
// without a request.
func (p *CensusProvider) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	if c := strings.ToUpper(strings.TrimSpace(addr.Country)); c != "" && c != "US" && c != "USA" {
		return &Result{Matched: false, Source: "census"}, nil
	}
	oneLine := formatOneLine(addr)
	if oneLine == "" {
		return &Result{Matched: false, Source: "census"}, nil
	}

	params := url.Values{
		"address":   {oneLine},
		"benchmark": {censusBenchmark},
		"format":    {"json"},
	}

	var censusResp censusOneLineResponse
	err := resilience.Do(ctx, p.retry, func(ctx context.Context) error {
		if err := p.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "geocode: census rate limit")
		}
		return getJSON(ctx, p.httpClient, censusOneLineURL+"?"+params.Encode(), "census", &censusResp)
	})
	if err != nil {
		return nil, err
	}

	if len(censusResp.Result.AddressMatches) == 0 {
		return &Result{Matched: false, Source: "census"}, nil
	}

	match := censusResp.Result.AddressMatches[0]
	return &Result{
		Latitude:  match.Coordinates.Y,
		Longitude: match.Coordinates.X,
		Source:    "census",
		Quality:   "rooftop", // Census one-line matches are exact
		Matched:   true,
	}, nil
}

// getJSON issues a GET and decodes the JSON body into out. Throttling and
// server errors come back as resilience.TransientError.
func getJSON(ctx context.Context, hc *http.Client, reqURL, service string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrapf(err, "geocode: %s build request", service)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return eris.Wrapf(err, "geocode: %s request", service)
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckStatus(service, resp.StatusCode); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrapf(err, "geocode: %s parse response", service)
	}
	return nil
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCensus(t *testing.T, handler http.HandlerFunc) *CensusProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewCensusProvider(newRewriteClient(srv.URL, censusOneLineURL), 0)
	p.retry.BaseDelay = time.Millisecond
	p.retry.MaxDelay = time.Millisecond
	return p
}

func TestCensusGeocode_Match(t *testing.T) {
	var gotAddress string
	p := newTestCensus(t, func(w http.ResponseWriter, r *http.Request) {
		gotAddress = r.URL.Query().Get("address")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"result": {
				"addressMatches": [{
					"coordinates": {"x": -80.1918, "y": 25.7617},
					"matchedAddress": "1 BISCAYNE BLVD, MIAMI, FL, 33132"
				}]
			}
		}`)
	})

	result, err := p.Geocode(context.Background(), AddressInput{
		Street: "1 Biscayne Blvd", City: "Miami", State: "FL", ZipCode: "33132",
	})
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.InDelta(t, 25.7617, result.Latitude, 0.0001)
	assert.InDelta(t, -80.1918, result.Longitude, 0.0001)
	assert.Equal(t, "census", result.Source)
	assert.Equal(t, "rooftop", result.Quality)
	assert.Equal(t, "1 Biscayne Blvd, Miami, FL, 33132", gotAddress)
}

func TestCensusGeocode_NoMatch(t *testing.T) {
	p := newTestCensus(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"result": {"addressMatches": []}}`)
	})

	result, err := p.Geocode(context.Background(), AddressInput{Street: "nowhere"})
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestCensusGeocode_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestCensus(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"result": {"addressMatches": [{"coordinates": {"x": 1, "y": 2}}]}}`)
	})

	result, err := p.Geocode(context.Background(), AddressInput{Street: "1 Main St"})
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCensusGeocode_BadRequestIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	p := newTestCensus(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := p.Geocode(context.Background(), AddressInput{Street: "1 Main St"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestCensusGeocode_SkipsForeignAndEmpty(t *testing.T) {
	var calls atomic.Int32
	p := newTestCensus(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	})

	r, err := p.Geocode(context.Background(), AddressInput{Street: "Calle 1", Country: "MX"})
	require.NoError(t, err)
	assert.False(t, r.Matched)

	r, err = p.Geocode(context.Background(), AddressInput{Street: "  "})
	require.NoError(t, err)
	assert.False(t, r.Matched)
	assert.Zero(t, calls.Load())
}

func TestFormatOneLine(t *testing.T) {
	assert.Equal(t, "1 Main St, Austin, TX, 78701, US", formatOneLine(AddressInput{
		Street: " 1 Main St ", City: "Austin", State: "TX", ZipCode: "78701", Country: "US",
	}))
	assert.Equal(t, "Austin, TX", formatOneLine(AddressInput{City: "Austin", State: "TX"}))
	assert.Empty(t, formatOneLine(AddressInput{}))
}

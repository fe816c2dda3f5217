package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javipazolea/ferremas-backend/internal/domain"
)

func TestBCCHSource_FetchParsesLastObservation(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"function":   r.URL.Query().Get("function"),
			"timeseries": r.URL.Query().Get("timeseries"),
			"user":       r.URL.Query().Get("user"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Codigo": 0,
			"Descripcion": "Success",
			"Series": {
				"descripEsp": "Dolar observado",
				"Obs": [
					{"indexDateString": "28-08-2026", "value": "945.12", "statusCode": "OK"},
					{"indexDateString": "29-08-2026", "value": "948.55", "statusCode": "OK"}
				]
			}
		}`))
	}))
	defer server.Close()

	source := NewBCCHSource(BCCHConfig{
		BaseURL: server.URL,
		User:    "test@ferremas.cl",
	}, nil)

	rate, err := source.Fetch(context.Background(), "USD")
	require.NoError(t, err)

	assert.Equal(t, "USD", rate.Currency)
	assert.InDelta(t, 948.55, rate.Value, 0.0001)
	assert.Equal(t, "29-08-2026", rate.Date)
	assert.Equal(t, domain.RateSourceBCCH, rate.Source)
	assert.Equal(t, "GetSeries", gotQuery["function"])
	assert.Equal(t, "F073.TCO.PRE.Z.D", gotQuery["timeseries"])
	assert.Equal(t, "test@ferremas.cl", gotQuery["user"])
}

func TestBCCHSource_FetchSkipsEmptyObservations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"Codigo": 0,
			"Series": {
				"Obs": [
					{"indexDateString": "28-08-2026", "value": "1050.44", "statusCode": "OK"},
					{"indexDateString": "29-08-2026", "value": "NaN", "statusCode": "ND"}
				]
			}
		}`))
	}))
	defer server.Close()

	source := NewBCCHSource(BCCHConfig{BaseURL: server.URL}, nil)

	rate, err := source.Fetch(context.Background(), "EUR")
	require.NoError(t, err)
	assert.InDelta(t, 1050.44, rate.Value, 0.0001)
	assert.Equal(t, "28-08-2026", rate.Date)
}

func TestBCCHSource_FetchUnsupportedCurrency(t *testing.T) {
	source := NewBCCHSource(BCCHConfig{BaseURL: "http://127.0.0.1:1"}, nil)

	_, err := source.Fetch(context.Background(), "BTC")
	assert.ErrorIs(t, err, domain.ErrCurrencyUnsupported)
}

func TestBCCHSource_FetchUnavailable(t *testing.T) {
	cases := []struct {
		name string
		body string
		code int
	}{
		{name: "http error", body: `upstream down`, code: http.StatusBadGateway},
		{name: "bcch rejects request", body: `{"Codigo": -1, "Descripcion": "Invalid series"}`, code: http.StatusOK},
		{name: "no observations", body: `{"Codigo": 0, "Series": {"Obs": []}}`, code: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.code)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			source := NewBCCHSource(BCCHConfig{BaseURL: server.URL}, nil)

			_, err := source.Fetch(context.Background(), "UF")
			assert.ErrorIs(t, err, domain.ErrRateUnavailable)
		})
	}
}

func TestBCCHSource_FetchRequestWindow(t *testing.T) {
	var first, last string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first = r.URL.Query().Get("firstdate")
		last = r.URL.Query().Get("lastdate")
		_, _ = w.Write([]byte(`{"Codigo": 0, "Series": {"Obs": [{"indexDateString": "30-08-2026", "value": "39.1", "statusCode": "OK"}]}}`))
	}))
	defer server.Close()

	source := NewBCCHSource(BCCHConfig{BaseURL: server.URL}, nil)
	source.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }

	_, err := source.Fetch(context.Background(), "UTM")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-23", first)
	assert.Equal(t, "2026-08-30", last)
}

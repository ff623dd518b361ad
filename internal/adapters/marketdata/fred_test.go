package marketdata_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/etflab/internal/adapters/marketdata"
	"github.com/alejandrodnm/etflab/internal/domain"
)

const fredFixture = `{
	"observations": [
		{"date": "2024-01-02", "value": "3.95"},
		{"date": "2024-01-03", "value": "."},
		{"date": "2024-01-04", "value": "4.02"}
	]
}`

func TestFRED_ParsesObservationsAndSkipsGaps(t *testing.T) {
	var gotSeries, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSeries = r.URL.Query().Get("series_id")
		gotKey = r.URL.Query().Get("api_key")
		w.Write([]byte(fredFixture))
	}))
	defer srv.Close()

	prov := marketdata.NewFREDWithBase(srv.URL, "test-key", "")
	s, err := prov.MacroSeries(context.Background(), "DGS10", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)

	assert.Equal(t, "DGS10", gotSeries)
	assert.Equal(t, "test-key", gotKey)

	// El hueco "." del 3 de enero se descarta, no se rellena.
	require.Equal(t, 2, s.Len())
	assert.Equal(t, []float64{3.95, 4.02}, s.Values)
}

func TestFRED_EmptySeriesIsInsufficientData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"observations": []}`))
	}))
	defer srv.Close()

	prov := marketdata.NewFREDWithBase(srv.URL, "test-key", "")
	_, err := prov.MacroSeries(context.Background(), "DGS10", day(2024, 1, 1), day(2024, 1, 31))

	var insufErr *domain.InsufficientDataError
	require.ErrorAs(t, err, &insufErr)
}

func TestNewFRED_RequiresAPIKey(t *testing.T) {
	_, err := marketdata.NewFRED("", "")
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

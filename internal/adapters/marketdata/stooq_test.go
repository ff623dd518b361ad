package marketdata_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/etflab/internal/adapters/marketdata"
	"github.com/alejandrodnm/etflab/internal/domain"
)

const stooqFixture = `Date,Open,High,Low,Close,Volume
2024-01-02,98.0,101.0,97.5,100.0,1000
2024-01-03,100.0,111.0,99.0,110.0,1200
2024-01-04,110.0,122.0,109.0,121.0,900
`

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStooq_ParsesDailyCSV(t *testing.T) {
	var gotSymbol string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSymbol = r.URL.Query().Get("s")
		w.Write([]byte(stooqFixture))
	}))
	defer srv.Close()

	prov := marketdata.NewStooqWithBase(srv.URL, "")
	is, err := prov.PriceSeries(context.Background(), "XBI", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)

	// Tickers US llevan el sufijo de mercado de Stooq.
	assert.Equal(t, "xbi.us", gotSymbol)
	assert.Equal(t, "XBI", is.Ticker)

	require.Equal(t, 3, is.Prices.Len())
	assert.Equal(t, day(2024, 1, 2), is.Prices.Dates[0])
	assert.Equal(t, []float64{100, 110, 121}, is.Prices.Values)
}

func TestStooq_SecondCallServedFromCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(stooqFixture))
	}))
	defer srv.Close()

	prov := marketdata.NewStooqWithBase(srv.URL, t.TempDir())
	ctx := context.Background()

	_, err := prov.PriceSeries(ctx, "XBI", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	_, err = prov.PriceSeries(ctx, "XBI", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
}

func TestStooq_EmptyBodyIsInsufficientData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Date,Open,High,Low,Close,Volume\n"))
	}))
	defer srv.Close()

	prov := marketdata.NewStooqWithBase(srv.URL, "")
	_, err := prov.PriceSeries(context.Background(), "ZZZZ", day(2024, 1, 1), day(2024, 1, 31))

	var insufErr *domain.InsufficientDataError
	require.ErrorAs(t, err, &insufErr)
}

func TestStooq_ClientErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "no data", http.StatusNotFound)
	}))
	defer srv.Close()

	prov := marketdata.NewStooqWithBase(srv.URL, "")
	_, err := prov.PriceSeries(context.Background(), "XBI", day(2024, 1, 1), day(2024, 1, 31))
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

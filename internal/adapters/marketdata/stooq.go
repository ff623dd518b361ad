package marketdata

// stooq.go — PriceProvider sobre el endpoint CSV diario de Stooq.
//
// Formato: Date,Open,High,Low,Close,Volume con el cierre ya ajustado.
// Los tickers US llevan sufijo ".us" en Stooq; el provider lo añade si
// el ticker no trae ya un sufijo de mercado.

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/etflab/internal/domain"
)

const stooqBase = "https://stooq.com/q/d/l/"

// Stooq implementa ports.PriceProvider descargando historia diaria.
type Stooq struct {
	client *client
	base   string
}

// NewStooq crea el provider. cacheDir vacío desactiva la caché en disco.
func NewStooq(cacheDir string) *Stooq {
	return &Stooq{client: newClient(cacheDir), base: stooqBase}
}

// NewStooqWithBase permite apuntar a un servidor alternativo (tests).
func NewStooqWithBase(base, cacheDir string) *Stooq {
	return &Stooq{client: newClient(cacheDir), base: base}
}

// PriceSeries implementa ports.PriceProvider.
func (p *Stooq) PriceSeries(ctx context.Context, ticker string, start, end time.Time) (domain.InstrumentSeries, error) {
	symbol := stooqSymbol(ticker)
	q := url.Values{}
	q.Set("s", symbol)
	q.Set("i", "d")
	q.Set("d1", start.Format("20060102"))
	q.Set("d2", end.Format("20060102"))

	cacheKey := fmt.Sprintf("stooq_%s_%s_%s.csv",
		symbol, start.Format("20060102"), end.Format("20060102"))

	body, err := p.client.getCached(ctx, p.base+"?"+q.Encode(), cacheKey)
	if err != nil {
		return domain.InstrumentSeries{}, fmt.Errorf("marketdata.Stooq: %s: %w", ticker, err)
	}

	series, err := parseStooqCSV(body)
	if err != nil {
		return domain.InstrumentSeries{}, fmt.Errorf("marketdata.Stooq: %s: %w", ticker, err)
	}
	if series.Len() == 0 {
		return domain.InstrumentSeries{}, &domain.InsufficientDataError{
			What: "stooq prices for " + ticker, Needed: 1, Got: 0}
	}
	slog.Debug("stooq series loaded", "ticker", ticker, "days", series.Len())
	return domain.InstrumentSeries{Ticker: ticker, Prices: series}, nil
}

// parseStooqCSV parsea el CSV Date,Open,High,Low,Close,Volume quedándose
// con el cierre. Filas sin cierre parseable se descartan.
func parseStooqCSV(body []byte) (domain.Series, error) {
	r := csv.NewReader(strings.NewReader(string(body)))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return domain.Series{}, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return domain.Series{}, nil
	}

	header := records[0]
	dateCol, closeCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date":
			dateCol = i
		case "close":
			closeCol = i
		}
	}
	if dateCol < 0 || closeCol < 0 {
		return domain.Series{}, fmt.Errorf("unexpected header %v", header)
	}

	var s domain.Series
	for _, rec := range records[1:] {
		if len(rec) <= dateCol || len(rec) <= closeCol {
			continue
		}
		d, err := time.Parse("2006-01-02", rec[dateCol])
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(rec[closeCol], 64)
		if err != nil || v <= 0 {
			continue
		}
		s.Dates = append(s.Dates, d)
		s.Values = append(s.Values, v)
	}
	if err := s.Validate(); err != nil {
		return domain.Series{}, err
	}
	return s, nil
}

// stooqSymbol añade el sufijo ".us" a tickers sin mercado explícito.
func stooqSymbol(ticker string) string {
	t := strings.ToLower(ticker)
	if strings.Contains(t, ".") {
		return t
	}
	return t + ".us"
}

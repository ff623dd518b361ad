package marketdata

// fred.go — MacroProvider sobre el API de observaciones de FRED.
//
// Series típicas del estudio: DGS10 (yield 10Y) y VIXCLS (VIX). FRED
// publica huecos como "." — esas observaciones se descartan, el core
// muestrea "as of" y no necesita relleno.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/alejandrodnm/etflab/internal/domain"
)

const fredBase = "https://api.stlouisfed.org/fred/series/observations"

// FRED implementa ports.MacroProvider.
type FRED struct {
	client *client
	base   string
	apiKey string
}

// NewFRED crea el provider. La API key es obligatoria para el servicio real.
func NewFRED(apiKey, cacheDir string) (*FRED, error) {
	if apiKey == "" {
		return nil, domain.Configf("FRED provider needs an API key (FRED_API_KEY)")
	}
	return &FRED{client: newClient(cacheDir), base: fredBase, apiKey: apiKey}, nil
}

// NewFREDWithBase permite apuntar a un servidor alternativo (tests).
func NewFREDWithBase(base, apiKey, cacheDir string) *FRED {
	return &FRED{client: newClient(cacheDir), base: base, apiKey: apiKey}
}

// fredResponse es el subset del JSON de observaciones que usamos.
type fredResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// MacroSeries implementa ports.MacroProvider.
func (p *FRED) MacroSeries(ctx context.Context, id string, start, end time.Time) (domain.Series, error) {
	q := url.Values{}
	q.Set("series_id", id)
	q.Set("api_key", p.apiKey)
	q.Set("file_type", "json")
	q.Set("observation_start", start.Format("2006-01-02"))
	q.Set("observation_end", end.Format("2006-01-02"))

	cacheKey := fmt.Sprintf("fred_%s_%s_%s.json",
		id, start.Format("20060102"), end.Format("20060102"))

	body, err := p.client.getCached(ctx, p.base+"?"+q.Encode(), cacheKey)
	if err != nil {
		return domain.Series{}, fmt.Errorf("marketdata.FRED: %s: %w", id, err)
	}

	var resp fredResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Series{}, fmt.Errorf("marketdata.FRED: %s: decode: %w", id, err)
	}

	var s domain.Series
	for _, obs := range resp.Observations {
		v, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			continue // "." = dato ausente
		}
		d, err := time.Parse("2006-01-02", obs.Date)
		if err != nil {
			continue
		}
		s.Dates = append(s.Dates, d)
		s.Values = append(s.Values, v)
	}
	if s.Len() == 0 {
		return domain.Series{}, &domain.InsufficientDataError{
			What: "fred observations for " + id, Needed: 1, Got: 0}
	}
	if err := s.Validate(); err != nil {
		return domain.Series{}, fmt.Errorf("marketdata.FRED: %s: %w", id, err)
	}
	slog.Debug("fred series loaded", "id", id, "observations", s.Len())
	return s, nil
}

package marketdata

// csv.go — providers offline sobre ficheros CSV locales, y el loader de
// factores mensuales estilo Fama-French.
//
// Modo offline: cada ticker / serie macro vive en <dir>/<nombre>.csv con
// cabecera Date,... — el mismo formato que deja la caché de los providers
// remotos, así un estudio descargado una vez es reproducible sin red.

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/etflab/internal/analytics"
	"github.com/alejandrodnm/etflab/internal/domain"
)

// LocalCSV implementa ports.PriceProvider y ports.MacroProvider leyendo
// ficheros <dir>/<nombre>.csv.
type LocalCSV struct {
	dir string
}

// NewLocalCSV crea el provider offline sobre el directorio dado.
func NewLocalCSV(dir string) *LocalCSV {
	return &LocalCSV{dir: dir}
}

// PriceSeries implementa ports.PriceProvider.
func (p *LocalCSV) PriceSeries(_ context.Context, ticker string, start, end time.Time) (domain.InstrumentSeries, error) {
	s, err := p.load(ticker)
	if err != nil {
		return domain.InstrumentSeries{}, err
	}
	return domain.InstrumentSeries{Ticker: ticker, Prices: s.Slice(start, end)}, nil
}

// MacroSeries implementa ports.MacroProvider.
func (p *LocalCSV) MacroSeries(_ context.Context, id string, start, end time.Time) (domain.Series, error) {
	s, err := p.load(id)
	if err != nil {
		return domain.Series{}, err
	}
	return s.Slice(start, end), nil
}

// load lee <dir>/<name>.csv como serie Date,Valor usando la segunda
// columna (o la columna "close"/"value" si la cabecera la nombra).
func (p *LocalCSV) load(name string) (domain.Series, error) {
	path := filepath.Join(p.dir, strings.ToLower(name)+".csv")
	f, err := os.Open(path)
	if err != nil {
		return domain.Series{}, fmt.Errorf("marketdata.LocalCSV: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return domain.Series{}, fmt.Errorf("marketdata.LocalCSV: %s: %w", path, err)
	}
	if len(records) < 2 {
		return domain.Series{}, &domain.InsufficientDataError{
			What: "csv rows in " + path, Needed: 2, Got: len(records)}
	}

	valueCol := 1
	for i, h := range records[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "close", "value", "adj close":
			valueCol = i
		}
	}

	var s domain.Series
	for _, rec := range records[1:] {
		if len(rec) <= valueCol {
			continue
		}
		d, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(rec[valueCol], 64)
		if err != nil {
			continue
		}
		s.Dates = append(s.Dates, d)
		s.Values = append(s.Values, v)
	}
	if err := s.Validate(); err != nil {
		return domain.Series{}, fmt.Errorf("marketdata.LocalCSV: %s: %w", path, err)
	}
	return s, nil
}

// LoadFactorCSV lee un CSV mensual de factores (cabecera Date,RF y una
// columna por factor) y lo convierte en analytics.FactorModel. Las fechas
// aceptan "2006-01-02" o el "200601" de los ficheros de la librería de
// Ken French (se etiquetan al día 1 del mes; el cruce es por año/mes).
//
// Heurística de unidades: si el RF más grande en valor absoluto supera
// 0.5, el fichero está en porcentaje y todo se divide entre 100.
func LoadFactorCSV(path string, factorNames []string) (analytics.FactorModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return analytics.FactorModel{}, fmt.Errorf("marketdata.LoadFactorCSV: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return analytics.FactorModel{}, fmt.Errorf("marketdata.LoadFactorCSV: %s: %w", path, err)
	}
	if len(records) < 2 {
		return analytics.FactorModel{}, &domain.InsufficientDataError{
			What: "factor rows in " + path, Needed: 2, Got: len(records)}
	}

	cols := make(map[string]int)
	for i, h := range records[0] {
		cols[strings.TrimSpace(h)] = i
	}
	rfCol, ok := cols["RF"]
	if !ok {
		return analytics.FactorModel{}, domain.Configf("factor csv %s has no RF column", path)
	}
	for _, name := range factorNames {
		if _, ok := cols[name]; !ok {
			return analytics.FactorModel{}, domain.Configf("factor csv %s has no %q column", path, name)
		}
	}

	model := analytics.FactorModel{
		Names:   factorNames,
		Factors: make(map[string]domain.Series, len(factorNames)),
	}
	for _, rec := range records[1:] {
		d, ok := parseFactorDate(rec[0])
		if !ok {
			continue
		}
		rf, err := strconv.ParseFloat(strings.TrimSpace(rec[rfCol]), 64)
		if err != nil {
			continue
		}
		complete := true
		row := make(map[string]float64, len(factorNames))
		for _, name := range factorNames {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[cols[name]]), 64)
			if err != nil {
				complete = false
				break
			}
			row[name] = v
		}
		if !complete {
			continue
		}
		model.RiskFree.Dates = append(model.RiskFree.Dates, d)
		model.RiskFree.Values = append(model.RiskFree.Values, rf)
		for _, name := range factorNames {
			s := model.Factors[name]
			s.Dates = append(s.Dates, d)
			s.Values = append(s.Values, row[name])
			model.Factors[name] = s
		}
	}

	if model.RiskFree.Len() == 0 {
		return analytics.FactorModel{}, &domain.InsufficientDataError{
			What: "parsable factor rows in " + path, Needed: 1, Got: 0}
	}

	if inPercent(model.RiskFree.Values) {
		scale(model.RiskFree.Values)
		for _, name := range factorNames {
			scale(model.Factors[name].Values)
		}
	}
	return model, nil
}

// FactorCSV implementa ports.FactorProvider sobre un fichero local.
type FactorCSV struct {
	path string
}

// NewFactorCSV crea el provider de factores sobre la ruta dada.
func NewFactorCSV(path string) *FactorCSV {
	return &FactorCSV{path: path}
}

// FactorReturns implementa ports.FactorProvider.
func (p *FactorCSV) FactorReturns(_ context.Context, names []string, start, end time.Time) (map[string]domain.Series, domain.Series, error) {
	model, err := LoadFactorCSV(p.path, names)
	if err != nil {
		return nil, domain.Series{}, err
	}
	factors := make(map[string]domain.Series, len(names))
	for _, name := range names {
		factors[name] = model.Factors[name].Slice(start, end)
	}
	return factors, model.RiskFree.Slice(start, end), nil
}

func parseFactorDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d, true
	}
	if d, err := time.Parse("200601", s); err == nil {
		return d, true
	}
	return time.Time{}, false
}

// inPercent decide si la serie RF viene en porcentaje: una tasa mensual
// libre de riesgo jamás llega a 0.5 en decimal.
func inPercent(rf []float64) bool {
	for _, v := range rf {
		if math.Abs(v) > 0.5 {
			return true
		}
	}
	return false
}

func scale(vals []float64) {
	for i := range vals {
		vals[i] /= 100
	}
}

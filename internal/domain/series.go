package domain

import (
	"fmt"
	"time"
)

// Series es una secuencia ordenada de pares (fecha, valor).
// Invariante: fechas estrictamente crecientes, sin duplicados.
// El core nunca rellena huecos — eso es responsabilidad del provider.
type Series struct {
	Dates  []time.Time
	Values []float64
}

// Len devuelve el número de observaciones.
func (s Series) Len() int {
	return len(s.Dates)
}

// Validate verifica las invariantes de la serie: misma longitud de fechas
// y valores, fechas estrictamente crecientes.
func (s Series) Validate() error {
	if len(s.Dates) != len(s.Values) {
		return &AlignmentError{Reason: fmt.Sprintf(
			"series has %d dates but %d values", len(s.Dates), len(s.Values))}
	}
	for i := 1; i < len(s.Dates); i++ {
		if !s.Dates[i].After(s.Dates[i-1]) {
			return &AlignmentError{Reason: fmt.Sprintf(
				"dates not strictly increasing at %s", s.Dates[i].Format("2006-01-02"))}
		}
	}
	return nil
}

// At devuelve el valor en la fecha exacta dada.
func (s Series) At(date time.Time) (float64, bool) {
	i := s.searchDate(date)
	if i < len(s.Dates) && s.Dates[i].Equal(date) {
		return s.Values[i], true
	}
	return 0, false
}

// Before devuelve la última observación con fecha ESTRICTAMENTE anterior
// a la fecha dada. Es el mecanismo "as of" para muestrear series macro sin
// look-ahead: un dato publicado el mismo día de la decisión nunca se usa.
func (s Series) Before(date time.Time) (time.Time, float64, bool) {
	i := s.searchDate(date) - 1
	if i < 0 {
		return time.Time{}, 0, false
	}
	return s.Dates[i], s.Values[i], true
}

// Slice devuelve la sub-serie con fechas en [start, end], ambos inclusive.
// Un start o end cero significa "sin límite" por ese lado.
func (s Series) Slice(start, end time.Time) Series {
	lo, hi := 0, len(s.Dates)
	if !start.IsZero() {
		lo = s.searchDate(start)
	}
	if !end.IsZero() {
		hi = s.searchDate(end.Add(time.Nanosecond))
	}
	if lo >= hi {
		return Series{}
	}
	return Series{Dates: s.Dates[lo:hi], Values: s.Values[lo:hi]}
}

// Returns devuelve la serie de retornos simples periodo a periodo.
// La serie resultante tiene una observación menos que la original.
func (s Series) Returns() Series {
	if s.Len() < 2 {
		return Series{}
	}
	out := Series{
		Dates:  make([]time.Time, 0, s.Len()-1),
		Values: make([]float64, 0, s.Len()-1),
	}
	for i := 1; i < s.Len(); i++ {
		out.Dates = append(out.Dates, s.Dates[i])
		out.Values = append(out.Values, s.Values[i]/s.Values[i-1]-1)
	}
	return out
}

// searchDate devuelve el índice de la primera fecha >= date (búsqueda binaria).
func (s Series) searchDate(date time.Time) int {
	lo, hi := 0, len(s.Dates)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.Dates[mid].Before(date) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// InstrumentSeries es la historia de precios ajustados de un instrumento.
type InstrumentSeries struct {
	Ticker string
	Prices Series
}

// MonthEnds devuelve, de un calendario ordenado, la última fecha de cada
// mes natural presente. Son las fechas de decisión de las estrategias.
func MonthEnds(calendar []time.Time) []time.Time {
	var out []time.Time
	for i, d := range calendar {
		last := i == len(calendar)-1
		if !last {
			next := calendar[i+1]
			if next.Year() == d.Year() && next.Month() == d.Month() {
				continue
			}
		}
		out = append(out, d)
	}
	return out
}

// PriceTable es la matriz diaria de precios alineada: un calendario común
// y una columna por ticker, en el orden dado.
type PriceTable struct {
	Tickers []string
	Dates   []time.Time
	Prices  [][]float64 // [día][ticker]
}

// NewPriceTable construye la tabla a partir de series por instrumento.
// Todas las series deben compartir exactamente el mismo calendario;
// cualquier desalineación es un AlignmentError, nunca se parchea.
func NewPriceTable(series []InstrumentSeries) (*PriceTable, error) {
	if len(series) == 0 {
		return nil, &ConfigurationError{Reason: "price table needs at least one instrument"}
	}
	for _, is := range series {
		if err := is.Prices.Validate(); err != nil {
			return nil, fmt.Errorf("domain.NewPriceTable: %s: %w", is.Ticker, err)
		}
	}

	calendar := series[0].Prices.Dates
	for _, is := range series[1:] {
		if len(is.Prices.Dates) != len(calendar) {
			return nil, &AlignmentError{Reason: fmt.Sprintf(
				"%s has %d dates, %s has %d",
				series[0].Ticker, len(calendar), is.Ticker, len(is.Prices.Dates))}
		}
		for i, d := range is.Prices.Dates {
			if !d.Equal(calendar[i]) {
				return nil, &AlignmentError{Reason: fmt.Sprintf(
					"%s and %s diverge at index %d (%s vs %s)",
					series[0].Ticker, is.Ticker, i,
					calendar[i].Format("2006-01-02"), d.Format("2006-01-02"))}
			}
		}
	}

	t := &PriceTable{
		Tickers: make([]string, len(series)),
		Dates:   calendar,
		Prices:  make([][]float64, len(calendar)),
	}
	for j, is := range series {
		t.Tickers[j] = is.Ticker
	}
	for i := range calendar {
		row := make([]float64, len(series))
		for j, is := range series {
			row[j] = is.Prices.Values[i]
		}
		t.Prices[i] = row
	}
	return t, nil
}

// NewPriceTableIntersect construye la tabla sobre la intersección de
// calendarios. Es la operación de frontera del provider: dentro del core
// la alineación ya es una precondición estricta.
func NewPriceTableIntersect(series []InstrumentSeries) (*PriceTable, error) {
	if len(series) == 0 {
		return nil, &ConfigurationError{Reason: "price table needs at least one instrument"}
	}

	common := make(map[time.Time]int)
	for _, d := range series[0].Prices.Dates {
		common[d] = 1
	}
	for _, is := range series[1:] {
		for _, d := range is.Prices.Dates {
			if _, ok := common[d]; ok {
				common[d]++
			}
		}
	}

	aligned := make([]InstrumentSeries, len(series))
	for j, is := range series {
		sub := Series{}
		for i, d := range is.Prices.Dates {
			if common[d] == len(series) {
				sub.Dates = append(sub.Dates, d)
				sub.Values = append(sub.Values, is.Prices.Values[i])
			}
		}
		aligned[j] = InstrumentSeries{Ticker: is.Ticker, Prices: sub}
	}
	return NewPriceTable(aligned)
}

// Column devuelve la serie de precios de un ticker.
func (t *PriceTable) Column(ticker string) (Series, bool) {
	j := t.tickerIndex(ticker)
	if j < 0 {
		return Series{}, false
	}
	s := Series{
		Dates:  t.Dates,
		Values: make([]float64, len(t.Dates)),
	}
	for i := range t.Dates {
		s.Values[i] = t.Prices[i][j]
	}
	return s, true
}

// HasTicker devuelve true si el ticker forma parte del universo de la tabla.
func (t *PriceTable) HasTicker(ticker string) bool {
	return t.tickerIndex(ticker) >= 0
}

func (t *PriceTable) tickerIndex(ticker string) int {
	for j, tk := range t.Tickers {
		if tk == ticker {
			return j
		}
	}
	return -1
}

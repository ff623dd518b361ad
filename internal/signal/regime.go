package signal

// regime.go — estrategia long/short dirigida por régimen macro.
//
// En cada fin de mes se calculan tres features macro y se clasifica el mes
// como risk-on si TODAS las condiciones habilitadas se cumplen:
//   - cambio del yield a N meses  <= umbral   (tipos no subiendo)
//   - retorno del proxy de tendencia a M meses >= umbral
//   - media del índice de volatilidad a K meses <= umbral
// risk-on  → {largo: +1, corto: −1}
// risk-off → fallback configurable: flat (todo cero) o defensivo (+1 en la
//            pata corta).
//
// Muestreo "as of": cada feature usa la última observación macro con fecha
// ESTRICTAMENTE anterior a la fecha de decisión. Un dato publicado el mismo
// día del cierre mensual no es operable ese mes — así el lag de publicación
// desconocido nunca introduce look-ahead.

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/alejandrodnm/etflab/internal/domain"
)

// Modos de fallback cuando el régimen es risk-off.
const (
	RiskOffFlat      = "flat"      // sin posición, todo cash
	RiskOffDefensive = "defensive" // +1.0 en la pata corta (la defensiva)
)

// RegimeConfig parametriza la clasificación de régimen y el sizing.
type RegimeConfig struct {
	LongLeg  string
	ShortLeg string

	RateLookbackMonths  int     // N: Δyield a N meses
	TrendLookbackMonths int     // M: retorno del proxy de tendencia
	VolWindowMonths     int     // K: media del índice de vol
	RateThreshold       float64 // risk-on si Δyield <= umbral
	TrendThreshold      float64 // risk-on si retorno >= umbral
	VolThreshold        float64 // risk-on si media de vol <= umbral

	// Cada condición es independientemente desactivable.
	RateEnabled  bool
	TrendEnabled bool
	VolEnabled   bool

	RiskOffMode string // flat | defensive

	// Sizing risk-balanced opcional: reparte TargetGross inverso a la vol
	// de cada pata y exige momentum positivo del spread largo/corto.
	RiskBalanced            bool
	TargetGross             float64
	SpreadMomLookbackMonths int
	SpreadMomThreshold      float64
	VolLookbackDays         int
}

// RegimeLongShort implementa signal.Generator para dos patas con señal macro.
type RegimeLongShort struct {
	cfg   RegimeConfig
	yield domain.Series // niveles del yield (p.ej. 10Y Treasury)
	trend domain.Series // precios del proxy de tendencia (p.ej. SPY)
	vol   domain.Series // niveles del índice de volatilidad (p.ej. VIX)
}

// NewRegimeLongShort valida la configuración y construye el generador.
// Toda validación falla aquí, antes de que arranque simulación alguna.
func NewRegimeLongShort(cfg RegimeConfig, yield, trend, vol domain.Series) (*RegimeLongShort, error) {
	if cfg.LongLeg == "" || cfg.ShortLeg == "" {
		return nil, domain.Configf("regime strategy needs long and short legs")
	}
	if cfg.LongLeg == cfg.ShortLeg {
		return nil, domain.Configf("long and short legs must differ, got %q twice", cfg.LongLeg)
	}
	if cfg.RateEnabled && cfg.RateLookbackMonths <= 0 {
		return nil, domain.Configf("rate lookback must be positive, got %d", cfg.RateLookbackMonths)
	}
	if cfg.TrendEnabled && cfg.TrendLookbackMonths <= 0 {
		return nil, domain.Configf("trend lookback must be positive, got %d", cfg.TrendLookbackMonths)
	}
	if cfg.VolEnabled && cfg.VolWindowMonths <= 0 {
		return nil, domain.Configf("vol window must be positive, got %d", cfg.VolWindowMonths)
	}
	switch cfg.RiskOffMode {
	case RiskOffFlat, RiskOffDefensive:
	default:
		return nil, domain.Configf("unknown risk-off mode %q", cfg.RiskOffMode)
	}
	if cfg.RiskBalanced {
		if cfg.TargetGross <= 0 {
			return nil, domain.Configf("target gross must be positive, got %g", cfg.TargetGross)
		}
		if cfg.SpreadMomLookbackMonths <= 0 || cfg.VolLookbackDays < 2 {
			return nil, domain.Configf("risk-balanced sizing needs spread momentum lookback and vol lookback")
		}
	}
	for _, s := range []domain.Series{yield, trend, vol} {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return &RegimeLongShort{cfg: cfg, yield: yield, trend: trend, vol: vol}, nil
}

// Name implementa signal.Generator.
func (g *RegimeLongShort) Name() string { return "regime-long-short" }

// Decisions clasifica cada fin de mes y emite los pesos correspondientes.
// No emite nada hasta que los tres lookbacks tienen historia completa; si
// ninguna fecha llega a calentarse, ConfigurationError.
func (g *RegimeLongShort) Decisions(prices *domain.PriceTable) ([]domain.WeightVector, error) {
	if !prices.HasTicker(g.cfg.LongLeg) {
		return nil, domain.Configf("long leg %q not in universe", g.cfg.LongLeg)
	}
	if !prices.HasTicker(g.cfg.ShortLeg) {
		return nil, domain.Configf("short leg %q not in universe", g.cfg.ShortLeg)
	}

	decisions := domain.MonthEnds(prices.Dates)
	yieldM := sampleBefore(g.yield, decisions)
	trendM := sampleBefore(g.trend, decisions)
	volM := monthMeans(g.vol, decisions)

	longPrices, _ := prices.Column(g.cfg.LongLeg)
	shortPrices, _ := prices.Column(g.cfg.ShortLeg)

	var out []domain.WeightVector
	for i, date := range decisions {
		riskOn, ok := g.classify(yieldM, trendM, volM, i)
		if !ok {
			continue // warmup: sin feature completa no hay decisión
		}

		var w domain.WeightVector
		if riskOn {
			w = g.riskOnWeights(date, longPrices, shortPrices)
		} else {
			w = g.riskOffWeights(date)
		}
		out = append(out, w)
	}

	if len(out) == 0 {
		return nil, domain.Configf(
			"regime lookbacks exceed available history: no decision date has %d/%d/%d months of warmup",
			g.cfg.RateLookbackMonths, g.cfg.TrendLookbackMonths, g.cfg.VolWindowMonths)
	}
	return out, nil
}

// classify evalúa las condiciones habilitadas en el índice mensual i.
// El segundo retorno es false mientras falte historia (warmup).
func (g *RegimeLongShort) classify(yieldM, trendM, volM []monthObs, i int) (riskOn, ok bool) {
	on := true

	if g.cfg.RateEnabled {
		cur, prev := yieldM[i], monthAt(yieldM, i-g.cfg.RateLookbackMonths)
		if !cur.ok || !prev.ok {
			return false, false
		}
		if cur.value-prev.value > g.cfg.RateThreshold {
			on = false
		}
	}

	if g.cfg.TrendEnabled {
		cur, prev := trendM[i], monthAt(trendM, i-g.cfg.TrendLookbackMonths)
		if !cur.ok || !prev.ok || prev.value == 0 {
			return false, false
		}
		if cur.value/prev.value-1 < g.cfg.TrendThreshold {
			on = false
		}
	}

	if g.cfg.VolEnabled {
		mean, avail := rollingMean(volM, i, g.cfg.VolWindowMonths)
		if !avail {
			return false, false
		}
		if mean > g.cfg.VolThreshold {
			on = false
		}
	}

	return on, true
}

// riskOnWeights construye el vector largo/corto. Con sizing risk-balanced
// reparte TargetGross inverso a la vol de cada pata, condicionado a que el
// momentum del spread supere su umbral; si los datos no alcanzan, cae al
// sizing nominal ±1.
func (g *RegimeLongShort) riskOnWeights(date time.Time, longPrices, shortPrices domain.Series) domain.WeightVector {
	w := domain.WeightVector{Date: date, Weights: map[string]float64{
		g.cfg.LongLeg:  1.0,
		g.cfg.ShortLeg: -1.0,
	}}
	if !g.cfg.RiskBalanced {
		return w
	}

	smom, ok := g.spreadMomentum(date, longPrices, shortPrices)
	if !ok || smom <= g.cfg.SpreadMomThreshold {
		return g.riskOffWeights(date)
	}

	longVol, okL := trailingVol(longPrices, date, g.cfg.VolLookbackDays)
	shortVol, okS := trailingVol(shortPrices, date, g.cfg.VolLookbackDays)
	if !okL || !okS {
		return w
	}

	invSum := 1/longVol + 1/shortVol
	return domain.WeightVector{Date: date, Weights: map[string]float64{
		g.cfg.LongLeg:  (1 / longVol) / invSum * g.cfg.TargetGross,
		g.cfg.ShortLeg: -(1 / shortVol) / invSum * g.cfg.TargetGross,
	}}
}

// riskOffWeights construye el vector de fallback según el modo configurado.
func (g *RegimeLongShort) riskOffWeights(date time.Time) domain.WeightVector {
	weights := map[string]float64{
		g.cfg.LongLeg:  0.0,
		g.cfg.ShortLeg: 0.0,
	}
	if g.cfg.RiskOffMode == RiskOffDefensive {
		weights[g.cfg.ShortLeg] = 1.0
	}
	return domain.WeightVector{Date: date, Weights: weights}
}

// spreadMomentum es el log-momentum del ratio largo/corto a N meses, con
// ambas patas muestreadas al cierre de la fecha de decisión.
func (g *RegimeLongShort) spreadMomentum(date time.Time, longPrices, shortPrices domain.Series) (float64, bool) {
	months := g.cfg.SpreadMomLookbackMonths
	longHist := longPrices.Slice(time.Time{}, date)
	shortHist := shortPrices.Slice(time.Time{}, date)

	longM := domain.MonthEnds(longHist.Dates)
	if len(longM) <= months {
		return 0, false
	}
	lNow, _ := longHist.At(longM[len(longM)-1])
	lThen, _ := longHist.At(longM[len(longM)-1-months])
	sNow, ok1 := shortHist.At(longM[len(longM)-1])
	sThen, ok2 := shortHist.At(longM[len(longM)-1-months])
	if !ok1 || !ok2 || lThen == 0 || sThen == 0 || sNow == 0 {
		return 0, false
	}
	return math.Log(lNow/sNow) - math.Log(lThen/sThen), true
}

// --- muestreo mensual ---

// monthObs es una observación mensual que puede faltar durante el warmup.
type monthObs struct {
	value float64
	ok    bool
}

func monthAt(obs []monthObs, i int) monthObs {
	if i < 0 || i >= len(obs) {
		return monthObs{}
	}
	return obs[i]
}

// sampleBefore toma, para cada fecha de decisión, la última observación de
// la serie con fecha estrictamente anterior.
func sampleBefore(s domain.Series, decisions []time.Time) []monthObs {
	out := make([]monthObs, len(decisions))
	for i, d := range decisions {
		if _, v, ok := s.Before(d); ok {
			out[i] = monthObs{value: v, ok: true}
		}
	}
	return out
}

// monthMeans calcula la media de las observaciones de cada mes de decisión,
// siempre con fechas estrictamente anteriores a la fecha de decisión. Una
// observación fechada justo en el cierre previo cae en la ventana siguiente:
// el muestreo estricto la dejó fuera de la anterior.
func monthMeans(s domain.Series, decisions []time.Time) []monthObs {
	out := make([]monthObs, len(decisions))
	for i, d := range decisions {
		var lo time.Time
		if i > 0 {
			lo = decisions[i-1]
		}
		var window []float64
		for j, obsDate := range s.Dates {
			if !obsDate.Before(d) {
				break
			}
			if i > 0 && obsDate.Before(lo) {
				continue
			}
			window = append(window, s.Values[j])
		}
		if len(window) > 0 {
			out[i] = monthObs{value: stat.Mean(window, nil), ok: true}
		}
	}
	return out
}

// rollingMean promedia las últimas `window` observaciones mensuales hasta i.
func rollingMean(obs []monthObs, i, window int) (float64, bool) {
	if i-window+1 < 0 {
		return 0, false
	}
	var vals []float64
	for j := i - window + 1; j <= i; j++ {
		if !obs[j].ok {
			return 0, false
		}
		vals = append(vals, obs[j].value)
	}
	return stat.Mean(vals, nil), true
}

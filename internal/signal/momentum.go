package signal

// momentum.go — rotación por momentum con sizing inverso a la volatilidad.
//
// En cada fin de mes: retorno trailing por instrumento sobre la ventana de
// momentum (con exclusión configurable del mes más reciente — convención
// 12-1 cuando SkipMonths=1), ranking descendente, top-N. Si el mejor score
// es <= 0 no hay liderazgo: 100% al activo defensivo si está configurado y
// en el universo, si no 100% cash. Con liderazgo, capital inverso a la vol
// realizada trailing, normalizado a suma <= 1 — el residual es cash, nunca
// se apalanca para "usar" capital sin asignar. Esta estrategia nunca corta.

import (
	"sort"
	"time"

	"github.com/alejandrodnm/etflab/internal/domain"
)

// RotationConfig parametriza la rotación por momentum.
type RotationConfig struct {
	LookbackMonths  int // ventana de momentum en meses
	SkipMonths      int // meses recientes excluidos (1 = convención 12-1)
	TopN            int // instrumentos seleccionados
	VolLookbackDays int // ventana de vol realizada en días de trading

	// TargetVolAnnual opcional: escala los pesos por
	// min(1, target / vol_implícita_del_portfolio). 0 la desactiva.
	TargetVolAnnual float64

	// DefensiveTicker recibe el 100% cuando no hay liderazgo. Vacío = cash.
	DefensiveTicker string

	// TrendFilterTicker opcional: si su retorno trailing a
	// TrendFilterMonths es <= 0, el mes entero se va a cash.
	TrendFilterTicker string
	TrendFilterMonths int

	// TSMomentumGate opcional: solo son elegibles los instrumentos con
	// retorno propio positivo a TSLookbackMonths.
	TSMomentumGate   bool
	TSLookbackMonths int
}

// MomentumRotation implementa signal.Generator.
type MomentumRotation struct {
	cfg RotationConfig
}

// NewMomentumRotation valida la configuración y construye el generador.
func NewMomentumRotation(cfg RotationConfig) (*MomentumRotation, error) {
	if cfg.LookbackMonths <= 0 {
		return nil, domain.Configf("momentum lookback must be positive, got %d", cfg.LookbackMonths)
	}
	if cfg.SkipMonths < 0 {
		return nil, domain.Configf("skip months cannot be negative, got %d", cfg.SkipMonths)
	}
	if cfg.TopN <= 0 {
		return nil, domain.Configf("top-n must be positive, got %d", cfg.TopN)
	}
	if cfg.VolLookbackDays < 2 {
		return nil, domain.Configf("vol lookback must be at least 2 days, got %d", cfg.VolLookbackDays)
	}
	if cfg.TargetVolAnnual < 0 {
		return nil, domain.Configf("target vol cannot be negative, got %g", cfg.TargetVolAnnual)
	}
	if cfg.TrendFilterTicker != "" && cfg.TrendFilterMonths <= 0 {
		return nil, domain.Configf("trend filter needs a positive lookback")
	}
	if cfg.TSMomentumGate && cfg.TSLookbackMonths <= 0 {
		return nil, domain.Configf("time-series momentum gate needs a positive lookback")
	}
	return &MomentumRotation{cfg: cfg}, nil
}

// Name implementa signal.Generator.
func (g *MomentumRotation) Name() string { return "momentum-rotation" }

// candidate es un instrumento con score de momentum calculable este mes.
type candidate struct {
	ticker string
	score  float64
}

// Decisions calcula los pesos de rotación en cada fin de mes.
func (g *MomentumRotation) Decisions(prices *domain.PriceTable) ([]domain.WeightVector, error) {
	if len(prices.Tickers) < 2 {
		return nil, domain.Configf("momentum rotation needs at least 2 instruments, got %d", len(prices.Tickers))
	}
	if g.cfg.TrendFilterTicker != "" && !prices.HasTicker(g.cfg.TrendFilterTicker) {
		return nil, domain.Configf("trend filter ticker %q not in universe", g.cfg.TrendFilterTicker)
	}

	decisions := domain.MonthEnds(prices.Dates)
	need := g.cfg.LookbackMonths + g.cfg.SkipMonths
	if len(decisions) <= need {
		return nil, domain.Configf(
			"momentum lookback of %d+%d months exceeds available history (%d month-ends)",
			g.cfg.LookbackMonths, g.cfg.SkipMonths, len(decisions))
	}

	// Precios mensuales por ticker, muestreados al cierre de cada decisión.
	monthly := make(map[string][]float64, len(prices.Tickers))
	columns := make(map[string]domain.Series, len(prices.Tickers))
	for _, ticker := range prices.Tickers {
		col, _ := prices.Column(ticker)
		columns[ticker] = col
		m := make([]float64, len(decisions))
		for i, d := range decisions {
			v, _ := col.At(d)
			m[i] = v
		}
		monthly[ticker] = m
	}

	var out []domain.WeightVector
	for i, date := range decisions {
		if i < need {
			continue // warmup
		}

		if g.trendFilterSaysCash(monthly, i) {
			out = append(out, g.cashWeights(date, prices.Tickers))
			continue
		}

		candidates := g.scores(prices.Tickers, monthly, i)
		if len(candidates) == 0 {
			out = append(out, g.cashWeights(date, prices.Tickers))
			continue
		}

		// Sin liderazgo: el mejor momentum no es positivo.
		if candidates[0].score <= 0 {
			out = append(out, g.noLeadershipWeights(date, prices))
			continue
		}

		if g.cfg.TSMomentumGate {
			candidates = g.gateByOwnMomentum(candidates, monthly, i)
			if len(candidates) == 0 || candidates[0].score <= 0 {
				out = append(out, g.cashWeights(date, prices.Tickers))
				continue
			}
		}

		out = append(out, g.sizeWinners(date, candidates, columns, prices.Tickers))
	}
	return out, nil
}

// scores calcula y ordena los scores de momentum del mes i, descendente.
// Instrumentos sin historia suficiente quedan fuera.
func (g *MomentumRotation) scores(tickers []string, monthly map[string][]float64, i int) []candidate {
	var out []candidate
	end := i - g.cfg.SkipMonths
	for _, ticker := range tickers {
		score, ok := trailingReturn(monthly[ticker], end, g.cfg.LookbackMonths)
		if !ok {
			continue
		}
		out = append(out, candidate{ticker: ticker, score: score})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].score > out[b].score })
	return out
}

// gateByOwnMomentum filtra los candidatos cuyo retorno propio a
// TSLookbackMonths no es positivo.
func (g *MomentumRotation) gateByOwnMomentum(cands []candidate, monthly map[string][]float64, i int) []candidate {
	var out []candidate
	for _, c := range cands {
		own, ok := trailingReturn(monthly[c.ticker], i, g.cfg.TSLookbackMonths)
		if !ok || own <= 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

// trendFilterSaysCash devuelve true si el filtro de tendencia está activo
// y su ticker lleva retorno trailing <= 0.
func (g *MomentumRotation) trendFilterSaysCash(monthly map[string][]float64, i int) bool {
	if g.cfg.TrendFilterTicker == "" {
		return false
	}
	ret, ok := trailingReturn(monthly[g.cfg.TrendFilterTicker], i, g.cfg.TrendFilterMonths)
	return ok && ret <= 0
}

// sizeWinners asigna capital inverso a la volatilidad entre los top-N.
// Un instrumento con vol cero o indefinida queda excluido ese mes. La suma
// de pesos queda en <= 1; con vol targeting se escala además por
// min(1, target/vol_implícita). El residual es cash.
func (g *MomentumRotation) sizeWinners(date time.Time, cands []candidate, columns map[string]domain.Series, universe []string) domain.WeightVector {
	n := g.cfg.TopN
	if n > len(cands) {
		n = len(cands)
	}

	type winner struct {
		ticker string
		vol    float64
	}
	var winners []winner
	for _, c := range cands[:n] {
		vol, ok := trailingVol(columns[c.ticker], date, g.cfg.VolLookbackDays)
		if !ok {
			continue
		}
		winners = append(winners, winner{ticker: c.ticker, vol: vol})
	}
	if len(winners) == 0 {
		return g.cashWeights(date, universe)
	}

	invSum := 0.0
	for _, w := range winners {
		invSum += 1 / w.vol
	}

	weights := make(map[string]float64, len(universe))
	for _, t := range universe {
		weights[t] = 0.0
	}
	implied := 0.0
	for _, w := range winners {
		raw := (1 / w.vol) / invSum
		weights[w.ticker] = raw
		implied += raw * w.vol
	}

	if g.cfg.TargetVolAnnual > 0 && implied > 0 {
		scale := g.cfg.TargetVolAnnual / implied
		if scale < 1 {
			for t := range weights {
				weights[t] *= scale
			}
		}
	}

	return domain.WeightVector{Date: date, Weights: weights}
}

// noLeadershipWeights asigna el 100% al defensivo si está configurado y
// presente; si no, cash.
func (g *MomentumRotation) noLeadershipWeights(date time.Time, prices *domain.PriceTable) domain.WeightVector {
	if g.cfg.DefensiveTicker != "" && prices.HasTicker(g.cfg.DefensiveTicker) {
		weights := make(map[string]float64, len(prices.Tickers))
		for _, t := range prices.Tickers {
			weights[t] = 0.0
		}
		weights[g.cfg.DefensiveTicker] = 1.0
		return domain.WeightVector{Date: date, Weights: weights}
	}
	return g.cashWeights(date, prices.Tickers)
}

// cashWeights es el vector todo-cero (100% cash).
func (g *MomentumRotation) cashWeights(date time.Time, universe []string) domain.WeightVector {
	weights := make(map[string]float64, len(universe))
	for _, t := range universe {
		weights[t] = 0.0
	}
	return domain.WeightVector{Date: date, Weights: weights}
}

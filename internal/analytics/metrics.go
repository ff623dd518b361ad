package analytics

// metrics.go — estadísticas de riesgo/retorno de una serie de retornos.
//
// Funciones puras y deterministas: mismos inputs, mismos números, sin
// estado oculto. Los casos degenerados (varianza cero, drawdown cero)
// devuelven NaN como centinela — nunca una división por cero silenciosa.

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/alejandrodnm/etflab/internal/domain"
)

// TradingDays es la convención de anualización (días de trading por año).
const TradingDays = 252

// Summary agrupa las métricas de una simulación. Los campos de captura
// solo están definidos cuando se resumió contra un benchmark.
type Summary struct {
	CAGR        float64
	AnnualVol   float64
	Sharpe      float64
	Sortino     float64
	Calmar      float64
	MaxDrawdown float64 // <= 0; 0 solo con curva de capital no decreciente
	UpCapture   float64
	DownCapture float64
	Days        int
}

// Map devuelve las métricas como mapping nombre → valor, en el vocabulario
// de domain.MetricNames.
func (s Summary) Map() domain.Metrics {
	return domain.Metrics{
		"cagr":         s.CAGR,
		"annual_vol":   s.AnnualVol,
		"sharpe":       s.Sharpe,
		"sortino":      s.Sortino,
		"calmar":       s.Calmar,
		"max_drawdown": s.MaxDrawdown,
		"up_capture":   s.UpCapture,
		"down_capture": s.DownCapture,
	}
}

// Summarize calcula las métricas de la serie de retornos diarios dada.
// riskFreeAnnual es la tasa anual usada para el exceso en Sharpe/Sortino.
func Summarize(returns domain.Series, riskFreeAnnual float64) Summary {
	n := returns.Len()
	s := Summary{
		CAGR:        math.NaN(),
		AnnualVol:   math.NaN(),
		Sharpe:      math.NaN(),
		Sortino:     math.NaN(),
		Calmar:      math.NaN(),
		MaxDrawdown: math.NaN(),
		UpCapture:   math.NaN(),
		DownCapture: math.NaN(),
		Days:        n,
	}
	if n == 0 {
		return s
	}

	rfDaily := riskFreeAnnual / TradingDays

	// CAGR: factor de capitalización realizado elevado a 252/N.
	total := 1.0
	for _, r := range returns.Values {
		total *= 1 + r
	}
	if total > 0 {
		s.CAGR = math.Pow(total, TradingDays/float64(n)) - 1
	}

	s.AnnualVol = stat.StdDev(returns.Values, nil) * math.Sqrt(TradingDays)

	meanExcess := stat.Mean(returns.Values, nil) - rfDaily
	if s.AnnualVol > 0 {
		s.Sharpe = meanExcess * TradingDays / s.AnnualVol
	}

	// Sortino: solo desviación a la baja del exceso.
	downSq := 0.0
	for _, r := range returns.Values {
		if d := r - rfDaily; d < 0 {
			downSq += d * d
		}
	}
	downside := math.Sqrt(downSq/float64(n)) * math.Sqrt(TradingDays)
	if downside > 0 {
		s.Sortino = meanExcess * TradingDays / downside
	}

	s.MaxDrawdown = MaxDrawdown(returns)
	if s.MaxDrawdown < 0 && !math.IsNaN(s.CAGR) {
		s.Calmar = s.CAGR / math.Abs(s.MaxDrawdown)
	}

	return s
}

// SummarizeWithBenchmark añade los ratios de captura al alza y a la baja
// respecto al benchmark. Ambas series deben compartir calendario.
func SummarizeWithBenchmark(returns, benchmark domain.Series, riskFreeAnnual float64) (Summary, error) {
	if returns.Len() != benchmark.Len() {
		return Summary{}, &domain.AlignmentError{Reason: "strategy and benchmark series differ in length"}
	}
	for i := range returns.Dates {
		if !returns.Dates[i].Equal(benchmark.Dates[i]) {
			return Summary{}, &domain.AlignmentError{Reason: "strategy and benchmark calendars diverge at " +
				returns.Dates[i].Format("2006-01-02")}
		}
	}

	s := Summarize(returns, riskFreeAnnual)

	var upStrat, upBench, downStrat, downBench []float64
	for i, b := range benchmark.Values {
		switch {
		case b > 0:
			upStrat = append(upStrat, returns.Values[i])
			upBench = append(upBench, b)
		case b < 0:
			downStrat = append(downStrat, returns.Values[i])
			downBench = append(downBench, b)
		}
	}
	if len(upBench) > 0 {
		if m := stat.Mean(upBench, nil); m != 0 {
			s.UpCapture = stat.Mean(upStrat, nil) / m
		}
	}
	if len(downBench) > 0 {
		if m := stat.Mean(downBench, nil); m != 0 {
			s.DownCapture = stat.Mean(downStrat, nil) / m
		}
	}
	return s, nil
}

// MaxDrawdown devuelve el drawdown máximo (<= 0) de la curva de capital
// implícita en la serie de retornos. 0 solo si la curva nunca cae.
func MaxDrawdown(returns domain.Series) float64 {
	if returns.Len() == 0 {
		return math.NaN()
	}
	equity := 1.0
	peak := 1.0
	worst := 0.0
	for _, r := range returns.Values {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if dd := equity/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

// SplitAt parte la serie en tramo in-sample (fechas < split) y
// out-of-sample (fechas >= split).
func SplitAt(returns domain.Series, split int) (domain.Series, domain.Series) {
	if split <= 0 {
		return domain.Series{}, returns
	}
	if split >= returns.Len() {
		return returns, domain.Series{}
	}
	in := domain.Series{Dates: returns.Dates[:split], Values: returns.Values[:split]}
	out := domain.Series{Dates: returns.Dates[split:], Values: returns.Values[split:]}
	return in, out
}

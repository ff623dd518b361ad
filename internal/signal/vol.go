package signal

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/alejandrodnm/etflab/internal/domain"
)

// tradingDays por año para anualizar volatilidades.
const tradingDays = 252

// trailingVol devuelve la volatilidad anualizada (desviación estándar
// muestral de retornos diarios × √252) de la ventana de `window` retornos
// que termina en la fecha dada, inclusive. Devuelve false si no hay
// historia suficiente o la volatilidad no está definida.
func trailingVol(prices domain.Series, asOf time.Time, window int) (float64, bool) {
	if window < 2 {
		return 0, false
	}
	hist := prices.Slice(time.Time{}, asOf)
	rets := hist.Returns()
	if rets.Len() < window {
		return 0, false
	}
	tail := rets.Values[rets.Len()-window:]
	vol := stat.StdDev(tail, nil) * math.Sqrt(tradingDays)
	if vol == 0 || math.IsNaN(vol) {
		return 0, false
	}
	return vol, true
}

// trailingReturn devuelve el retorno simple entre la observación mensual
// en el índice i-lookback y la del índice i de la serie mensual dada.
// false si falta historia.
func trailingReturn(monthly []float64, i, lookback int) (float64, bool) {
	j := i - lookback
	if lookback <= 0 || j < 0 {
		return 0, false
	}
	if monthly[j] == 0 {
		return 0, false
	}
	return monthly[i]/monthly[j] - 1, true
}

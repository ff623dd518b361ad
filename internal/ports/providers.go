package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/etflab/internal/domain"
)

// PriceProvider entrega historia diaria de precios ajustados por ticker.
// Las fechas llegan ordenadas ascendente y sin duplicados; el provider
// puede cachear como quiera, el core no lo nota.
type PriceProvider interface {
	// PriceSeries devuelve la serie de cierre ajustado en [start, end].
	PriceSeries(ctx context.Context, ticker string, start, end time.Time) (domain.InstrumentSeries, error)
}

// MacroProvider entrega series macro (yields, índices de volatilidad) en su
// frecuencia nativa. El remuestreo al calendario de decisión lo hace el
// generador de señales, nunca el engine.
type MacroProvider interface {
	// MacroSeries devuelve la serie identificada por id en [start, end].
	MacroSeries(ctx context.Context, id string, start, end time.Time) (domain.Series, error)
}

// FactorProvider entrega retornos mensuales de factores de referencia más
// la serie de tasa libre de riesgo con la misma forma. Solo lo consume la
// atribución factorial; es de solo lectura para el core.
type FactorProvider interface {
	// FactorReturns devuelve factor → serie de retornos en exceso, y la
	// serie de tasa libre de riesgo alineada.
	FactorReturns(ctx context.Context, names []string, start, end time.Time) (map[string]domain.Series, domain.Series, error)
}

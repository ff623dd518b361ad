package domain

// result.go — superficie de resultados que consume la capa de reporting.
//
// BacktestResult se crea UNA vez por simulación y es de solo lectura para
// todo lo que viene después (métricas, atribución, persistencia). Las
// series de diagnóstico completas (turnover, exposición) se conservan para
// inspección posterior — no se resumen ni se descartan.

// BacktestResult contiene la serie de retornos simulada y sus diagnósticos.
type BacktestResult struct {
	RunID    string // uuid de la simulación
	Strategy string

	NetReturns   Series // retorno neto diario tras costes y financiación
	GrossReturns Series // retorno bruto Σ(w·r), antes de costes
	Equity       Series // curva de capital, producto acumulado de (1+neto)

	Turnover      Series // Σ|Δw| día a día
	GrossExposure Series // Σ|w| vigente cada día
	NetExposure   Series // Σw vigente cada día

	Meta map[string]float64 // parámetros de coste usados en la simulación
}

// Metrics es el mapping nombre → valor que se entrega por run.
type Metrics map[string]float64

// MetricNames fija el orden canónico de presentación y persistencia.
var MetricNames = []string{
	"cagr",
	"annual_vol",
	"sharpe",
	"sortino",
	"calmar",
	"max_drawdown",
	"up_capture",
	"down_capture",
}

// SweepRow es una fila de la tabla de robustez: una combinación de
// parámetros con sus métricas por segmento, o el tipo de error si falló.
// Las combinaciones fallidas se reportan explícitamente, nunca se omiten.
type SweepRow struct {
	ID     string // uuid de la fila
	Params map[string]float64

	Full      Metrics // muestra completa
	InSample  Metrics // nil si no hay split
	OutSample Metrics // nil si no hay split

	Err string // tipo de error (ErrorKind); vacío si la fila es válida
}

// Failed devuelve true si la combinación no pudo evaluarse.
func (r SweepRow) Failed() bool {
	return r.Err != ""
}

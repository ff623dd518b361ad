package robust

// runner.go — barrido de parámetros con split train/test opcional.
//
// Cada punto de la rejilla es una evaluación sin estado compartido:
// generador → scheduler → engine → métricas. Eso permite un worker pool
// (mismo patrón que el análisis concurrente de mercados) sin ningún
// requisito de orden entre tareas — solo la tabla final ordenada tiene
// contrato de orden. Un error en un punto se registra como fila fallida
// con su tipo y NO aborta el resto del barrido; nada se reintenta, la
// reproducibilidad exige ejecución determinista de un solo intento.

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/etflab/internal/analytics"
	"github.com/alejandrodnm/etflab/internal/backtest"
	"github.com/alejandrodnm/etflab/internal/domain"
	"github.com/alejandrodnm/etflab/internal/schedule"
	"github.com/alejandrodnm/etflab/internal/signal"
)

// Factory construye un generador de señales a partir de una combinación
// concreta de parámetros. Construcción explícita por combinación: ningún
// estado se comparte entre evaluaciones.
type Factory func(params map[string]float64) (signal.Generator, error)

// Runner re-ejecuta el pipeline completo por cada punto de la rejilla.
type Runner struct {
	engine  *backtest.Engine
	factory Factory
	workers int
}

// New crea un runner. Si workers <= 0 usa runtime.NumCPU().
func New(engine *backtest.Engine, factory Factory, workers int) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Runner{engine: engine, factory: factory, workers: workers}
}

// Sweep evalúa todas las combinaciones de la rejilla. Con split no-cero,
// las métricas se calculan tres veces: muestra completa, in-sample
// (fechas < split) y out-of-sample (fechas >= split). La tabla sale
// ordenada por Sharpe out-of-sample descendente si hay split, si no por
// Sharpe de muestra completa; las filas fallidas van al final.
func (r *Runner) Sweep(ctx context.Context, prices *domain.PriceTable, grid map[string][]float64, split time.Time) ([]domain.SweepRow, error) {
	combos := expandGrid(grid)
	if len(combos) == 0 {
		return nil, domain.Configf("empty parameter grid")
	}

	slog.Info("starting parameter sweep",
		"combinations", len(combos),
		"workers", r.workers,
		"split", splitLabel(split),
	)

	workCh := make(chan map[string]float64, len(combos))
	resultCh := make(chan domain.SweepRow, len(combos))

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for params := range workCh {
				resultCh <- r.evaluate(prices, params, split)
			}
		}()
	}

	// Alimentar la rejilla; entre puntos se respeta la cancelación — un
	// barrido interrumpido deja las filas ya evaluadas intactas.
	queued := 0
feed:
	for _, params := range combos {
		select {
		case <-ctx.Done():
			break feed
		case workCh <- params:
			queued++
		}
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	rows := make([]domain.SweepRow, 0, queued)
	for row := range resultCh {
		rows = append(rows, row)
	}

	sortRows(rows, !split.IsZero())

	failed := 0
	for _, row := range rows {
		if row.Failed() {
			failed++
		}
	}
	slog.Info("sweep complete", "rows", len(rows), "failed", failed)

	return rows, ctx.Err()
}

// evaluate ejecuta un punto de la rejilla. Los errores del pipeline se
// convierten en fila fallida con el tipo de la taxonomía.
func (r *Runner) evaluate(prices *domain.PriceTable, params map[string]float64, split time.Time) domain.SweepRow {
	row := domain.SweepRow{ID: uuid.NewString(), Params: params}

	gen, err := r.factory(params)
	if err != nil {
		return failRow(row, params, err)
	}
	decisions, err := gen.Decisions(prices)
	if err != nil {
		return failRow(row, params, err)
	}
	weights, err := schedule.Expand(decisions, prices.Dates, prices.Tickers)
	if err != nil {
		return failRow(row, params, err)
	}
	result, err := r.engine.Run(gen.Name(), prices, weights)
	if err != nil {
		return failRow(row, params, err)
	}

	row.Full = analytics.Summarize(result.NetReturns, 0).Map()
	if !split.IsZero() {
		idx := result.NetReturns.Slice(time.Time{}, split.Add(-time.Nanosecond)).Len()
		in, out := analytics.SplitAt(result.NetReturns, idx)
		row.InSample = analytics.Summarize(in, 0).Map()
		row.OutSample = analytics.Summarize(out, 0).Map()
	}
	return row
}

func failRow(row domain.SweepRow, params map[string]float64, err error) domain.SweepRow {
	slog.Warn("grid point failed",
		"params", paramsLabel(params),
		"kind", domain.ErrorKind(err),
		"err", err,
	)
	row.Err = domain.ErrorKind(err)
	return row
}

// expandGrid genera el producto cartesiano de la rejilla. Los nombres de
// parámetro se recorren ordenados para que la expansión sea determinista.
func expandGrid(grid map[string][]float64) []map[string]float64 {
	names := make([]string, 0, len(grid))
	for name, values := range grid {
		if len(values) == 0 {
			return nil
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil
	}

	combos := []map[string]float64{{}}
	for _, name := range names {
		var next []map[string]float64
		for _, combo := range combos {
			for _, v := range grid[name] {
				c := make(map[string]float64, len(combo)+1)
				for k, cv := range combo {
					c[k] = cv
				}
				c[name] = v
				next = append(next, c)
			}
		}
		combos = next
	}
	return combos
}

// sortRows ordena por el Sharpe del segmento relevante, descendente, con
// NaN y filas fallidas al final. Desempate por la etiqueta de parámetros
// para que el orden sea estable entre ejecuciones.
func sortRows(rows []domain.SweepRow, bySplit bool) {
	key := func(row domain.SweepRow) float64 {
		if row.Failed() {
			return math.Inf(-1)
		}
		var m domain.Metrics
		if bySplit {
			m = row.OutSample
		} else {
			m = row.Full
		}
		sharpe, ok := m["sharpe"]
		if !ok || math.IsNaN(sharpe) {
			return math.Inf(-1)
		}
		return sharpe
	}
	sort.SliceStable(rows, func(a, b int) bool {
		ka, kb := key(rows[a]), key(rows[b])
		if ka != kb {
			return ka > kb
		}
		return paramsLabel(rows[a].Params) < paramsLabel(rows[b].Params)
	})
}

// paramsLabel serializa una combinación como "a=1 b=2" en orden estable.
func paramsLabel(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatFloat(params[name], 'g', -1, 64))
	}
	return sb.String()
}

func splitLabel(split time.Time) string {
	if split.IsZero() {
		return "none"
	}
	return split.Format("2006-01-02")
}

package main

// sweep.go — barrido de robustez por estrategia.
//
// Las rejillas vienen de la sección sweep de la configuración; los defaults
// barren los parámetros a los que cada estrategia es más sensible.
// Combinaciones inviables (lookback mayor que la historia, etc.) salen como
// filas fallidas en la tabla, nunca tumban el barrido.

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/etflab/config"
	"github.com/alejandrodnm/etflab/internal/backtest"
	"github.com/alejandrodnm/etflab/internal/domain"
	"github.com/alejandrodnm/etflab/internal/ports"
	"github.com/alejandrodnm/etflab/internal/robust"
	"github.com/alejandrodnm/etflab/internal/signal"
)

// runSweep construye la rejilla de la estrategia, la evalúa en paralelo y
// presenta y persiste la tabla resultante.
func runSweep(ctx context.Context, cfg *config.Config, eng *backtest.Engine, prices *domain.PriceTable, macro macroData, strategyName string, split time.Time, store ports.ResultStore, console ports.Reporter) error {
	grid, err := sweepGrid(cfg, strategyName)
	if err != nil {
		return err
	}

	factory := func(params map[string]float64) (signal.Generator, error) {
		return buildGenerator(cfg, macro, strategyName, params)
	}

	runner := robust.New(eng, factory, 0)
	rows, sweepErr := runner.Sweep(ctx, prices, grid, split)

	// Un Ctrl-C a mitad de barrido no tira lo ya evaluado: se presenta y
	// persiste lo que haya antes de propagar la cancelación.
	if err := emitSweep(context.WithoutCancel(ctx), rows, store, console); err != nil {
		return err
	}
	return sweepErr
}

// emitSweep presenta y persiste las filas de un barrido, completo o
// interrumpido a medias.
func emitSweep(ctx context.Context, rows []domain.SweepRow, store ports.ResultStore, console ports.Reporter) error {
	if len(rows) == 0 {
		return nil
	}
	console.PrintSweep(rows)

	sweepID := uuid.NewString()
	if err := store.SaveSweep(ctx, sweepID, rows); err != nil {
		return err
	}
	slog.Info("sweep saved", "sweep_id", sweepID, "rows", len(rows))
	return nil
}

// sweepGrid devuelve la rejilla configurada para la estrategia.
func sweepGrid(cfg *config.Config, strategyName string) (map[string][]float64, error) {
	switch strategyName {
	case "regime":
		return cfg.Sweep.Regime, nil
	case "rotation":
		return cfg.Sweep.Rotation, nil
	default:
		return nil, domain.Configf("unknown strategy %q (want regime|rotation)", strategyName)
	}
}

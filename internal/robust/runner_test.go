package robust_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/etflab/internal/backtest"
	"github.com/alejandrodnm/etflab/internal/domain"
	"github.com/alejandrodnm/etflab/internal/robust"
	"github.com/alejandrodnm/etflab/internal/signal"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fixedGenerator emite una sola decisión con el peso dado el primer día.
type fixedGenerator struct {
	weight float64
}

func (g *fixedGenerator) Name() string { return "fixed" }

func (g *fixedGenerator) Decisions(prices *domain.PriceTable) ([]domain.WeightVector, error) {
	return []domain.WeightVector{
		{Date: prices.Dates[0], Weights: map[string]float64{"AAA": g.weight}},
	}, nil
}

// sweepTable: AAA con deriva positiva y algo de ruido para que el Sharpe
// esté definido y cambie de signo con la dirección del peso.
func sweepTable() *domain.PriceTable {
	values := []float64{100, 102, 101, 104, 103, 107, 106, 110}
	table := &domain.PriceTable{Tickers: []string{"AAA"}}
	for i, v := range values {
		table.Dates = append(table.Dates, day(2024, 1, 2).AddDate(0, 0, i))
		table.Prices = append(table.Prices, []float64{v})
	}
	return table
}

func testFactory(params map[string]float64) (signal.Generator, error) {
	if params["dir"] < 0 && params["bad"] > 0 {
		return nil, domain.Configf("combination not allowed")
	}
	return &fixedGenerator{weight: params["dir"]}, nil
}

func TestSweep_GridWithOneFailingCombination(t *testing.T) {
	runner := robust.New(backtest.New(backtest.CostConfig{}), testFactory, 2)

	grid := map[string][]float64{
		"dir": {1, -1},
		"bad": {0, 1},
	}
	rows, err := runner.Sweep(context.Background(), sweepTable(), grid, time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 4)

	// Exactamente una combinación falla, con su tipo, y va la última.
	var failed []domain.SweepRow
	for _, row := range rows {
		if row.Failed() {
			failed = append(failed, row)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, "ConfigurationError", failed[0].Err)
	assert.Equal(t, -1.0, failed[0].Params["dir"])
	assert.Equal(t, 1.0, failed[0].Params["bad"])
	assert.True(t, rows[3].Failed())

	// Las válidas llevan métricas de muestra completa y ningún split.
	for _, row := range rows[:3] {
		require.NotNil(t, row.Full)
		assert.False(t, math.IsNaN(row.Full["sharpe"]))
		assert.Nil(t, row.InSample)
		assert.Nil(t, row.OutSample)
		assert.NotEmpty(t, row.ID)
	}

	// Orden por Sharpe descendente: largos primero, corto después.
	assert.Equal(t, 1.0, rows[0].Params["dir"])
	assert.Equal(t, 1.0, rows[1].Params["dir"])
	assert.Equal(t, -1.0, rows[2].Params["dir"])
	assert.Greater(t, rows[0].Full["sharpe"], rows[2].Full["sharpe"])
}

func TestSweep_SplitProducesThreeSegments(t *testing.T) {
	runner := robust.New(backtest.New(backtest.CostConfig{}), testFactory, 1)

	grid := map[string][]float64{"dir": {1}, "bad": {0}}
	split := day(2024, 1, 6)

	rows, err := runner.Sweep(context.Background(), sweepTable(), grid, split)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	require.False(t, row.Failed())
	require.NotNil(t, row.InSample)
	require.NotNil(t, row.OutSample)

	// 7 retornos en total: 3 antes del split y 4 desde la fecha de corte,
	// suficientes para que cada tramo tenga Sharpe definido.
	assert.False(t, math.IsNaN(row.Full["sharpe"]))
	assert.False(t, math.IsNaN(row.InSample["sharpe"]))
	assert.False(t, math.IsNaN(row.OutSample["sharpe"]))
	assert.NotEqual(t, row.InSample["annual_vol"], row.OutSample["annual_vol"])
}

func TestSweep_EmptyGridIsConfigurationError(t *testing.T) {
	runner := robust.New(backtest.New(backtest.CostConfig{}), testFactory, 1)

	_, err := runner.Sweep(context.Background(), sweepTable(), nil, time.Time{})
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	_, err = runner.Sweep(context.Background(), sweepTable(),
		map[string][]float64{"dir": {}}, time.Time{})
	require.ErrorAs(t, err, &cfgErr)
}

func TestSweep_CancelledContextStopsFeeding(t *testing.T) {
	runner := robust.New(backtest.New(backtest.CostConfig{}), testFactory, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Sweep(ctx, sweepTable(), map[string][]float64{"dir": {1}}, time.Time{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSweep_DeterministicOrdering(t *testing.T) {
	runner := robust.New(backtest.New(backtest.CostConfig{}), testFactory, 4)
	grid := map[string][]float64{
		"dir": {1, -1},
		"bad": {0},
	}

	// Con workers concurrentes, el orden final debe ser estable entre
	// ejecuciones: lo fija el sort, no la planificación de goroutines.
	first, err := runner.Sweep(context.Background(), sweepTable(), grid, time.Time{})
	require.NoError(t, err)
	second, err := runner.Sweep(context.Background(), sweepTable(), grid, time.Time{})
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Params, second[i].Params)
		assert.Equal(t, first[i].Full, second[i].Full)
	}
}

package backtest_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/etflab/internal/backtest"
	"github.com/alejandrodnm/etflab/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// twoLegTable: AAA sube 10% diario, BBB cae 5% diario.
func twoLegTable() *domain.PriceTable {
	return &domain.PriceTable{
		Tickers: []string{"AAA", "BBB"},
		Dates:   []time.Time{day(2024, 1, 2), day(2024, 1, 3), day(2024, 1, 4)},
		Prices: [][]float64{
			{100, 100},
			{110, 95},
			{121, 90.25},
		},
	}
}

func constantWeights(prices *domain.PriceTable, w []float64) *domain.WeightTable {
	table := &domain.WeightTable{Tickers: prices.Tickers, Dates: prices.Dates}
	for range prices.Dates {
		row := make([]float64, len(w))
		copy(row, w)
		table.W = append(table.W, row)
	}
	return table
}

func TestRun_LongShortBothLegsWin(t *testing.T) {
	prices := twoLegTable()
	weights := constantWeights(prices, []float64{1, -1})

	eng := backtest.New(backtest.CostConfig{})
	result, err := eng.Run("test", prices, weights)
	require.NoError(t, err)
	require.Equal(t, 2, result.NetReturns.Len())

	// Largo +10% y corto que cae 5% → 0.10 + 0.05 = +15% cada día.
	assert.InDelta(t, 0.15, result.NetReturns.Values[0], 1e-12)
	assert.InDelta(t, 0.15, result.NetReturns.Values[1], 1e-12)

	// Sin costes, neto == bruto y la curva compone 1.15² = 1.3225.
	assert.Equal(t, result.GrossReturns.Values, result.NetReturns.Values)
	assert.InDelta(t, 1.3225, result.Equity.Values[1], 1e-12)

	assert.InDelta(t, 2.0, result.GrossExposure.Values[0], 1e-12)
	assert.InDelta(t, 0.0, result.NetExposure.Values[0], 1e-12)
	assert.NotEmpty(t, result.RunID)
}

func TestRun_TransactionCostOnTurnover(t *testing.T) {
	prices := twoLegTable()
	weights := &domain.WeightTable{
		Tickers: prices.Tickers,
		Dates:   prices.Dates,
		W: [][]float64{
			{0, 0},
			{1, -1}, // entra el día 2: turnover 2
			{1, -1}, // sin cambios: turnover 0
		},
	}

	eng := backtest.New(backtest.CostConfig{TransactionCostBps: 10})
	result, err := eng.Run("test", prices, weights)
	require.NoError(t, err)

	// Día 2: bruto 0.15, coste 2 × 10bps = 0.002.
	assert.InDelta(t, 2.0, result.Turnover.Values[0], 1e-12)
	assert.InDelta(t, 0.15-0.002, result.NetReturns.Values[0], 1e-12)

	// Día 3 no rota nada: neto == bruto.
	assert.InDelta(t, 0.0, result.Turnover.Values[1], 1e-12)
	assert.InDelta(t, 0.15, result.NetReturns.Values[1], 1e-12)
}

func TestRun_BorrowCostOnShortNotional(t *testing.T) {
	prices := twoLegTable()
	weights := constantWeights(prices, []float64{1, -1})

	eng := backtest.New(backtest.CostConfig{BorrowCostAnnual: 0.02})
	result, err := eng.Run("test", prices, weights)
	require.NoError(t, err)

	// Nocional corto 1.0 → 0.02/252 diario. El borrow siempre resta.
	daily := 0.02 / 252
	assert.InDelta(t, 0.15-daily, result.NetReturns.Values[0], 1e-12)
	assert.Less(t, result.NetReturns.Values[0], result.GrossReturns.Values[0])
}

func TestRun_CashInterestOnUninvestedCapital(t *testing.T) {
	prices := twoLegTable()
	weights := constantWeights(prices, []float64{0.5, 0}) // 50% invertido

	eng := backtest.New(backtest.CostConfig{CashRateAnnual: 0.04})
	result, err := eng.Run("test", prices, weights)
	require.NoError(t, err)

	// bruto = 0.5 × 10% = 0.05; interés = 0.5 × 0.04/252.
	assert.InDelta(t, 0.05+0.5*0.04/252, result.NetReturns.Values[0], 1e-12)
}

func TestRun_LeveredBookEarnsNoInterest(t *testing.T) {
	prices := twoLegTable()
	weights := constantWeights(prices, []float64{1.5, 0}) // cash negativo

	eng := backtest.New(backtest.CostConfig{CashRateAnnual: 0.04})
	result, err := eng.Run("test", prices, weights)
	require.NoError(t, err)

	// Con cash < 0 el interés es cero, no negativo.
	assert.InDelta(t, 1.5*0.10, result.NetReturns.Values[0], 1e-12)
}

func TestRun_RejectsMisalignedWeights(t *testing.T) {
	prices := twoLegTable()

	shifted := constantWeights(prices, []float64{1, -1})
	shifted.Dates = []time.Time{day(2024, 1, 2), day(2024, 1, 3), day(2024, 1, 5)}

	eng := backtest.New(backtest.CostConfig{})
	_, err := eng.Run("test", prices, shifted)
	var alignErr *domain.AlignmentError
	require.ErrorAs(t, err, &alignErr)

	reordered := constantWeights(prices, []float64{1, -1})
	reordered.Tickers = []string{"BBB", "AAA"}
	_, err = eng.Run("test", prices, reordered)
	require.ErrorAs(t, err, &alignErr)
}

func TestRun_RejectsSingleDayHistory(t *testing.T) {
	prices := &domain.PriceTable{
		Tickers: []string{"AAA"},
		Dates:   []time.Time{day(2024, 1, 2)},
		Prices:  [][]float64{{100}},
	}
	weights := constantWeights(prices, []float64{1})

	eng := backtest.New(backtest.CostConfig{})
	_, err := eng.Run("test", prices, weights)
	var insufErr *domain.InsufficientDataError
	require.ErrorAs(t, err, &insufErr)
}

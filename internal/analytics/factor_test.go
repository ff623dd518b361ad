package analytics_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/etflab/internal/analytics"
	"github.com/alejandrodnm/etflab/internal/domain"
)

// monthEndSeries crea una serie con una observación por fin de mes: así la
// capitalización mensual es la identidad y el test controla la regresión
// exactamente.
func monthEndSeries(values []float64) domain.Series {
	var s domain.Series
	for i, v := range values {
		// Último día de cada mes de 2024, empezando en enero.
		d := day(2024, time.Month(i+1), 1).AddDate(0, 1, -1)
		s.Dates = append(s.Dates, d)
		s.Values = append(s.Values, v)
	}
	return s
}

func TestAttribute_RecoversExactLinearModel(t *testing.T) {
	f := []float64{0.02, -0.01, 0.03, 0.00, 0.01, -0.02}

	// y = 0.01 + 0.5·f, sin ruido y rf = 0: la OLS debe clavar alpha y beta.
	y := make([]float64, len(f))
	for i, v := range f {
		y[i] = 0.01 + 0.5*v
	}

	model := analytics.FactorModel{
		Names:    []string{"MKT"},
		Factors:  map[string]domain.Series{"MKT": monthEndSeries(f)},
		RiskFree: monthEndSeries(make([]float64, len(f))),
	}

	attr, err := analytics.Attribute(monthEndSeries(y), model, 3)
	require.NoError(t, err)

	assert.InDelta(t, 0.01*12, attr.AlphaAnnual, 1e-9)
	assert.InDelta(t, 0.5, attr.Betas["MKT"], 1e-9)
	assert.InDelta(t, 1.0, attr.R2, 1e-9)
	assert.Equal(t, 6, attr.Obs)

	// Ajuste perfecto: error estándar despreciable.
	assert.InDelta(t, 0.0, attr.AlphaStdErr, 1e-6)
}

func TestAttribute_RiskFreeEntersAsExcess(t *testing.T) {
	f := []float64{0.02, -0.01, 0.03, 0.00, 0.01, -0.02}
	rf := []float64{0.002, 0.002, 0.002, 0.002, 0.002, 0.002}

	// y − rf = 0.01 + 0.5·f → y = rf + 0.01 + 0.5·f.
	y := make([]float64, len(f))
	for i, v := range f {
		y[i] = rf[i] + 0.01 + 0.5*v
	}

	model := analytics.FactorModel{
		Names:    []string{"MKT"},
		Factors:  map[string]domain.Series{"MKT": monthEndSeries(f)},
		RiskFree: monthEndSeries(rf),
	}

	attr, err := analytics.Attribute(monthEndSeries(y), model, 3)
	require.NoError(t, err)
	assert.InDelta(t, 0.12, attr.AlphaAnnual, 1e-9)
	assert.InDelta(t, 0.5, attr.Betas["MKT"], 1e-9)
}

func TestAttribute_TwoFactorRecovery(t *testing.T) {
	f1 := []float64{0.02, -0.01, 0.03, 0.00, 0.01, -0.02, 0.015, -0.005}
	f2 := []float64{-0.01, 0.02, 0.00, 0.01, -0.02, 0.005, -0.01, 0.02}

	y := make([]float64, len(f1))
	for i := range f1 {
		y[i] = 0.002 + 0.8*f1[i] - 0.3*f2[i]
	}

	model := analytics.FactorModel{
		Names: []string{"MKT", "SMB"},
		Factors: map[string]domain.Series{
			"MKT": monthEndSeries(f1),
			"SMB": monthEndSeries(f2),
		},
		RiskFree: monthEndSeries(make([]float64, len(f1))),
	}

	attr, err := analytics.Attribute(monthEndSeries(y), model, 3)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, attr.Betas["MKT"], 1e-9)
	assert.InDelta(t, -0.3, attr.Betas["SMB"], 1e-9)
	assert.InDelta(t, 0.002*12, attr.AlphaAnnual, 1e-9)
}

func TestAttribute_TooFewOverlappingMonths(t *testing.T) {
	f := []float64{0.02, -0.01, 0.03, 0.00, 0.01, -0.02}
	model := analytics.FactorModel{
		Names:    []string{"MKT"},
		Factors:  map[string]domain.Series{"MKT": monthEndSeries(f)},
		RiskFree: monthEndSeries(make([]float64, len(f))),
	}

	_, err := analytics.Attribute(monthEndSeries(f), model, 12)
	var insufErr *domain.InsufficientDataError
	require.ErrorAs(t, err, &insufErr)
}

func TestAttribute_NonOverlappingCalendarsFail(t *testing.T) {
	// Factores de 2024, estrategia de meses de 2023: cero solape.
	f := monthEndSeries([]float64{0.02, -0.01, 0.03})
	var y domain.Series
	for i := 0; i < 3; i++ {
		y.Dates = append(y.Dates, day(2023, time.Month(i+1), 15))
		y.Values = append(y.Values, 0.01)
	}

	model := analytics.FactorModel{
		Names:    []string{"MKT"},
		Factors:  map[string]domain.Series{"MKT": f},
		RiskFree: monthEndSeries([]float64{0, 0, 0}),
	}

	_, err := analytics.Attribute(y, model, 1)
	var insufErr *domain.InsufficientDataError
	require.ErrorAs(t, err, &insufErr)
}

func TestAttribute_MissingFactorSeries(t *testing.T) {
	model := analytics.FactorModel{
		Names:   []string{"MKT"},
		Factors: map[string]domain.Series{},
	}
	_, err := analytics.Attribute(domain.Series{}, model, 1)
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestAttribute_CompoundsDailyToMonthly(t *testing.T) {
	// Dos días por mes: (1.01·1.01 − 1) ≈ 2.01% mensual. El factor vale
	// exactamente eso → beta 1, alpha 0.
	var dailyDates []time.Time
	var dailyVals []float64
	for m := time.January; m <= time.June; m++ {
		dailyDates = append(dailyDates, day(2024, m, 10), day(2024, m, 20))
		dailyVals = append(dailyVals, 0.01, 0.01)
	}
	daily := domain.Series{Dates: dailyDates, Values: dailyVals}

	monthly := 1.01*1.01 - 1
	f := monthEndSeries([]float64{monthly, monthly, monthly, monthly, monthly, monthly})

	// Sin variación en el factor la matriz sería singular; perturbamos un
	// mes del factor y de la estrategia a la vez para mantener beta 1.
	f.Values[2] = 0.05
	perturbedDaily := daily
	perturbedDaily.Values = append([]float64{}, dailyVals...)
	// Marzo: un solo día con (1+0.05) exacto y otro plano.
	perturbedDaily.Values[4] = 0.05
	perturbedDaily.Values[5] = 0.0

	model := analytics.FactorModel{
		Names:    []string{"MKT"},
		Factors:  map[string]domain.Series{"MKT": f},
		RiskFree: monthEndSeries(make([]float64, 6)),
	}

	attr, err := analytics.Attribute(perturbedDaily, model, 3)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, attr.Betas["MKT"], 1e-9)
	assert.InDelta(t, 0.0, attr.AlphaAnnual, 1e-9)
}

func TestAttribute_ZeroVarianceFactorIsSingular(t *testing.T) {
	f := monthEndSeries([]float64{0.01, 0.01, 0.01, 0.01, 0.01, 0.01})
	y := monthEndSeries([]float64{0.02, 0.01, 0.03, 0.00, 0.01, 0.02})

	model := analytics.FactorModel{
		Names:    []string{"MKT"},
		Factors:  map[string]domain.Series{"MKT": f},
		RiskFree: monthEndSeries(make([]float64, 6)),
	}

	_, err := analytics.Attribute(y, model, 3)
	require.Error(t, err)
}

func TestAttribute_AlphaTStatFinite(t *testing.T) {
	// Con ruido real el t-stat debe salir finito.
	f := []float64{0.02, -0.01, 0.03, 0.00, 0.01, -0.02, 0.015, -0.005, 0.025, -0.015}
	noise := []float64{0.001, -0.002, 0.0015, -0.001, 0.002, -0.0005, 0.001, -0.0015, 0.0005, -0.001}
	y := make([]float64, len(f))
	for i := range f {
		y[i] = 0.005 + 0.6*f[i] + noise[i]
	}

	model := analytics.FactorModel{
		Names:    []string{"MKT"},
		Factors:  map[string]domain.Series{"MKT": monthEndSeries(f)},
		RiskFree: monthEndSeries(make([]float64, len(f))),
	}

	attr, err := analytics.Attribute(monthEndSeries(y), model, 3)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(attr.AlphaTStat))
	assert.False(t, math.IsInf(attr.AlphaTStat, 0))
	assert.Greater(t, attr.R2, 0.9)
	assert.Greater(t, attr.BetaTStats["MKT"], 0.0)
}

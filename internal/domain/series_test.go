package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/etflab/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSeries_ValidateRejectsUnorderedDates(t *testing.T) {
	s := domain.Series{
		Dates:  []time.Time{day(2024, 1, 2), day(2024, 1, 2)},
		Values: []float64{100, 101},
	}
	err := s.Validate()
	require.Error(t, err)

	var alignErr *domain.AlignmentError
	assert.ErrorAs(t, err, &alignErr)
}

func TestSeries_ValidateRejectsLengthMismatch(t *testing.T) {
	s := domain.Series{
		Dates:  []time.Time{day(2024, 1, 2)},
		Values: []float64{100, 101},
	}
	var alignErr *domain.AlignmentError
	assert.ErrorAs(t, s.Validate(), &alignErr)
}

func TestSeries_BeforeIsStrict(t *testing.T) {
	s := domain.Series{
		Dates:  []time.Time{day(2024, 1, 2), day(2024, 1, 3), day(2024, 1, 4)},
		Values: []float64{1, 2, 3},
	}

	// La observación del propio día NO cuenta: solo estrictamente antes.
	d, v, ok := s.Before(day(2024, 1, 3))
	require.True(t, ok)
	assert.Equal(t, day(2024, 1, 2), d)
	assert.Equal(t, 1.0, v)

	_, _, ok = s.Before(day(2024, 1, 2))
	assert.False(t, ok)
}

func TestSeries_SliceInclusive(t *testing.T) {
	s := domain.Series{
		Dates:  []time.Time{day(2024, 1, 2), day(2024, 1, 3), day(2024, 1, 4), day(2024, 1, 5)},
		Values: []float64{1, 2, 3, 4},
	}

	sub := s.Slice(day(2024, 1, 3), day(2024, 1, 4))
	require.Equal(t, 2, sub.Len())
	assert.Equal(t, []float64{2, 3}, sub.Values)

	// Cero = sin límite por ese lado.
	assert.Equal(t, 4, s.Slice(time.Time{}, time.Time{}).Len())
	assert.Equal(t, 3, s.Slice(day(2024, 1, 3), time.Time{}).Len())
}

func TestSeries_Returns(t *testing.T) {
	s := domain.Series{
		Dates:  []time.Time{day(2024, 1, 2), day(2024, 1, 3), day(2024, 1, 4)},
		Values: []float64{100, 110, 99},
	}
	rets := s.Returns()
	require.Equal(t, 2, rets.Len())
	assert.Equal(t, day(2024, 1, 3), rets.Dates[0])
	assert.InDelta(t, 0.10, rets.Values[0], 1e-12)
	assert.InDelta(t, -0.10, rets.Values[1], 1e-12)
}

func TestMonthEnds(t *testing.T) {
	calendar := []time.Time{
		day(2024, 1, 30), day(2024, 1, 31),
		day(2024, 2, 1), day(2024, 2, 29),
		day(2024, 3, 4),
	}
	ends := domain.MonthEnds(calendar)
	require.Len(t, ends, 3)
	assert.Equal(t, day(2024, 1, 31), ends[0])
	assert.Equal(t, day(2024, 2, 29), ends[1])
	assert.Equal(t, day(2024, 3, 4), ends[2]) // última fecha presente del mes
}

func TestNewPriceTable_RejectsMisalignedCalendars(t *testing.T) {
	a := domain.InstrumentSeries{Ticker: "AAA", Prices: domain.Series{
		Dates:  []time.Time{day(2024, 1, 2), day(2024, 1, 3)},
		Values: []float64{100, 101},
	}}
	b := domain.InstrumentSeries{Ticker: "BBB", Prices: domain.Series{
		Dates:  []time.Time{day(2024, 1, 2), day(2024, 1, 4)},
		Values: []float64{50, 51},
	}}

	_, err := domain.NewPriceTable([]domain.InstrumentSeries{a, b})
	var alignErr *domain.AlignmentError
	require.ErrorAs(t, err, &alignErr)
}

func TestNewPriceTableIntersect_DropsNonCommonDates(t *testing.T) {
	a := domain.InstrumentSeries{Ticker: "AAA", Prices: domain.Series{
		Dates:  []time.Time{day(2024, 1, 2), day(2024, 1, 3), day(2024, 1, 4)},
		Values: []float64{100, 101, 102},
	}}
	b := domain.InstrumentSeries{Ticker: "BBB", Prices: domain.Series{
		Dates:  []time.Time{day(2024, 1, 2), day(2024, 1, 4)},
		Values: []float64{50, 52},
	}}

	table, err := domain.NewPriceTableIntersect([]domain.InstrumentSeries{a, b})
	require.NoError(t, err)
	require.Len(t, table.Dates, 2)
	assert.Equal(t, []float64{100, 50}, table.Prices[0])
	assert.Equal(t, []float64{102, 52}, table.Prices[1])

	col, ok := table.Column("BBB")
	require.True(t, ok)
	assert.Equal(t, []float64{50, 52}, col.Values)
}

func TestWeightVector_GrossNetCap(t *testing.T) {
	v := domain.WeightVector{Date: day(2024, 1, 31), Weights: map[string]float64{
		"AAA": 1.5, "BBB": -1.5,
	}}
	assert.InDelta(t, 3.0, v.Gross(), 1e-12)
	assert.InDelta(t, 0.0, v.Net(), 1e-12)

	capped := v.CapGross(2.0)
	assert.InDelta(t, 2.0, capped.Gross(), 1e-12)
	assert.InDelta(t, 1.0, capped.Weights["AAA"], 1e-12)

	// Nunca escala hacia arriba.
	same := v.CapGross(10.0)
	assert.Equal(t, v.Weights, same.Weights)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "ConfigurationError", domain.ErrorKind(domain.Configf("x")))
	assert.Equal(t, "AlignmentError", domain.ErrorKind(&domain.AlignmentError{Reason: "x"}))
	assert.Equal(t, "InsufficientDataError",
		domain.ErrorKind(&domain.InsufficientDataError{What: "x", Needed: 2, Got: 1}))
	assert.Equal(t, "Error", domain.ErrorKind(assert.AnError))
}

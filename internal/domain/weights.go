package domain

import (
	"math"
	"time"
)

// WeightVector son los pesos objetivo decididos en una fecha concreta.
// Positivo = largo, negativo = corto, |w| = fracción nocional del capital.
// Es inmutable una vez producido por el generador de señales.
type WeightVector struct {
	Date    time.Time
	Weights map[string]float64
}

// Gross devuelve la exposición bruta Σ|w|.
func (v WeightVector) Gross() float64 {
	total := 0.0
	for _, w := range v.Weights {
		total += math.Abs(w)
	}
	return total
}

// Net devuelve la exposición neta Σw.
func (v WeightVector) Net() float64 {
	total := 0.0
	for _, w := range v.Weights {
		total += w
	}
	return total
}

// CapGross devuelve una copia con los pesos escalados hacia abajo si la
// exposición bruta supera maxGross. Nunca escala hacia arriba.
func (v WeightVector) CapGross(maxGross float64) WeightVector {
	gross := v.Gross()
	if maxGross <= 0 || gross <= maxGross {
		return v
	}
	scale := maxGross / gross
	out := WeightVector{Date: v.Date, Weights: make(map[string]float64, len(v.Weights))}
	for t, w := range v.Weights {
		out.Weights[t] = w * scale
	}
	return out
}

// WeightTable es la matriz densa diaria de pesos, alineada con una
// PriceTable: mismo calendario, mismos tickers en el mismo orden.
type WeightTable struct {
	Tickers []string
	Dates   []time.Time
	W       [][]float64 // [día][ticker]
}

// Row devuelve los pesos del día i.
func (t *WeightTable) Row(i int) []float64 {
	return t.W[i]
}

// GrossAt devuelve Σ|w| del día i.
func (t *WeightTable) GrossAt(i int) float64 {
	total := 0.0
	for _, w := range t.W[i] {
		total += math.Abs(w)
	}
	return total
}

// NetAt devuelve Σw del día i.
func (t *WeightTable) NetAt(i int) float64 {
	total := 0.0
	for _, w := range t.W[i] {
		total += w
	}
	return total
}

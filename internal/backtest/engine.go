package backtest

// engine.go — simulación diaria de un portfolio long/short con fricciones.
//
// Contabilidad por día t (el primer día del calendario no tiene retorno):
//   1. r[i]       = precio[t][i] / precio[t-1][i] − 1
//   2. bruto      = Σ w[t][i] · r[i]            (w[t] ya viene retardado
//                    un periodo por el scheduler; aquí NO se desplaza nada
//                    más — un doble lag es imposible por construcción)
//   3. turnover   = Σ|w[t][i] − w[t-1][i]|; coste = turnover · bps / 10.000
//   4. borrow     = Σ max(0, −w[t][i]) · borrow_anual / 252
//   5. interés    = max(0, 1 − Σ w[t][i]) · cash_anual / 252
//      (cash negativo por apalancamiento no paga interés aquí: el coste de
//      financiar cortos ya entra por la pata de borrow)
//   6. neto       = bruto − coste − borrow + interés
//
// Convención de día-cuenta: 252 para borrow y cash, igual que todas las
// anualizaciones del resto de la herramienta.

import (
	"math"

	"github.com/google/uuid"

	"github.com/alejandrodnm/etflab/internal/domain"
)

// DayCount es la convención de días de trading por año usada en los
// devengos de borrow y cash.
const DayCount = 252

// CostConfig parametriza las fricciones de la simulación.
type CostConfig struct {
	// TransactionCostBps es el coste en puntos básicos por unidad de turnover.
	TransactionCostBps float64
	// BorrowCostAnnual es la tasa anualizada sobre el nocional corto.
	BorrowCostAnnual float64
	// CashRateAnnual es la tasa anualizada sobre el capital no invertido.
	CashRateAnnual float64
}

// Engine simula retornos diarios a partir de pesos ya programados.
type Engine struct {
	costs CostConfig
}

// New crea un engine con la configuración de costes dada.
func New(costs CostConfig) *Engine {
	return &Engine{costs: costs}
}

// Run ejecuta la simulación. Precondición estricta: la tabla de pesos está
// alineada con la de precios (mismo calendario, mismos tickers en el mismo
// orden); cualquier hueco o divergencia es un AlignmentError, nunca se
// rellena en silencio.
func (e *Engine) Run(strategy string, prices *domain.PriceTable, weights *domain.WeightTable) (*domain.BacktestResult, error) {
	if err := validateAlignment(prices, weights); err != nil {
		return nil, err
	}
	n := len(prices.Dates)
	if n < 2 {
		return nil, &domain.InsufficientDataError{What: "backtest", Needed: 2, Got: n}
	}

	days := n - 1
	result := &domain.BacktestResult{
		RunID:    uuid.NewString(),
		Strategy: strategy,
		NetReturns: domain.Series{
			Dates:  prices.Dates[1:],
			Values: make([]float64, days),
		},
		GrossReturns: domain.Series{
			Dates:  prices.Dates[1:],
			Values: make([]float64, days),
		},
		Equity: domain.Series{
			Dates:  prices.Dates[1:],
			Values: make([]float64, days),
		},
		Turnover: domain.Series{
			Dates:  prices.Dates[1:],
			Values: make([]float64, days),
		},
		GrossExposure: domain.Series{
			Dates:  prices.Dates[1:],
			Values: make([]float64, days),
		},
		NetExposure: domain.Series{
			Dates:  prices.Dates[1:],
			Values: make([]float64, days),
		},
		Meta: map[string]float64{
			"transaction_cost_bps": e.costs.TransactionCostBps,
			"borrow_cost_annual":   e.costs.BorrowCostAnnual,
			"cash_rate_annual":     e.costs.CashRateAnnual,
		},
	}

	tcRate := e.costs.TransactionCostBps / 10_000.0
	equity := 1.0

	// Estrictamente secuencial: el turnover de hoy depende de los pesos
	// de ayer. Nada que paralelizar dentro de un run.
	for t := 1; t < n; t++ {
		w := weights.W[t]
		prev := weights.W[t-1]

		gross := 0.0
		for j := range w {
			r := prices.Prices[t][j]/prices.Prices[t-1][j] - 1
			gross += w[j] * r
		}

		turnover := 0.0
		shortNotional := 0.0
		invested := 0.0
		for j := range w {
			turnover += math.Abs(w[j] - prev[j])
			if w[j] < 0 {
				shortNotional += -w[j]
			}
			invested += w[j]
		}

		tc := turnover * tcRate
		borrow := shortNotional * e.costs.BorrowCostAnnual / DayCount
		cash := 1.0 - invested
		interest := 0.0
		if cash > 0 {
			interest = cash * e.costs.CashRateAnnual / DayCount
		}

		net := gross - tc - borrow + interest
		equity *= 1 + net

		i := t - 1
		result.GrossReturns.Values[i] = gross
		result.NetReturns.Values[i] = net
		result.Equity.Values[i] = equity
		result.Turnover.Values[i] = turnover
		result.GrossExposure.Values[i] = weights.GrossAt(t)
		result.NetExposure.Values[i] = weights.NetAt(t)
	}

	return result, nil
}

// validateAlignment verifica calendario y tickers idénticos entre precios
// y pesos antes de simular nada.
func validateAlignment(prices *domain.PriceTable, weights *domain.WeightTable) error {
	if len(prices.Dates) != len(weights.Dates) {
		return &domain.AlignmentError{Reason: "prices and weights calendars differ in length"}
	}
	for i := range prices.Dates {
		if !prices.Dates[i].Equal(weights.Dates[i]) {
			return &domain.AlignmentError{Reason: "prices and weights calendars diverge at " +
				prices.Dates[i].Format("2006-01-02")}
		}
	}
	if len(prices.Tickers) != len(weights.Tickers) {
		return &domain.AlignmentError{Reason: "prices and weights universes differ in size"}
	}
	for j := range prices.Tickers {
		if prices.Tickers[j] != weights.Tickers[j] {
			return &domain.AlignmentError{Reason: "prices and weights tickers must match and be ordered identically"}
		}
	}
	return nil
}

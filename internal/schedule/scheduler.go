package schedule

// scheduler.go — expande decisiones dispersas a la tabla diaria de pesos.
//
// Este es EL mecanismo anti look-ahead de todo el sistema: una decisión
// tomada con datos hasta el cierre del día t entra en vigor a partir del
// retorno del día t+1, nunca el del propio t. El engine no vuelve a
// desplazar nada, así que un doble-lag es imposible si este contrato se
// respeta. Se aplica idéntico para cualquier generador de señales.

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/etflab/internal/domain"
)

// Expand construye la tabla densa diaria: cada decisión se mantiene
// constante hasta la siguiente (sin interpolación), con un día de retardo
// fijo. Los días anteriores a la primera decisión efectiva quedan a cero.
//
// Las decisiones deben venir ordenadas por fecha y sin duplicados, y solo
// pueden referirse a tickers presentes en el universo.
func Expand(decisions []domain.WeightVector, calendar []time.Time, tickers []string) (*domain.WeightTable, error) {
	if len(calendar) == 0 {
		return nil, domain.Configf("empty trading calendar")
	}
	for i := 1; i < len(decisions); i++ {
		if !decisions[i].Date.After(decisions[i-1].Date) {
			return nil, domain.Configf("decisions out of order at %s",
				decisions[i].Date.Format("2006-01-02"))
		}
	}

	index := make(map[string]int, len(tickers))
	for j, t := range tickers {
		index[t] = j
	}
	for _, d := range decisions {
		for t := range d.Weights {
			if _, ok := index[t]; !ok {
				return nil, domain.Configf("decision %s references unknown ticker %q",
					d.Date.Format("2006-01-02"), t)
			}
		}
	}

	table := &domain.WeightTable{
		Tickers: tickers,
		Dates:   calendar,
		W:       make([][]float64, len(calendar)),
	}

	// next apunta a la próxima decisión aún no vigente. Una decisión
	// fechada en d entra en vigor el primer día de calendario posterior
	// a d — estrictamente posterior, ese es el lag de un periodo.
	next := 0
	current := make([]float64, len(tickers))
	for i, day := range calendar {
		for next < len(decisions) && decisions[next].Date.Before(day) {
			current = make([]float64, len(tickers))
			for t, w := range decisions[next].Weights {
				current[index[t]] = w
			}
			next++
		}
		row := make([]float64, len(tickers))
		copy(row, current)
		table.W[i] = row
	}
	return table, nil
}

// DecisionDates devuelve las fechas de fin de mes del calendario dado.
// Helper de conveniencia para generadores con rebalanceo mensual.
func DecisionDates(calendar []time.Time) []time.Time {
	return domain.MonthEnds(calendar)
}

// String de depuración compacto para logs.
func Describe(t *domain.WeightTable) string {
	if len(t.Dates) == 0 {
		return "empty weight table"
	}
	return fmt.Sprintf("%d days × %d tickers (%s → %s)",
		len(t.Dates), len(t.Tickers),
		t.Dates[0].Format("2006-01-02"), t.Dates[len(t.Dates)-1].Format("2006-01-02"))
}

package ports

import (
	"github.com/alejandrodnm/etflab/internal/analytics"
	"github.com/alejandrodnm/etflab/internal/domain"
)

// Reporter presenta resultados al usuario. La implementación de consola
// imprime tablas formateadas; generación de informes y plots quedan fuera.
type Reporter interface {
	// PrintRun muestra las métricas de una simulación.
	PrintRun(strategy string, metrics domain.Metrics)

	// PrintSweep muestra la tabla de robustez ordenada, con las
	// combinaciones fallidas marcadas explícitamente.
	PrintSweep(rows []domain.SweepRow)

	// PrintAttribution muestra la regresión factorial de un run.
	PrintAttribution(a *analytics.Attribution, factorNames []string)
}

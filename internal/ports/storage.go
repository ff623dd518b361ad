package ports

import (
	"context"

	"github.com/alejandrodnm/etflab/internal/domain"
)

// ResultStore persiste los resultados de cada simulación y barrido.
type ResultStore interface {
	// SaveRun persiste el resumen de una simulación con sus métricas.
	SaveRun(ctx context.Context, result *domain.BacktestResult, metrics domain.Metrics) error

	// SaveSweep persiste la tabla de robustez de un run, filas fallidas
	// incluidas. Cada fila se escribe de forma atómica: un barrido
	// interrumpido deja las filas ya evaluadas intactas.
	SaveSweep(ctx context.Context, runID string, rows []domain.SweepRow) error

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}

package signal

import (
	"github.com/alejandrodnm/etflab/internal/domain"
)

// Generator define el contrato para convertir historia de precios en
// vectores de pesos objetivo fechados. Cada generador encapsula una regla
// de trading distinta y se selecciona por construcción explícita — nunca
// por dispatch de strings repartido por el código.
type Generator interface {
	// Name devuelve el identificador único del generador.
	Name() string

	// Decisions devuelve los pesos objetivo en cada fecha de decisión
	// (fin de mes), usando solo datos conocibles al cierre de esa fecha.
	// No emite nada hasta completar el warmup de sus lookbacks.
	Decisions(prices *domain.PriceTable) ([]domain.WeightVector, error)
}

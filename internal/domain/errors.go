package domain

import (
	"errors"
	"fmt"
)

// Taxonomía de errores del core. Los tres tipos se reconocen con errors.As;
// el runner de robustez los usa para clasificar filas fallidas sin abortar
// el resto del barrido.

// ConfigurationError indica parámetros inválidos o insuficientes.
// Se detecta antes de arrancar cualquier simulación, nunca a medias.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Reason
}

// Configf construye un ConfigurationError con formato.
func Configf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// AlignmentError indica series desalineadas en fechas o instrumentos.
// El engine lo lanza en su chequeo de precondición; jamás rellena huecos.
type AlignmentError struct {
	Reason string
}

func (e *AlignmentError) Error() string {
	return "alignment: " + e.Reason
}

// InsufficientDataError indica que un cálculo estadístico no tiene
// suficientes observaciones solapadas. El cálculo concreto se reporta como
// indefinido en los agregados en vez de abortar un barrido entero.
type InsufficientDataError struct {
	What   string
	Needed int
	Got    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s needs %d observations, got %d",
		e.What, e.Needed, e.Got)
}

// ErrorKind devuelve el nombre del tipo de error de la taxonomía, o "Error"
// para cualquier otro. Es lo que se persiste en las filas fallidas.
func ErrorKind(err error) string {
	var cfg *ConfigurationError
	var align *AlignmentError
	var insuf *InsufficientDataError
	switch {
	case errors.As(err, &cfg):
		return "ConfigurationError"
	case errors.As(err, &align):
		return "AlignmentError"
	case errors.As(err, &insuf):
		return "InsufficientDataError"
	default:
		return "Error"
	}
}

package paging

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCursor: el token no se puede decodificar o no encaja con el orden.
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrInvalidLimit: el tamaño de página está fuera de rango.
	ErrInvalidLimit = errors.New("invalid limit")
)

func invalidCursor(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidCursor, reason)
}

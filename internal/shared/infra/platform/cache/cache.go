package cache

import (
	"context"
)

// Cache es una caché clave-valor genérica (Redis o memoria).
type Cache interface {
	// Get rellena dest (puntero) si hay hit: (true, nil). Miss: (false, nil).
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set serializa y guarda el valor. ttlSecs <= 0 usa el TTL por defecto.
	Set(ctx context.Context, key string, val interface{}, ttlSecs int) error

	Delete(ctx context.Context, key string) error
}

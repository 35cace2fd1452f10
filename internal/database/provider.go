package database

import (
	"context"
	"errors"
	"fmt"
)

var (
	postgresStore       func() Store
	postgresInitialized bool
)

// RegisterPostgresBackend registers the PostgreSQL store constructor.
// This is called by commands after initializing the postgres package to avoid import cycles.
func RegisterPostgresBackend(store func() Store) {
	postgresStore = store
	postgresInitialized = store != nil
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// GetStore returns the registered Store
func GetStore(ctx context.Context) (Store, error) {
	if !postgresInitialized {
		return nil, errors.New("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresStore == nil {
		return nil, fmt.Errorf("PostgreSQL store not registered")
	}
	return postgresStore(), nil
}

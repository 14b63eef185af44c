package database

import (
	"context"
	"fmt"
	"sync"
)

var (
	postgresStore       func() Store
	postgresInitialized bool
	providerMu          sync.RWMutex
)

// RegisterPostgresBackend registers the PostgreSQL store constructor.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(store func() Store) {
	providerMu.Lock()
	defer providerMu.Unlock()
	postgresStore = store
	postgresInitialized = true
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return postgresInitialized
}

// GetStore returns a Store from the PostgreSQL backend
func GetStore(ctx context.Context) (Store, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresStore == nil {
		return nil, fmt.Errorf("PostgreSQL store not registered")
	}
	return postgresStore(), nil
}

// ResetForTesting clears the registered backend. Only for use in tests.
func ResetForTesting() {
	providerMu.Lock()
	defer providerMu.Unlock()
	postgresStore = nil
	postgresInitialized = false
}

// Package store define el contrato del store de documentos que consume el
// adapter (colecciones, registros, sesión de admin), el normalizador de
// registros y el registry de drivers.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Adapter representa un driver capaz de abrir un Client.
type Adapter interface {
	// Name retorna el nombre del driver (ej: "pocketbase", "postgres", "memory").
	Name() string

	// Connect establece conexión con el store.
	Connect(ctx context.Context, cfg AdapterConfig) (Client, error)
}

// AdapterConfig configuración para conectar a un store.
type AdapterConfig struct {
	// Name del driver: "pocketbase", "postgres", "memory"
	Name string

	// URL base del store HTTP (pocketbase)
	URL string

	// DSN connection string (postgres)
	DSN string

	// Timeout por request (pocketbase). 0 = default del driver.
	Timeout time.Duration

	// Pool settings (postgres)
	MaxOpenConns int

	// SnapshotPath archivo JSON para persistir el store en memoria (opcional)
	SnapshotPath string
}

// ─── Registry Global ───

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// RegisterAdapter registra un adapter en el registry global.
// Llamar en init() de cada adapter.
func RegisterAdapter(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := a.Name()
	if _, exists := adapters[name]; exists {
		panic(fmt.Sprintf("adapter: %q already registered", name))
	}
	adapters[name] = a
}

// GetAdapter obtiene un adapter por nombre.
func GetAdapter(name string) (Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[name]
	return a, ok
}

// ListAdapters retorna los nombres de todos los adapters registrados, ordenados.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenAdapter abre una conexión usando el adapter especificado en la config.
func OpenAdapter(ctx context.Context, cfg AdapterConfig) (Client, error) {
	a, ok := GetAdapter(cfg.Name)
	if !ok {
		return nil, fmt.Errorf("adapter: %q not registered", cfg.Name)
	}
	return a.Connect(ctx, cfg)
}

package datasource

import (
	"sort"
	"sync"

	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// EngineInfo describes a database engine the backend can ingest from.
type EngineInfo struct {
	Type        models.EngineType `json:"type"`         // "mysql", "postgresql", "mssql"
	DisplayName string            `json:"display_name"` // "MySQL", "PostgreSQL", "SQL Server"
	Description string            `json:"description"`
	DefaultPort string            `json:"default_port"`
}

// EngineRegistration contains info plus the engine's config mapper.
type EngineRegistration struct {
	Info EngineInfo
	// FromMap converts a loosely typed config (YAML, JSON, flags) into a
	// DatabaseConfig, applying engine-specific aliases and defaults.
	FromMap func(config map[string]any) (models.DatabaseConfig, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[models.EngineType]EngineRegistration)
)

// Register is called by each engine's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg EngineRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredEngines returns info for all registered engines, sorted by type.
func RegisteredEngines() []EngineInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]EngineInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// Lookup returns the registration for an engine type.
func Lookup(engine models.EngineType) (EngineRegistration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[engine]
	return reg, ok
}

// IsRegistered checks if an engine type is available.
func IsRegistered(engine models.EngineType) bool {
	_, ok := Lookup(engine)
	return ok
}

// DefaultPort returns the engine's default port, or "" if unknown.
func DefaultPort(engine models.EngineType) string {
	if reg, ok := Lookup(engine); ok {
		return reg.Info.DefaultPort
	}
	return ""
}

// ConnectionLabel renders the history "connection" label, e.g. "MySQL - products_db".
func ConnectionLabel(engine models.EngineType, database string) string {
	name := string(engine)
	if reg, ok := Lookup(engine); ok {
		name = reg.Info.DisplayName
	}
	if database == "" {
		return name
	}
	return name + " - " + database
}

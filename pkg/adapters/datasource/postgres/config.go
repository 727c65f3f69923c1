package postgres

import (
	"github.com/ekaya-inc/ekaya-ingest/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() string {
	return "5432"
}

// FromMap creates a DatabaseConfig from a generic config map.
// A "schema.table" form is accepted as-is; the backend resolves the schema.
func FromMap(config map[string]any) (models.DatabaseConfig, error) {
	return datasource.BaseFromMap(config, DefaultPort())
}

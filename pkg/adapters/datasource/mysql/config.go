package mysql

import (
	"github.com/ekaya-inc/ekaya-ingest/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// DefaultPort returns the default MySQL port.
func DefaultPort() string {
	return "3306"
}

// FromMap creates a DatabaseConfig from a generic config map.
func FromMap(config map[string]any) (models.DatabaseConfig, error) {
	return datasource.BaseFromMap(config, DefaultPort())
}

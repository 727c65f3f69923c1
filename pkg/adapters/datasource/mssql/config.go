package mssql

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-ingest/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// DefaultPort returns the default SQL Server port.
func DefaultPort() string {
	return "1433"
}

// FromMap creates a DatabaseConfig from a generic config map.
// SQL Server hosts are often written as "host\instance" or "host,port";
// the comma form is split into host and port.
func FromMap(config map[string]any) (models.DatabaseConfig, error) {
	cfg, err := datasource.BaseFromMap(config, DefaultPort())
	if err != nil {
		return cfg, err
	}

	if host, port, ok := strings.Cut(cfg.Host, ","); ok {
		if _, explicit := config["port"]; explicit && cfg.Port != port {
			return cfg, fmt.Errorf("host %q and port %q disagree", cfg.Host, cfg.Port)
		}
		cfg.Host = strings.TrimSpace(host)
		cfg.Port = strings.TrimSpace(port)
	}
	return cfg, nil
}

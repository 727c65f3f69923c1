package datasource

import (
	"fmt"
	"strconv"

	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// FromMap builds a DatabaseConfig for the given engine from a generic map.
// Unknown engines fall back to BaseFromMap with no default port.
func FromMap(engine models.EngineType, config map[string]any) (models.DatabaseConfig, error) {
	if reg, ok := Lookup(engine); ok && reg.FromMap != nil {
		return reg.FromMap(config)
	}
	return BaseFromMap(config, "")
}

// BaseFromMap reads the common connection keys. Missing keys stay empty so
// that validation, not parsing, reports them. The port may be a string or a
// number (JSON numbers decode as float64, YAML as int).
func BaseFromMap(config map[string]any, defaultPort string) (models.DatabaseConfig, error) {
	cfg := models.DatabaseConfig{Port: defaultPort}

	var err error
	if cfg.Host, err = stringValue(config, "host"); err != nil {
		return cfg, err
	}

	switch port := config["port"].(type) {
	case nil:
	case string:
		if port != "" {
			cfg.Port = port
		}
	case int:
		cfg.Port = strconv.Itoa(port)
	case int64:
		cfg.Port = strconv.FormatInt(port, 10)
	case float64:
		cfg.Port = strconv.Itoa(int(port))
	default:
		return cfg, fmt.Errorf("port must be a string or number, got %T", port)
	}

	if cfg.Database, err = stringValue(config, "database", "name"); err != nil {
		return cfg, err
	}
	if cfg.Username, err = stringValue(config, "username", "user"); err != nil {
		return cfg, err
	}
	if cfg.Password, err = stringValue(config, "password"); err != nil {
		return cfg, err
	}
	if cfg.Table, err = stringValue(config, "table"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// stringValue returns the first present key; later keys are legacy aliases.
func stringValue(config map[string]any, keys ...string) (string, error) {
	for _, key := range keys {
		v, ok := config[key]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("%s must be a string, got %T", key, v)
		}
		return s, nil
	}
	return "", nil
}

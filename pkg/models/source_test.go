package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceDescriptor_KeyIgnoresPassword(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: "5432", Database: "sales", Username: "u", Password: "one", Table: "orders"}
	a := NewDatabaseSource(EnginePostgreSQL, cfg)
	cfg.Password = "two"
	b := NewDatabaseSource(EnginePostgreSQL, cfg)

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), NewDatabaseSource(EngineMySQL, cfg).Key())
}

func TestSourceDescriptor_Wire(t *testing.T) {
	file := NewFileSource("f-123")
	assert.Equal(t, "file", file.WireType())
	assert.Equal(t, map[string]string{"file_id": "f-123"}, file.WireConfig())
	assert.Equal(t, "f-123", file.Label())

	db := NewDatabaseSource(EngineMSSQL, DatabaseConfig{Table: "customers"})
	assert.Equal(t, "mssql", db.WireType())
	assert.Equal(t, DatabaseConfig{Table: "customers"}, db.WireConfig())
	assert.Equal(t, "customers", db.Label())
}

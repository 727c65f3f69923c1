package models

import "strings"

// SourceKind discriminates the two kinds of ingestion source.
type SourceKind string

const (
	SourceKindFile     SourceKind = "file"
	SourceKindDatabase SourceKind = "database"
)

// EngineType identifies the database engine behind a database source.
type EngineType string

const (
	EngineMySQL      EngineType = "mysql"
	EnginePostgreSQL EngineType = "postgresql"
	EngineMSSQL      EngineType = "mssql"
)

// PasswordMask replaces the password of a saved connection.
const PasswordMask = "********"

// DatabaseConfig holds the connection parameters the backend needs to reach a
// table. JSON keys match the backend's config object.
// Field order matters: validation reports the first missing field in
// declaration order (host, port, database, username, table).
type DatabaseConfig struct {
	Host     string `json:"host" yaml:"host" validate:"required"`
	Port     string `json:"port" yaml:"port" validate:"required"`
	Database string `json:"database" yaml:"database" validate:"required"`
	Username string `json:"username" yaml:"username" validate:"required"`
	Password string `json:"password" yaml:"-"`
	Table    string `json:"table" yaml:"table" validate:"required"`
}

// SourceDescriptor is the user-supplied description of where data comes from.
// Exactly one of FileRef (file kind) or Database (database kind) is meaningful.
type SourceDescriptor struct {
	Kind     SourceKind      `json:"kind" yaml:"kind"`
	FileRef  string          `json:"file_ref,omitempty" yaml:"file_ref,omitempty"`
	Engine   EngineType      `json:"engine,omitempty" yaml:"engine,omitempty"`
	Database *DatabaseConfig `json:"database,omitempty" yaml:"database,omitempty"`
}

// NewDatabaseSource returns a database descriptor for the given engine.
func NewDatabaseSource(engine EngineType, cfg DatabaseConfig) SourceDescriptor {
	return SourceDescriptor{Kind: SourceKindDatabase, Engine: engine, Database: &cfg}
}

// NewFileSource returns a file descriptor for a backend-assigned file reference.
func NewFileSource(fileRef string) SourceDescriptor {
	return SourceDescriptor{Kind: SourceKindFile, FileRef: fileRef}
}

// WireType is the "type" value sent to the backend.
func (d SourceDescriptor) WireType() string {
	if d.Kind == SourceKindFile {
		return string(SourceKindFile)
	}
	return string(d.Engine)
}

// WireConfig is the "config" object sent to the backend.
func (d SourceDescriptor) WireConfig() any {
	if d.Kind == SourceKindFile {
		return map[string]string{"file_id": d.FileRef}
	}
	if d.Database == nil {
		return DatabaseConfig{}
	}
	return *d.Database
}

// Key identifies the descriptor for busy tracking. The password is excluded so
// that re-entering a secret does not create a second in-flight slot.
func (d SourceDescriptor) Key() string {
	if d.Kind == SourceKindFile {
		return "file|" + d.FileRef
	}
	if d.Database == nil {
		return "database|" + string(d.Engine)
	}
	c := d.Database
	return strings.Join([]string{"database", string(d.Engine), c.Host, c.Port, c.Database, c.Username, c.Table}, "|")
}

// Label is a short human-readable name, e.g. the table or file reference.
func (d SourceDescriptor) Label() string {
	if d.Kind == SourceKindFile {
		return d.FileRef
	}
	if d.Database == nil {
		return ""
	}
	return d.Database.Table
}

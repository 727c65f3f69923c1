package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-ingest/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// PasswordEnv holds the database password for descriptor files. Descriptor
// files never carry secrets.
const PasswordEnv = "INGEST_DB_PASSWORD"

// descriptorFile is the on-disk form of a source descriptor:
//
//	kind: database
//	type: postgresql
//	config:
//	  host: db.internal
//	  port: 5432
//	  database: sales
//	  username: reader
//	  table: orders
type descriptorFile struct {
	Kind    models.SourceKind `yaml:"kind"`
	Type    models.EngineType `yaml:"type"`
	FileRef string            `yaml:"file_ref"`
	Config  map[string]any    `yaml:"config"`
}

// passwordSource supplies a password when the environment has none.
type passwordSource func(prompt string) (string, error)

// loadDescriptor reads a descriptor file and fills in the password from
// PasswordEnv, falling back to ask when it is unset.
func loadDescriptor(path string, ask passwordSource) (models.SourceDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.SourceDescriptor{}, fmt.Errorf("failed to read descriptor: %w", err)
	}

	var file descriptorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return models.SourceDescriptor{}, fmt.Errorf("failed to parse descriptor %s: %w", path, err)
	}

	if file.Kind == "" {
		file.Kind = models.SourceKindDatabase
		if file.FileRef != "" {
			file.Kind = models.SourceKindFile
		}
	}

	switch file.Kind {
	case models.SourceKindFile:
		return models.NewFileSource(file.FileRef), nil
	case models.SourceKindDatabase:
	default:
		return models.SourceDescriptor{}, fmt.Errorf("descriptor %s: unsupported kind %q", path, file.Kind)
	}

	cfg, err := datasource.FromMap(file.Type, file.Config)
	if err != nil {
		return models.SourceDescriptor{}, fmt.Errorf("descriptor %s: %w", path, err)
	}

	cfg.Password = os.Getenv(PasswordEnv)
	if cfg.Password == "" && ask != nil {
		cfg.Password, err = ask(fmt.Sprintf("Password for %s@%s: ", cfg.Username, cfg.Host))
		if err != nil {
			return models.SourceDescriptor{}, err
		}
	}

	return models.NewDatabaseSource(file.Type, cfg), nil
}

// loadSchema reads a schema descriptor from a YAML or JSON file.
func loadSchema(path string) (*models.SchemaDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	var schema models.SchemaDescriptor
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse schema %s: %w", path, err)
	}
	if len(schema.Fields) == 0 {
		return nil, fmt.Errorf("schema %s has no fields", path)
	}
	return &schema, nil
}

// terminalPassword prompts on stderr and reads without echo. It returns an
// empty password when stdin is not a terminal.
func terminalPassword(stderr io.Writer) passwordSource {
	return func(prompt string) (string, error) {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return "", nil
		}
		fmt.Fprint(stderr, prompt)
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimSpace(string(pw)), nil
	}
}

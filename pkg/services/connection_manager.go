package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-ingest/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-ingest/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/ekaya-ingest/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// ConnectionState is the lifecycle state of one source descriptor.
type ConnectionState string

const (
	StateIdle           ConnectionState = "idle"
	StateTesting        ConnectionState = "testing"
	StateFetchingSchema ConnectionState = "fetching_schema"
	StateSchemaReady    ConnectionState = "schema_ready"
)

// Status messages reported through ConnectionManager.Status.
const (
	StatusTesting        = "Testing database connection..."
	StatusTestSucceeded  = "Connection successful! Database is accessible."
	StatusFetchingSchema = "Connecting to database and fetching schema..."
	StatusSchemaFetched  = "Schema fetched successfully!"
)

// StatusEvent is the latest human-readable status of a manager operation.
// An empty Message clears the status line. Seq increases with every event.
type StatusEvent struct {
	Seq       uint64
	Operation string
	Message   string
	At        time.Time
}

// ConnectionManager validates source descriptors, checks connectivity,
// discovers schemas and keeps named connections for reuse.
type ConnectionManager interface {
	// Validate checks a descriptor locally. It never touches the network.
	Validate(desc models.SourceDescriptor) error

	// TestConnection asks the backend whether the source is reachable.
	TestConnection(ctx context.Context, desc models.SourceDescriptor) error

	// FetchSchema asks the backend to inspect the source and return its schema.
	FetchSchema(ctx context.Context, desc models.SourceDescriptor, chunkSize int) (*models.SchemaDescriptor, error)

	SaveConnection(name string, desc models.SourceDescriptor) (*models.SavedConnection, error)
	LoadConnection(saved models.SavedConnection) models.SourceDescriptor
	DeleteConnection(id string)
	ListConnections() []models.SavedConnection

	// State returns the lifecycle state of the descriptor.
	State(desc models.SourceDescriptor) ConnectionState

	// Status returns the most recent status event.
	Status() StatusEvent

	// DefaultPort returns the conventional port for an engine.
	DefaultPort(engine models.EngineType) string
}

type connectionManager struct {
	backend  BackendClient
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	states map[string]ConnectionState
	saved  []models.SavedConnection
	status StatusEvent
}

// NewConnectionManager creates a connection manager backed by client.
func NewConnectionManager(client BackendClient, logger *zap.Logger) ConnectionManager {
	return &connectionManager{
		backend:  client,
		validate: newDescriptorValidator(),
		logger:   logger.Named("connection-manager"),
		now:      time.Now,
		states:   make(map[string]ConnectionState),
	}
}

var _ ConnectionManager = (*connectionManager)(nil)

// newDescriptorValidator reports fields by their JSON name so that
// validation errors map directly to MissingFieldError.
func newDescriptorValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (m *connectionManager) Validate(desc models.SourceDescriptor) error {
	switch desc.Kind {
	case models.SourceKindFile:
		if strings.TrimSpace(desc.FileRef) == "" {
			return &apperrors.MissingFieldError{Field: "file"}
		}
		return nil
	case models.SourceKindDatabase:
	default:
		return apperrors.NewValidationError("unsupported source kind %q", desc.Kind)
	}

	cfg := models.DatabaseConfig{}
	if desc.Database != nil {
		cfg = *desc.Database
	}
	if err := m.validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return &apperrors.MissingFieldError{Field: fieldErrs[0].Field()}
		}
		return apperrors.NewValidationError("invalid database config: %v", err)
	}

	if !datasource.IsRegistered(desc.Engine) {
		return apperrors.NewValidationError("unsupported engine type %q", desc.Engine)
	}
	return nil
}

// validateForSubmit adds the checks that only apply when a request is sent.
func (m *connectionManager) validateForSubmit(desc models.SourceDescriptor) error {
	if err := m.Validate(desc); err != nil {
		return err
	}
	if desc.Kind == models.SourceKindDatabase && desc.Database.Password == "" {
		return &apperrors.MissingFieldError{Field: "password"}
	}
	return nil
}

func (m *connectionManager) TestConnection(ctx context.Context, desc models.SourceDescriptor) error {
	if err := m.validateForSubmit(desc); err != nil {
		return err
	}

	release, err := m.acquire(desc, StateTesting, "test_connection", StatusTesting)
	if err != nil {
		return err
	}

	err = m.backend.TestConnection(ctx, desc)
	if err != nil {
		release(nil, "")
		m.logger.Warn("Connection test failed",
			append(logging.SourceFields(desc), zap.String("error", logging.SanitizeError(err)))...)
		return err
	}

	release(nil, StatusTestSucceeded)
	m.logger.Info("Connection test succeeded", logging.SourceFields(desc)...)
	return nil
}

func (m *connectionManager) FetchSchema(ctx context.Context, desc models.SourceDescriptor, chunkSize int) (*models.SchemaDescriptor, error) {
	if err := m.validateForSubmit(desc); err != nil {
		return nil, err
	}
	if chunkSize <= 0 {
		return nil, apperrors.NewValidationError("chunk size must be positive, got %d", chunkSize)
	}

	release, err := m.acquire(desc, StateFetchingSchema, "fetch_schema", StatusFetchingSchema)
	if err != nil {
		return nil, err
	}

	schema, err := m.backend.DiscoverSchema(ctx, desc, chunkSize)
	if err != nil {
		idle := StateIdle
		release(&idle, "")
		m.logger.Warn("Schema fetch failed",
			append(logging.SourceFields(desc), zap.String("error", logging.SanitizeError(err)))...)
		return nil, err
	}

	ready := StateSchemaReady
	release(&ready, StatusSchemaFetched)
	m.logger.Info("Schema fetched",
		append(logging.SourceFields(desc),
			zap.String("schema", schema.Name),
			zap.Int("fields", len(schema.Fields)))...)
	return schema, nil
}

// acquire marks desc busy with state and publishes the in-progress status.
// The returned release restores the previous state, or sets next when
// non-nil, and publishes the final status message.
func (m *connectionManager) acquire(desc models.SourceDescriptor, state ConnectionState, operation, message string) (func(next *ConnectionState, message string), error) {
	key := desc.Key()

	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.stateLocked(key)
	if prev == StateTesting || prev == StateFetchingSchema {
		return nil, apperrors.ErrBusy
	}
	m.states[key] = state
	m.publishLocked(operation, message)

	return func(next *ConnectionState, message string) {
		m.mu.Lock()
		defer m.mu.Unlock()
		final := prev
		if next != nil {
			final = *next
		}
		if final == StateIdle {
			delete(m.states, key)
		} else {
			m.states[key] = final
		}
		m.publishLocked(operation, message)
	}, nil
}

func (m *connectionManager) stateLocked(key string) ConnectionState {
	if s, ok := m.states[key]; ok {
		return s
	}
	return StateIdle
}

func (m *connectionManager) publishLocked(operation, message string) {
	m.status = StatusEvent{
		Seq:       m.status.Seq + 1,
		Operation: operation,
		Message:   message,
		At:        m.now(),
	}
}

func (m *connectionManager) State(desc models.SourceDescriptor) ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked(desc.Key())
}

func (m *connectionManager) Status() StatusEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *connectionManager) SaveConnection(name string, desc models.SourceDescriptor) (*models.SavedConnection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("connection name is required")
	}
	if desc.Kind != models.SourceKindDatabase {
		return nil, apperrors.NewValidationError("only database connections can be saved")
	}
	if err := m.Validate(desc); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.saved {
		if s.Name == name {
			return nil, apperrors.NewValidationError("a connection named %q already exists", name)
		}
	}

	cfg := *desc.Database
	cfg.Password = models.PasswordMask
	saved := models.SavedConnection{
		ID:        uuid.New().String(),
		Name:      name,
		Engine:    desc.Engine,
		Config:    cfg,
		CreatedAt: m.now(),
	}
	m.saved = append(m.saved, saved)
	m.publishLocked("save_connection", `Connection "`+name+`" saved successfully!`)

	m.logger.Info("Saved connection",
		zap.String("id", saved.ID),
		zap.String("name", name),
		zap.String("engine", string(saved.Engine)))

	return &saved, nil
}

// LoadConnection returns a descriptor built from the saved fields. The
// password is always empty and must be re-entered before submitting.
func (m *connectionManager) LoadConnection(saved models.SavedConnection) models.SourceDescriptor {
	cfg := saved.Config
	cfg.Password = ""
	return models.NewDatabaseSource(saved.Engine, cfg)
}

func (m *connectionManager) DeleteConnection(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.saved {
		if s.ID == id {
			m.saved = append(m.saved[:i], m.saved[i+1:]...)
			m.logger.Info("Deleted connection", zap.String("id", id), zap.String("name", s.Name))
			return
		}
	}
}

func (m *connectionManager) ListConnections() []models.SavedConnection {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.SavedConnection, len(m.saved))
	copy(out, m.saved)
	return out
}

func (m *connectionManager) DefaultPort(engine models.EngineType) string {
	return datasource.DefaultPort(engine)
}

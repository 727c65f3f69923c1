package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// SessionOptions configures a Session.
type SessionOptions struct {
	// ReconcileWindow is passed to the history ledger.
	ReconcileWindow time.Duration
}

// Selection is the source currently shown in the preview.
type Selection struct {
	SourceID string
	Schema   *models.SchemaDescriptor
}

// Session owns the components of one ingestion workflow. Each session has
// its own connection manager, paginator and history ledger.
type Session struct {
	Connections ConnectionManager
	Preview     Paginator
	History     Ledger

	logger *zap.Logger

	mu       sync.Mutex
	selected Selection
	closed   bool
}

// NewSession wires the session components to client.
func NewSession(client BackendClient, opts SessionOptions, logger *zap.Logger) *Session {
	return &Session{
		Connections: NewConnectionManager(client, logger),
		Preview:     NewPaginator(client, logger),
		History:     NewLedger(client, opts.ReconcileWindow, logger),
		logger:      logger.Named("session"),
	}
}

// IngestDatabase discovers the schema of a database source and records the
// attempt in the history ledger. The ledger entry is added as processing and
// updated to success or error when the backend answers. Calls rejected
// locally, by validation or because the source is busy, leave no entry.
//
// Schema discovery does not report a record count, so a successful entry
// carries a count of 0 until a history refresh replaces it with the
// backend's entry.
func (s *Session) IngestDatabase(ctx context.Context, desc models.SourceDescriptor, chunkSize int) (*models.SchemaDescriptor, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if desc.Kind != models.SourceKindDatabase {
		return nil, apperrors.NewValidationError("expected a database source, got %q", desc.Kind)
	}
	if err := s.Connections.Validate(desc); err != nil {
		return nil, err
	}
	if desc.Database.Password == "" {
		return nil, &apperrors.MissingFieldError{Field: "password"}
	}
	if chunkSize <= 0 {
		return nil, apperrors.NewValidationError("chunk size must be positive, got %d", chunkSize)
	}
	if state := s.Connections.State(desc); state == StateTesting || state == StateFetchingSchema {
		return nil, apperrors.ErrBusy
	}

	label := datasource.ConnectionLabel(desc.Engine, desc.Database.Database)
	entry, err := s.History.AddEntry(models.HistoryEntry{
		Kind:       models.SourceKindDatabase,
		Name:       desc.Label(),
		Connection: &label,
		Status:     models.StatusProcessing,
	})
	if err != nil {
		return nil, err
	}

	schema, err := s.Connections.FetchSchema(ctx, desc, chunkSize)
	if errors.Is(err, apperrors.ErrBusy) || errors.Is(err, apperrors.ErrValidation) {
		// Another operation took the source after the check above.
		_ = s.History.RemoveEntry(entry.ID)
		return nil, err
	}
	if err != nil {
		status := models.StatusError
		msg := err.Error()
		_ = s.History.UpdateEntry(entry.ID, models.HistoryUpdate{Status: &status, ErrorMessage: &msg})
		return nil, err
	}

	status := models.StatusSuccess
	var records int64
	_ = s.History.UpdateEntry(entry.ID, models.HistoryUpdate{Status: &status, RecordCount: &records, Schema: schema})

	s.logger.Info("Database source ingested",
		zap.String("entry_id", entry.ID),
		zap.String("connection", label),
		zap.String("table", desc.Label()))
	return schema, nil
}

// RegisterFile records a completed file upload and selects it for preview.
func (s *Session) RegisterFile(fileRef, name string, schema *models.SchemaDescriptor, records int64) (models.HistoryEntry, error) {
	if err := s.checkOpen(); err != nil {
		return models.HistoryEntry{}, err
	}
	if err := s.Connections.Validate(models.NewFileSource(fileRef)); err != nil {
		return models.HistoryEntry{}, err
	}

	entry, err := s.History.AddEntry(models.HistoryEntry{
		Kind:        models.SourceKindFile,
		Name:        name,
		Status:      models.StatusSuccess,
		RecordCount: &records,
		Schema:      schema,
	})
	if err != nil {
		return models.HistoryEntry{}, err
	}

	s.Select(fileRef, schema)
	return entry, nil
}

// Select makes sourceID the current preview source.
func (s *Session) Select(sourceID string, schema *models.SchemaDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = Selection{SourceID: sourceID, Schema: schema.Clone()}
}

// Selected returns the current preview source.
func (s *Session) Selected() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Selection{SourceID: s.selected.SourceID, Schema: s.selected.Schema.Clone()}
}

// LoadSelectedPage loads a page of the selected source.
func (s *Session) LoadSelectedPage(ctx context.Context, page int) (*models.PreviewPage, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	sel := s.Selected()
	return s.Preview.LoadPage(ctx, sel.SourceID, sel.Schema, page)
}

// Close tears down the session. Later operations fail with
// apperrors.ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sourceID := s.selected.SourceID
	s.selected = Selection{}
	s.mu.Unlock()

	s.History.Close()
	if sourceID != "" {
		s.Preview.Forget(sourceID)
	}
	s.logger.Debug("Session closed")
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.ErrSessionClosed
	}
	return nil
}

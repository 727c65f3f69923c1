package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

func TestSession_IngestDatabaseRecordsSuccess(t *testing.T) {
	backend := newFakeBackend()
	s := NewSession(backend, SessionOptions{ReconcileWindow: 5 * time.Minute}, zap.NewNop())
	defer s.Close()

	schema, err := s.IngestDatabase(context.Background(), validDescriptor(), 1000)
	require.NoError(t, err)
	assert.Equal(t, "orders", schema.Name)

	entries := s.History.Entries()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.True(t, e.Pending)
	assert.Equal(t, models.SourceKindDatabase, e.Kind)
	assert.Equal(t, "orders", e.Name)
	require.NotNil(t, e.Connection)
	assert.Equal(t, "PostgreSQL - sales", *e.Connection)
	assert.Equal(t, models.StatusSuccess, e.Status)
	assert.NotNil(t, e.Schema)
	require.NotNil(t, e.RecordCount)
	assert.Equal(t, int64(0), *e.RecordCount)
	assert.Nil(t, e.ErrorMessage)
}

func TestSession_IngestDatabaseRecordsFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.schemaFn = func(ctx context.Context, desc models.SourceDescriptor, chunkSize int) (*models.SchemaDescriptor, error) {
		return nil, &apperrors.ConnectionError{Status: 400, Detail: "Unknown table"}
	}
	s := NewSession(backend, SessionOptions{}, zap.NewNop())
	defer s.Close()

	_, err := s.IngestDatabase(context.Background(), validDescriptor(), 1000)
	assert.ErrorIs(t, err, apperrors.ErrConnection)

	entries := s.History.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.StatusError, entries[0].Status)
	require.NotNil(t, entries[0].ErrorMessage)
	assert.Equal(t, "Unknown table", *entries[0].ErrorMessage)
	assert.Nil(t, entries[0].RecordCount)
}

func TestSession_IngestDatabaseValidatesFirst(t *testing.T) {
	backend := newFakeBackend()
	s := NewSession(backend, SessionOptions{}, zap.NewNop())
	defer s.Close()

	desc := validDescriptor()
	desc.Database.Password = ""
	_, err := s.IngestDatabase(context.Background(), desc, 1000)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = s.IngestDatabase(context.Background(), models.NewFileSource("f"), 1000)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	assert.Empty(t, s.History.Entries())
	assert.Equal(t, 0, backend.callCount("schema"))
}

func TestSession_IngestDatabaseRejectedWhileBusy(t *testing.T) {
	backend := newFakeBackend()
	started := make(chan struct{})
	release := make(chan struct{})
	backend.testFn = func(ctx context.Context, desc models.SourceDescriptor) error {
		close(started)
		<-release
		return nil
	}
	s := NewSession(backend, SessionOptions{ReconcileWindow: 5 * time.Minute}, zap.NewNop())
	defer s.Close()

	done := make(chan error, 1)
	go func() {
		done <- s.Connections.TestConnection(context.Background(), validDescriptor())
	}()
	<-started

	_, err := s.IngestDatabase(context.Background(), validDescriptor(), 1000)
	assert.ErrorIs(t, err, apperrors.ErrBusy)
	assert.Empty(t, s.History.Entries())
	assert.Equal(t, 0, backend.callCount("schema"))

	close(release)
	require.NoError(t, <-done)

	_, err = s.IngestDatabase(context.Background(), validDescriptor(), 1000)
	require.NoError(t, err)
	assert.Len(t, s.History.Entries(), 1)
}

func TestSession_IngestDatabaseRejectsChunkSizeWithoutEntry(t *testing.T) {
	backend := newFakeBackend()
	s := NewSession(backend, SessionOptions{}, zap.NewNop())
	defer s.Close()

	for _, size := range []int{0, -5} {
		_, err := s.IngestDatabase(context.Background(), validDescriptor(), size)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	}

	assert.Empty(t, s.History.Entries())
	assert.Equal(t, 0, backend.callCount("schema"))
}

func TestSession_RegisterFileSelectsForPreview(t *testing.T) {
	backend := newFakeBackend()
	backend.previewFn = pagedRecords(12)
	s := NewSession(backend, SessionOptions{}, zap.NewNop())
	defer s.Close()

	entry, err := s.RegisterFile("file-1", "upload.csv", testSchema(), 12)
	require.NoError(t, err)
	assert.Equal(t, models.SourceKindFile, entry.Kind)
	assert.Equal(t, int64(12), *entry.RecordCount)

	sel := s.Selected()
	assert.Equal(t, "file-1", sel.SourceID)
	assert.Equal(t, "orders", sel.Schema.Name)

	page, err := s.LoadSelectedPage(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, page.Rows, 2)
}

func TestSession_LoadSelectedPageWithoutSelection(t *testing.T) {
	s := NewSession(newFakeBackend(), SessionOptions{}, zap.NewNop())
	defer s.Close()

	_, err := s.LoadSelectedPage(context.Background(), 1)
	assert.ErrorIs(t, err, apperrors.ErrNotReady)
}

func TestSession_CloseEndsSession(t *testing.T) {
	s := NewSession(newFakeBackend(), SessionOptions{}, zap.NewNop())
	s.Close()
	s.Close()

	_, err := s.IngestDatabase(context.Background(), validDescriptor(), 1000)
	assert.ErrorIs(t, err, apperrors.ErrSessionClosed)

	_, err = s.RegisterFile("f", "f.csv", testSchema(), 1)
	assert.ErrorIs(t, err, apperrors.ErrSessionClosed)

	_, err = s.LoadSelectedPage(context.Background(), 1)
	assert.ErrorIs(t, err, apperrors.ErrSessionClosed)

	assert.ErrorIs(t, s.History.Refresh(context.Background()), apperrors.ErrSessionClosed)
}

package services

import (
	"context"

	"github.com/ekaya-inc/ekaya-ingest/pkg/backend"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// BackendClient is the subset of the backend API the session components use.
type BackendClient interface {
	TestConnection(ctx context.Context, desc models.SourceDescriptor) error
	DiscoverSchema(ctx context.Context, desc models.SourceDescriptor, chunkSize int) (*models.SchemaDescriptor, error)
	PreviewPage(ctx context.Context, sourceID string, page, pageSize int) (*models.PreviewPage, error)
	InjectionHistory(ctx context.Context) ([]models.HistoryEntry, error)
}

var _ BackendClient = (*backend.Client)(nil)

package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// fakeBackend is a BackendClient whose behaviour is set per test.
type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	testFn    func(ctx context.Context, desc models.SourceDescriptor) error
	schemaFn  func(ctx context.Context, desc models.SourceDescriptor, chunkSize int) (*models.SchemaDescriptor, error)
	previewFn func(ctx context.Context, sourceID string, page, pageSize int) (*models.PreviewPage, error)
	historyFn func(ctx context.Context) ([]models.HistoryEntry, error)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: make(map[string]int)}
}

func (f *fakeBackend) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeBackend) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) TestConnection(ctx context.Context, desc models.SourceDescriptor) error {
	f.record("test")
	if f.testFn != nil {
		return f.testFn(ctx, desc)
	}
	return nil
}

func (f *fakeBackend) DiscoverSchema(ctx context.Context, desc models.SourceDescriptor, chunkSize int) (*models.SchemaDescriptor, error) {
	f.record("schema")
	if f.schemaFn != nil {
		return f.schemaFn(ctx, desc, chunkSize)
	}
	return testSchema(), nil
}

func (f *fakeBackend) PreviewPage(ctx context.Context, sourceID string, page, pageSize int) (*models.PreviewPage, error) {
	f.record("preview")
	if f.previewFn != nil {
		return f.previewFn(ctx, sourceID, page, pageSize)
	}
	return nil, fmt.Errorf("preview not configured")
}

func (f *fakeBackend) InjectionHistory(ctx context.Context) ([]models.HistoryEntry, error) {
	f.record("history")
	if f.historyFn != nil {
		return f.historyFn(ctx)
	}
	return nil, nil
}

var _ BackendClient = (*fakeBackend)(nil)

func testSchema() *models.SchemaDescriptor {
	return &models.SchemaDescriptor{
		Name: "orders",
		Fields: []models.SchemaField{
			{Name: "id", Type: "integer"},
			{Name: "name", Type: "string"},
		},
	}
}

func validDescriptor() models.SourceDescriptor {
	return models.NewDatabaseSource(models.EnginePostgreSQL, models.DatabaseConfig{
		Host:     "db.internal",
		Port:     "5432",
		Database: "sales",
		Username: "reader",
		Password: "secret",
		Table:    "orders",
	})
}

// pagedRecords serves totalRecords synthetic rows, pageSize at a time.
func pagedRecords(totalRecords int) func(ctx context.Context, sourceID string, page, pageSize int) (*models.PreviewPage, error) {
	return func(ctx context.Context, sourceID string, page, pageSize int) (*models.PreviewPage, error) {
		var rows []models.Record
		for i := (page - 1) * pageSize; i < page*pageSize && i < totalRecords; i++ {
			rows = append(rows, models.Record{"id": i + 1, "name": fmt.Sprintf("row-%d", i+1)})
		}
		return &models.PreviewPage{PageNumber: page, PageSize: pageSize, Rows: rows, TotalRecords: totalRecords}, nil
	}
}

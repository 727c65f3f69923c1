package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// PreviewState is a snapshot of the preview for one source.
type PreviewState struct {
	SourceID string
	// CurrentPage is the most recently requested page, which may differ
	// from Page.PageNumber while a load is in flight or after it failed.
	CurrentPage int
	TotalPages  int
	// Page is the last successfully loaded page, nil before the first load.
	Page *models.PreviewPage
	// Loading is true while the most recently issued request is in flight.
	Loading bool
	// Err is the failure of the most recent request, nil after a success.
	Err error
}

// Paginator fetches and caches bounded pages of records per source.
// When requests overlap, only the most recently issued one updates the view.
type Paginator interface {
	// LoadPage fetches the given page. Pages beyond the known range are
	// clamped; superseded responses return apperrors.ErrSuperseded.
	LoadPage(ctx context.Context, sourceID string, schema *models.SchemaDescriptor, page int) (*models.PreviewPage, error)

	// Refresh reloads the currently selected page.
	Refresh(ctx context.Context, sourceID string, schema *models.SchemaDescriptor) (*models.PreviewPage, error)

	// Next and Previous move one page from the selected page; at a boundary
	// they return the loaded page without a request.
	Next(ctx context.Context, sourceID string, schema *models.SchemaDescriptor) (*models.PreviewPage, error)
	Previous(ctx context.Context, sourceID string, schema *models.SchemaDescriptor) (*models.PreviewPage, error)

	View(sourceID string) PreviewState

	// Export renders the loaded page of sourceID.
	Export(sourceID string, schema *models.SchemaDescriptor) (SerializedTable, error)

	// Forget drops all cached state for sourceID.
	Forget(sourceID string)
}

type previewSource struct {
	generation uint64
	resolved   uint64
	selected   int
	page       *models.PreviewPage
	totalPages int
	err        error
}

type paginator struct {
	backend  BackendClient
	pageSize int
	logger   *zap.Logger

	mu      sync.Mutex
	sources map[string]*previewSource
}

// NewPaginator creates a paginator with the fixed preview page size.
func NewPaginator(client BackendClient, logger *zap.Logger) Paginator {
	return &paginator{
		backend:  client,
		pageSize: models.DefaultPageSize,
		logger:   logger.Named("paginator"),
		sources:  make(map[string]*previewSource),
	}
}

var _ Paginator = (*paginator)(nil)

func (p *paginator) LoadPage(ctx context.Context, sourceID string, schema *models.SchemaDescriptor, page int) (*models.PreviewPage, error) {
	if sourceID == "" || schema == nil {
		return nil, apperrors.ErrNotReady
	}

	p.mu.Lock()
	src, ok := p.sources[sourceID]
	if !ok {
		src = &previewSource{}
		p.sources[sourceID] = src
	}
	if src.totalPages > 0 {
		page = models.ClampPage(page, src.totalPages)
	} else if page < 1 {
		page = 1
	}
	src.selected = page
	src.generation++
	gen := src.generation
	p.mu.Unlock()

	result, err := p.fetch(ctx, sourceID, page)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sources[sourceID] != src || src.generation != gen {
		p.logger.Debug("Discarding superseded preview response",
			zap.String("source_id", sourceID),
			zap.Int("page", page))
		return nil, apperrors.ErrSuperseded
	}
	src.resolved = gen

	if err != nil {
		src.err = err
		p.logger.Warn("Preview fetch failed",
			zap.String("source_id", sourceID),
			zap.Int("page", page),
			zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}

	src.page = result
	src.selected = result.PageNumber
	src.totalPages = result.TotalPages()
	src.err = nil
	return clonePage(result), nil
}

// fetch requests page and, when the backend reports fewer pages than that,
// fetches the last page instead.
func (p *paginator) fetch(ctx context.Context, sourceID string, page int) (*models.PreviewPage, error) {
	result, err := p.backend.PreviewPage(ctx, sourceID, page, p.pageSize)
	if err != nil {
		return nil, err
	}

	clamped := models.ClampPage(page, result.TotalPages())
	if clamped == page {
		return result, nil
	}

	p.logger.Debug("Requested page out of range, loading last page",
		zap.String("source_id", sourceID),
		zap.Int("requested", page),
		zap.Int("last", clamped))
	return p.backend.PreviewPage(ctx, sourceID, clamped, p.pageSize)
}

func (p *paginator) Refresh(ctx context.Context, sourceID string, schema *models.SchemaDescriptor) (*models.PreviewPage, error) {
	selected, _, _ := p.selection(sourceID)
	if selected < 1 {
		selected = 1
	}
	return p.LoadPage(ctx, sourceID, schema, selected)
}

func (p *paginator) Next(ctx context.Context, sourceID string, schema *models.SchemaDescriptor) (*models.PreviewPage, error) {
	return p.step(ctx, sourceID, schema, 1)
}

func (p *paginator) Previous(ctx context.Context, sourceID string, schema *models.SchemaDescriptor) (*models.PreviewPage, error) {
	return p.step(ctx, sourceID, schema, -1)
}

func (p *paginator) step(ctx context.Context, sourceID string, schema *models.SchemaDescriptor, delta int) (*models.PreviewPage, error) {
	selected, total, loaded := p.selection(sourceID)
	if selected < 1 {
		return p.LoadPage(ctx, sourceID, schema, 1)
	}

	target := selected + delta
	if loaded != nil && total < 1 {
		total = 1
	}
	if target >= 1 && (total == 0 || target <= total) {
		return p.LoadPage(ctx, sourceID, schema, target)
	}
	if loaded != nil && loaded.PageNumber == selected {
		return loaded, nil
	}
	return p.LoadPage(ctx, sourceID, schema, selected)
}

// selection returns the selected page, the known page count and a copy of
// the loaded page for sourceID. selected is 0 before any request.
func (p *paginator) selection(sourceID string) (int, int, *models.PreviewPage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	src, ok := p.sources[sourceID]
	if !ok {
		return 0, 0, nil
	}
	var loaded *models.PreviewPage
	if src.page != nil {
		loaded = clonePage(src.page)
	}
	return src.selected, src.totalPages, loaded
}

func (p *paginator) View(sourceID string) PreviewState {
	p.mu.Lock()
	defer p.mu.Unlock()

	view := PreviewState{SourceID: sourceID, CurrentPage: 1}
	src, ok := p.sources[sourceID]
	if !ok {
		return view
	}
	view.TotalPages = src.totalPages
	view.Loading = src.generation != src.resolved
	view.Err = src.err
	if src.selected > 0 {
		view.CurrentPage = src.selected
	}
	if src.page != nil {
		view.Page = clonePage(src.page)
	}
	return view
}

func (p *paginator) Export(sourceID string, schema *models.SchemaDescriptor) (SerializedTable, error) {
	if schema == nil {
		return SerializedTable{}, apperrors.ErrNotReady
	}
	view := p.View(sourceID)
	if view.Page == nil {
		return SerializedTable{}, apperrors.ErrNotReady
	}
	return ExportCurrentPage(schema, view.Page.Rows), nil
}

func (p *paginator) Forget(sourceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sources, sourceID)
}

func clonePage(page *models.PreviewPage) *models.PreviewPage {
	out := *page
	out.Rows = make([]models.Record, len(page.Rows))
	for i, row := range page.Rows {
		r := make(models.Record, len(row))
		for k, v := range row {
			r[k] = v
		}
		out.Rows[i] = r
	}
	return &out
}

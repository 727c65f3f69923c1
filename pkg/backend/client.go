// Package backend provides a client for the data-ingestion backend API.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/auth"
	"github.com/ekaya-inc/ekaya-ingest/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// Fallback messages used when the backend gives no usable detail.
const (
	MsgConnectionFailed = "Failed to connect to database"
	MsgSchemaFailed     = "Failed to fetch schema"
	MsgPreviewFailed    = "Failed to fetch data preview"
	MsgHistoryFailed    = "Failed to load injection history"
)

// Client provides access to the ingestion backend.
type Client struct {
	transport Transport
	tokens    auth.TokenProvider
	logger    *zap.Logger
}

// NewClient creates a new backend client.
func NewClient(transport Transport, tokens auth.TokenProvider, logger *zap.Logger) *Client {
	return &Client{
		transport: transport,
		tokens:    tokens,
		logger:    logger.Named("backend"),
	}
}

type sourceRequest struct {
	Type      string `json:"type"`
	Config    any    `json:"config"`
	ChunkSize *int   `json:"chunkSize,omitempty"`
}

// TestConnection asks the backend to verify that the source is reachable.
func (c *Client) TestConnection(ctx context.Context, desc models.SourceDescriptor) error {
	resp, err := c.do(ctx, http.MethodPost, nil, sourceRequest{
		Type:   desc.WireType(),
		Config: desc.WireConfig(),
	}, "datapuur", "test-connection")
	if err != nil {
		return c.connectionError(err, nil, MsgConnectionFailed)
	}
	if !resp.OK() {
		return c.connectionError(nil, resp, MsgConnectionFailed)
	}
	return nil
}

// DiscoverSchema asks the backend to inspect the source and return its schema.
// chunkSize is forwarded unmodified.
func (c *Client) DiscoverSchema(ctx context.Context, desc models.SourceDescriptor, chunkSize int) (*models.SchemaDescriptor, error) {
	resp, err := c.do(ctx, http.MethodPost, nil, sourceRequest{
		Type:      desc.WireType(),
		Config:    desc.WireConfig(),
		ChunkSize: &chunkSize,
	}, "datapuur", "db-schema")
	if err != nil {
		return nil, c.connectionError(err, nil, MsgSchemaFailed)
	}
	if !resp.OK() {
		return nil, c.connectionError(nil, resp, MsgSchemaFailed)
	}

	// Response format: { "schema": { "name": "...", "fields": [ ... ] } }
	var response struct {
		Schema *models.SchemaDescriptor `json:"schema"`
	}
	if err := json.Unmarshal(resp.Body, &response); err != nil {
		return nil, &apperrors.ConnectionError{Status: resp.StatusCode, Detail: MsgSchemaFailed, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if response.Schema == nil {
		return nil, &apperrors.ConnectionError{Status: resp.StatusCode, Detail: MsgSchemaFailed, Err: fmt.Errorf("response has no schema")}
	}

	c.logger.Debug("Got schema from backend",
		zap.String("schema", response.Schema.Name),
		zap.Int("fields", len(response.Schema.Fields)))

	return response.Schema, nil
}

// PreviewPage fetches one page of materialized records for a source.
func (c *Client) PreviewPage(ctx context.Context, sourceID string, page, pageSize int) (*models.PreviewPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))

	resp, err := c.do(ctx, http.MethodGet, query, nil, "datapuur", "preview", sourceID)
	if err != nil {
		return nil, c.fetchError(err, nil, MsgPreviewFailed)
	}
	if !resp.OK() {
		return nil, c.fetchError(nil, resp, MsgPreviewFailed)
	}

	// Response format: { "data": [ {...}, ... ], "total_records": 123 }
	var response struct {
		Data         []models.Record `json:"data"`
		TotalRecords json.Number     `json:"total_records"`
	}
	if err := jsonutil.Decode(resp.Body, &response); err != nil {
		return nil, &apperrors.FetchError{Status: resp.StatusCode, Detail: MsgPreviewFailed, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	total := int64(len(response.Data))
	if response.TotalRecords != "" {
		total, err = response.TotalRecords.Int64()
	}
	if err != nil || total < 0 {
		return nil, &apperrors.FetchError{Status: resp.StatusCode, Detail: MsgPreviewFailed, Err: fmt.Errorf("invalid total_records %q", response.TotalRecords)}
	}

	return &models.PreviewPage{
		PageNumber:   page,
		PageSize:     pageSize,
		Rows:         response.Data,
		TotalRecords: int(total),
	}, nil
}

// InjectionHistory fetches the authoritative ledger, in backend order.
func (c *Client) InjectionHistory(ctx context.Context) ([]models.HistoryEntry, error) {
	resp, err := c.do(ctx, http.MethodGet, nil, nil, "datapuur", "injection-history")
	if err != nil {
		return nil, c.fetchError(err, nil, MsgHistoryFailed)
	}
	if !resp.OK() {
		return nil, c.fetchError(nil, resp, MsgHistoryFailed)
	}

	var wire []historyEntryWire
	if err := jsonutil.Decode(resp.Body, &wire); err != nil {
		return nil, &apperrors.FetchError{Status: resp.StatusCode, Detail: MsgHistoryFailed, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	entries := make([]models.HistoryEntry, 0, len(wire))
	for i, w := range wire {
		entry, err := w.toModel()
		if err != nil {
			return nil, &apperrors.FetchError{Status: resp.StatusCode, Detail: MsgHistoryFailed, Err: fmt.Errorf("entry %d: %w", i, err)}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// do obtains a token and performs the request. A missing token fails before
// the transport is touched.
func (c *Client) do(ctx context.Context, method string, query url.Values, body any, pathSegments ...string) (*Response, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, err
	}

	resp, err := c.transport.Do(ctx, &Request{
		Method: method,
		Path:   pathSegments,
		Query:  query,
		Body:   body,
		Token:  token,
	})
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		c.logger.Warn("Backend returned error",
			zap.String("path", strings.Join(pathSegments, "/")),
			zap.Int("status", resp.StatusCode),
			zap.String("body", logging.SanitizeDetail(string(resp.Body))))
	}
	return resp, nil
}

func (c *Client) connectionError(err error, resp *Response, fallback string) error {
	if err != nil {
		if isUnauthenticated(err) {
			return err
		}
		c.logger.Error("Backend request failed", zap.String("error", logging.SanitizeError(err)))
		return &apperrors.ConnectionError{Detail: fallback, Err: err}
	}
	return &apperrors.ConnectionError{Status: resp.StatusCode, Detail: DetailMessage(resp.Body, fallback)}
}

func (c *Client) fetchError(err error, resp *Response, fallback string) error {
	if err != nil {
		if isUnauthenticated(err) {
			return err
		}
		c.logger.Error("Backend request failed", zap.String("error", logging.SanitizeError(err)))
		return &apperrors.FetchError{Detail: fallback, Err: err}
	}
	return &apperrors.FetchError{Status: resp.StatusCode, Detail: DetailMessage(resp.Body, fallback)}
}

func isUnauthenticated(err error) bool {
	return errors.Is(err, apperrors.ErrUnauthenticated)
}

// DetailMessage extracts the backend's "detail" message from an error body.
// FastAPI-style validation details (a list of {"msg": ...}) are joined with "; ".
// Unparsable bodies yield fallback.
func DetailMessage(body []byte, fallback string) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return fallback
	}

	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
		return fallback
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return fallback
}

// historyEntryWire accepts the timestamp layouts the backend has been seen to
// emit and converts to models.HistoryEntry.
type historyEntryWire struct {
	ID         json.RawMessage          `json:"id"`
	Type       models.SourceKind        `json:"type"`
	Name       string                   `json:"name"`
	Connection *string                  `json:"connection"`
	Timestamp  string                   `json:"timestamp"`
	Status     models.IngestionStatus   `json:"status"`
	Records    *json.Number             `json:"records"`
	Error      *string                  `json:"error"`
	Schema     *models.SchemaDescriptor `json:"schema"`
	User       *string                  `json:"user"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func (w historyEntryWire) toModel() (models.HistoryEntry, error) {
	id := jsonutil.FlexibleStringValue(w.ID)
	if id == "" {
		return models.HistoryEntry{}, fmt.Errorf("missing id")
	}

	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return models.HistoryEntry{}, err
	}

	entry := models.HistoryEntry{
		ID:           id,
		Kind:         w.Type,
		Name:         w.Name,
		Connection:   w.Connection,
		Timestamp:    ts,
		Status:       w.Status,
		ErrorMessage: w.Error,
		Schema:       w.Schema,
		User:         w.User,
	}
	if w.Records != nil {
		n, err := w.Records.Int64()
		if err != nil {
			return models.HistoryEntry{}, fmt.Errorf("invalid records %q", *w.Records)
		}
		entry.RecordCount = &n
	}
	return entry, nil
}

package cli

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturedRequest holds details captured from an incoming HTTP request.
type capturedRequest struct {
	Method  string
	Path    string
	Query   string
	Headers http.Header
	Body    string
}

// requestRecorder is a thread-safe recorder for HTTP requests received by httptest servers.
type requestRecorder struct {
	mu       sync.Mutex
	requests []capturedRequest
}

func (r *requestRecorder) record(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	body, _ := io.ReadAll(req.Body)
	defer func() { _ = req.Body.Close() }()

	r.requests = append(r.requests, capturedRequest{
		Method:  req.Method,
		Path:    req.URL.Path,
		Query:   req.URL.RawQuery,
		Headers: req.Header.Clone(),
		Body:    string(body),
	})
}

func (r *requestRecorder) last() capturedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		return capturedRequest{}
	}
	return r.requests[len(r.requests)-1]
}

func (r *requestRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// fakeAPI serves the ingestion endpoints with canned responses.
func fakeAPI(rec *requestRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/api/datapuur/test-connection":
			_, _ = w.Write([]byte(`{"success": true}`))
		case r.URL.Path == "/api/datapuur/db-schema":
			_, _ = w.Write([]byte(`{"schema": {"name": "orders", "fields": [{"name": "id", "type": "integer"}, {"name": "name", "type": "string"}]}}`))
		case strings.HasPrefix(r.URL.Path, "/api/datapuur/preview/"):
			page := r.URL.Query().Get("page")
			_, _ = w.Write([]byte(`{"data": [{"id": ` + page + `, "name": "a,b"}], "total_records": 3}`))
		case r.URL.Path == "/api/datapuur/injection-history":
			_, _ = w.Write([]byte(`[{"id": "h1", "type": "file", "name": "upload.csv", "timestamp": "2024-03-01T10:00:00Z", "status": "success", "records": 3}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail": "Not Found"}`))
		}
	}
}

// newTestRootCmd creates a fresh root command pointed at the given httptest server.
func newTestRootCmd(t *testing.T, srv *httptest.Server, args ...string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	t.Setenv("INGEST_TOKEN", "")
	t.Setenv("INGEST_TOKEN_FILE", "")
	t.Setenv("INGEST_DB_PASSWORD", "secret")

	rootCmd := newRootCmd()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{
		"--config", writeFile(t, "config.yaml", testConfigYAML),
		"--api-url", srv.URL + "/api",
		"--token", "test-token",
	}, args...))
	return rootCmd, &out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const testConfigYAML = `
log:
  level: error
`

const testDescriptorYAML = `
type: postgresql
config:
  host: db.internal
  database: sales
  username: reader
  table: orders
`

const testSchemaYAML = `
name: orders
fields:
  - name: id
    type: integer
  - name: name
    type: string
`

func TestEnginesCmd(t *testing.T) {
	rootCmd := newRootCmd()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"engines"})

	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "mysql")
	assert.Contains(t, out.String(), "3306")
	assert.Contains(t, out.String(), "postgresql")
	assert.Contains(t, out.String(), "mssql")
}

func TestTestCmd(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(fakeAPI(rec))
	defer srv.Close()

	desc := writeFile(t, "db.yaml", testDescriptorYAML)
	rootCmd, out := newTestRootCmd(t, srv, "test", "--descriptor", desc)
	require.NoError(t, rootCmd.Execute())

	req := rec.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/datapuur/test-connection", req.Path)
	assert.Equal(t, "Bearer test-token", req.Headers.Get("Authorization"))
	assert.JSONEq(t, `{"type": "postgresql", "config": {"host": "db.internal", "port": "5432", "database": "sales", "username": "reader", "password": "secret", "table": "orders"}}`, req.Body)
	assert.Contains(t, out.String(), "Connection successful!")
}

func TestTestCmd_ValidationFailsBeforeNetwork(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(fakeAPI(rec))
	defer srv.Close()

	desc := writeFile(t, "db.yaml", "type: mysql\nconfig:\n  host: h\n  username: u\n  table: t\n")
	rootCmd, _ := newTestRootCmd(t, srv, "test", "--descriptor", desc)
	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Equal(t, "Database name is required", err.Error())
	assert.Equal(t, 0, rec.count())
}

func TestSchemaCmd_JSON(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(fakeAPI(rec))
	defer srv.Close()

	desc := writeFile(t, "db.yaml", testDescriptorYAML)
	rootCmd, out := newTestRootCmd(t, srv, "-o", "json", "schema", "--descriptor", desc, "--chunk-size", "500")
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, rec.last().Body, `"chunkSize":500`)
	assert.JSONEq(t, `{"name": "orders", "fields": [{"name": "id", "type": "integer"}, {"name": "name", "type": "string"}]}`, out.String())
}

func TestPreviewCmd(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(fakeAPI(rec))
	defer srv.Close()

	schema := writeFile(t, "schema.yaml", testSchemaYAML)
	rootCmd, out := newTestRootCmd(t, srv, "preview", "src-1", "--schema", schema)
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, "/api/datapuur/preview/src-1", rec.last().Path)
	assert.Equal(t, "page=1&page_size=10", rec.last().Query)
	assert.Contains(t, out.String(), "ID")
	assert.Contains(t, out.String(), "a,b")
	assert.Contains(t, out.String(), "Page 1 of 1 (3 records)")
}

func TestExportCmd(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(fakeAPI(rec))
	defer srv.Close()

	schema := writeFile(t, "schema.yaml", testSchemaYAML)
	dir := t.TempDir()
	rootCmd, out := newTestRootCmd(t, srv, "export", "src-1", "--schema", schema, "--out", dir)
	require.NoError(t, rootCmd.Execute())

	matches, err := filepath.Glob(filepath.Join(dir, "data_preview_*.csv"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	content, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,\"a,b\"", string(content))
	assert.Contains(t, out.String(), "Exported page 1")
}

func TestHistoryCmd(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(fakeAPI(rec))
	defer srv.Close()

	rootCmd, out := newTestRootCmd(t, srv, "history")
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "upload.csv")
	assert.Contains(t, out.String(), "3 records")
}

func TestHistoryCmd_Unauthenticated(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(fakeAPI(rec))
	defer srv.Close()

	t.Setenv("INGEST_TOKEN", "")
	t.Setenv("INGEST_TOKEN_FILE", "")
	rootCmd := newRootCmd()
	rootCmd.SetOut(io.Discard)
	rootCmd.SetArgs([]string{
		"--config", writeFile(t, "config.yaml", testConfigYAML),
		"--api-url", srv.URL + "/api",
		"history",
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no authentication token found")
	assert.Equal(t, 0, rec.count())
}

func TestShellCmd(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(fakeAPI(rec))
	defer srv.Close()

	schema := writeFile(t, "schema.yaml", testSchemaYAML)
	desc := writeFile(t, "db.yaml", testDescriptorYAML)

	rootCmd, out := newTestRootCmd(t, srv, "shell")
	rootCmd.SetIn(strings.NewReader(strings.Join([]string{
		"use " + desc,
		"test",
		"save Sales",
		"connections",
		"schema",
		"select src-1 " + schema,
		"next",
		"export -",
		"bogus",
		"quit",
	}, "\n")))
	require.NoError(t, rootCmd.Execute())

	output := out.String()
	assert.Contains(t, output, "Using orders")
	assert.Contains(t, output, "reader@db.internal:5432/sales password [REDACTED]")
	assert.NotContains(t, output, "secret")
	assert.Contains(t, output, "Connection successful!")
	assert.Contains(t, output, `Connection "Sales" saved successfully!`)
	assert.Contains(t, output, "Sales")
	assert.Contains(t, output, "Schema fetched successfully!")
	assert.Contains(t, output, "id,name\n1,\"a,b\"")
	assert.Contains(t, output, `unknown command "bogus"`)
}

func TestRootCmd_RejectsOutputFormat(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(fakeAPI(rec))
	defer srv.Close()

	rootCmd, _ := newTestRootCmd(t, srv, "-o", "yaml", "history")
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestRootCmd_RejectsAPIURLScheme(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(fakeAPI(rec))
	defer srv.Close()

	rootCmd, _ := newTestRootCmd(t, srv, "--api-url", "ftp://example.com", "history")
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_url must use http or https")
	assert.Equal(t, 0, rec.count())
}

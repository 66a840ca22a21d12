package serve

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"

	"github.com/skosovsky/funcall"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := funcall.NewRegistry()
	require.NoError(t, reg.RegisterFunc("add", func(a, b float64) float64 { return a + b },
		funcall.WithDoc(`Add two numbers.

Args:
    a (float): First number.
    b (float): Second number.
`)))
	require.NoError(t, reg.RegisterFunc("ping", func() string { return "pong" }))

	srv := httptest.NewServer(NewServer(reg).Handler())
	t.Cleanup(func() {
		srv.Close()
		// Keep-alive client connections would trip the leak detector.
		http.DefaultTransport.(*http.Transport).CloseIdleConnections()
	})
	return srv
}

func TestServer_Call(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Post(srv.URL+"/add", "application/json",
		strings.NewReader(`{"a": 1, "b": 2}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var out float64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 3.0, out)
}

func TestServer_GetUsesEmptyArguments(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "pong", out)
}

func TestServer_ErrorsAreBadRequests(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"a": `},
		{"schema mismatch", `{"a": "one", "b": 2}`},
		{"missing argument", `{"a": 1, "b": 2, "c": 3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/add", "application/json",
				strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var out map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.NotEmpty(t, out["Error"])
		})
	}
}

func TestServer_UnknownRoute(t *testing.T) {
	srv := testServer(t)
	resp, err := http.Get(srv.URL + "/unknown")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_OpenAPI(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/openapi.yaml")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/yaml", resp.Header.Get("Content-Type"))

	var spec map[string]any
	require.NoError(t, yaml.NewDecoder(resp.Body).Decode(&spec))
	assert.Equal(t, "3.0.1", spec["openapi"])

	paths, ok := spec["paths"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, paths, "/add")
	require.Contains(t, paths, "/ping")

	post := paths["/add"].(map[string]any)["post"].(map[string]any)
	assert.Equal(t, "add", post["operationId"])
	assert.Equal(t, "Add two numbers.", post["summary"])
}

func TestServer_Manifest(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/.well-known/ai-plugin.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var m Manifest
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	assert.Equal(t, "v1", m.SchemaVersion)
	assert.Contains(t, m.API["url"], "/openapi.yaml")
}

func TestServer_Index(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "/add")
	assert.Contains(t, string(body), "/openapi.yaml")
}

func TestBuildOpenAPI_Defaults(t *testing.T) {
	docs := []*funcall.Document{
		{Name: "f", Parameters: map[string]any{"type": "object"}},
	}
	spec := BuildOpenAPI(docs, "T", "")
	info := spec["info"].(map[string]any)
	assert.Contains(t, info["description"], "f")

	post := spec["paths"].(map[string]any)["/f"].(map[string]any)["post"].(map[string]any)
	assert.Equal(t, "f function", post["summary"])
	responses := post["responses"].(map[string]any)
	assert.Equal(t, map[string]any{"description": "OK"}, responses["200"].(map[string]any))
}

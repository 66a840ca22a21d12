// Package serve exposes a funcall.Registry over HTTP for local plugin
// development: one POST route per registered callable, the OpenAPI document
// under /openapi.yaml, and the plugin manifest under
// /.well-known/ai-plugin.json.
package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/skosovsky/funcall"
)

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address. Defaults to ":3333".
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithManifest replaces the default plugin manifest.
func WithManifest(m Manifest) Option {
	return func(s *Server) { s.manifest = &m }
}

// WithTitle sets the OpenAPI document title and description.
func WithTitle(title, description string) Option {
	return func(s *Server) { s.title, s.description = title, description }
}

// Server serves a registry's callables over HTTP. Each callable is mounted
// at /<name> accepting POST with a JSON object body, or GET for callables
// that need no arguments.
type Server struct {
	registry    *funcall.Registry
	addr        string
	logger      *slog.Logger
	manifest    *Manifest
	title       string
	description string
}

// NewServer creates a Server over reg.
func NewServer(reg *funcall.Registry, opts ...Option) *Server {
	s := &Server{
		registry: reg,
		addr:     ":3333",
		title:    "Function Plugin",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Handler builds the HTTP handler for the current registry contents. Routes
// are fixed at build time; rebuild after registering more callables.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	for _, name := range s.registry.Names() {
		mux.HandleFunc("/"+name, s.callHandler(name))
	}
	mux.HandleFunc("GET /openapi.yaml", s.openapiHandler)
	mux.HandleFunc("GET /.well-known/ai-plugin.json", s.manifestHandler)
	mux.HandleFunc("GET /{$}", s.indexHandler)

	return s.withRequestLog(mux)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("function server listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) callHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args := []byte("{}")
		if r.Method == http.MethodPost {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, err)
				return
			}
			if len(body) > 0 {
				args = body
			}
		}

		result, err := s.registry.Call(r.Context(), name, args)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, result)
	}
}

// writeError reports any pipeline failure as a 400 with the error text, so
// the calling model can read it and self-correct.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"Error": err.Error()})
}

func (s *Server) openapiHandler(w http.ResponseWriter, _ *http.Request) {
	spec := BuildOpenAPI(s.registry.Schemas(), s.title, s.description)
	out, err := yaml.Marshal(spec)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/yaml")
	_, _ = w.Write(out)
}

func (s *Server) manifestHandler(w http.ResponseWriter, r *http.Request) {
	m := s.manifest
	if m == nil {
		def := DefaultManifest("http://" + r.Host)
		m = &def
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m)
}

var indexTemplate = template.Must(template.New("index").Parse(`<h1>Available Routes:</h1>
<ul>
{{range .}}    <li><a href="{{.}}">{{.}}</a></li>
{{end}}</ul>
`))

func (s *Server) indexHandler(w http.ResponseWriter, _ *http.Request) {
	routes := []string{"/openapi.yaml", "/.well-known/ai-plugin.json"}
	for _, name := range s.registry.Names() {
		routes = append(routes, "/"+name)
	}
	sort.Strings(routes)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, routes); err != nil {
		s.logger.Error("rendering index", "error", err)
	}
}

// withRequestLog tags every request with an ID and logs method, path,
// status and duration.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			"id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Manifest is the plugin manifest served from /.well-known/ai-plugin.json.
type Manifest struct {
	SchemaVersion       string         `json:"schema_version"`
	NameForHuman        string         `json:"name_for_human"`
	NameForModel        string         `json:"name_for_model"`
	DescriptionForHuman string         `json:"description_for_human"`
	DescriptionForModel string         `json:"description_for_model"`
	Auth                map[string]any `json:"auth"`
	API                 map[string]any `json:"api"`
	LogoURL             string         `json:"logo_url,omitempty"`
	ContactEmail        string         `json:"contact_email,omitempty"`
	LegalInfoURL        string         `json:"legal_info_url,omitempty"`
}

// DefaultManifest builds a development manifest pointing at baseURL.
func DefaultManifest(baseURL string) Manifest {
	return Manifest{
		SchemaVersion:       "v1",
		NameForHuman:        "Example Plugin",
		NameForModel:        "testing_plugin",
		DescriptionForHuman: "Example plugin.",
		DescriptionForModel: "Plugin under development. Report anything that looks wrong in as much detail as possible.",
		Auth:                map[string]any{"type": "none"},
		API: map[string]any{
			"type": "openapi",
			"url":  fmt.Sprintf("%s/openapi.yaml", baseURL),
		},
		LogoURL:      baseURL + "/logo.png",
		ContactEmail: "legal@example.com",
		LegalInfoURL: "http://example.com/legal",
	}
}

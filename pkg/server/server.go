// Package server exposes the skill registry over an HTTP JSON API so other
// processes can list, inspect and execute skills.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/jingkaihe/skillet/pkg/history"
	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/presenter"
	"github.com/jingkaihe/skillet/pkg/skills"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/jingkaihe/skillet/pkg/version"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxRequestBody = 4 << 20

// History is the read side of the execution history
type History interface {
	List(ctx context.Context, opts history.ListOptions) ([]skilltypes.ExecutionRecord, error)
	Summary(ctx context.Context) ([]history.SkillSummary, error)
}

// Server serves the skill API
type Server struct {
	router   *mux.Router
	registry *skills.Registry
	history  History
	config   *Config
	server   *http.Server
}

// Config holds the listen address of the API server
type Config struct {
	Host string
	Port int
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Address returns host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// New creates an API server. hist may be nil when history is disabled.
func New(config *Config, registry *skills.Registry, hist History) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}
	if registry == nil {
		return nil, errors.New("registry is required")
	}

	s := &Server{
		router:   mux.NewRouter(),
		registry: registry,
		history:  hist,
		config:   config,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/version", s.handleVersion).Methods("GET")
	api.HandleFunc("/skills", s.handleListSkills).Methods("GET")
	api.HandleFunc("/skills/{name}", s.handleGetSkill).Methods("GET")
	api.HandleFunc("/skills/{name}/schema", s.handleGetSchema).Methods("GET")
	api.HandleFunc("/skills/{name}/execute", s.handleExecute).Methods("POST")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/cache", s.handleClearCache).Methods("DELETE")
	api.HandleFunc("/discover", s.handleDiscover).Methods("POST")
	api.HandleFunc("/executions", s.handleListExecutions).Methods("GET")
	api.HandleFunc("/executions/summary", s.handleExecutionSummary).Methods("GET")

	s.router.Use(s.loggingMiddleware)
}

// Handler returns the instrumented HTTP handler. CORS wraps the router so
// preflight requests are answered for every route.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.corsMiddleware(s.router), "skillet.api")
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    time.Since(start),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// SkillSummary is the list view of a skill
type SkillSummary struct {
	Name        string                   `json:"name"`
	Version     string                   `json:"version"`
	Description string                   `json:"description"`
	Category    string                   `json:"category,omitempty"`
	Tags        []string                 `json:"tags,omitempty"`
	Type        skilltypes.ExecutionKind `json:"type"`
	Origin      skilltypes.Origin        `json:"origin,omitempty"`
}

func summarize(skill *skilltypes.Skill) SkillSummary {
	return SkillSummary{
		Name:        skill.Name,
		Version:     skill.Version,
		Description: skill.Description,
		Category:    skill.Category,
		Tags:        skill.Tags,
		Type:        skill.ExecutionKind(),
		Origin:      skill.Source.Origin,
	}
}

// ExecuteRequest is the body of POST /api/skills/{name}/execute
type ExecuteRequest struct {
	Inputs  skilltypes.Values `json:"inputs"`
	Context skilltypes.Values `json:"context,omitempty"`
}

// ExecuteResponse is a successful execution
type ExecuteResponse struct {
	Success  bool              `json:"success"`
	Skill    string            `json:"skill"`
	Outputs  skilltypes.Values `json:"outputs"`
	Duration string            `json:"duration"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSONResponse(w, map[string]any{"status": "ok", "skills": len(s.registry.Names())})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	s.writeJSONResponse(w, version.Get())
}

// handleListSkills handles GET /api/skills?q=&category=&tag=&type=
func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filters := skills.Filters{
		Category: query.Get("category"),
		Tags:     query["tag"],
		Type:     skilltypes.ExecutionKind(query.Get("type")),
	}
	if filters.Type != "" && !filters.Type.IsValid() {
		s.writeErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("unknown execution type %q", filters.Type), nil)
		return
	}

	found := s.registry.Search(query.Get("q"), filters)
	summaries := make([]SkillSummary, 0, len(found))
	for _, skill := range found {
		summaries = append(summaries, summarize(skill))
	}
	s.writeJSONResponse(w, map[string]any{
		"skills": summaries,
		"total":  len(summaries),
	})
}

func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	skill, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSONResponse(w, skill)
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	skill, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSONResponse(w, map[string]any{
		"inputs":  skills.InputSchema(skill),
		"outputs": skills.OutputSchema(skill),
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*skilltypes.Skill, bool) {
	name := mux.Vars(r)["name"]
	skill, ok := s.registry.Get(name)
	if !ok {
		s.writeErrorResponse(w, r, http.StatusNotFound, fmt.Sprintf("skill %q not found", name), nil)
		return nil, false
	}
	return skill, true
}

// handleExecute handles POST /api/skills/{name}/execute
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req ExecuteRequest
	if r.ContentLength != 0 {
		decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err := decoder.Decode(&req); err != nil {
			s.writeErrorResponse(w, r, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	start := time.Now()
	outputs, err := s.registry.Execute(r.Context(), name, req.Inputs, req.Context)
	if err != nil {
		s.writeExecutionError(w, r, err)
		return
	}

	s.writeJSONResponse(w, ExecuteResponse{
		Success:  true,
		Skill:    name,
		Outputs:  outputs,
		Duration: time.Since(start).String(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, s.registry.Stats(r.Context()))
}

func (s *Server) handleClearCache(w http.ResponseWriter, _ *http.Request) {
	s.registry.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

// DiscoverResponse reports a re-discovery triggered over the API
type DiscoverResponse struct {
	Scanned    int               `json:"scanned"`
	Valid      int               `json:"valid"`
	Skipped    map[string]string `json:"skipped,omitempty"`
	Overridden []string          `json:"overridden,omitempty"`
	Total      int               `json:"total"`
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	report, err := s.registry.Discover(r.Context())
	if err != nil {
		s.writeErrorResponse(w, r, http.StatusInternalServerError, "failed to discover skills", err)
		return
	}

	resp := DiscoverResponse{
		Scanned:    report.Scanned,
		Valid:      report.Valid,
		Overridden: report.Overridden,
		Total:      len(s.registry.Names()),
	}
	if len(report.Skipped) > 0 {
		resp.Skipped = make(map[string]string, len(report.Skipped))
		for _, skipped := range report.Skipped {
			resp.Skipped[skipped.Path] = skipped.Err.Error()
		}
	}
	s.writeJSONResponse(w, resp)
}

// handleListExecutions handles GET /api/executions?skill=&since=&limit=
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeErrorResponse(w, r, http.StatusNotFound, "execution history is disabled", nil)
		return
	}

	query := r.URL.Query()
	opts := history.ListOptions{Skill: query.Get("skill")}
	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			s.writeErrorResponse(w, r, http.StatusBadRequest, "limit must be a non-negative integer", err)
			return
		}
		opts.Limit = limit
	}
	if sinceStr := query.Get("since"); sinceStr != "" {
		since, err := parseSince(sinceStr, time.Now())
		if err != nil {
			s.writeErrorResponse(w, r, http.StatusBadRequest, "since must be RFC3339 or a duration such as 24h", err)
			return
		}
		opts.Since = since
	}

	records, err := s.history.List(r.Context(), opts)
	if err != nil {
		s.writeErrorResponse(w, r, http.StatusInternalServerError, "failed to list executions", err)
		return
	}
	s.writeJSONResponse(w, map[string]any{"executions": records, "total": len(records)})
}

func (s *Server) handleExecutionSummary(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeErrorResponse(w, r, http.StatusNotFound, "execution history is disabled", nil)
		return
	}
	summaries, err := s.history.Summary(r.Context())
	if err != nil {
		s.writeErrorResponse(w, r, http.StatusInternalServerError, "failed to summarise executions", err)
		return
	}
	s.writeJSONResponse(w, map[string]any{"skills": summaries})
}

// parseSince accepts an RFC3339 timestamp or a duration relative to now
func parseSince(value string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(value); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid since value %q", value)
	}
	return t, nil
}

// StatusFor maps engine errors to HTTP status codes
func StatusFor(err error) (int, string) {
	var (
		validationErr *skilltypes.ValidationError
		notFoundErr   *skilltypes.NotFoundError
		missingErr    *skilltypes.MissingDependencyError
		cycleErr      *skilltypes.CycleDetectedError
		mismatchErr   *skilltypes.OutputMismatchError
		executionErr  *skilltypes.ExecutionError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "validation_error"
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &missingErr):
		return http.StatusFailedDependency, "missing_dependency"
	case errors.As(err, &cycleErr):
		return http.StatusLoopDetected, "cycle_detected"
	case errors.As(err, &mismatchErr):
		return http.StatusBadGateway, "output_mismatch"
	case errors.As(err, &executionErr):
		return http.StatusBadGateway, "execution_error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) writeExecutionError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.G(r.Context()).WithError(err).WithField("kind", kind).Warn("skill execution failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response := map[string]any{
		"error":   err.Error(),
		"kind":    kind,
		"status":  status,
		"success": false,
	}
	if encErr := json.NewEncoder(w).Encode(response); encErr != nil {
		logger.G(r.Context()).WithError(encErr).Error("failed to encode error response")
	}
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode JSON response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	if err != nil {
		logger.G(r.Context()).WithError(err).Error(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error":   message,
		"status":  statusCode,
		"success": false,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(r.Context()).WithError(err).Error("failed to encode error response")
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	presenter.Info(fmt.Sprintf("Starting skill API on http://%s", s.config.Address()))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "skill API server failed")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Stop closes the listener immediately
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

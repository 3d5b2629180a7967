package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"digitalwall/internal/config"
	"digitalwall/internal/domain"
	"digitalwall/internal/priority"
	"digitalwall/internal/usecase"
)

// Server is the ingestion boundary: it accepts share requests, builds
// ContentItems, and hands them to the pipeline.
type Server struct {
	pipeline    *usecase.Pipeline
	prioritizer *priority.Prioritizer
	cfg         config.PipelineConfig
	addr        string
	logger      *slog.Logger
}

// New creates the API server.
func New(pipeline *usecase.Pipeline, prioritizer *priority.Prioritizer, cfg config.Config, logger *slog.Logger) *Server {
	return &Server{
		pipeline:    pipeline,
		prioritizer: prioritizer,
		cfg:         cfg.Pipeline,
		addr:        cfg.Server.Addr,
		logger:      logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/share", s.share)
	mux.HandleFunc("POST /api/v1/share/batch", s.shareBatch)
	mux.HandleFunc("GET /healthz", s.health)
	return mux
}

// Run starts the HTTP listener and blocks until it fails.
func (s *Server) Run() error {
	s.logger.Info("starting api server", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ShareRequest is one incoming share.
type ShareRequest struct {
	UserID  string            `json:"user_id,omitempty"`
	Type    string            `json:"type,omitempty"`
	Content string            `json:"content"`
	Context map[string]string `json:"context,omitempty"`
	Files   []FilePayload     `json:"files,omitempty"`
}

// FilePayload carries an uploaded file inline.
type FilePayload struct {
	Name string `json:"name"`
	MIME string `json:"mime"`
	Data []byte `json:"data"`
}

// BatchShareRequest wraps many shares from one user.
type BatchShareRequest struct {
	UserID string         `json:"user_id,omitempty"`
	Items  []ShareRequest `json:"items"`
}

// ItemResponse is the terminal state reported back to the caller.
type ItemResponse struct {
	ID       string         `json:"id"`
	Stage    string         `json:"stage"`
	Warnings []string       `json:"warnings,omitempty"`
	Errors   []string       `json:"errors,omitempty"`
	Enriched map[string]any `json:"enriched,omitempty"`
}

// BatchResponse aggregates one batch run.
type BatchResponse struct {
	Items     []ItemResponse `json:"items"`
	Completed int            `json:"completed"`
	Failed    int            `json:"failed"`
}

func (s *Server) share(w http.ResponseWriter, r *http.Request) {
	var req ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Content == "" && len(req.Files) == 0 {
		writeError(w, http.StatusBadRequest, "content or files required")
		return
	}

	item := s.pipeline.ProcessSingle(r.Context(), buildItem(req, req.UserID))

	status := http.StatusOK
	if item.Stage == domain.StageFailed {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, itemResponse(item))
}

// shareBatch prioritizes the batch before processing so quota-constrained
// users get their most valuable items analyzed first.
func (s *Server) shareBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "empty batch")
		return
	}

	items := make([]*domain.ContentItem, len(req.Items))
	for i, share := range req.Items {
		userID := share.UserID
		if userID == "" {
			userID = req.UserID
		}
		items[i] = buildItem(share, userID)
	}

	ordered := s.prioritizer.Prioritize(r.Context(), items, req.UserID)
	result := s.pipeline.ProcessBatch(r.Context(), ordered, s.cfg.MaxConcurrent)

	resp := BatchResponse{Completed: result.Completed, Failed: result.Failed}
	for _, item := range result.Items {
		resp.Items = append(resp.Items, itemResponse(item))
	}
	writeJSON(w, http.StatusOK, resp)
}

func buildItem(req ShareRequest, userID string) *domain.ContentItem {
	files := make([]domain.SharedFile, 0, len(req.Files))
	for _, f := range req.Files {
		files = append(files, domain.SharedFile{Name: f.Name, MIME: f.MIME, Data: f.Data})
	}

	return &domain.ContentItem{
		ID:             uuid.NewString(),
		UserID:         userID,
		ContentType:    domain.ContentType(req.Type),
		PrimaryContent: req.Content,
		Context:        req.Context,
		Files:          files,
		CreatedAt:      time.Now().UTC(),
		Stage:          domain.StageIngestion,
	}
}

func itemResponse(item *domain.ContentItem) ItemResponse {
	return ItemResponse{
		ID:       item.ID,
		Stage:    string(item.Stage),
		Warnings: item.Warnings,
		Errors:   item.Errors,
		Enriched: item.Enriched,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

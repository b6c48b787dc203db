// Package server exposes the review API: digest reads, feedback and
// flag submission, favorites, and operator cleanup.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"webscout/internal/config"
	"webscout/internal/domain"
	"webscout/internal/infrastructure/storage"
	"webscout/internal/ports"
	"webscout/internal/reputation"
)

// Deps wires the API handlers to the domain components.
type Deps struct {
	Config          config.ServerConfig
	Documents       ports.DocumentRepository
	Feedback        ports.FeedbackRepository
	Neighbors       ports.NeighborRepository
	Reputation      *reputation.Manager
	FeedbackOptions map[string][]string
	Logger          *slog.Logger
}

type Server struct {
	cfg        config.ServerConfig
	documents  ports.DocumentRepository
	feedback   ports.FeedbackRepository
	neighbors  ports.NeighborRepository
	reputation *reputation.Manager
	options    map[string][]string
	logger     *slog.Logger
	router     chi.Router
}

func New(deps Deps) *Server {
	s := &Server{
		cfg:        deps.Config,
		documents:  deps.Documents,
		feedback:   deps.Feedback,
		neighbors:  deps.Neighbors,
		reputation: deps.Reputation,
		options:    deps.FeedbackOptions,
		logger:     deps.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/digest", s.handleDigest)
	r.Get("/api/documents/{id}/related", s.handleRelated)
	r.Get("/api/feedback/options", s.handleFeedbackOptions)
	r.Post("/api/feedback", s.handleFeedback)
	r.Post("/api/flag", s.handleFlag)
	r.Post("/api/favorite", s.handleFavorite)
	r.Delete("/api/documents/low-value", s.handleDeleteLowValue)

	s.router = r
	return s
}

// Router exposes the handler tree for tests and for mounting.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type digestItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Topic       string     `json:"topic"`
	Summary     string     `json:"summary,omitempty"`
	Interest    *float64   `json:"interest_score"`
	Value       *float64   `json:"value_score"`
	Novelty     *float64   `json:"novelty_score"`
	HighValue   bool       `json:"high_value"`
	Favorite    bool       `json:"favorite"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.TopScored(r.Context(), s.cfg.DigestLimit)
	if err != nil {
		s.fail(w, "load digest", err)
		return
	}

	items := make([]digestItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, digestItem{
			ID:          d.ID,
			Title:       d.Title,
			URL:         d.URL,
			Topic:       d.Topic,
			Summary:     d.Summary,
			Interest:    d.InterestScore,
			Value:       d.ValueScore,
			Novelty:     d.NoveltyScore,
			HighValue:   d.HighValue,
			Favorite:    d.Favorite,
			PublishedAt: d.PublishedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": items})
}

type relatedItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Similarity float64 `json:"similarity"`
}

// handleRelated serves the similarity index for one document. Neighbors
// whose documents were since cleaned up are dropped from the response.
func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.documents.Get(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		s.fail(w, "load document", err)
		return
	}

	neighbors, err := s.neighbors.ListFor(r.Context(), id)
	if err != nil {
		s.fail(w, "load neighbors", err)
		return
	}

	items := make([]relatedItem, 0, len(neighbors))
	for _, n := range neighbors {
		doc, err := s.documents.Get(r.Context(), n.NeighborID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			s.fail(w, "load neighbor document", err)
			return
		}
		items = append(items, relatedItem{
			ID:         doc.ID,
			Title:      doc.Title,
			URL:        doc.URL,
			Similarity: n.Similarity,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"related": items})
}

// handleFeedbackOptions exposes the configured answer choices so the
// review UI never hardcodes them.
func (s *Server) handleFeedbackOptions(w http.ResponseWriter, _ *http.Request) {
	options := s.options
	if options == nil {
		options = map[string][]string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"options": options})
}

type feedbackRequest struct {
	DocumentID string `json:"document_id"`
	Type       string `json:"type"`
}

// handleFeedback appends a feedback event with the document's topic,
// source and current value score snapshotted at submission time.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fb := domain.FeedbackType(req.Type)
	if !fb.Valid() {
		writeError(w, http.StatusBadRequest, "unknown feedback type")
		return
	}

	doc, err := s.documents.Get(r.Context(), req.DocumentID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		s.fail(w, "load document", err)
		return
	}

	ev := domain.FeedbackEvent{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Type:       fb,
		Category:   doc.Topic,
		SourceURL:  doc.SourceURL,
		CreatedAt:  time.Now(),
	}
	// The event score is the document's value at submission time, not
	// anything the client sends. Unscored documents record zero.
	if doc.Scored() {
		ev.Score = *doc.ValueScore
	}
	if err := s.feedback.Insert(r.Context(), ev); err != nil {
		s.fail(w, "record feedback", err)
		return
	}
	if err := s.documents.SetFeedback(r.Context(), doc.ID, fb); err != nil {
		s.fail(w, "mark document feedback", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": ev.ID})
}

type flagRequest struct {
	DocumentID string `json:"document_id"`
	Reason     string `json:"reason"`
	Severity   int    `json:"severity"`
}

func (s *Server) handleFlag(w http.ResponseWriter, r *http.Request) {
	var req flagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}
	if req.Severity < 1 || req.Severity > 3 {
		writeError(w, http.StatusBadRequest, "severity must be 1..3")
		return
	}

	err := s.reputation.FlagDocument(r.Context(), req.DocumentID, req.Reason, req.Severity)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		s.fail(w, "flag document", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "flagged"})
}

type favoriteRequest struct {
	DocumentID string `json:"document_id"`
	Favorite   bool   `json:"favorite"`
}

func (s *Server) handleFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.documents.SetFavorite(r.Context(), req.DocumentID, req.Favorite)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		s.fail(w, "set favorite", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorite": req.Favorite})
}

type cleanupRequest struct {
	Threshold float64 `json:"threshold"`
	OlderDays int     `json:"older_than_days"`
}

// handleDeleteLowValue is the operator cleanup path. Nothing in the
// pipeline deletes documents on its own.
func (s *Server) handleDeleteLowValue(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Threshold <= 0 || req.OlderDays <= 0 {
		writeError(w, http.StatusBadRequest, "threshold and older_than_days must be positive")
		return
	}

	before := time.Now().AddDate(0, 0, -req.OlderDays)
	deleted, err := s.documents.DeleteLowValue(r.Context(), req.Threshold, before)
	if err != nil {
		s.fail(w, "delete low value", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (s *Server) fail(w http.ResponseWriter, action string, err error) {
	if s.logger != nil {
		s.logger.Error("request failed", "action", action, "error", err)
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

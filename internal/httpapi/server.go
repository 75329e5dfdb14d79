package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/grocerybabu/voice-core/internal/agent/catalog"
	"github.com/grocerybabu/voice-core/internal/agent/model"
	"github.com/grocerybabu/voice-core/internal/agent/session"
	"github.com/grocerybabu/voice-core/internal/agent/turns"
	"github.com/grocerybabu/voice-core/internal/observability"
	logx "github.com/grocerybabu/voice-core/pkg/logger"
)

type TurnService interface {
	Submit(callID, text string) (turns.Ticket, error)
	Get(id string) (turns.Ticket, bool)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID string, req model.ActionRequest) model.ActionResponse
}

type CartReader interface {
	Summarize(ctx context.Context, sessionID string) (model.CartSummary, error)
}

type Catalog interface {
	CategoryCounts() []model.CategoryCount
	Reload(ctx context.Context) error
	Items() []model.CatalogItem
	Source() string
	LoadedAt() time.Time
}

// Sessions reports live sessions for health output and ends finished calls.
type Sessions interface {
	Len() int
	End(ctx context.Context, id string) (bool, error)
}

type Deps struct {
	Turns      TurnService
	Dispatcher Dispatcher
	Carts      CartReader
	Catalog    Catalog
	Sessions   Sessions
	Metrics    *observability.Metrics
}

type Server struct {
	Deps
}

func New(d Deps) *Server {
	return &Server{Deps: d}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.Metrics.Handler().ServeHTTP(w, r)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/calls/{callID}/turns", s.handleSubmitTurn)
		r.Get("/turns/{ticketID}", s.handleGetTurn)
		r.Post("/calls/{callID}/actions", s.handleAction)
		r.Get("/calls/{callID}/cart", s.handleCart)
		r.Delete("/calls/{callID}", s.handleEndCall)
		r.Get("/catalog/categories", s.handleCategories)
		r.Post("/catalog/reload", s.handleReload)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.Catalog != nil {
		body["catalog_source"] = s.Catalog.Source()
		body["catalog_items"] = len(s.Catalog.Items())
		if at := s.Catalog.LoadedAt(); !at.IsZero() {
			body["catalog_loaded_at"] = at
		}
	}
	if s.Sessions != nil {
		body["active_sessions"] = s.Sessions.Len()
	}
	respondJSON(w, http.StatusOK, body)
}

type turnRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSubmitTurn(w http.ResponseWriter, r *http.Request) {
	if s.Turns == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "intent model not configured")
		return
	}
	callID := chi.URLParam(r, "callID")
	var req turnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	t, err := s.Turns.Submit(callID, req.Text)
	switch {
	case errors.Is(err, turns.ErrEmptyText), errors.Is(err, turns.ErrEmptyCallID):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	case errors.Is(err, turns.ErrClosed):
		respondError(w, http.StatusServiceUnavailable, "shutting_down", err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"ticket_id": t.ID, "status": t.Status})
}

func (s *Server) handleGetTurn(w http.ResponseWriter, r *http.Request) {
	if s.Turns == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "intent model not configured")
		return
	}
	t, ok := s.Turns.Get(chi.URLParam(r, "ticketID"))
	if !ok {
		respondError(w, http.StatusNotFound, "ticket_not_found", "no such ticket")
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	callID := strings.TrimSpace(chi.URLParam(r, "callID"))
	var req model.ActionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "action name is required")
		return
	}
	respondJSON(w, http.StatusOK, s.Dispatcher.Dispatch(r.Context(), callID, req))
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Carts.Summarize(r.Context(), chi.URLParam(r, "callID"))
	if errors.Is(err, session.ErrEmptySessionID) {
		respondError(w, http.StatusBadRequest, "invalid_call_id", err.Error())
		return
	}
	if err != nil {
		logx.Error().Err(err).Msg("cart summary failed")
		respondError(w, http.StatusInternalServerError, "internal", "could not read cart")
		return
	}
	respondJSON(w, http.StatusOK, sum)
}

// handleEndCall is sent by the telephony layer when the caller hangs up.
func (s *Server) handleEndCall(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")
	ended, err := s.Sessions.End(r.Context(), callID)
	if errors.Is(err, session.ErrEmptySessionID) {
		respondError(w, http.StatusBadRequest, "invalid_call_id", err.Error())
		return
	}
	if err != nil {
		logx.Warn().Err(err).Str("callID", callID).Msg("failed to clear call transcript")
	}
	respondJSON(w, http.StatusOK, map[string]any{"ended": ended})
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"categories": s.Catalog.CategoryCounts()})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	err := s.Catalog.Reload(r.Context())
	body := map[string]any{
		"source": s.Catalog.Source(),
		"items":  len(s.Catalog.Items()),
	}
	switch {
	case errors.Is(err, catalog.ErrStaleCatalog):
		body["error"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, body)
	case err != nil:
		logx.Error().Err(err).Msg("catalog reload failed")
		respondError(w, http.StatusInternalServerError, "reload_failed", err.Error())
	default:
		respondJSON(w, http.StatusOK, body)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

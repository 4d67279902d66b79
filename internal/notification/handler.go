package notification

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/auth"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/realtime"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/transport"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/transport/middleware"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/pkg/logger"
)

type FeedResponseDTO struct {
	Items       []Notification `json:"items"`
	UnreadCount int            `json:"unread_count"`
}

type UnreadCountDTO struct {
	UnreadCount int `json:"unread_count"`
}

// Handler serves the notification feed. One Feed instance lives per auth
// session, opened lazily on first request and torn down when the session
// signs out.
type Handler struct {
	*transport.BaseHandler
	repo  RepositoryAPI
	teams TeamLister
	hub   *realtime.Feed

	mu    sync.Mutex
	feeds map[string]*Feed

	unsubAuth func()
}

func NewHandler(repo RepositoryAPI, teams TeamLister, hub *realtime.Feed, provider *auth.Provider) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	h := &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		repo:        repo,
		teams:       teams,
		hub:         hub,
		feeds:       make(map[string]*Feed),
	}

	// Feeds follow session lifetime: sign-out closes the session's feed.
	h.unsubAuth = provider.OnAuthStateChange(func(evt auth.StateChange) {
		if evt.Type == auth.EventSignedOut && evt.Session != nil {
			h.closeFeed(evt.Session.ID)
		}
	})
	return h
}

// Close releases the auth listener and every open feed.
func (h *Handler) Close() {
	h.unsubAuth()

	h.mu.Lock()
	feeds := make([]*Feed, 0, len(h.feeds))
	for id, f := range h.feeds {
		feeds = append(feeds, f)
		delete(h.feeds, id)
	}
	h.mu.Unlock()

	for _, f := range feeds {
		f.Close()
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	feed, err := h.feedFor(r)
	if err != nil {
		h.Logger.Error("failed to open notification feed", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}

	h.WriteJSON(w, http.StatusOK, FeedResponseDTO{
		Items:       feed.Items(),
		UnreadCount: feed.UnreadCount(),
	})
}

func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	feed, err := h.feedFor(r)
	if err != nil {
		h.Logger.Error("failed to open notification feed", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}

	h.WriteJSON(w, http.StatusOK, UnreadCountDTO{UnreadCount: feed.UnreadCount()})
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, "notification id is required")
		return
	}

	feed, err := h.feedFor(r)
	if err != nil {
		h.Logger.Error("failed to open notification feed", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}

	feed.MarkRead(id)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	feed, err := h.feedFor(r)
	if err != nil {
		h.Logger.Error("failed to open notification feed", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}

	feed.MarkAllRead()
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	feed, err := h.feedFor(r)
	if err != nil {
		h.Logger.Error("failed to open notification feed", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}

	if err := feed.Refresh(r.Context()); err != nil {
		h.Logger.Error("notification refresh failed", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to refresh notifications")
		return
	}

	h.WriteJSON(w, http.StatusOK, FeedResponseDTO{
		Items:       feed.Items(),
		UnreadCount: feed.UnreadCount(),
	})
}

// Stream pushes scoped notification change events as server-sent events.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.WriteError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	scope, err := ScopeFor(r.Context(), identity.UserID, identity.Role, identity.Position, h.teams)
	if err != nil {
		h.Logger.Error("failed to resolve notification scope", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to open stream")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := h.hub.SubscribeChan(r.Context(), Table, realtime.Filter{})
	for evt := range events {
		n, ok := fromRow(evt.New)
		if !ok || !scope.contains(n.UserID) {
			continue
		}
		payload, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", evt.ID, evt.Action, payload)
		flusher.Flush()
	}
}

func (h *Handler) feedFor(r *http.Request) (*Feed, error) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return nil, fmt.Errorf("no identity in request context")
	}
	sessionID := middleware.SessionIDFromContext(r.Context())

	h.mu.Lock()
	feed, exists := h.feeds[sessionID]
	h.mu.Unlock()
	if exists {
		return feed, nil
	}

	scope, err := ScopeFor(r.Context(), identity.UserID, identity.Role, identity.Position, h.teams)
	if err != nil {
		return nil, err
	}

	feed, err = OpenFeed(r.Context(), scope, h.repo, h.hub, h.Logger)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	if existing, ok := h.feeds[sessionID]; ok {
		h.mu.Unlock()
		feed.Close()
		return existing, nil
	}
	h.feeds[sessionID] = feed
	h.mu.Unlock()
	return feed, nil
}

func (h *Handler) closeFeed(sessionID string) {
	h.mu.Lock()
	feed, ok := h.feeds[sessionID]
	if ok {
		delete(h.feeds, sessionID)
	}
	h.mu.Unlock()
	if ok {
		feed.Close()
	}
}

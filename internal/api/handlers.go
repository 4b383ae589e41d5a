// Package api provides HTTP handlers for the extraction engine, the
// route table and JSON payload shapes spec §6.1 names.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/riptide-dev/riptide/internal/app"
	"github.com/riptide-dev/riptide/internal/apperr"
	"github.com/riptide-dev/riptide/internal/chunk"
	"github.com/riptide-dev/riptide/internal/fingerprint"
	"github.com/riptide-dev/riptide/internal/logger"
	"github.com/riptide-dev/riptide/internal/router"
	"github.com/riptide-dev/riptide/internal/sessionstore"
)

// Handler holds the composed App and serves every route spec §6.1 names.
type Handler struct {
	App *app.App
}

// NewHandler wraps an already-wired App.
func NewHandler(a *app.App) *Handler {
	return &Handler{App: a}
}

// Routes registers every endpoint onto mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/content/chunk", h.handleChunk)
	mux.HandleFunc("/api/v1/render", h.handleRender)
	mux.HandleFunc("/api/v1/extract", h.handleExtract)
	mux.HandleFunc("/api/v1/sessions", h.handleSessionsCollection)
	mux.HandleFunc("/api/v1/sessions/", h.handleSessionsSubtree)
	mux.HandleFunc("/api/v1/memory/profile", h.handleMemoryProfile)
	mux.HandleFunc("/healthz", h.handleHealthz)
}

// --- chunking ---

type chunkRequestPayload struct {
	Content string `json:"content"`
	Mode    string `json:"mode"`

	ChunkSize         int  `json:"chunk_size"`
	OverlapSize       int  `json:"overlap_size"`
	MinChunkSize      int  `json:"min_chunk_size"`
	PreserveSentences bool `json:"preserve_sentences"`
	WindowSize        int  `json:"window_size"`
}

type chunkResponsePayload struct {
	Chunks []chunk.Chunk `json:"chunks"`
}

func (h *Handler) handleChunk(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var payload chunkRequestPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, apperr.InvalidRequest("invalid request payload: %v", err))
		return
	}

	params := chunk.DefaultParams()
	if payload.ChunkSize > 0 {
		params.ChunkSize = payload.ChunkSize
	}
	if payload.OverlapSize > 0 {
		params.OverlapSize = payload.OverlapSize
	}
	if payload.MinChunkSize > 0 {
		params.MinChunkSize = payload.MinChunkSize
	}
	params.WindowSize = payload.WindowSize
	params.PreserveSentences = payload.PreserveSentences

	mode := chunk.Mode(payload.Mode)
	if mode == "" {
		mode = chunk.ModeTopic
	}

	chunks, err := h.App.Chunk(app.ChunkRequest{Content: payload.Content, Mode: mode, Params: params})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chunkResponsePayload{Chunks: chunks})
}

// --- render ---

type renderRequestPayload struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id,omitempty"`
}

type renderResponsePayload struct {
	FinalURL string `json:"final_url"`
	HTML     string `json:"html"`
}

func (h *Handler) handleRender(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var payload renderRequestPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, apperr.InvalidRequest("invalid request payload: %v", err))
		return
	}
	if payload.URL == "" {
		writeError(w, apperr.InvalidRequest("url is required"))
		return
	}

	result, err := h.App.Render(r.Context(), app.RenderRequest{URL: payload.URL, SessionID: payload.SessionID})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, renderResponsePayload{FinalURL: result.FinalURL, HTML: result.HTML})
}

// --- extract ---

type extractRequestPayload struct {
	URL       string            `json:"url"`
	Mode      string            `json:"mode,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Options   map[string]string `json:"options,omitempty"`
}

type extractResponsePayload struct {
	Document  interface{} `json:"document"`
	CacheHit  bool        `json:"cache_hit"`
	UsedMode  string      `json:"used_mode,omitempty"`
	Fallbacks []string    `json:"fallbacks,omitempty"`
}

func (h *Handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var payload extractRequestPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, apperr.InvalidRequest("invalid request payload: %v", err))
		return
	}
	if payload.URL == "" {
		writeError(w, apperr.InvalidRequest("url is required"))
		return
	}

	mode := router.Mode(payload.Mode)
	if mode == "" {
		mode = router.ModeAdaptive
	}

	resp, err := h.App.Extract(r.Context(), app.ExtractRequest{
		URL:       payload.URL,
		Mode:      mode,
		SessionID: payload.SessionID,
		Options:   fingerprint.Options(payload.Options),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	fallbacks := make([]string, 0, len(resp.Fallbacks))
	for _, f := range resp.Fallbacks {
		fallbacks = append(fallbacks, string(f))
	}

	writeJSON(w, http.StatusOK, extractResponsePayload{
		Document:  resp.Doc,
		CacheHit:  resp.CacheHit,
		UsedMode:  string(resp.UsedMode),
		Fallbacks: fallbacks,
	})
}

// --- sessions ---

type sessionResponsePayload struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) handleSessionsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createSession(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type createSessionPayload struct {
	ID string `json:"id"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var payload createSessionPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, apperr.InvalidRequest("invalid request payload: %v", err))
		return
	}
	if payload.ID == "" {
		writeError(w, apperr.InvalidRequest("id is required"))
		return
	}

	s, err := h.App.CreateSession(payload.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponsePayload{ID: s.ID, CreatedAt: s.CreatedAt})
}

// handleSessionsSubtree dispatches every path under /api/v1/sessions/ by
// splitting the remaining segments, mirroring the teacher's single
// endpoint-per-concern handler shape generalized to a small router.
func (h *Handler) handleSessionsSubtree(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	segments := strings.Split(strings.Trim(trimmed, "/"), "/")
	if segments[0] == "" {
		http.NotFound(w, r)
		return
	}
	sessionID := segments[0]

	switch {
	case len(segments) == 1:
		h.sessionByID(w, r, sessionID)
	case len(segments) == 2 && segments[1] == "cookies":
		h.cookiesCollection(w, r, sessionID)
	case len(segments) == 3 && segments[1] == "cookies":
		h.cookiesByDomain(w, r, sessionID, segments[2])
	case len(segments) == 4 && segments[1] == "cookies":
		h.cookieByName(w, r, sessionID, segments[2], segments[3])
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) sessionByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		s, err := h.App.GetSession(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponsePayload{ID: s.ID, CreatedAt: s.CreatedAt})
	case http.MethodDelete:
		if err := h.App.DestroySession(id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type setCookiePayload struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
}

func (h *Handler) cookiesCollection(w http.ResponseWriter, r *http.Request, sessionID string) {
	if !requirePost(w, r) {
		return
	}

	var payload setCookiePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, apperr.InvalidRequest("invalid request payload: %v", err))
		return
	}
	if payload.Name == "" || payload.Domain == "" {
		writeError(w, apperr.InvalidRequest("name and domain are required"))
		return
	}

	cookie := sessionstore.Cookie{
		Name: payload.Name, Value: payload.Value, Domain: payload.Domain,
		Path: payload.Path, Expires: payload.Expires, Secure: payload.Secure, HTTPOnly: payload.HTTPOnly,
	}
	if err := h.App.SetCookie(sessionID, cookie); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) cookiesByDomain(w http.ResponseWriter, r *http.Request, sessionID, domain string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cookies, err := h.App.CookiesForDomain(sessionID, domain)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cookies)
}

func (h *Handler) cookieByName(w http.ResponseWriter, r *http.Request, sessionID, domain, name string) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.App.DeleteCookie(sessionID, domain, name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- memory profile & health ---

func (h *Handler) handleMemoryProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.App.MemoryProfile())
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339)); err != nil {
		logger.Warn("api: failed to write health check response", "error", err)
	}
}

// --- shared helpers ---

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST method is allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("api: failed to encode response", "error", err)
	}
}

type errorPayload struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(apperr.KindOf(err))
	logger.Warn("api: request failed", "error", err, "status", status)
	writeJSON(w, status, errorPayload{Error: err.Error()})
}

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"gwi.com/paper-assistant/internal/auth"
	"gwi.com/paper-assistant/internal/core"
	"gwi.com/paper-assistant/internal/ingest"
	"gwi.com/paper-assistant/internal/store"
)

// Multipart bodies above this size spill to temporary files.
const maxUploadMemory = 32 << 20

type APIHandler struct {
	sessions    *core.SessionManager
	chatService *core.ChatService
	jwtSecret   string
}

// NewAPIHandler builds the handler set. An empty jwtSecret leaves the API open.
func NewAPIHandler(sessions *core.SessionManager, cs *core.ChatService, jwtSecret string) *APIHandler {
	return &APIHandler{sessions: sessions, chatService: cs, jwtSecret: jwtSecret}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.jwtSecret == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if _, err := auth.ValidateJWT(h.jwtSecret, tokenString); err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *APIHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.List())
}

type SessionRequest struct {
	Name string `json:"name"`
}

func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if r.Body != http.NoBody && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	sess, err := h.sessions.Create(r.Context(), req.Name)
	if err != nil {
		log.Printf("Error creating session: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

type SessionDetailsResponse struct {
	*core.Session
	Messages []store.Message `json:"messages"`
}

func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, ok := h.sessions.Get(r.Context(), sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, core.ErrSessionNotFound.Error())
		return
	}
	messages, err := h.sessions.Messages(r.Context(), sessionID)
	if err != nil {
		log.Printf("Error getting messages of session %s: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "Failed to get session messages")
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}
	writeJSON(w, http.StatusOK, SessionDetailsResponse{Session: sess, Messages: messages})
}

func (h *APIHandler) RenameSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := h.sessions.Rename(r.Context(), sessionID, req.Name); err != nil {
		h.handleError(w, err, "Failed to rename session")
		return
	}
	sess, _ := h.sessions.Get(r.Context(), sessionID)
	writeJSON(w, http.StatusOK, sess)
}

func (h *APIHandler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.sessions.Delete(r.Context(), sessionID); err != nil {
		h.handleError(w, err, "Failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ListPapersHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	papers, err := h.chatService.Papers(r.Context(), sessionID)
	if err != nil {
		h.handleError(w, err, "Failed to list papers")
		return
	}
	if papers == nil {
		papers = []store.Paper{}
	}
	writeJSON(w, http.StatusOK, papers)
}

func (h *APIHandler) UploadPaperHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart body: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Form field 'file' is required")
		return
	}
	defer file.Close()

	result, err := h.chatService.UploadPaper(r.Context(), sessionID, file, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		h.handleError(w, err, "Failed to process upload")
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type ImportRequest struct {
	Source string `json:"source"`
}

func (h *APIHandler) ImportPaperHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.chatService.ImportPaper(r.Context(), sessionID, req.Source)
	if err != nil {
		h.handleError(w, err, "Failed to import paper")
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type PostMessageRequest struct {
	Content string `json:"content"`
	PaperID string `json:"paper_id,omitempty"`
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	modelMessage, err := h.chatService.PostMessage(r.Context(), sessionID, req.Content, req.PaperID)
	if err != nil {
		h.handleError(w, err, "Failed to post message")
		return
	}
	writeJSON(w, http.StatusOK, modelMessage)
}

// StreamMessageHandler answers as server-sent events: one "fragment" event per
// chunk of text, then "done", or "error" if the answer could not be finished.
func (h *APIHandler) StreamMessageHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	stream, err := h.chatService.PostMessageStream(r.Context(), sessionID, req.Content, req.PaperID)
	if err != nil {
		h.handleError(w, err, "Failed to post message")
		return
	}

	sse := newEventWriter(w)
	for fragment, err := range stream {
		if err != nil {
			log.Printf("Streaming answer for session %s failed: %v", sessionID, err)
			sse.send("error", map[string]string{"error": err.Error()})
			return
		}
		if !sse.send("fragment", map[string]string{"text": fragment}) {
			return
		}
	}
	sse.send("done", map[string]string{"status": "ok"})
}

// handleError maps service errors onto status codes. Unknown errors are logged
// and reported with fallback.
func (h *APIHandler) handleError(w http.ResponseWriter, err error, fallback string) {
	var ingestErr *core.IngestError
	switch {
	case errors.Is(err, core.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ingest.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ingest.ErrUnsupportedType), errors.Is(err, ingest.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, ingest.ErrUnsupportedSource), errors.Is(err, ingest.ErrEmptySource):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &ingestErr):
		log.Printf("Ingestion failed: %v", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("%s: %v", fallback, err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package http

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/yelpclone/directory/pkg/errors"
	"github.com/yelpclone/directory/pkg/httputil"
	"github.com/yelpclone/directory/pkg/logger"
	"github.com/yelpclone/directory/pkg/validator"

	"github.com/yelpclone/directory/internal/service"
)

// ChatResponse is the body of a successful POST /chat.
type ChatResponse struct {
	Response string `json:"response"`
}

// ChatErrorResponse is the body of a failed POST /chat.
type ChatErrorResponse struct {
	Error string `json:"error"`
}

// ChatHandler relays prompts for the caller's session.
type ChatHandler struct {
	service *service.ChatService
	logger  *slog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		service: svc,
		logger:  logger,
	}
}

// Send handles POST /chat
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req service.ChatInput
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	answer, err := h.service.Send(r.Context(), SessionID(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ChatResponse{Response: answer})
}

// History handles GET /chat/history
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.History(r.Context(), SessionID(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, history)
}

// Reset handles DELETE /chat/history
func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reset(r.Context(), SessionID(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeError renders the flat {"error": "..."} body the chat endpoint uses.
func (h *ChatHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteJSON(w, http.StatusBadRequest, ChatErrorResponse{Error: valErr.Error()})
		return
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal(err)
		err = appErr
	}
	// AppError messages never include the wrapped cause.
	status, msg := appErr.Status, appErr.Message

	if status >= http.StatusInternalServerError {
		l := logger.FromContext(r.Context())
		if l == slog.Default() {
			l = h.logger
		}
		l.ErrorContext(r.Context(), "chat request failed",
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}

	httputil.WriteJSON(w, status, ChatErrorResponse{Error: msg})
}

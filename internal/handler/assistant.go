package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/service"
)

// maxUploadMemory bounds the multipart form buffer for document uploads.
const maxUploadMemory = 4 << 20

// AssistantHandler serves the AI document scanner and chatbot endpoints.
type AssistantHandler struct {
	assistant service.AssistantService
	logger    *slog.Logger
}

func NewAssistantHandler(assistant service.AssistantService, logger *slog.Logger) *AssistantHandler {
	return &AssistantHandler{assistant: assistant, logger: logger}
}

func (h *AssistantHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/scans", requireUser(http.HandlerFunc(h.HandleUploadScan)))
	mux.Handle("GET /api/scans", requireUser(http.HandlerFunc(h.HandleListScans)))
	mux.Handle("GET /api/scans/{id}", requireUser(http.HandlerFunc(h.HandleGetScan)))
	mux.Handle("GET /api/scans/{id}/image", requireUser(http.HandlerFunc(h.HandleScanImage)))
	mux.Handle("GET /api/scans/{id}/thumbnail", requireUser(http.HandlerFunc(h.HandleScanThumbnail)))
	mux.Handle("POST /api/assistant/chat", requireUser(http.HandlerFunc(h.HandleChat)))
	mux.Handle("GET /api/assistant/history", requireUser(http.HandlerFunc(h.HandleChatHistory)))
	mux.Handle("DELETE /api/assistant/history", requireUser(http.HandlerFunc(h.HandleClearHistory)))
}

type scanResponse struct {
	ID           string             `json:"id"`
	Status       string             `json:"status"`
	ContentType  string             `json:"content_type"`
	Result       *domain.ScanResult `json:"result,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func toScanResponse(s *domain.DocumentScan) scanResponse {
	return scanResponse{
		ID:           s.ID.String(),
		Status:       string(s.Status),
		ContentType:  s.ContentType,
		Result:       s.Result,
		ErrorMessage: s.ErrorMessage,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// HandleUploadScan accepts a multipart document image and queues AI
// extraction. The response is the pending scan; clients poll for the result.
func (h *AssistantHandler) HandleUploadScan(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxScanImageSize+maxUploadMemory)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			ErrorResponse(w, r, h.logger, domain.Errorf(domain.ETOOLARGE, "scan.upload", "document exceeds the upload size limit"))
			return
		}
		ErrorResponse(w, r, h.logger, domain.Invalid("scan.upload", "expected a multipart upload"))
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("scan.upload", "missing document file"))
		return
	}
	defer file.Close()

	scan, err := h.assistant.UploadScan(r.Context(), file, header, user.CompanyID, user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toScanResponse(scan))
}

func (h *AssistantHandler) HandleListScans(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	limit, offset := listParams(r, 20, 100)
	scans, err := h.assistant.ListScans(r.Context(), user.CompanyID, int32(limit), int32(offset))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]scanResponse, 0, len(scans))
	for i := range scans {
		out = append(out, toScanResponse(&scans[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AssistantHandler) HandleGetScan(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	scan, err := h.assistant.GetScan(r.Context(), id, user.CompanyID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toScanResponse(scan))
}

// HandleScanImage redirects to a short-lived URL for the original document.
func (h *AssistantHandler) HandleScanImage(w http.ResponseWriter, r *http.Request) {
	h.redirectToURL(w, r, h.assistant.ScanImageURL)
}

// HandleScanThumbnail redirects to a short-lived URL for the thumbnail.
func (h *AssistantHandler) HandleScanThumbnail(w http.ResponseWriter, r *http.Request) {
	h.redirectToURL(w, r, h.assistant.ScanThumbnailURL)
}

func (h *AssistantHandler) redirectToURL(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, id, companyID uuid.UUID) (string, error),
) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	url, err := fn(r.Context(), id, user.CompanyID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatMessageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func toChatMessageResponse(m *domain.ChatMessage) chatMessageResponse {
	return chatMessageResponse{
		ID:        m.ID.String(),
		Role:      string(m.Role),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func (h *AssistantHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	reply, err := h.assistant.Chat(r.Context(), user.CompanyID, user.ID, req.Message)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toChatMessageResponse(reply))
}

func (h *AssistantHandler) HandleChatHistory(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	limit, _ := listParams(r, 50, 200)
	messages, err := h.assistant.ChatHistory(r.Context(), user.CompanyID, user.ID, int32(limit))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]chatMessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, toChatMessageResponse(&messages[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AssistantHandler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	if err := h.assistant.ClearChatHistory(r.Context(), user.ID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"framium/internal/api/v1/dto"
	"framium/internal/middleware"
	"framium/internal/model"
	"framium/internal/provider"
	"framium/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type ChatHandler struct {
	chatService service.ChatService
	validate    *validator.Validate
	logger      zerolog.Logger
}

func NewChatHandler(chatService service.ChatService, validate *validator.Validate, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		validate:    validate,
		logger:      logger,
	}
}

// RegisterRoutes mounts the completion endpoint.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/chat", authMw(http.HandlerFunc(h.createCompletion)))
}

func (h *ChatHandler) createCompletion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	subject, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req dto.ChatRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	// The body carries the user id for the pipeline, but only for the
	// authenticated user; otherwise anyone could spend another user's quota.
	if req.UserID != subject {
		http.Error(w, service.ErrUnauthorized.Error(), http.StatusForbidden)
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = model.KindChat
	}

	result, err := h.chatService.Complete(r.Context(), service.CompletionRequest{
		UserID: req.UserID,
		Model:  req.Model,
		Prompt: req.Prompt,
		System: req.Context,
		Mode:   mode,
		Kind:   mode,
	})
	if err != nil {
		h.writeCompletionError(w, req, err)
		return
	}

	resp := dto.ChatResponseDTO{
		Result:     result.Text,
		TokenUsage: result.TokensUsed,
		Cost:       result.CostUSD,
		Model:      result.Model,
		Mode:       result.Mode,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeCompletionError maps pipeline failures onto the documented status
// codes. Rejections before dispatch carry structured bodies so the client
// can offer an upgrade path.
func (h *ChatHandler) writeCompletionError(w http.ResponseWriter, req dto.ChatRequestDTO, err error) {
	var planErr *service.ModelNotAllowedError
	var provErr *provider.Error

	switch {
	case errors.Is(err, service.ErrUserNotFound):
		http.Error(w, "User not found", http.StatusNotFound)

	case errors.As(err, &planErr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(dto.PlanRejectionDTO{
			Error:        planErr.Error(),
			RequiredPlan: string(planErr.RequiredPlan),
			CurrentPlan:  string(planErr.CurrentPlan),
		})

	case errors.Is(err, service.ErrQuotaExceeded):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(dto.QuotaRejectionDTO{
			Error:      "Monthly token quota exceeded",
			Suggestion: "Upgrade your plan or wait for the monthly reset",
		})

	case errors.Is(err, provider.ErrUnsupportedModel):
		http.Error(w, "Unsupported model: "+req.Model, http.StatusBadRequest)

	case errors.As(err, &provErr):
		h.logger.Error().Err(err).
			Str("user_id", req.UserID).
			Str("model", req.Model).
			Msg("Upstream provider error")
		http.Error(w, "Upstream provider error", http.StatusBadGateway)

	default:
		h.logger.Error().Err(err).
			Str("user_id", req.UserID).
			Msg("Completion failed")
		http.Error(w, "Failed to generate completion", http.StatusInternalServerError)
	}
}

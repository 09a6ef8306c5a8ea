package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"framium/internal/api/v1/dto"
	"framium/internal/middleware"
	"framium/internal/model"
	"framium/internal/service"

	"github.com/go-playground/validator/v10"
)

type UserHandler struct {
	userService service.UserService
	validate    *validator.Validate
}

func NewUserHandler(userService service.UserService, v *validator.Validate) *UserHandler {
	return &UserHandler{userService: userService, validate: v}
}

// RegisterRoutes mounts v1 user routes.
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/users", authMw(http.HandlerFunc(h.createUser)))
	mux.Handle("/users/", authMw(http.HandlerFunc(h.handleUser)))
}

func (h *UserHandler) handleUser(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/users/")
	parts := strings.Split(rest, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.getUser(w, r, id)
	case len(parts) == 1 && r.Method == http.MethodPatch:
		h.updateUser(w, r, id)
	case len(parts) == 2 && parts[1] == "usage" && r.Method == http.MethodGet:
		h.getUsage(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

// requireOwner ensures the authenticated subject matches the path id.
func requireOwner(w http.ResponseWriter, r *http.Request, id string) bool {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return false
	}
	if userID != id {
		http.Error(w, service.ErrUnauthorized.Error(), http.StatusForbidden)
		return false
	}
	return true
}

func (h *UserHandler) createUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req dto.UserCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.userService.Signup(r.Context(), userID, req.Name, req.Email, req.AvatarURL)
	if err != nil {
		http.Error(w, "Failed to create user: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toUserResponse(user))
}

func (h *UserHandler) getUser(w http.ResponseWriter, r *http.Request, id string) {
	if !requireOwner(w, r, id) {
		return
	}

	user, err := h.userService.GetUser(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(user))
}

func (h *UserHandler) updateUser(w http.ResponseWriter, r *http.Request, id string) {
	if !requireOwner(w, r, id) {
		return
	}

	var req dto.UserUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	name, avatarURL := "", ""
	if req.Name != nil {
		name = *req.Name
	}
	if req.AvatarURL != nil {
		avatarURL = *req.AvatarURL
	}

	user, err := h.userService.UpdateProfile(r.Context(), id, name, avatarURL)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, "Failed to update user: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(user))
}

func (h *UserHandler) getUsage(w http.ResponseWriter, r *http.Request, id string) {
	if !requireOwner(w, r, id) {
		return
	}

	summary, err := h.userService.UsageSummary(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, "Failed to load usage: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	resp := dto.UsageSummaryDTO{
		Plan:        string(summary.Plan),
		QuotaTokens: summary.QuotaTokens,
		TotalTokens: summary.Monthly.TotalTokens,
		TotalCost:   summary.Monthly.TotalCost,
		Recent:      make([]dto.UsageRecordDTO, 0, len(summary.Recent)),
	}
	for _, rec := range summary.Recent {
		resp.Recent = append(resp.Recent, dto.UsageRecordDTO{
			Model:      rec.Model,
			TokensUsed: rec.TokensUsed,
			CostUSD:    rec.CostUSD,
			Kind:       rec.Kind,
			CreatedAt:  rec.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func toUserResponse(u *model.User) dto.UserResponseDTO {
	return dto.UserResponseDTO{
		UserID:    u.UserID,
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		Plan:      u.Plan,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

package auth

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-commerce/meridian/internal/platform/httpx"
	"github.com/meridian-commerce/meridian/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if details, ok := validate(h.validator, req); !ok {
		httpx.ValidationProblem(w, details)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Warn("login failed", slog.String("email", req.Email))
		httpx.Problem(w, http.StatusUnauthorized, "invalid credentials", "")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	sess.Set("role", string(user.Role))

	h.logger.Info("user logged in", slog.Int64("user_id", user.ID))
	httpx.JSON(w, http.StatusOK, userResponse{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		h.sessionManager.Destroy(sess)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	userID := CurrentUserID(r)
	if userID == 0 {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	user, err := h.service.UserByID(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, userResponse{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role})
}

// validate runs struct validation and flattens violations per field.
func validate(v *validator.Validate, value any) (map[string]string, bool) {
	err := v.Struct(value)
	if err == nil {
		return nil, true
	}
	details := make(map[string]string)
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
	} else {
		details["_"] = err.Error()
	}
	return details, false
}

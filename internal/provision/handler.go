package provision

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	internal "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/auth"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/company"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/transport"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/user"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/pkg/logger"
)

// Handler exposes the provisioning surface. Every route here sits behind the
// service-key middleware; there is no session on these requests.
type Handler struct {
	*transport.BaseHandler
	Service *Service
}

func NewHandler(svc *Service) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var dto CreateUserDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.Service.CreateAuthUser(r.Context(), dto)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, profile)
}

func (h *Handler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var dto CreateCompanyDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, admin, err := h.Service.CreateCompany(r.Context(), dto)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"company": c,
		"admin":   admin,
	})
}

func (h *Handler) SetCompanyStatus(w http.ResponseWriter, r *http.Request) {
	var dto SetStatusDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if verr := dto.Validate(); verr != nil {
		h.WriteAppError(w, verr)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.Service.SetCompanyStatus(r.Context(), id, company.Status(dto.Status)); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	var dto SetStatusDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if verr := dto.Validate(); verr != nil {
		h.WriteAppError(w, verr)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.Service.SetUserStatus(r.Context(), id, user.Status(dto.Status)); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	var dto SendEmailDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if verr := dto.Validate(); verr != nil {
		h.WriteAppError(w, verr)
		return
	}

	if err := h.Service.SendEmail(dto.To, dto.Subject, dto.HTML); err != nil {
		h.WriteAppError(w, internal.NewExternalError("mail delivery not queued", internal.ErrCodeMailDeliveryFailed, err))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrDuplicateEmail):
		h.WriteAppError(w, internal.NewConflictError("email is already registered", internal.ErrCodeDuplicateEmail))
	case errors.Is(err, company.ErrNotFound):
		h.WriteAppError(w, internal.ErrCompanyNotFound)
	case errors.Is(err, user.ErrNotFound):
		h.WriteAppError(w, internal.ErrProfileNotFound)
	default:
		if appErr, ok := internal.IsAppError(err); ok {
			h.WriteAppError(w, appErr)
			return
		}
		h.Logger.Error("provisioning request failed", "error", err)
		h.WriteAppError(w, internal.NewInternalError("provisioning failed", internal.ErrCodeProvisionFailed, err))
	}
}

package order

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	internal "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/transport"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/transport/middleware"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/user"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/pkg/logger"
)

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

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}
	if identity.CompanyID == "" {
		h.WriteError(w, http.StatusForbidden, "orders require a company assignment")
		return
	}

	var dto CreateOrderDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.Service.CreateOrder(r.Context(), identity.UserID, identity.CompanyID, dto)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	dto := ListOrdersDTO{
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}

	orders, err := h.Service.ListCompanyOrders(r.Context(), identity.CompanyID, dto)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	dto := ListOrdersDTO{
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}

	orders, err := h.Service.ListMyOrders(r.Context(), identity.UserID, dto)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	id := chi.URLParam(r, "id")
	o, err := h.Service.GetOrder(r.Context(), id, identity.CompanyID, identity.Role == user.RoleSuperAdmin)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	var dto UpdateOrderStatusDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	o, err := h.Service.UpdateStatus(r.Context(), id, identity.CompanyID, identity.Role == user.RoleSuperAdmin, dto)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		h.WriteAppError(w, internal.ErrOrderNotFound)
	case errors.Is(err, ErrInvalidTransition):
		h.WriteAppError(w, internal.NewConflictError("order cannot move to that status", internal.ErrCodeInvalidOrderState))
	default:
		if appErr, ok := internal.IsAppError(err); ok {
			h.WriteAppError(w, appErr)
			return
		}
		h.Logger.Error("order request failed", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

func queryInt(r *http.Request, name string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/foodops/orderflow/common/errors"
	"github.com/foodops/orderflow/internal/domain"
	"github.com/foodops/orderflow/internal/service"
)

// tenantHeader carries the tenant on every request. Requests without it are
// rejected before any component runs.
const tenantHeader = "X-Tenant-Id"

// HTTPHandler exposes the order lifecycle over HTTP. Every endpoint
// normalizes its request into a service command before calling in.
type HTTPHandler struct {
	lifecycle   *service.Lifecycle
	coordinator *service.Coordinator
	ledger      *service.Ledger
	logger      *zap.Logger
}

// NewHTTPHandler creates the HTTP handler.
func NewHTTPHandler(
	lifecycle *service.Lifecycle,
	coordinator *service.Coordinator,
	ledger *service.Ledger,
	logger *zap.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		lifecycle:   lifecycle,
		coordinator: coordinator,
		ledger:      ledger,
		logger:      logger,
	}
}

// Register mounts all routes on the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.CreateOrder)
	mux.HandleFunc("GET /orders/{id}", h.GetOrder)
	mux.HandleFunc("PUT /orders/{id}/status", h.ChangeStatus)
	mux.HandleFunc("GET /orders/{id}/history", h.GetHistory)
	mux.HandleFunc("POST /checkpoints/{stage}", h.ResumeCheckpoint)
	mux.HandleFunc("GET /inventory/{productId}", h.GetInventory)
	mux.HandleFunc("POST /inventory/adjust", h.AdjustInventory)
	mux.HandleFunc("GET /health", h.HealthCheck)
}

// CreateOrderRequest is the order-creation request body.
type CreateOrderRequest struct {
	UserID          string            `json:"userId"`
	Items           []domain.LineItem `json:"items"`
	DeliveryAddress string            `json:"deliveryAddress"`
	Phone           string            `json:"phone"`
	Notes           string            `json:"notes,omitempty"`
	PaymentMethod   string            `json:"paymentMethod,omitempty"`
}

// ChangeStatusRequest is the direct state-change request body.
type ChangeStatusRequest struct {
	Status    string `json:"status"`
	ActorID   string `json:"actorId"`
	ActorRole string `json:"actorRole"`
	Reason    string `json:"reason,omitempty"`
}

// ResumeCheckpointRequest resolves a pending human checkpoint.
type ResumeCheckpointRequest struct {
	OrderID  string `json:"orderId"`
	Decision string `json:"decision"`
	ActorID  string `json:"actorId"`
	Reason   string `json:"reason,omitempty"`
	Token    string `json:"token,omitempty"`
}

// AdjustInventoryRequest sets the stock level for a product.
type AdjustInventoryRequest struct {
	ProductID    string `json:"productId"`
	CurrentStock int    `json:"currentStock"`
	MinThreshold *int   `json:"minThreshold,omitempty"`
	MaxThreshold *int   `json:"maxThreshold,omitempty"`
}

// ErrorResponse is the error body shape.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// CreateOrder handles POST /orders.
func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	order, err := h.lifecycle.CreateOrder(r.Context(), service.CreateOrderCommand{
		TenantID:        tenantID,
		UserID:          req.UserID,
		Items:           req.Items,
		DeliveryAddress: req.DeliveryAddress,
		Phone:           req.Phone,
		Notes:           req.Notes,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, order)
}

// GetOrder handles GET /orders/{id}.
func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	order, err := h.lifecycle.GetOrder(r.Context(), tenantID, r.PathValue("id"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, order)
}

// ChangeStatus handles PUT /orders/{id}/status.
func (h *HTTPHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	var req ChangeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	role := domain.ActorRole(req.ActorRole)
	if role == "" {
		role = domain.RoleStaff
	}

	order, err := h.lifecycle.ChangeStatus(r.Context(), service.TransitionSignal{
		Origin:       service.OriginAPI,
		TenantID:     tenantID,
		OrderID:      r.PathValue("id"),
		TargetStatus: domain.Status(req.Status),
		ActorID:      req.ActorID,
		ActorRole:    role,
		Reason:       req.Reason,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, order)
}

// GetHistory handles GET /orders/{id}/history.
func (h *HTTPHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	entries, err := h.lifecycle.History(r.Context(), tenantID, r.PathValue("id"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, entries)
}

// ResumeCheckpoint handles POST /checkpoints/{stage}. The stage path segment
// names which pending confirmation is being resolved.
func (h *HTTPHandler) ResumeCheckpoint(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	var req ResumeCheckpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	order, err := h.coordinator.ResumeCheckpoint(r.Context(), service.ResumeCheckpointCommand{
		TenantID: tenantID,
		OrderID:  req.OrderID,
		Stage:    domain.Stage(r.PathValue("stage")),
		Decision: service.Decision(req.Decision),
		ActorID:  req.ActorID,
		Reason:   req.Reason,
		Token:    req.Token,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, order)
}

// GetInventory handles GET /inventory/{productId}.
func (h *HTTPHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	record, err := h.ledger.Get(r.Context(), tenantID, r.PathValue("productId"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, record)
}

// AdjustInventory handles POST /inventory/adjust.
func (h *HTTPHandler) AdjustInventory(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	var req AdjustInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.ProductID == "" {
		h.respondError(w, http.StatusBadRequest, "productId is required", string(errors.ErrCodeValidation))
		return
	}

	record, err := h.ledger.Adjust(r.Context(), tenantID, req.ProductID,
		req.CurrentStock, req.MinThreshold, req.MaxThreshold)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, record)
}

// HealthCheck handles GET /health.
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *HTTPHandler) tenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID := r.Header.Get(tenantHeader)
	if tenantID == "" {
		h.respondError(w, http.StatusBadRequest, "missing "+tenantHeader+" header",
			string(errors.ErrCodeValidation))
		return "", false
	}
	return tenantID, true
}

func (h *HTTPHandler) respondDomainError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	status := httpStatus(code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	h.respondError(w, status, err.Error(), string(code))
}

func httpStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeValidation:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeConflict, errors.ErrCodeInsufficientStock:
		return http.StatusConflict
	case errors.ErrCodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, status int, message string, code string) {
	h.respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/asquebay/bookstore-orders/internal/model"
	"github.com/asquebay/bookstore-orders/internal/service"
)

const (
	msgOrderCancelled   = "Order deleted successfully and stock updated"
	msgStockRollback    = "Failed to update stock, order rollback performed"
	msgOrderLost        = "Failed to update stock and to restore the order, manual intervention required"
	msgInternal         = "internal server error"
	maxRequestBodyBytes = 1 << 20
)

// OrderService определяет то, что хэндлеру нужно от оркестратора
// это позволяет хэндлеру не зависеть от конкретной реализации сервиса
type OrderService interface {
	CreateOrder(ctx context.Context, req model.CreateOrderRequest) (model.Order, error)
	GetOrderByID(ctx context.Context, id string) (model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	CancelOrder(ctx context.Context, id string) error
}

// Handler обрабатывает HTTP-запросы
type Handler struct {
	service OrderService
	metrics http.Handler
	log     *slog.Logger
	mux     *http.ServeMux
}

// messageResponse — тело ответа с кодом и сообщением
type messageResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// NewHandler создает новый экземпляр Handler
// metrics может быть nil, тогда /metrics не регистрируется
func NewHandler(svc OrderService, metrics http.Handler, log *slog.Logger) *Handler {
	h := &Handler{
		service: svc,
		metrics: metrics,
		log:     log.With(slog.String("component", "http")),
		mux:     http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP делает Handler совместимым с http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes регистрирует все эндпоинты
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("POST /order", h.createOrder)
	h.mux.HandleFunc("GET /order", h.listOrders)
	h.mux.HandleFunc("GET /order/{id}", h.getOrder)
	h.mux.HandleFunc("DELETE /order/{id}", h.cancelOrder)

	if h.metrics != nil {
		h.mux.Handle("GET /metrics", h.metrics)
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOrderRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.CreateOrder(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}

	h.respondJSON(w, http.StatusOK, orders)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	order, err := h.service.GetOrderByID(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, order)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.service.CancelOrder(r.Context(), id); err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, messageResponse{StatusCode: http.StatusOK, Message: msgOrderCancelled})
}

// respondServiceError переводит ошибку саги в HTTP-статус
// порядок важен: ErrFatal и ErrStockRollbackFailed проверяются раньше причин, которые они оборачивают
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrFatal):
		h.log.Error("order lost", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, msgOrderLost)
	case errors.Is(err, service.ErrStockRollbackFailed):
		h.respondError(w, http.StatusInternalServerError, msgStockRollback)
	case errors.Is(err, service.ErrInvalidOrder):
		h.respondError(w, http.StatusBadRequest, "Invalid order")
	case errors.Is(err, service.ErrInsufficientStock):
		h.respondError(w, http.StatusBadRequest, "Not enough books in stock")
	case errors.Is(err, service.ErrCustomerNotFound):
		h.respondError(w, http.StatusNotFound, "Customer not found")
	case errors.Is(err, service.ErrBookNotFound):
		h.respondError(w, http.StatusNotFound, "Book not found")
	case errors.Is(err, service.ErrOrderNotFound):
		h.respondError(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, service.ErrOrderExists):
		h.respondError(w, http.StatusConflict, "Order already exists")
	case errors.Is(err, service.ErrTimeout):
		h.respondError(w, http.StatusGatewayTimeout, "upstream service did not reply in time")
	case errors.Is(err, service.ErrRejected):
		h.respondError(w, http.StatusBadGateway, "upstream service rejected the request")
	case errors.Is(err, service.ErrPersistence):
		h.respondError(w, http.StatusServiceUnavailable, "order store unavailable")
	default:
		h.log.Error("internal server error", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, msgInternal)
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("failed to marshal JSON response", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"statusCode":500,"message":"internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(response)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, messageResponse{StatusCode: status, Message: message})
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"candle-shop/apperrors"
	"candle-shop/circuitbreaker"
	"candle-shop/models"
	"candle-shop/orders"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderHandler struct {
	service *orders.Service
	logger  *zap.Logger
}

func NewOrderHandler(service *orders.Service, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{service: service, logger: logger}
}

func caller(c *gin.Context) orders.Caller {
	cl := claims(c)
	return orders.Caller{UserID: cl.UserID, Email: cl.Email, Admin: cl.IsAdmin()}
}

// orderError maps workflow errors onto HTTP statuses.
func orderError(err error) error {
	switch {
	case errors.Is(err, orders.ErrEmptyOrder):
		return apperrors.Wrap(err, http.StatusBadRequest, "No order items")
	case errors.Is(err, orders.ErrInvalidItemPrice):
		return apperrors.Wrap(err, http.StatusBadRequest, "Item prices must have at most two decimal places")
	case errors.Is(err, orders.ErrUnknownPaymentMethod):
		return apperrors.Wrap(err, http.StatusBadRequest, "Unsupported payment method")
	case errors.Is(err, orders.ErrInvalidStatus):
		return apperrors.Wrap(err, http.StatusBadRequest, "Invalid order status")
	case errors.Is(err, orders.ErrVerificationFailed):
		return apperrors.Wrap(err, http.StatusBadRequest, "Payment verification failed")
	case errors.Is(err, orders.ErrNotFound):
		return apperrors.Wrap(err, http.StatusNotFound, "Order not found")
	case errors.Is(err, orders.ErrForbidden):
		return apperrors.Wrap(err, http.StatusForbidden, "Not authorized to access this order")
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return apperrors.Wrap(err, http.StatusServiceUnavailable, "Payment provider temporarily unavailable")
	case errors.Is(err, orders.ErrGatewayUnavailable):
		return apperrors.Wrap(err, http.StatusInternalServerError, "Failed to create payment order")
	default:
		return apperrors.Internal(err)
	}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.service.CreateOrder(c.Request.Context(), caller(c), req)
	if err != nil {
		fail(c, orderError(err))
		return
	}
	respond(c, http.StatusCreated, resp)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := pathID(c, "order")
	if !ok {
		return
	}

	order, err := h.service.GetOrder(c.Request.Context(), caller(c), id)
	if err != nil {
		fail(c, orderError(err))
		return
	}
	respond(c, http.StatusOK, order)
}

func (h *OrderHandler) PayOrder(c *gin.Context) {
	id, ok := pathID(c, "order")
	if !ok {
		return
	}
	var req models.PayOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.service.ConfirmPayment(c.Request.Context(), caller(c), id, req)
	if err != nil {
		fail(c, orderError(err))
		return
	}
	respond(c, http.StatusOK, order)
}

func (h *OrderHandler) DeliverOrder(c *gin.Context) {
	id, ok := pathID(c, "order")
	if !ok {
		return
	}
	var req models.DeliverOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.service.MarkDelivered(c.Request.Context(), id, req.TrackingNumber)
	if err != nil {
		fail(c, orderError(err))
		return
	}
	respond(c, http.StatusOK, order)
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "order")
	if !ok {
		return
	}
	var req models.UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.service.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		fail(c, orderError(err))
		return
	}
	respond(c, http.StatusOK, order)
}

func (h *OrderHandler) GetMyOrders(c *gin.Context) {
	list, err := h.service.ListMine(c.Request.Context(), caller(c))
	if err != nil {
		fail(c, orderError(err))
		return
	}
	respond(c, http.StatusOK, list)
}

func (h *OrderHandler) GetOrders(c *gin.Context) {
	page := 1
	if raw := c.Query("page"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 1 {
			fail(c, apperrors.BadRequest("Invalid page"))
			return
		}
		page = p
	}

	list, total, err := h.service.ListAll(c.Request.Context(), page)
	if err != nil {
		fail(c, orderError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    list,
		"page":    page,
		"pages":   (total + orders.AdminPageSize - 1) / orders.AdminPageSize,
		"total":   total,
	})
}

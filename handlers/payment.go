package handlers

import (
	"errors"
	"net/http"

	"candle-shop/apperrors"
	"candle-shop/middleware"
	"candle-shop/payment"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentConfig is what the checkout page needs to pick a payment widget.
type PaymentConfig struct {
	Mode     string `json:"mode"`
	KeyID    string `json:"key_id,omitempty"`
	Currency string `json:"currency"`
}

type PaymentHandler struct {
	config PaymentConfig
	mock   *payment.Mock
	logger *zap.Logger
}

// NewPaymentHandler takes a nil mock when the live gateway is configured;
// the simulator endpoints then answer 404.
func NewPaymentHandler(config PaymentConfig, mock *payment.Mock, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{config: config, mock: mock, logger: logger}
}

type mockProcessRequest struct {
	GatewayOrderID string `json:"gateway_order_id" binding:"required"`
}

type mockRefundRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
}

func (h *PaymentHandler) GetConfig(c *gin.Context) {
	respond(c, http.StatusOK, h.config)
}

func (h *PaymentHandler) ProcessMockPayment(c *gin.Context) {
	if h.mock == nil {
		fail(c, apperrors.NotFound("Mock payments are disabled"))
		return
	}
	var req mockProcessRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.mock.ProcessPayment(c.Request.Context(), req.GatewayOrderID)
	switch {
	case errors.Is(err, payment.ErrUnknownOrder):
		fail(c, apperrors.Wrap(err, http.StatusNotFound, "Payment order not found"))
		return
	case errors.Is(err, payment.ErrAlreadyProcessed):
		fail(c, apperrors.Wrap(err, http.StatusConflict, "Payment order already processed"))
		return
	case errors.Is(err, payment.ErrPaymentDeclined):
		fail(c, apperrors.Wrap(err, http.StatusPaymentRequired, "Payment declined"))
		return
	case err != nil:
		fail(c, apperrors.Internal(err))
		return
	}

	h.logger.Info("Mock payment processed",
		zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
		zap.String("gateway_order_id", req.GatewayOrderID),
		zap.String("payment_id", result.PaymentID),
	)
	respond(c, http.StatusOK, result)
}

func (h *PaymentHandler) RefundMockPayment(c *gin.Context) {
	if h.mock == nil {
		fail(c, apperrors.NotFound("Mock payments are disabled"))
		return
	}
	var req mockRefundRequest
	if !bindJSON(c, &req) {
		return
	}

	refundID, err := h.mock.Refund(c.Request.Context(), req.PaymentID)
	if err != nil {
		fail(c, apperrors.Internal(err))
		return
	}
	respond(c, http.StatusOK, gin.H{"refund_id": refundID, "payment_id": req.PaymentID, "status": "refunded"})
}

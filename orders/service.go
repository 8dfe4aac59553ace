package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"candle-shop/middleware"
	"candle-shop/models"
	"candle-shop/notification"
	"candle-shop/payment"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	ErrEmptyOrder           = errors.New("no order items")
	ErrInvalidItemPrice     = errors.New("item price has more than two decimal places")
	ErrNotFound             = errors.New("order not found")
	ErrForbidden            = errors.New("not allowed to access this order")
	ErrUnknownPaymentMethod = errors.New("unsupported payment method")
	ErrVerificationFailed   = errors.New("payment verification failed")
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrGatewayUnavailable   = errors.New("payment provider unavailable")
)

const AdminPageSize = 20

// Caller identifies who is acting on an order.
type Caller struct {
	UserID int
	Email  string
	Admin  bool
}

func (c Caller) canAccess(o *models.Order) bool {
	return c.Admin || o.UserID == c.UserID
}

type Service struct {
	store         Store
	gateways      *payment.Registry
	notifier      notification.Notifier
	currency      string
	notifyTimeout time.Duration
	now           func() time.Time
	logger        *zap.Logger

	pending sync.WaitGroup
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) { s.notifyTimeout = d }
}

func NewService(
	store Store,
	gateways *payment.Registry,
	notifier notification.Notifier,
	currency string,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		store:         store,
		gateways:      gateways,
		notifier:      notifier,
		currency:      currency,
		notifyTimeout: 30 * time.Second,
		now:           time.Now,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder persists a pending order and opens the matching provider
// order. If the provider call fails the order is deleted again; there is no
// transaction spanning both writes.
func (s *Service) CreateOrder(ctx context.Context, caller Caller, req models.CreateOrderRequest) (*models.CreateOrderResponse, error) {
	ctx, span := otel.Tracer("order-service").Start(ctx, "CreateOrder")
	defer span.End()

	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if err := ValidatePrices(req.Items); err != nil {
		return nil, err
	}

	gateway, ok := s.gateways.Get(req.PaymentMethod)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, req.PaymentMethod)
	}

	order := &models.Order{
		UserID:          caller.UserID,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   gateway.Method(),
		Status:          models.OrderStatusPending,
	}
	prices := CalculatePrices(order.Items)
	prices.Apply(order)

	if err := s.store.Create(ctx, order); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("order.id", order.ID),
		attribute.String("payment.method", string(order.PaymentMethod)),
	)

	receipt := fmt.Sprintf("order_%d", order.ID)
	gatewayOrder, err := gateway.CreateOrder(ctx, prices.MinorUnits(), s.currency, receipt)
	if err == nil {
		err = s.store.SetGatewayOrderID(ctx, order.ID, gatewayOrder.ID)
	}
	if err != nil {
		span.RecordError(err)
		s.compensate(ctx, order.ID, err)
		return nil, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}
	order.PaymentResult.GatewayOrderID = gatewayOrder.ID

	middleware.RecordOrderCreated(string(order.PaymentMethod))
	s.logger.Info("Order created",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("order_id", order.ID),
		zap.Int("user_id", order.UserID),
		zap.Float64("total_price", order.TotalPrice),
		zap.String("gateway_order_id", gatewayOrder.ID),
	)

	return &models.CreateOrderResponse{Order: order, GatewayOrder: gatewayOrder}, nil
}

func (s *Service) compensate(ctx context.Context, orderID int, cause error) {
	traceID := middleware.GetTraceID(ctx)
	if err := s.store.Delete(ctx, orderID); err != nil {
		s.logger.Error("Failed to delete order after payment order failure; order left pending",
			zap.String("trace_id", traceID),
			zap.Int("order_id", orderID),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return
	}
	s.logger.Warn("Order deleted after payment order failure",
		zap.String("trace_id", traceID),
		zap.Int("order_id", orderID),
		zap.Error(cause),
	)
}

func (s *Service) GetOrder(ctx context.Context, caller Caller, id int) (*models.Order, error) {
	order, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.canAccess(order) {
		return nil, ErrForbidden
	}
	return order, nil
}

// ConfirmPayment authenticates a client payment confirmation and marks the
// order paid. Confirming an already paid order is a no-op.
func (s *Service) ConfirmPayment(ctx context.Context, caller Caller, id int, req models.PayOrderRequest) (*models.Order, error) {
	ctx, span := otel.Tracer("order-service").Start(ctx, "ConfirmPayment")
	defer span.End()
	span.SetAttributes(attribute.Int("order.id", id))

	order, err := s.GetOrder(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if order.IsPaid {
		return order, nil
	}

	if stored := order.PaymentResult.GatewayOrderID; stored != "" && stored != req.GatewayOrderID {
		middleware.RecordPaymentConfirmed("mismatch")
		return nil, ErrVerificationFailed
	}

	gateway, ok := s.gateways.Get(order.PaymentMethod)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, order.PaymentMethod)
	}

	valid, err := gateway.VerifyPayment(ctx, req.GatewayOrderID, req.PaymentID, req.Signature)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}
	if !valid {
		middleware.RecordPaymentConfirmed("invalid")
		s.logger.Warn("Payment verification failed",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.Int("order_id", id),
			zap.String("gateway_order_id", req.GatewayOrderID),
		)
		return nil, ErrVerificationFailed
	}

	result := models.PaymentResult{
		PaymentID:      req.PaymentID,
		GatewayOrderID: req.GatewayOrderID,
		Signature:      req.Signature,
		Status:         "completed",
		EmailAddress:   caller.Email,
	}
	transitioned, err := s.store.MarkPaid(ctx, id, result, s.now())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	paid, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		// A concurrent confirmation got there first.
		return paid, nil
	}

	middleware.RecordPaymentConfirmed("valid")
	s.logger.Info("Order paid",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("order_id", id),
		zap.String("payment_id", req.PaymentID),
	)

	s.notify(ctx, models.EventOrderPaid, paid)
	return paid, nil
}

func (s *Service) MarkDelivered(ctx context.Context, id int, trackingNumber string) (*models.Order, error) {
	ctx, span := otel.Tracer("order-service").Start(ctx, "MarkDelivered")
	defer span.End()
	span.SetAttributes(attribute.Int("order.id", id))

	if err := s.store.MarkDelivered(ctx, id, trackingNumber, s.now()); err != nil {
		span.RecordError(err)
		return nil, err
	}

	order, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order delivered",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("order_id", id),
		zap.String("tracking_number", trackingNumber),
	)

	s.notify(ctx, models.EventOrderDelivered, order)
	return order, nil
}

// UpdateStatus overwrites the status. Transitions are not checked.
func (s *Service) UpdateStatus(ctx context.Context, id int, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if err := s.store.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

func (s *Service) ListMine(ctx context.Context, caller Caller) ([]models.Order, error) {
	return s.store.ListByUser(ctx, caller.UserID)
}

// ListAll returns one page (1-based) of all orders and the total count.
func (s *Service) ListAll(ctx context.Context, page int) ([]models.Order, int, error) {
	if page < 1 {
		page = 1
	}
	return s.store.List(ctx, AdminPageSize, (page-1)*AdminPageSize)
}

// CountStalePending counts unpaid pending orders older than age.
func (s *Service) CountStalePending(ctx context.Context, age time.Duration) (int, error) {
	return s.store.CountStalePending(ctx, s.now().Add(-age))
}

// notify sends the event in the background. Failures are logged and never
// reach the caller.
func (s *Service) notify(ctx context.Context, eventType string, order *models.Order) {
	traceID := middleware.GetTraceID(ctx)
	ctx = context.WithoutCancel(ctx)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
		defer cancel()

		event := models.OrderEvent{
			EventType:       eventType,
			OrderID:         order.ID,
			UserID:          order.UserID,
			TotalPrice:      order.TotalPrice,
			PaymentID:       order.PaymentResult.PaymentID,
			TrackingNumber:  order.TrackingNumber,
			Items:           order.Items,
			ShippingAddress: order.ShippingAddress,
		}

		name, email, err := s.store.Customer(ctx, order.UserID)
		if err == nil {
			event.CustomerName, event.CustomerEmail = name, email
			err = s.notifier.Notify(ctx, event)
		}
		if err != nil {
			middleware.RecordNotificationSent(eventType, "failed")
			s.logger.Error("Failed to send order notification",
				zap.String("trace_id", traceID),
				zap.String("event_type", eventType),
				zap.Int("order_id", order.ID),
				zap.Error(err),
			)
			return
		}
		middleware.RecordNotificationSent(eventType, "sent")
	}()
}

// Wait blocks until in-flight notifications have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

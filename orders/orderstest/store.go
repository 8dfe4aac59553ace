// Package orderstest provides an in-memory orders.Store for tests.
package orderstest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"candle-shop/models"
	"candle-shop/orders"
)

type Customer struct {
	Name  string
	Email string
}

// Store is a map-backed orders.Store. Stock tracks product stock so tests
// can observe decrements; Fail* hooks inject errors.
type Store struct {
	mu        sync.Mutex
	nextID    int
	orders    map[int]*models.Order
	Stock     map[int]int
	Customers map[int]Customer

	FailCreate        error
	FailSetGatewayID  error
	FailDelete        error
	FailCustomer      error
	Deleted           []int
	StockDecrements   int
	MarkPaidCallCount int
}

var _ orders.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		orders:    make(map[int]*models.Order),
		Stock:     make(map[int]int),
		Customers: make(map[int]Customer),
	}
}

func clone(o *models.Order) *models.Order {
	c := *o
	c.Items = append([]models.OrderItem(nil), o.Items...)
	return &c
}

func (s *Store) Create(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreate != nil {
		return s.FailCreate
	}
	s.nextID++
	order.ID = s.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	s.orders[order.ID] = clone(order)
	return nil
}

func (s *Store) Delete(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDelete != nil {
		return s.FailDelete
	}
	delete(s.orders, id)
	s.Deleted = append(s.Deleted, id)
	return nil
}

func (s *Store) SetGatewayOrderID(_ context.Context, id int, gatewayOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSetGatewayID != nil {
		return s.FailSetGatewayID
	}
	o, ok := s.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.PaymentResult.GatewayOrderID = gatewayOrderID
	return nil
}

func (s *Store) Get(_ context.Context, id int) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return clone(o), nil
}

// Put stores order as is, for seeding.
func (s *Store) Put(order *models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID > s.nextID {
		s.nextID = order.ID
	}
	s.orders[order.ID] = clone(order)
}

// Len counts stored orders.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Store) MarkPaid(_ context.Context, id int, result models.PaymentResult, paidAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MarkPaidCallCount++
	o, ok := s.orders[id]
	if !ok {
		return false, orders.ErrNotFound
	}
	if o.IsPaid {
		return false, nil
	}
	o.IsPaid = true
	o.PaidAt = &paidAt
	o.PaymentResult = result
	for _, item := range o.Items {
		s.Stock[item.ProductID] = max(s.Stock[item.ProductID]-item.Quantity, 0)
	}
	s.StockDecrements++
	return true, nil
}

func (s *Store) MarkDelivered(_ context.Context, id int, trackingNumber string, deliveredAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.IsDelivered = true
	o.DeliveredAt = &deliveredAt
	o.Status = models.OrderStatusDelivered
	o.TrackingNumber = trackingNumber
	return nil
}

func (s *Store) UpdateStatus(_ context.Context, id int, status models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.Status = status
	return nil
}

func (s *Store) sorted(keep func(*models.Order) bool) []models.Order {
	list := []models.Order{}
	for _, o := range s.orders {
		if keep(o) {
			list = append(list, *clone(o))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list
}

func (s *Store) ListByUser(_ context.Context, userID int) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(o *models.Order) bool { return o.UserID == userID }), nil
}

func (s *Store) List(_ context.Context, limit, offset int) ([]models.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sorted(func(*models.Order) bool { return true })
	if offset >= len(all) {
		return []models.Order{}, len(all), nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], len(all), nil
}

func (s *Store) Customer(_ context.Context, userID int) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCustomer != nil {
		return "", "", s.FailCustomer
	}
	c, ok := s.Customers[userID]
	if !ok {
		return "", "", fmt.Errorf("customer %d not found", userID)
	}
	return c.Name, c.Email, nil
}

func (s *Store) CountStalePending(_ context.Context, createdBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.orders {
		if !o.IsPaid && o.Status == models.OrderStatusPending && o.CreatedAt.Before(createdBefore) {
			n++
		}
	}
	return n, nil
}

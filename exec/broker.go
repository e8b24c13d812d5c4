package exec

import (
	"context"
	"sync"

	"github.com/quicktime/lvntrader/internal/id"
)

// Broker is the order transport. Implementations must be safe for use from
// the engine's single goroutine; the engine never calls them concurrently.
type Broker interface {
	SubmitMarketOrder(ctx context.Context, symbol string, side Side, quantity int) (string, error)
	SubmitStopOrder(ctx context.Context, symbol string, side Side, quantity int, stopPrice float64) (string, error)
	SubmitLimitOrder(ctx context.Context, symbol string, side Side, quantity int, limitPrice float64) (string, error)
	ModifyOrder(ctx context.Context, brokerOrderID string, stopPrice, limitPrice *float64) error
	CancelAllOrders(ctx context.Context) error
}

// SubmittedOrder is a record of one order the SimBroker accepted.
type SubmittedOrder struct {
	BrokerOrderID string
	Symbol        string
	Side          Side
	Type          OrderType
	Quantity      int
	StopPrice     float64
	LimitPrice    float64
}

// SimBroker accepts every order and remembers it. It backs simulation mode
// and the engine tests.
type SimBroker struct {
	mu        sync.Mutex
	orders    []SubmittedOrder
	cancelled int
}

func NewSimBroker() *SimBroker {
	return &SimBroker{}
}

func (s *SimBroker) SubmitMarketOrder(ctx context.Context, symbol string, side Side, quantity int) (string, error) {
	return s.record(SubmittedOrder{Symbol: symbol, Side: side, Type: Market, Quantity: quantity})
}

func (s *SimBroker) SubmitStopOrder(ctx context.Context, symbol string, side Side, quantity int, stopPrice float64) (string, error) {
	return s.record(SubmittedOrder{Symbol: symbol, Side: side, Type: Stop, Quantity: quantity, StopPrice: stopPrice})
}

func (s *SimBroker) SubmitLimitOrder(ctx context.Context, symbol string, side Side, quantity int, limitPrice float64) (string, error) {
	return s.record(SubmittedOrder{Symbol: symbol, Side: side, Type: Limit, Quantity: quantity, LimitPrice: limitPrice})
}

func (s *SimBroker) ModifyOrder(ctx context.Context, brokerOrderID string, stopPrice, limitPrice *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].BrokerOrderID != brokerOrderID {
			continue
		}
		if stopPrice != nil {
			s.orders[i].StopPrice = *stopPrice
		}
		if limitPrice != nil {
			s.orders[i].LimitPrice = *limitPrice
		}
	}
	return nil
}

func (s *SimBroker) CancelAllOrders(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled++
	return nil
}

// Orders returns everything submitted so far.
func (s *SimBroker) Orders() []SubmittedOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SubmittedOrder, len(s.orders))
	copy(out, s.orders)
	return out
}

// CancelCount reports how many times CancelAllOrders ran.
func (s *SimBroker) CancelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (s *SimBroker) record(o SubmittedOrder) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.BrokerOrderID = id.New()
	s.orders = append(s.orders, o)
	return o.BrokerOrderID, nil
}

package payment

import (
	"context"
	"fmt"
	"sync"
)

// MockGateway implements Gateway in memory for DEV_MODE and tests.
// Created checkouts start open; MarkPaid completes them.
type MockGateway struct {
	mu       sync.Mutex
	seq      int
	sessions map[string]*Checkout
}

func NewMockGateway() *MockGateway {
	return &MockGateway{sessions: make(map[string]*Checkout)}
}

func (m *MockGateway) CreateCheckout(_ context.Context, params CheckoutParams) (*Checkout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	id := fmt.Sprintf("cs_mock_%d", m.seq)
	customer := params.CustomerID
	if customer == "" {
		customer = fmt.Sprintf("cus_mock_%s", params.UserID)
	}
	c := &Checkout{
		ID:         id,
		URL:        "https://checkout.example.test/" + id,
		Status:     "open",
		Tokens:     params.Tokens,
		CustomerID: customer,
	}
	m.sessions[id] = c
	cp := *c
	return &cp, nil
}

func (m *MockGateway) GetCheckout(_ context.Context, id string) (*Checkout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("checkout session %q not found", id)
	}
	cp := *c
	return &cp, nil
}

// MarkPaid completes a mock checkout.
func (m *MockGateway) MarkPaid(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.sessions[id]; ok {
		c.Status = "complete"
		c.Paid = true
	}
}

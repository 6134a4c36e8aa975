package cart

import (
	"sync"
)

type slot struct {
	mu   sync.Mutex
	cart *Cart
}

// Registry keeps one cart per terminal for the lifetime of the process.
type Registry struct {
	mu    sync.Mutex
	tax   TaxPolicy
	slots map[string]*slot
}

func NewRegistry(tax TaxPolicy) *Registry {
	return &Registry{tax: tax, slots: make(map[string]*slot)}
}

func (r *Registry) slot(terminalID string) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[terminalID]
	if !ok {
		s = &slot{cart: New(r.tax)}
		r.slots[terminalID] = s
	}
	return s
}

// With runs fn with exclusive access to the terminal's cart, opening an empty
// cart on first use.
func (r *Registry) With(terminalID string, fn func(c *Cart) error) error {
	s := r.slot(terminalID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.cart)
}

// Discard drops the terminal's cart.
func (r *Registry) Discard(terminalID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slots, terminalID)
}

// Len returns the number of open carts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

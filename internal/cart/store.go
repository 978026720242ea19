// Package cart holds the per-session shopping cart.
package cart

import (
	"sync"

	"github.com/fjod/go_storefront/internal/catalog/domain"
)

type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpUpdate Op = "update"
	OpClear  Op = "clear"
)

// Key identifies a line: the same product with different options is a
// different line. Absent options are empty strings.
type Key struct {
	ProductID string
	Color     string
	Size      string
}

// LineItem is a product snapshot taken when the line was first added.
type LineItem struct {
	Product       domain.Product `json:"product"`
	Quantity      int            `json:"quantity"`
	SelectedColor string         `json:"selected_color,omitempty"`
	SelectedSize  string         `json:"selected_size,omitempty"`
}

func (li LineItem) Key() Key {
	return Key{ProductID: li.Product.ID, Color: li.SelectedColor, Size: li.SelectedSize}
}

// Subtotal is unit price times quantity in minor units.
func (li LineItem) Subtotal() int64 {
	return li.Product.Price * int64(li.Quantity)
}

// Listener is called after every mutation that changed the cart. It runs on
// the mutating goroutine with no lock held.
type Listener func(op Op, s *Store)

// Store is the cart of a single browsing session. Lines keep insertion order.
// The store never fails: input validation belongs to the caller.
type Store struct {
	mu        sync.Mutex
	items     []LineItem
	listeners []subscription
	nextID    int
}

type subscription struct {
	id int
	l  Listener
}

func NewStore() *Store {
	return &Store{}
}

// Add merges quantity into the line with the same key or appends a new line.
// A non-positive quantity is ignored.
func (s *Store) Add(product domain.Product, quantity int, color, size string) {
	if quantity <= 0 {
		return
	}

	s.mu.Lock()
	key := Key{ProductID: product.ID, Color: color, Size: size}
	if i := s.indexLocked(key); i >= 0 {
		s.items[i].Quantity += quantity
	} else {
		s.items = append(s.items, LineItem{
			Product:       cloneProduct(product),
			Quantity:      quantity,
			SelectedColor: color,
			SelectedSize:  size,
		})
	}
	s.mu.Unlock()

	s.notify(OpAdd)
}

// Remove deletes the matching line; unknown keys are ignored.
func (s *Store) Remove(productID, color, size string) {
	s.mu.Lock()
	removed := s.removeLocked(Key{ProductID: productID, Color: color, Size: size})
	s.mu.Unlock()

	if removed {
		s.notify(OpRemove)
	}
}

// UpdateQuantity sets the quantity of a line exactly. Zero or less removes it.
func (s *Store) UpdateQuantity(productID string, quantity int, color, size string) {
	if quantity <= 0 {
		s.Remove(productID, color, size)
		return
	}

	s.mu.Lock()
	changed := false
	if i := s.indexLocked(Key{ProductID: productID, Color: color, Size: size}); i >= 0 && s.items[i].Quantity != quantity {
		s.items[i].Quantity = quantity
		changed = true
	}
	s.mu.Unlock()

	if changed {
		s.notify(OpUpdate)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	hadItems := len(s.items) > 0
	s.items = nil
	s.mu.Unlock()

	if hadItems {
		s.notify(OpClear)
	}
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LineItem, len(s.items))
	for i, li := range s.items {
		li.Product = cloneProduct(li.Product)
		out[i] = li
	}
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

// TotalItems is the sum of quantities.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, li := range s.items {
		total += li.Quantity
	}
	return total
}

// TotalPrice is the sum of line subtotals in minor units.
func (s *Store) TotalPrice() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, li := range s.items {
		total += li.Subtotal()
	}
	return total
}

// Currency of the cart, taken from the first line. Empty for an empty cart.
func (s *Store) Currency() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return ""
	}
	return s.items[0].Product.Currency
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, subscription{id: id, l: l})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notify(op Op) {
	s.mu.Lock()
	listeners := s.listeners
	s.mu.Unlock()

	for _, sub := range listeners {
		sub.l(op, s)
	}
}

func (s *Store) indexLocked(key Key) int {
	for i := range s.items {
		if s.items[i].Key() == key {
			return i
		}
	}
	return -1
}

func (s *Store) removeLocked(key Key) bool {
	i := s.indexLocked(key)
	if i < 0 {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return true
}

func cloneProduct(p domain.Product) domain.Product {
	p.Images = append([]string(nil), p.Images...)
	p.Colors = append([]string(nil), p.Colors...)
	p.Sizes = append([]string(nil), p.Sizes...)
	if p.Stock != nil {
		stock := *p.Stock
		p.Stock = &stock
	}
	return p
}

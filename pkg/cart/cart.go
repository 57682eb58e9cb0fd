// Package cart holds the shopping cart: products keyed by barcode with a
// quantity, kept in the order they were first added.
package cart

import (
	"errors"
	"strings"
	"sync"

	"food-explorer/pkg/models"
)

var ErrMissingCode = errors.New("product has no code")

type Line struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

// Store is safe for concurrent use. Quantities are always at least 1; a line
// whose quantity would drop to zero is removed.
type Store struct {
	mu    sync.RWMutex
	lines map[string]*Line
	order []string
}

func New() *Store {
	return &Store{lines: make(map[string]*Line)}
}

// Add puts one unit of product in the cart, incrementing an existing line.
func (s *Store) Add(product models.Product) (Line, error) {
	code := strings.TrimSpace(product.Code)
	if code == "" {
		return Line{}, ErrMissingCode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if line, ok := s.lines[code]; ok {
		line.Quantity++
		return *line, nil
	}
	product.Code = code
	line := &Line{Product: product, Quantity: 1}
	s.lines[code] = line
	s.order = append(s.order, code)
	return *line, nil
}

// Remove reports whether a line was removed.
func (s *Store) Remove(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(code)
}

func (s *Store) removeLocked(code string) bool {
	if _, ok := s.lines[code]; !ok {
		return false
	}
	delete(s.lines, code)
	for i, c := range s.order {
		if c == code {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// UpdateQuantity sets the quantity of an existing line. A quantity of zero or
// less removes the line. It reports whether the cart changed.
func (s *Store) UpdateQuantity(code string, quantity int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.lines[code]
	if !ok {
		return false
	}
	if quantity <= 0 {
		return s.removeLocked(code)
	}
	line.Quantity = quantity
	return true
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = make(map[string]*Line)
	s.order = nil
}

// Total is the number of items in the cart, not a price.
func (s *Store) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, line := range s.lines {
		total += line.Quantity
	}
	return total
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Store) Line(code string) (Line, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	line, ok := s.lines[code]
	if !ok {
		return Line{}, false
	}
	return *line, true
}

// Lines returns the lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Line, 0, len(s.order))
	for _, code := range s.order {
		out = append(out, *s.lines[code])
	}
	return out
}

// Restore replaces the cart contents, skipping lines without a code or with
// a non-positive quantity. Duplicate codes are merged.
func (s *Store) Restore(lines []Line) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = make(map[string]*Line, len(lines))
	s.order = s.order[:0]
	for _, l := range lines {
		code := strings.TrimSpace(l.Product.Code)
		if code == "" || l.Quantity <= 0 {
			continue
		}
		if existing, ok := s.lines[code]; ok {
			existing.Quantity += l.Quantity
			continue
		}
		l.Product.Code = code
		line := l
		s.lines[code] = &line
		s.order = append(s.order, code)
	}
}

// Snapshot is the serialisable cart state.
type Snapshot struct {
	Lines []Line `json:"lines"`
	Total int    `json:"total"`
}

func (s *Store) Snapshot() Snapshot {
	lines := s.Lines()
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return Snapshot{Lines: lines, Total: total}
}

package memorystore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemorySymbolStore is the in-memory symbol registry read on every tick.
// It is refreshed from the database by the registry sync job.
type MemorySymbolStore struct {
	mu      sync.Mutex
	symbols []string
}

func NewSymbolStore(symbols ...string) *MemorySymbolStore {
	s := &MemorySymbolStore{
		symbols: make([]string, 0, len(symbols)),
	}
	for _, sym := range symbols {
		s.Add(sym)
	}
	return s
}

// Add registers symbol unless it is already present.
func (s *MemorySymbolStore) Add(symbol string) bool {
	symbol = strings.ToUpper(symbol)
	if symbol == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.symbols {
		if existing == symbol {
			return false
		}
	}
	s.symbols = append(s.symbols, symbol)
	sort.Strings(s.symbols)
	return true
}

// Retain drops every symbol not in keep and returns the dropped ones.
func (s *MemorySymbolStore) Retain(keep []string) []string {
	wanted := make(map[string]bool, len(keep))
	for _, sym := range keep {
		wanted[strings.ToUpper(sym)] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.symbols[:0]
	var removed []string
	for _, sym := range s.symbols {
		if wanted[sym] {
			next = append(next, sym)
		} else {
			removed = append(removed, sym)
		}
	}
	s.symbols = next
	return removed
}

// ListSymbols satisfies the market registry contract.
func (s *MemorySymbolStore) ListSymbols(_ context.Context) ([]string, error) {
	return s.GetAll(), nil
}

func (s *MemorySymbolStore) GetAll() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}

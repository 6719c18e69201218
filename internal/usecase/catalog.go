package usecase

import (
	"sort"
	"sync"

	"github.com/shiki2014/binan/internal/domain"
)

// SymbolCatalog is the in-memory list of tradable contracts, refreshed from
// exchangeInfo before each scan.
type SymbolCatalog struct {
	mu      sync.RWMutex
	symbols map[string]domain.SymbolInfo
}

func NewSymbolCatalog() *SymbolCatalog {
	return &SymbolCatalog{symbols: make(map[string]domain.SymbolInfo)}
}

// Set replaces the catalog with the tradable entries of infos.
func (c *SymbolCatalog) Set(infos []domain.SymbolInfo) int {
	next := make(map[string]domain.SymbolInfo, len(infos))
	for _, info := range infos {
		if info.Tradable() {
			next[info.Symbol] = info
		}
	}
	c.mu.Lock()
	c.symbols = next
	c.mu.Unlock()
	return len(next)
}

func (c *SymbolCatalog) Lookup(symbol string) (domain.SymbolInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.symbols[symbol]
	return info, ok
}

// All returns the catalog sorted by symbol.
func (c *SymbolCatalog) All() []domain.SymbolInfo {
	c.mu.RLock()
	out := make([]domain.SymbolInfo, 0, len(c.symbols))
	for _, info := range c.symbols {
		out = append(out, info)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (c *SymbolCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.symbols)
}

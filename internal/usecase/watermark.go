package usecase

import (
	"sync"

	"github.com/shiki2014/binan/internal/domain"
)

// Watermark is the extreme mark prices seen since a position was first
// tracked.
type Watermark struct {
	High float64 `json:"high"`
	Low  float64 `json:"low"`
}

// WatermarkCache is the only state shared between the mark price stream and
// the position monitor. Entries are per (symbol, side) so the legs of a
// hedged symbol start and end independently.
type WatermarkCache struct {
	marks map[string]map[domain.Side]*Watermark
	mu    sync.RWMutex
}

func NewWatermarkCache() *WatermarkCache {
	return &WatermarkCache{
		marks: make(map[string]map[domain.Side]*Watermark),
	}
}

// Track starts following one leg of symbol, seeding both extremes from price
// when the leg is new.
func (c *WatermarkCache) Track(symbol string, side domain.Side, price float64) {
	if price <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	legs, ok := c.marks[symbol]
	if !ok {
		legs = make(map[domain.Side]*Watermark)
		c.marks[symbol] = legs
	}
	if w, ok := legs[side]; ok {
		w.observe(price)
		return
	}
	legs[side] = &Watermark{High: price, Low: price}
}

// Observe widens every tracked leg of symbol. Untracked symbols are ignored
// so a stale extreme never leaks into a new position.
func (c *WatermarkCache) Observe(symbol string, price float64) {
	if price <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.marks[symbol] {
		w.observe(price)
	}
}

func (c *WatermarkCache) Get(symbol string, side domain.Side) (Watermark, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if w, ok := c.marks[symbol][side]; ok {
		return *w, true
	}
	return Watermark{}, false
}

// Drop forgets one leg, used once that position is flat.
func (c *WatermarkCache) Drop(symbol string, side domain.Side) {
	c.mu.Lock()
	defer c.mu.Unlock()
	legs, ok := c.marks[symbol]
	if !ok {
		return
	}
	delete(legs, side)
	if len(legs) == 0 {
		delete(c.marks, symbol)
	}
}

// Snapshot returns a copy of every tracked watermark by symbol and side.
func (c *WatermarkCache) Snapshot() map[string]map[domain.Side]Watermark {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]map[domain.Side]Watermark, len(c.marks))
	for s, legs := range c.marks {
		cp := make(map[domain.Side]Watermark, len(legs))
		for side, w := range legs {
			cp[side] = *w
		}
		out[s] = cp
	}
	return out
}

func (w *Watermark) observe(price float64) {
	if price > w.High {
		w.High = price
	}
	if price < w.Low {
		w.Low = price
	}
}

package memorystore

import (
	"sync"
)

// PriceCache holds the last generated price per symbol. Each generator owns
// its own cache; nothing here is process-global.
type PriceCache struct {
	globalMu sync.RWMutex
	data     map[string]*symbolPrice
}

type symbolPrice struct {
	mu   sync.Mutex
	last LastPrice
}

func NewPriceCache() *PriceCache {
	return &PriceCache{
		data: make(map[string]*symbolPrice),
	}
}

func (c *PriceCache) Set(symbol string, p LastPrice) {
	// Fast path: lock per-symbol entry only
	c.globalMu.RLock()
	entry, ok := c.data[symbol]
	c.globalMu.RUnlock()

	if !ok {
		c.globalMu.Lock()
		if entry, ok = c.data[symbol]; !ok {
			entry = &symbolPrice{}
			c.data[symbol] = entry
		}
		c.globalMu.Unlock()
	}

	entry.mu.Lock()
	entry.last = p
	entry.mu.Unlock()
}

func (c *PriceCache) Get(symbol string) (LastPrice, bool) {
	c.globalMu.RLock()
	entry, ok := c.data[symbol]
	c.globalMu.RUnlock()
	if !ok {
		return LastPrice{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.last, true
}

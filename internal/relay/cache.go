package relay

import (
	"sync"
	"time"

	"rate-index-oracle/internal/rates"
)

// Cache remembers the most recent observation handed to the transport,
// pending acceptance on the consuming side. It is a passive sender-side
// buffer: redelivery reads from here.
type Cache struct {
	mu      sync.RWMutex
	state   rates.State
	payload []byte
	seenAt  time.Time
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Put encodes the observation and stores it as the latest pending payload.
func (c *Cache) Put(s rates.State) ([]byte, error) {
	payload, err := Encode(s)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.state = s
	c.payload = payload
	c.seenAt = time.Now().UTC()
	c.mu.Unlock()

	return payload, nil
}

// Latest returns the last observation and its wire payload, if any.
func (c *Cache) Latest() (rates.State, []byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.payload == nil {
		return rates.State{}, nil, false
	}
	payload := make([]byte, len(c.payload))
	copy(payload, c.payload)
	return c.state, payload, true
}

// SeenAt returns when the latest observation was cached.
func (c *Cache) SeenAt() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seenAt, !c.seenAt.IsZero()
}

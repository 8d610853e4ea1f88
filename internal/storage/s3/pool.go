package s3

import (
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientPool manages a bounded set of reusable S3 clients so concurrent
// batch groups do not construct a client per item.
type ClientPool struct {
	mu      sync.Mutex
	clients chan *s3.Client
	factory func() (*s3.Client, error)
	maxSize int
	created int
	closed  bool

	stats PoolStats
}

// PoolStats tracks pool usage.
type PoolStats struct {
	MaxSize  int   `json:"max_size"`
	Created  int64 `json:"created"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Timeouts int64 `json:"timeouts"`
}

// NewClientPool creates a pool that lazily builds up to maxSize clients
// through factory.
func NewClientPool(maxSize int, factory func() (*s3.Client, error)) (*ClientPool, error) {
	if maxSize <= 0 {
		maxSize = 8
	}
	if factory == nil {
		return nil, fmt.Errorf("client factory cannot be nil")
	}

	return &ClientPool{
		clients: make(chan *s3.Client, maxSize),
		factory: factory,
		maxSize: maxSize,
		stats:   PoolStats{MaxSize: maxSize},
	}, nil
}

// Get returns a pooled client, building a new one while the pool is
// below capacity. It falls back to a throwaway client rather than
// blocking forever when the pool is exhausted.
func (p *ClientPool) Get() (*s3.Client, error) {
	select {
	case client, ok := <-p.clients:
		if !ok {
			return nil, fmt.Errorf("client pool is closed")
		}
		p.mu.Lock()
		p.stats.Hits++
		p.mu.Unlock()
		return client, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("client pool is closed")
	}
	if p.created < p.maxSize {
		p.created++
		p.stats.Created++
		p.stats.Misses++
		p.mu.Unlock()
		return p.factory()
	}
	p.mu.Unlock()

	// Pool at capacity with every client checked out: wait briefly for a
	// return, then build a throwaway client.
	select {
	case client, ok := <-p.clients:
		if !ok {
			return nil, fmt.Errorf("client pool is closed")
		}
		p.mu.Lock()
		p.stats.Hits++
		p.mu.Unlock()
		return client, nil
	case <-time.After(5 * time.Second):
		p.mu.Lock()
		p.stats.Timeouts++
		p.mu.Unlock()
		return p.factory()
	}
}

// Put returns a client to the pool. Clients beyond capacity are dropped.
func (p *ClientPool) Put(client *s3.Client) {
	if client == nil {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	select {
	case p.clients <- client:
	default:
	}
}

// Close drains the pool. Outstanding clients are discarded on Put.
func (p *ClientPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.clients)
}

// Stats returns a snapshot of pool usage.
func (p *ClientPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Package mem implements an in-memory batch pool.
package mem

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"go.dedis.ch/odo"
	"go.dedis.ch/odo/core/txn"
	"go.dedis.ch/odo/core/txn/pool"
	"golang.org/x/xerrors"
)

const (
	// DefaultCapacity is the default maximum number of pending batches.
	DefaultCapacity = 10000

	// DefaultHistory is the default number of consumed batch identifiers
	// remembered to refuse their resubmission.
	DefaultHistory = 100000
)

type template struct {
	capacity int
	history  int
}

// Option is the type of option to create a pool.
type Option func(*template)

// WithCapacity sets the maximum number of pending batches.
func WithCapacity(n int) Option {
	return func(tmpl *template) {
		tmpl.capacity = n
	}
}

// WithHistory sets the number of consumed identifiers kept in memory.
func WithHistory(n int) Option {
	return func(tmpl *template) {
		tmpl.history = n
	}
}

// Pool is an in-memory batch pool. Batches are kept in arrival order and the
// identifiers of the consumed ones are remembered in a bounded history so that
// they are not proposed again.
//
// - implements pool.Pool
type Pool struct {
	sync.Mutex

	logger   zerolog.Logger
	capacity int
	order    []txn.BatchID
	batches  map[txn.BatchID]txn.Batch
	history  *lru.Cache
	stats    pool.Stats
}

// NewPool creates a new empty pool.
func NewPool(opts ...Option) (*Pool, error) {
	tmpl := template{
		capacity: DefaultCapacity,
		history:  DefaultHistory,
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	if tmpl.capacity <= 0 {
		return nil, xerrors.Errorf("invalid capacity: %d", tmpl.capacity)
	}

	history, err := lru.New(tmpl.history)
	if err != nil {
		return nil, xerrors.Errorf("failed to create history: %v", err)
	}

	p := &Pool{
		logger:   odo.Logger.With().Str("component", "pool").Logger(),
		capacity: tmpl.capacity,
		batches:  make(map[txn.BatchID]txn.Batch),
		history:  history,
	}

	p.stats.Capacity = tmpl.capacity

	return p, nil
}

// Len implements pool.Pool. It returns the number of pending batches.
func (p *Pool) Len() int {
	p.Lock()
	defer p.Unlock()

	return len(p.order)
}

// Add implements pool.Pool. It appends the batch at the end of the queue unless
// it is already known. It returns an error when the pool is full.
func (p *Pool) Add(batch txn.Batch) (pool.AddResult, error) {
	id := batch.GetID()

	p.Lock()
	defer p.Unlock()

	_, found := p.batches[id]
	if found || p.history.Contains(id) {
		p.stats.Duplicates++
		pool.PromAdded.WithLabelValues(pool.Duplicate.String()).Inc()

		return pool.Duplicate, nil
	}

	if len(p.order) >= p.capacity {
		p.stats.Exhausted++
		pool.PromAdded.WithLabelValues(pool.Rejected.String()).Inc()

		return pool.Rejected, xerrors.Errorf("batch %v rejected at %d: %w",
			id, p.capacity, pool.ErrPoolExhausted)
	}

	p.batches[id] = batch
	p.order = append(p.order, id)

	p.stats.Accepted++
	pool.PromAdded.WithLabelValues(pool.Accepted.String()).Inc()
	pool.PromSize.Set(float64(len(p.order)))

	return pool.Accepted, nil
}

// Snapshot implements pool.Pool. It returns a copy of the pending batches in
// the order they arrived.
func (p *Pool) Snapshot() []txn.Batch {
	p.Lock()
	defer p.Unlock()

	batches := make([]txn.Batch, len(p.order))
	for i, id := range p.order {
		batches[i] = p.batches[id]
	}

	return batches
}

// MarkConsumed implements pool.Pool. It removes the batches from the queue and
// remembers their identifiers. Unknown identifiers are still remembered as a
// batch might be consumed before this node receives it.
func (p *Pool) MarkConsumed(ids ...txn.BatchID) int {
	if len(ids) == 0 {
		return 0
	}

	p.Lock()
	defer p.Unlock()

	removed := 0

	for _, id := range ids {
		p.history.Add(id, struct{}{})

		_, found := p.batches[id]
		if found {
			delete(p.batches, id)
			removed++
		}
	}

	if removed > 0 {
		// Compact the queue in place while preserving the arrival order.
		order := p.order[:0]
		for _, id := range p.order {
			_, found := p.batches[id]
			if found {
				order = append(order, id)
			}
		}

		p.order = order
	}

	p.stats.Consumed += uint64(removed)
	pool.PromSize.Set(float64(len(p.order)))

	p.logger.Debug().
		Int("requested", len(ids)).
		Int("removed", removed).
		Msg("batches consumed")

	return removed
}

// Stats implements pool.Pool.
func (p *Pool) Stats() pool.Stats {
	p.Lock()
	defer p.Unlock()

	stats := p.stats
	stats.Len = len(p.order)

	return stats
}

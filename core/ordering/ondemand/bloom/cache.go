package bloom

import (
	"sync"

	"go.dedis.ch/odo/core/ordering/ondemand/types"
	"go.dedis.ch/odo/core/txn"
)

// Cache maintains one filter per block round. A filter accumulates the batches
// proposed during the reject rounds of its block round.
type Cache struct {
	sync.Mutex

	params   Params
	lineages map[uint64]*Filter
}

// NewCache returns an empty cache.
func NewCache(params Params) *Cache {
	return &Cache{
		params:   params,
		lineages: make(map[uint64]*Filter),
	}
}

// Params returns the parameters of the filters of the cache.
func (c *Cache) Params() Params {
	return c.params
}

// FilterFor returns a copy of the filter of the lineage of the round, or an
// empty filter if nothing has been recorded for it.
func (c *Cache) FilterFor(round types.Round) *Filter {
	c.Lock()
	defer c.Unlock()

	filter, found := c.lineages[round.BlockRound]
	if !found {
		return NewFilter(c.params)
	}

	return filter.Copy()
}

// Record adds the identifiers to the filter of the lineage of the round.
func (c *Cache) Record(round types.Round, ids ...txn.BatchID) {
	if len(ids) == 0 {
		return
	}

	c.Lock()
	defer c.Unlock()

	filter, found := c.lineages[round.BlockRound]
	if !found {
		filter = NewFilter(c.params)
		c.lineages[round.BlockRound] = filter
	}

	for _, id := range ids {
		filter.Add(id)
	}
}

// Reset drops the filter of the block round and of every block round before.
func (c *Cache) Reset(blockRound uint64) {
	c.Lock()
	defer c.Unlock()

	for key := range c.lineages {
		if key <= blockRound {
			delete(c.lineages, key)
		}
	}
}

// Len returns the number of lineages in the cache.
func (c *Cache) Len() int {
	c.Lock()
	defer c.Unlock()

	return len(c.lineages)
}

package mem

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/odo/core/txn"
	"go.dedis.ch/odo/core/txn/pool"
	"golang.org/x/xerrors"
)

func TestPool_New(t *testing.T) {
	p, err := NewPool()
	require.NoError(t, err)
	require.Equal(t, DefaultCapacity, p.Stats().Capacity)

	_, err = NewPool(WithCapacity(0))
	require.EqualError(t, err, "invalid capacity: 0")

	_, err = NewPool(WithHistory(0))
	require.EqualError(t, err, "failed to create history: Must provide a positive size")
}

func TestPool_Add(t *testing.T) {
	p, err := NewPool()
	require.NoError(t, err)

	res, err := p.Add(makeBatch(t, "b1"))
	require.NoError(t, err)
	require.Equal(t, pool.Accepted, res)

	res, err = p.Add(makeBatch(t, "b2"))
	require.NoError(t, err)
	require.Equal(t, pool.Accepted, res)

	// Submitting the same batch twice is a no-op.
	res, err = p.Add(makeBatch(t, "b1"))
	require.NoError(t, err)
	require.Equal(t, pool.Duplicate, res)
	require.Equal(t, 2, p.Len())

	stats := p.Stats()
	require.Equal(t, uint64(2), stats.Accepted)
	require.Equal(t, uint64(1), stats.Duplicates)
}

func TestPool_Add_Duplicate(t *testing.T) {
	p, err := NewPool()
	require.NoError(t, err)

	b1 := makeBatch(t, "b1")

	res, err := p.Add(b1)
	require.NoError(t, err)
	require.Equal(t, pool.Accepted, res)

	res, err = p.Add(b1)
	require.NoError(t, err)
	require.Equal(t, pool.Duplicate, res)
	require.Equal(t, 1, p.Len())
}

func TestPool_Add_Exhausted(t *testing.T) {
	p, err := NewPool(WithCapacity(1))
	require.NoError(t, err)

	_, err = p.Add(makeBatch(t, "b1"))
	require.NoError(t, err)

	b2 := makeBatch(t, "b2")

	res, err := p.Add(b2)
	require.Equal(t, pool.Rejected, res)
	require.True(t, xerrors.Is(err, pool.ErrPoolExhausted))
	require.EqualError(t, err, fmt.Sprintf("batch %v rejected at 1: pool exhausted", b2.GetID()))

	// A duplicate is still reported as such even when the pool is full.
	res, err = p.Add(makeBatch(t, "b1"))
	require.NoError(t, err)
	require.Equal(t, pool.Duplicate, res)

	require.Equal(t, uint64(1), p.Stats().Exhausted)
}

func TestPool_Snapshot(t *testing.T) {
	p, err := NewPool()
	require.NoError(t, err)

	for _, name := range []string{"b3", "b1", "b2"} {
		_, err = p.Add(makeBatch(t, name))
		require.NoError(t, err)
	}

	snap := p.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, makeBatch(t, "b3").GetID(), snap[0].GetID())
	require.Equal(t, makeBatch(t, "b1").GetID(), snap[1].GetID())
	require.Equal(t, makeBatch(t, "b2").GetID(), snap[2].GetID())

	// The snapshot is a copy and the pool is unaffected by a change.
	snap[0] = makeBatch(t, "b4")
	require.Equal(t, makeBatch(t, "b3").GetID(), p.Snapshot()[0].GetID())
}

func TestPool_MarkConsumed(t *testing.T) {
	p, err := NewPool()
	require.NoError(t, err)

	b1 := makeBatch(t, "b1")
	b2 := makeBatch(t, "b2")
	b3 := makeBatch(t, "b3")

	for _, b := range []txn.Batch{b1, b2, b3} {
		_, err = p.Add(b)
		require.NoError(t, err)
	}

	require.Equal(t, 0, p.MarkConsumed())

	n := p.MarkConsumed(b2.GetID(), makeBatch(t, "unknown").GetID())
	require.Equal(t, 1, n)

	snap := p.Snapshot()
	require.Len(t, snap, 2)
	require.True(t, snap[0].Equal(b1))
	require.True(t, snap[1].Equal(b3))

	// A consumed batch can't be added back.
	res, err := p.Add(b2)
	require.NoError(t, err)
	require.Equal(t, pool.Duplicate, res)

	// Neither can a batch consumed before it arrived.
	res, err = p.Add(makeBatch(t, "unknown"))
	require.NoError(t, err)
	require.Equal(t, pool.Duplicate, res)

	require.Equal(t, uint64(1), p.Stats().Consumed)
}

func TestPool_Concurrent(t *testing.T) {
	p, err := NewPool()
	require.NoError(t, err)

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)

		go func(i int) {
			defer wg.Done()

			for j := 0; j < 20; j++ {
				_, err := p.Add(makeBatch(t, fmt.Sprintf("%d-%d", i, j)))
				if err != nil {
					t.Error(err)
				}
			}
		}(i)

		go func() {
			defer wg.Done()

			for j := 0; j < 20; j++ {
				p.Snapshot()
			}
		}()
	}

	wg.Wait()

	require.Equal(t, 200, p.Len())
}

// -----------------------------------------------------------------------------
// Utility functions

func makeBatch(t *testing.T, payload string) txn.Batch {
	batch, err := txn.NewBatch(txn.NewTransaction([]byte(payload), nil))
	require.NoError(t, err)

	return batch
}

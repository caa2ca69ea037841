// Package ledger implements the memory of the proposals per round.
//
// A round has at most one proposal which is either built locally or observed
// from a peer. Once recorded, it never changes so that every request for the
// same round receives the same answer. The ledger also tracks the frontier,
// the latest round the node advanced to, which only moves forward.
package ledger

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/odo"
	"go.dedis.ch/odo/core/ordering/ondemand/types"
	"golang.org/x/sync/singleflight"
	"golang.org/x/xerrors"
)

// DefaultRetention is the default number of block rounds kept behind the
// frontier.
const DefaultRetention = 16

var (
	// ErrStaleRound is returned when a round is not after the frontier.
	ErrStaleRound = xerrors.New("stale round")

	// ErrConflictingProposal is returned when a peer reports a proposal that
	// differs from the one recorded for the same round.
	ErrConflictingProposal = xerrors.New("conflicting proposal")
)

var (
	promBuilds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "odo_ledger_builds_total",
		Help: "number of proposals built locally",
	})

	promConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "odo_ledger_conflicts_total",
		Help: "number of conflicting proposals reported by the peers",
	})

	promRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "odo_ledger_records",
		Help: "number of proposals in memory",
	})
)

func init() {
	odo.PromCollectors = append(odo.PromCollectors, promBuilds, promConflicts, promRecords)
}

// Builder is the function called to create the proposal of a round that has
// none yet.
type Builder func() types.Proposal

type template struct {
	retention uint64
}

// Option is the type of option to create a ledger.
type Option func(*template)

// WithRetention sets the number of block rounds kept behind the frontier. Zero
// keeps everything.
func WithRetention(n uint64) Option {
	return func(tmpl *template) {
		tmpl.retention = n
	}
}

// Ledger is a thread-safe map of the proposals per round.
type Ledger struct {
	sync.Mutex

	logger    zerolog.Logger
	records   map[types.Round]types.Proposal
	frontier  types.Round
	retention uint64
	flight    singleflight.Group
}

// NewLedger creates an empty ledger with a frontier at the first round.
func NewLedger(opts ...Option) *Ledger {
	tmpl := template{
		retention: DefaultRetention,
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	return &Ledger{
		logger:    odo.Logger.With().Str("component", "ledger").Logger(),
		records:   make(map[types.Round]types.Proposal),
		retention: tmpl.retention,
	}
}

// Get returns the proposal of the round if it exists.
func (l *Ledger) Get(round types.Round) (types.Proposal, bool) {
	l.Lock()
	defer l.Unlock()

	p, found := l.records[round]

	return p, found
}

// Len returns the number of proposals in memory.
func (l *Ledger) Len() int {
	l.Lock()
	defer l.Unlock()

	return len(l.records)
}

// Frontier returns the latest round the ledger advanced to.
func (l *Ledger) Frontier() types.Round {
	l.Lock()
	defer l.Unlock()

	return l.frontier
}

// GetOrCreate returns the proposal of the round, or it builds it if there is
// none. The builder is called at most once per round even when several callers
// ask for the same round concurrently, and it runs without holding the lock of
// the ledger. A caller that gives up before the end of the build gets the
// context error but the proposal is still recorded for the next ones.
func (l *Ledger) GetOrCreate(ctx context.Context, round types.Round, build Builder) (types.Proposal, error) {
	p, found := l.Get(round)
	if found {
		return p, nil
	}

	ch := l.flight.DoChan(round.String(), func() (interface{}, error) {
		// The proposal may have been recorded between the first check and the
		// start of the flight.
		p, found := l.Get(round)
		if found {
			return p, nil
		}

		built := build()
		promBuilds.Inc()

		l.Lock()
		defer l.Unlock()

		// A peer proposal observed during the build wins.
		p, found = l.records[round]
		if found {
			l.logger.Debug().Stringer("round", round).Msg("proposal observed during build")
			return p, nil
		}

		l.records[round] = built
		promRecords.Set(float64(len(l.records)))

		return built, nil
	})

	select {
	case <-ctx.Done():
		return types.Proposal{}, ctx.Err()
	case res := <-ch:
		return res.Val.(types.Proposal), res.Err
	}
}

// Observe records the proposal of a peer. It is a no-op if the same proposal
// is already known for the round. The local one is kept and an error is
// returned when they differ.
func (l *Ledger) Observe(p types.Proposal) error {
	round := p.GetRound()

	l.Lock()
	defer l.Unlock()

	known, found := l.records[round]
	if found {
		if known.Equal(p) {
			return nil
		}

		promConflicts.Inc()

		return xerrors.Errorf("round %v has %v but got %v: %w",
			round, known.GetHash(), p.GetHash(), ErrConflictingProposal)
	}

	if l.isExpired(round) {
		l.logger.Debug().Stringer("round", round).Msg("ignoring expired proposal")
		return nil
	}

	l.records[round] = p
	promRecords.Set(float64(len(l.records)))

	return nil
}

// Advance moves the frontier to the round and returns the previous one. The
// round must be strictly after the frontier, otherwise nothing changes and
// ErrStaleRound is returned. Moving to a new block round prunes the proposals
// that fell out of the retention window.
func (l *Ledger) Advance(round types.Round) (types.Round, error) {
	l.Lock()
	defer l.Unlock()

	prev := l.frontier

	if !prev.Less(round) {
		return prev, xerrors.Errorf("round %v is not after %v: %w", round, prev, ErrStaleRound)
	}

	l.frontier = round

	if round.BlockRound > prev.BlockRound {
		l.prune()
	}

	return prev, nil
}

func (l *Ledger) isExpired(round types.Round) bool {
	return l.retention > 0 && round.BlockRound+l.retention < l.frontier.BlockRound
}

func (l *Ledger) prune() {
	pruned := 0

	for round := range l.records {
		if l.isExpired(round) {
			delete(l.records, round)
			pruned++
		}
	}

	promRecords.Set(float64(len(l.records)))

	if pruned > 0 {
		l.logger.Debug().
			Stringer("frontier", l.frontier).
			Int("pruned", pruned).
			Msg("ledger pruned")
	}
}

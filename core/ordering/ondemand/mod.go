// Package ondemand implements the on-demand ordering service.
//
// The peers submit batches of transactions that wait in the pool. When the
// consensus needs a proposal for a round, it requests it from the service
// which selects the pending batches in arrival order. A proposal is generated
// once per round and the batches it contains are recorded in a bloom filter so
// that a retry of the same block round does not propose them again. The filter
// of a block round is discarded when the consensus moves to the next one.
package ondemand

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/odo"
	"go.dedis.ch/odo/core"
	"go.dedis.ch/odo/core/ordering"
	"go.dedis.ch/odo/core/ordering/ondemand/bloom"
	"go.dedis.ch/odo/core/ordering/ondemand/ledger"
	"go.dedis.ch/odo/core/ordering/ondemand/proposal"
	"go.dedis.ch/odo/core/ordering/ondemand/types"
	"go.dedis.ch/odo/core/txn"
	"go.dedis.ch/odo/core/txn/pool"
	"golang.org/x/xerrors"
)

// watchBufferSize is the number of events a watcher can miss before new ones
// are dropped.
const watchBufferSize = 100

var (
	promRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odo_ondemand_requests_total",
		Help: "number of proposal requests by outcome",
	}, []string{"outcome"})

	promMalformed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "odo_ondemand_malformed_filters_total",
		Help: "number of request filters that could not be decoded",
	})

	promRound = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "odo_ondemand_round",
		Help: "current round of the service",
	}, []string{"counter"})
)

func init() {
	odo.PromCollectors = append(odo.PromCollectors, promRequests, promMalformed, promRound)
}

type template struct {
	limits    proposal.Limits
	params    bloom.Params
	retention uint64
	grouper   Grouper
	archive   ledger.Archive
}

// ServiceOption is the type of option to create a service.
type ServiceOption func(*template)

// WithLimits sets the bounds of the proposals.
func WithLimits(limits proposal.Limits) ServiceOption {
	return func(tmpl *template) {
		tmpl.limits = limits
	}
}

// WithBloomParams sets the parameters of the bloom filters.
func WithBloomParams(params bloom.Params) ServiceOption {
	return func(tmpl *template) {
		tmpl.params = params
	}
}

// WithRetention sets the number of block rounds kept in the ledger behind the
// current one.
func WithRetention(n uint64) ServiceOption {
	return func(tmpl *template) {
		tmpl.retention = n
	}
}

// WithGrouper sets the grouper of the raw transactions.
func WithGrouper(g Grouper) ServiceOption {
	return func(tmpl *template) {
		tmpl.grouper = g
	}
}

// WithArchive sets the storage of the committed proposals.
func WithArchive(a ledger.Archive) ServiceOption {
	return func(tmpl *template) {
		tmpl.archive = a
	}
}

// Service is the on-demand ordering service.
//
// - implements ordering.GateTransport
// - implements ordering.ServiceTransport
// - implements ordering.OnDemandOrdering
// - implements ordering.Engine
type Service struct {
	logger  zerolog.Logger
	pool    pool.Pool
	ledger  *ledger.Ledger
	cache   *bloom.Cache
	locks   *lineageLocks
	factory proposal.Factory
	grouper Grouper
	archive ledger.Archive
	watcher *core.Watcher
}

// NewService creates a new service that selects the batches of the pool.
func NewService(p pool.Pool, opts ...ServiceOption) *Service {
	tmpl := template{
		limits:    proposal.DefaultLimits(),
		params:    bloom.DefaultParams(),
		retention: ledger.DefaultRetention,
		grouper:   NewKeyGrouper(),
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	return &Service{
		logger:  odo.Logger.With().Str("component", "ondemand").Logger(),
		pool:    p,
		ledger:  ledger.NewLedger(ledger.WithRetention(tmpl.retention)),
		cache:   bloom.NewCache(tmpl.params),
		locks:   newLineageLocks(),
		factory: proposal.NewFactory(tmpl.limits),
		grouper: tmpl.grouper,
		archive: tmpl.archive,
		watcher: core.NewWatcher(),
	}
}

// Frontier returns the current round of the service.
func (s *Service) Frontier() types.Round {
	return s.ledger.Frontier()
}

// SendBatches implements ordering.OnDemandOrdering. It adds the batches to the
// pool. The batches that are refused are logged but it is not reported to the
// caller.
func (s *Service) SendBatches(ctx context.Context, batches []txn.Batch) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	for _, batch := range batches {
		res, err := s.pool.Add(batch)
		if err != nil {
			s.logger.Warn().Err(err).Stringer("batch", batch.GetID()).Msg("batch refused")
			continue
		}

		if res == pool.Duplicate {
			s.logger.Debug().Stringer("batch", batch.GetID()).Msg("duplicate batch ignored")
		}
	}

	return nil
}

// OnBatch implements ordering.ServiceTransport. It groups the transactions into
// batches before adding them to the pool.
func (s *Service) OnBatch(ctx context.Context, txs []txn.Transaction) error {
	return s.SendBatches(ctx, s.grouper.Group(txs))
}

// OnProposal implements ordering.GateTransport. It records the proposal of a
// peer so that it is returned for its round instead of a local one, and it
// excludes its batches from the next proposals of the same block round. A
// conflict with the local proposal is logged and the local one is kept.
func (s *Service) OnProposal(ctx context.Context, p types.Proposal) error {
	err := s.ledger.Observe(p)
	if xerrors.Is(err, ledger.ErrConflictingProposal) {
		s.logger.Warn().Err(err).Msg("conflicting proposal")

		local, _ := s.ledger.Get(p.GetRound())
		s.watcher.Notify(ordering.EventConflict{Local: local, Remote: p})
	}

	s.cache.Record(p.GetRound(), p.GetBatchIDs()...)

	return nil
}

// RequestProposal implements ordering.OnDemandOrdering. It returns the
// proposal of the round, and builds it if it is the first request. The filter
// of the request is merged with the local one to exclude batches. A malformed
// filter is replaced by an empty one.
//
// The response carries the filter of the block round including the batches of
// the proposal so that it can be sent along the request of the next reject
// round. A round behind the current one returns the proposal known for it, or
// an empty one, but never builds.
func (s *Service) RequestProposal(ctx context.Context,
	req types.ProposalRequest) (types.ProposalResponse, error) {

	remote := s.decodeFilter(req.BloomFilter)

	if req.Round.Less(s.ledger.Frontier()) {
		promRequests.WithLabelValues("stale").Inc()

		p, found := s.ledger.Get(req.Round)
		if !found {
			p = types.EmptyProposal(req.Round)
		}

		s.logger.Debug().Stringer("round", req.Round).Bool("known", found).Msg("stale request")

		return s.makeResponse(p, remote)
	}

	p, err := s.ledger.GetOrCreate(ctx, req.Round, func() types.Proposal {
		lock := s.locks.get(req.Round.BlockRound)
		lock.Lock()
		defer lock.Unlock()

		exclusion := s.cache.FilterFor(req.Round)

		if remote != nil {
			err := exclusion.Merge(remote)
			if err != nil {
				s.logger.Warn().Err(err).Msg("remote filter ignored")
			}
		}

		p := s.factory.Build(req.Round, s.pool, exclusion)

		s.cache.Record(req.Round, p.GetBatchIDs()...)

		return p
	})
	if err != nil {
		promRequests.WithLabelValues("canceled").Inc()
		return types.ProposalResponse{}, xerrors.Errorf("failed to get proposal: %v", err)
	}

	promRequests.WithLabelValues("served").Inc()

	return s.makeResponse(p, remote)
}

// Advance implements ordering.Engine. It moves the service to the round which
// must be after the current one. The filters of the previous block rounds are
// discarded when the block round changes.
func (s *Service) Advance(round types.Round) error {
	prev, err := s.ledger.Advance(round)
	if err != nil {
		return xerrors.Errorf("failed to advance: %w", err)
	}

	if round.BlockRound > prev.BlockRound {
		s.resetLineages(round.BlockRound - 1)
	}

	promRound.WithLabelValues("block").Set(float64(round.BlockRound))
	promRound.WithLabelValues("reject").Set(float64(round.RejectRound))

	s.logger.Info().Stringer("from", prev).Stringer("to", round).Msg("round advanced")

	s.watcher.Notify(ordering.EventAdvanced{Previous: prev, Round: round})

	return nil
}

// Commit implements ordering.Engine. It reports the proposal of the round as
// finalized. It is stored in the archive if any, then its batches leave the
// pool and the service moves to the next block round. Nothing changes when
// the archive fails.
func (s *Service) Commit(round types.Round) error {
	p, found := s.ledger.Get(round)
	if !found {
		return xerrors.Errorf("no proposal for round %v", round)
	}

	if s.archive != nil {
		err := s.archive.Store(p)
		if err != nil {
			return xerrors.Errorf("failed to archive: %v", err)
		}
	}

	consumed := s.pool.MarkConsumed(p.GetBatchIDs()...)

	s.logger.Info().
		Stringer("round", round).
		Int("batches", p.Len()).
		Int("consumed", consumed).
		Msg("proposal committed")

	s.watcher.Notify(ordering.EventCommitted{Proposal: p})

	err := s.Advance(round.NextBlock())
	if err != nil && !xerrors.Is(err, ledger.ErrStaleRound) {
		return xerrors.Errorf("failed to move to next block: %v", err)
	}

	// The lineage is discarded even when the frontier is already further.
	s.resetLineages(round.BlockRound)

	return nil
}

func (s *Service) resetLineages(blockRound uint64) {
	s.cache.Reset(blockRound)
	s.locks.prune(blockRound)
}

// Watch implements ordering.Engine. It returns a channel populated with the
// events until the context is done. Events are dropped when the channel is
// full.
func (s *Service) Watch(ctx context.Context) <-chan ordering.Event {
	ch := make(chan ordering.Event, watchBufferSize)

	obs := &observer{ch: ch, logger: s.logger}
	s.watcher.Add(obs)

	go func() {
		<-ctx.Done()
		s.watcher.Remove(obs)
	}()

	return ch
}

func (s *Service) decodeFilter(opt types.OptionalBytes) *bloom.Filter {
	data, ok := opt.Get()
	if !ok {
		return nil
	}

	if len(data) == 0 {
		return bloom.NewFilter(s.cache.Params())
	}

	filter, err := bloom.FromBytes(s.cache.Params(), data)
	if err != nil {
		promMalformed.Inc()
		s.logger.Warn().Err(err).Msg("malformed filter replaced by an empty one")

		return nil
	}

	return filter
}

func (s *Service) makeResponse(p types.Proposal, remote *bloom.Filter) (types.ProposalResponse, error) {
	filter := s.cache.FilterFor(p.GetRound())

	if remote != nil {
		err := filter.Merge(remote)
		if err != nil {
			s.logger.Warn().Err(err).Msg("remote filter not merged in the response")
		}
	}

	data, err := filter.MarshalBinary()
	if err != nil {
		return types.ProposalResponse{}, xerrors.Errorf("failed to encode filter: %v", err)
	}

	resp := types.ProposalResponse{
		BloomFilter:  data,
		Proposal:     p,
		ProposalHash: p.GetHash(),
	}

	return resp, nil
}

type observer struct {
	ch     chan ordering.Event
	logger zerolog.Logger
}

func (obs *observer) NotifyCallback(event interface{}) {
	select {
	case obs.ch <- event.(ordering.Event):
	default:
		obs.logger.Warn().Msgf("watcher is full, event %T dropped", event)
	}
}

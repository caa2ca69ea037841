package minogrpc

import (
	"context"
	"net"

	otgrpc "github.com/opentracing-contrib/go-grpc"
	"github.com/opentracing/opentracing-go"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/odo"
	"go.dedis.ch/odo/core/ordering"
	"go.dedis.ch/odo/core/ordering/ondemand/ledger"
	"go.dedis.ch/odo/core/txn"
	"go.dedis.ch/odo/internal/tracing"
	"go.dedis.ch/odo/mino/minogrpc/ptypes"
	"golang.org/x/xerrors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	gateService      = "ordering.OrderingGateTransportGrpc"
	transportService = "ordering.OrderingServiceTransportGrpc"
	orderingService  = "ordering.OnDemandOrdering"
	controlService   = "ordering.OnDemandControl"
)

// Node is the set of capabilities a server exposes.
type Node interface {
	ordering.GateTransport
	ordering.ServiceTransport
	ordering.OnDemandOrdering
	ordering.Engine
}

// Server is a gRPC server that forwards the calls to a local node.
type Server struct {
	logger   zerolog.Logger
	node     Node
	fac      txn.Factory
	grpcSrv  *grpc.Server
	listener net.Listener
	started  chan struct{}
	closing  chan error
}

// NewServer creates a server listening on the address and starts to serve the
// calls.
func NewServer(addr string, node Node, opts ...Option) (*Server, error) {
	tmpl := newTemplate(opts)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, xerrors.Errorf("failed to bind: %v", err)
	}

	if tmpl.tracer == nil {
		tmpl.tracer, err = tracing.GetTracer(listener.Addr().String())
		if err != nil {
			listener.Close()
			return nil, xerrors.Errorf("failed to get tracer: %v", err)
		}
	}

	srv := &Server{
		logger: odo.Logger.With().
			Str("component", "grpc").
			Stringer("addr", listener.Addr()).
			Logger(),
		node:     node,
		fac:      tmpl.fac,
		listener: listener,
		started:  make(chan struct{}),
		closing:  make(chan error, 1),
	}

	srv.grpcSrv = grpc.NewServer(
		grpc.ForceServerCodec(codec{}),
		grpc.ChainUnaryInterceptor(
			otgrpc.OpenTracingServerInterceptor(tmpl.tracer),
			srv.observe,
		),
	)

	for _, desc := range serviceDescs() {
		srv.grpcSrv.RegisterService(desc, srv)
	}

	srv.listen()

	return srv, nil
}

// GetAddress returns the address the server is listening on.
func (s *Server) GetAddress() net.Addr {
	return s.listener.Addr()
}

// GracefulStop stops the server after the pending calls are done.
func (s *Server) GracefulStop() error {
	s.grpcSrv.GracefulStop()

	return s.postCheckClose()
}

// Stop stops the server immediately.
func (s *Server) Stop() error {
	s.grpcSrv.Stop()

	return s.postCheckClose()
}

func (s *Server) postCheckClose() error {
	err := <-s.closing
	if err != nil {
		return xerrors.Errorf("server stopped unexpectedly: %v", err)
	}

	return nil
}

func (s *Server) listen() {
	go func() {
		close(s.started)

		err := s.grpcSrv.Serve(s.listener)
		if err != nil {
			s.closing <- xerrors.Errorf("failed to serve: %v", err)
		}

		close(s.closing)
	}()

	// The server has well started after that point.
	<-s.started

	s.logger.Info().Msg("server is listening")
}

// observe is an interceptor that counts the calls per status code.
func (s *Server) observe(ctx context.Context, req interface{},
	info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	span := opentracing.SpanFromContext(ctx)
	if span != nil {
		span.SetTag(tracing.OperationTag, info.FullMethod)
	}

	resp, err := handler(ctx, req)

	promCalls.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()

	return resp, err
}

func (s *Server) callLogger(method string) zerolog.Logger {
	return s.logger.With().Str("method", method).Stringer("call", xid.New()).Logger()
}

func (s *Server) onProposal(ctx context.Context, in *ptypes.Proposal) (*ptypes.Empty, error) {
	logger := s.callLogger("onProposal")

	p, err := proposalFromProto(s.fac, in)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid proposal")
		return nil, status.Errorf(codes.InvalidArgument, "invalid proposal: %v", err)
	}

	err = s.node.OnProposal(ctx, p)
	if err != nil {
		return nil, toStatus(err)
	}

	logger.Debug().Stringer("proposal", p).Msg("proposal received")

	return &ptypes.Empty{}, nil
}

func (s *Server) onBatch(ctx context.Context, in *ptypes.TransactionList) (*ptypes.Empty, error) {
	logger := s.callLogger("onBatch")

	txs, err := txsFromProto(s.fac, in.Transactions)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid transactions")
		return nil, status.Errorf(codes.InvalidArgument, "invalid transactions: %v", err)
	}

	err = s.node.OnBatch(ctx, txs)
	if err != nil {
		return nil, toStatus(err)
	}

	logger.Debug().Int("transactions", len(txs)).Msg("transactions received")

	return &ptypes.Empty{}, nil
}

func (s *Server) sendBatches(ctx context.Context, in *ptypes.BatchList) (*ptypes.Empty, error) {
	logger := s.callLogger("SendBatches")

	batches, err := batchesFromProto(s.fac, in.Batches)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid batches")
		return nil, status.Errorf(codes.InvalidArgument, "invalid batches: %v", err)
	}

	err = s.node.SendBatches(ctx, batches)
	if err != nil {
		return nil, toStatus(err)
	}

	logger.Debug().Int("batches", len(batches)).Msg("batches received")

	return &ptypes.Empty{}, nil
}

func (s *Server) requestProposal(ctx context.Context,
	in *ptypes.ProposalRequest) (*ptypes.ProposalResponse, error) {

	logger := s.callLogger("RequestProposal")

	req := requestFromProto(in)

	resp, err := s.node.RequestProposal(ctx, req)
	if err != nil {
		logger.Warn().Err(err).Stringer("round", req.Round).Msg("request failed")
		return nil, toStatus(err)
	}

	logger.Debug().
		Stringer("round", req.Round).
		Bool("filter", req.BloomFilter.IsPresent()).
		Stringer("proposal", resp.Proposal).
		Msg("proposal served")

	return responseToProto(resp), nil
}

func (s *Server) advance(ctx context.Context, in *ptypes.Round) (*ptypes.Empty, error) {
	round := roundFromProto(in)

	err := s.node.Advance(round)
	if err != nil {
		return nil, toStatus(err)
	}

	logger := s.callLogger("Advance")
	logger.Debug().Stringer("round", round).Msg("advanced")

	return &ptypes.Empty{}, nil
}

func (s *Server) commit(ctx context.Context, in *ptypes.Round) (*ptypes.Empty, error) {
	round := roundFromProto(in)

	err := s.node.Commit(round)
	if err != nil {
		return nil, toStatus(err)
	}

	logger := s.callLogger("Commit")
	logger.Debug().Stringer("round", round).Msg("committed")

	return &ptypes.Empty{}, nil
}

// toStatus converts the error of the node into a status of the gRPC protocol.
func toStatus(err error) error {
	switch {
	case xerrors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case xerrors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case xerrors.Is(err, ledger.ErrStaleRound):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

type callFn func(srv *Server, ctx context.Context, in ptypes.Message) (ptypes.Message, error)

// makeMethod returns the description of a unary method in the way the
// generated code of gRPC does it.
func makeMethod(service, method string, newIn func() ptypes.Message, call callFn) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method

	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error,
			interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

			in := newIn()

			err := dec(in)
			if err != nil {
				return nil, err
			}

			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(*Server), ctx, req.(ptypes.Message))
			}

			if interceptor == nil {
				return handler(ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod,
			}

			return interceptor(ctx, in, info, handler)
		},
	}
}

func serviceDescs() []*grpc.ServiceDesc {
	return []*grpc.ServiceDesc{
		{
			ServiceName: gateService,
			HandlerType: (*interface{})(nil),
			Methods: []grpc.MethodDesc{
				makeMethod(gateService, "onProposal",
					func() ptypes.Message { return new(ptypes.Proposal) },
					func(srv *Server, ctx context.Context, in ptypes.Message) (ptypes.Message, error) {
						return srv.onProposal(ctx, in.(*ptypes.Proposal))
					}),
			},
			Metadata: ptypes.ProtoFile,
		},
		{
			ServiceName: transportService,
			HandlerType: (*interface{})(nil),
			Methods: []grpc.MethodDesc{
				makeMethod(transportService, "onBatch",
					func() ptypes.Message { return new(ptypes.TransactionList) },
					func(srv *Server, ctx context.Context, in ptypes.Message) (ptypes.Message, error) {
						return srv.onBatch(ctx, in.(*ptypes.TransactionList))
					}),
			},
			Metadata: ptypes.ProtoFile,
		},
		{
			ServiceName: orderingService,
			HandlerType: (*interface{})(nil),
			Methods: []grpc.MethodDesc{
				makeMethod(orderingService, "SendBatches",
					func() ptypes.Message { return new(ptypes.BatchList) },
					func(srv *Server, ctx context.Context, in ptypes.Message) (ptypes.Message, error) {
						return srv.sendBatches(ctx, in.(*ptypes.BatchList))
					}),
				makeMethod(orderingService, "RequestProposal",
					func() ptypes.Message { return new(ptypes.ProposalRequest) },
					func(srv *Server, ctx context.Context, in ptypes.Message) (ptypes.Message, error) {
						return srv.requestProposal(ctx, in.(*ptypes.ProposalRequest))
					}),
			},
			Metadata: ptypes.ProtoFile,
		},
		{
			ServiceName: controlService,
			HandlerType: (*interface{})(nil),
			Methods: []grpc.MethodDesc{
				makeMethod(controlService, "Advance",
					func() ptypes.Message { return new(ptypes.Round) },
					func(srv *Server, ctx context.Context, in ptypes.Message) (ptypes.Message, error) {
						return srv.advance(ctx, in.(*ptypes.Round))
					}),
				makeMethod(controlService, "Commit",
					func() ptypes.Message { return new(ptypes.Round) },
					func(srv *Server, ctx context.Context, in ptypes.Message) (ptypes.Message, error) {
						return srv.commit(ctx, in.(*ptypes.Round))
					}),
			},
			Metadata: ptypes.ProtoFile,
		},
	}
}

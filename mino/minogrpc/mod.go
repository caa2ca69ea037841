// Package minogrpc implements the transport of the ordering service over
// gRPC.
//
// The services are declared by hand with the names expected by the peers and
// the messages are encoded in the protobuf wire format by the ptypes package.
// A server exposes a local service to the network and a client implements the
// same capabilities by calling a distant server.
package minogrpc

import (
	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/odo"
	"go.dedis.ch/odo/core/txn"
)

var (
	promCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odo_grpc_calls_total",
		Help: "number of RPC calls received by method and status code",
	}, []string{"method", "code"})
)

func init() {
	odo.PromCollectors = append(odo.PromCollectors, promCalls)
}

type template struct {
	tracer opentracing.Tracer
	fac    txn.Factory
}

// Option is the type of option to create a server or a client.
type Option func(*template)

// WithTracer sets the tracer of the calls. By default, a jaeger tracer
// configured from the environment is used.
func WithTracer(tracer opentracing.Tracer) Option {
	return func(tmpl *template) {
		tmpl.tracer = tracer
	}
}

// WithTransactionFactory sets the factory used to instantiate the transactions
// received from the network.
func WithTransactionFactory(fac txn.Factory) Option {
	return func(tmpl *template) {
		tmpl.fac = fac
	}
}

func newTemplate(opts []Option) template {
	tmpl := template{
		fac: txn.NewFactory(),
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	return tmpl
}

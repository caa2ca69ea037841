// Package tracing provides the tracers of the RPCs. A tracer is created per
// service name and it is configured from the environment variables of jaeger
// (JAEGER_AGENT_HOST, JAEGER_SAMPLER_TYPE, ...).
package tracing

import (
	"io"
	"sync"

	opentracing "github.com/opentracing/opentracing-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"golang.org/x/xerrors"
)

// OperationTag is the span tag of the ordering operation of a call.
const OperationTag = "ordering.operation"

type closableTracer struct {
	tracer opentracing.Tracer
	closer io.Closer
}

type catalog struct {
	sync.Mutex

	tracers map[string]closableTracer
}

var tracers = catalog{
	tracers: make(map[string]closableTracer),
}

// GetTracer returns the tracer of the service. The tracers are cached so it
// returns the existing one if it has been initialized before.
func GetTracer(service string) (opentracing.Tracer, error) {
	tracers.Lock()
	defer tracers.Unlock()

	tc, ok := tracers.tracers[service]
	if ok {
		return tc.tracer, nil
	}

	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		return nil, xerrors.Errorf("failed to parse jaeger configuration: %v", err)
	}

	cfg.ServiceName = service

	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, xerrors.Errorf("failed to create tracer: %v", err)
	}

	tracers.tracers[service] = closableTracer{
		tracer: tracer,
		closer: closer,
	}

	return tracer, nil
}

// CloseAll closes all the tracers and forgets them. It returns the first error
// but it tries to close every tracer.
func CloseAll() error {
	tracers.Lock()
	defer tracers.Unlock()

	var first error

	for service, tc := range tracers.tracers {
		err := tc.closer.Close()
		if err != nil && first == nil {
			first = xerrors.Errorf("failed to close tracer '%s': %v", service, err)
		}

		delete(tracers.tracers, service)
	}

	return first
}

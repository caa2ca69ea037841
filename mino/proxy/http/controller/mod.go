// Package controller implements the initializer of the HTTP proxy of a node,
// which exposes the Prometheus metrics.
package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.dedis.ch/odo"
	"go.dedis.ch/odo/cli"
	"go.dedis.ch/odo/cli/node"
	"go.dedis.ch/odo/mino/proxy"
	"go.dedis.ch/odo/mino/proxy/http"
	"golang.org/x/xerrors"
)

const (
	// AddrFlag is the start flag holding the address of the proxy. The proxy
	// is disabled when it is empty.
	AddrFlag = "metrics-addr"

	// PathFlag is the start flag holding the path of the metrics handler.
	PathFlag = "metrics-path"

	defaultAddr = "127.0.0.1:8080"
	defaultProm = "/metrics"
)

var proxyFac = func(addr string) (proxy.Proxy, error) {
	return http.NewHTTP(addr)
}

// NewController returns a new minimal initializer
func NewController() node.Initializer {
	return minimal{}
}

// minimal is an initializer with the minimum set of flags. It creates and
// injects a new proxy that exposes the collectors of the node.
//
// - implements node.Initializer
type minimal struct{}

// SetCommands implements node.Initializer. It only defines start flags.
func (m minimal) SetCommands(builder node.Builder) {
	builder.SetStartFlags(
		cli.StringFlag{
			Name:   AddrFlag,
			Usage:  "the address of the metrics server, empty to disable",
			EnvVar: "ODO_METRICS_ADDR",
			Value:  defaultAddr,
		},
		cli.StringFlag{
			Name:  PathFlag,
			Usage: "the path of the prometheus handler",
			Value: defaultProm,
		},
	)
}

// OnStart implements node.Initializer. It creates, starts, and registers a
// proxy with the prometheus handler.
func (m minimal) OnStart(flags cli.Flags, inj node.Injector) error {
	addr := flags.String(AddrFlag)
	if addr == "" {
		return nil
	}

	srv, err := proxyFac(addr)
	if err != nil {
		return xerrors.Errorf("failed to create proxy: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())

	for _, c := range odo.PromCollectors {
		err = registry.Register(c)
		if err != nil {
			odo.Logger.Warn().Err(err).Msg("failed to register collector")
		}
	}

	srv.RegisterHandler(flags.String(PathFlag),
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP)

	go func() {
		err := srv.Listen()
		if err != nil {
			odo.Logger.Err(err).Msg("metrics server stopped")
		}
	}()

	inj.Inject(srv)

	odo.Logger.Info().Stringer("addr", srv.GetAddr()).Msg("metrics server started")

	return nil
}

// OnStop implements node.Initializer. It stops the http server.
func (m minimal) OnStop(inj node.Injector) error {
	var srv proxy.Proxy
	err := inj.Resolve(&srv)
	if err == nil {
		srv.Stop()
	}

	return nil
}

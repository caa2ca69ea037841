package http

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/odo"
	"golang.org/x/xerrors"
)

type key int

const (
	requestIDKey key = 0

	shutdownTimeout = 10 * time.Second
)

// HTTP defines a proxy http
//
// - implements proxy.Proxy
type HTTP struct {
	mux    *http.ServeMux
	server *http.Server
	ln     net.Listener
	logger zerolog.Logger
}

// NewHTTP binds the address and creates a new proxy http. An empty address or
// a zero port selects a random free port.
func NewHTTP(listenAddr string) (*HTTP, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, xerrors.Errorf("failed to bind '%s': %v", listenAddr, err)
	}

	logger := odo.Logger.With().
		Str("role", "http proxy").
		Stringer("addr", ln.Addr()).
		Logger()

	mux := http.NewServeMux()

	return &HTTP{
		mux: mux,
		server: &http.Server{
			Handler:           tracing(nextRequestID)(logging(logger)(mux)),
			ReadHeaderTimeout: 10 * time.Second,
		},
		ln:     ln,
		logger: logger,
	}, nil
}

// GetAddr implements proxy.Proxy.
func (h *HTTP) GetAddr() net.Addr {
	return h.ln.Addr()
}

// Listen implements proxy.Proxy. It serves the requests until the server is
// stopped.
func (h *HTTP) Listen() error {
	h.logger.Info().Msg("server is ready to handle requests")

	err := h.server.Serve(h.ln)
	if err != nil && err != http.ErrServerClosed {
		return xerrors.Errorf("failed to serve: %v", err)
	}

	h.logger.Info().Msg("server stopped")

	return nil
}

// Stop implements proxy.Proxy. It waits for the active requests to finish.
func (h *HTTP) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	h.server.SetKeepAlivesEnabled(false)

	err := h.server.Shutdown(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("could not gracefully shutdown the server")
	}
}

// RegisterHandler implements proxy.Proxy
func (h *HTTP) RegisterHandler(path string, handler func(http.ResponseWriter,
	*http.Request)) {

	h.mux.HandleFunc(path, handler)
}

func nextRequestID() string {
	return xid.New().String()
}

// logging is a utility function that logs the http server events
func logging(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				requestID, ok := r.Context().Value(requestIDKey).(string)
				if !ok {
					requestID = "unknown"
				}
				logger.Debug().Str("requestID", requestID).
					Str("method", r.Method).
					Str("url", r.URL.Path).
					Str("remoteAddr", r.RemoteAddr).
					Str("agent", r.UserAgent()).Msg("")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// tracing is a utility function that adds header tracing
func tracing(nextRequestID func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-Id")
			if requestID == "" {
				requestID = nextRequestID()
			}
			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			w.Header().Set("X-Request-Id", requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

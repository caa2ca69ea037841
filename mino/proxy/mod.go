// Package proxy defines the HTTP side door of a node, used to expose endpoints
// like the metrics next to the gRPC transport.
package proxy

import (
	"net"
	"net/http"
)

// Proxy defines the primitives of an HTTP server that handles client side
// requests.
type Proxy interface {
	// Listen starts the proxy server. This call is assumed to be blocking.
	Listen() error

	// Stop stops the proxy server.
	Stop()

	// GetAddr returns the address the server is bound to.
	GetAddr() net.Addr

	// RegisterHandler registers a new handler.
	RegisterHandler(path string, handler func(http.ResponseWriter, *http.Request))
}

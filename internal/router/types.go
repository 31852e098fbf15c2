// Package router implements the HTTP edge the DAV core plugs into:
// method dispatch to internal/dav.Handler, Basic-auth middleware,
// structured request logging, and Prometheus instrumentation.
package router

import (
	"github.com/rs/zerolog"
	"github.com/sonroyaalmerol/go-davcore/internal/auth"
	"github.com/sonroyaalmerol/go-davcore/internal/config"
	"github.com/sonroyaalmerol/go-davcore/internal/dav"
)

// Router owns the HTTP mux and wraps every DAV method except OPTIONS
// with authentication, logging, and metrics.
type Router struct {
	config  *config.Config
	handler *dav.Handler
	authn   *auth.Authenticator
	logger  zerolog.Logger
}

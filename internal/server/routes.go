package server

import (
	"net/http"

	"github.com/dgellow/popauth/internal/idp"
)

// NewHandler builds the routed, middleware-wrapped handler of the login service
func NewHandler(providers *idp.Registry, allowedOrigins []string) http.Handler {
	strategies := make([]string, 0)
	for _, s := range providers.Strategies() {
		strategies = append(strategies, string(s))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health", NewHealthHandler(strategies...))
	mux.Handle("POST "+LoginPath, NewLoginHandler(providers))

	return ChainMiddleware(mux,
		NewCORSMiddleware(allowedOrigins),
		NewLoggerMiddleware("server"),
		NewRecoverMiddleware("server"),
	)
}

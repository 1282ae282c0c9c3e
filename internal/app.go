package internal

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgellow/popauth/internal/config"
	"github.com/dgellow/popauth/internal/idp"
	"github.com/dgellow/popauth/internal/log"
	"github.com/dgellow/popauth/internal/server"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// App is the login service with all dependencies built
type App struct {
	config     config.Config
	providers  *idp.Registry
	httpServer *server.HTTPServer
}

// NewApp builds the login service from cfg
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	providers, err := idp.NewRegistryFromConfig(cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("failed to setup providers: %w", err)
	}

	log.LogInfoWithFields("app", "Building login service", map[string]any{
		"baseURL":    cfg.Server.BaseURL,
		"strategies": providers.Strategies(),
	})

	return &App{
		config:     cfg,
		providers:  providers,
		httpServer: server.NewHTTPServer(BuildHandler(cfg, providers), cfg.Server.Addr),
	}, nil
}

// BuildHandler assembles the HTTP handler of the login service
func BuildHandler(cfg config.Config, providers *idp.Registry) http.Handler {
	return server.NewHandler(providers, cfg.Server.AllowedOrigins)
}

// Run serves until SIGINT, SIGTERM or ctx cancellation, then shuts down gracefully
func (a *App) Run(ctx context.Context) error {
	addr := a.httpServer.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.LogInfoWithFields("app", "Starting login service", map[string]any{
		"addr": ln.Addr().String(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.httpServer.Serve(ln); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		reason := "context cancelled"
		if ctx.Err() == nil {
			reason = "server error"
		}
		log.LogInfoWithFields("app", "Starting graceful shutdown", map[string]any{
			"reason":  reason,
			"timeout": shutdownTimeout.String(),
		})

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return a.httpServer.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.LogErrorWithFields("app", "Login service stopped with error", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	log.LogInfoWithFields("app", "Application shutdown complete", nil)
	return nil
}

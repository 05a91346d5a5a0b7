package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/liut/medilink/pkg/services/consulting"
)

func logger() *zap.SugaredLogger {
	return zap.S()
}

type Service interface {
	Serve(ctx context.Context) error
	Stop(ctx context.Context) error
}

type Config struct {
	Addr  string
	Debug bool

	Session    *consulting.Session
	StartLimit string // formatted rate of analysis starts per client, empty for none
}

type server struct {
	Addr string
	cfg  Config

	sess *consulting.Session

	ar *chi.Mux     // app router
	hs *http.Server // http server
}

// New return new web server
func New(cfg Config) Service {
	return newServer(cfg)
}

func newServer(cfg Config) *server {
	ar := chi.NewMux()
	if cfg.Debug {
		ar.Use(middleware.Logger)
	}
	ar.Use(middleware.Recoverer, middleware.RealIP, corsMw)

	s := &server{
		Addr: cfg.Addr, ar: ar,
		cfg:  cfg,
		sess: cfg.Session,
	}
	s.strapRouter()

	s.hs = &http.Server{
		Addr:    s.Addr,
		Handler: s.ar,
	}

	if cfg.Debug {
		logger().Infow("routes:")
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			route = strings.Replace(route, "/*/", "/", -1)
			fmt.Fprintf(os.Stderr, "DEBUG: %-6s %-28s --> %s (%d mw)\n", method, route, nameOfFunction(handler), len(middlewares))
			return nil
		}

		if err := chi.Walk(ar, walkFunc); err != nil {
			logger().Infow("router walk fail", "err", err)
		}
	}
	return s
}

func (s *server) Serve(ctx context.Context) error {
	// Run HTTP server
	runErrChan := make(chan error, 1)
	t := time.AfterFunc(time.Millisecond*200, func() {
		runErrChan <- s.hs.ListenAndServe()
	})

	defer t.Stop()
	logger().Infow("Listen on", "addr", s.hs.Addr)

	// Wait
	for {
		select {
		case runErr := <-runErrChan:
			if runErr != nil && runErr != http.ErrServerClosed {
				logger().Infow("run http server failed",
					"err", runErr,
				)
				return runErr
			}
			logger().Info("http server has been stopped")
			return nil
		case <-ctx.Done():
			logger().Info("http server context done")
			return ctx.Err()
		}
	}
}

func (s *server) Stop(ctx context.Context) error {
	if err := s.hs.Shutdown(ctx); err != nil {
		logger().Infow("Server Shutdown", "err", err)
		return err
	}
	return nil
}

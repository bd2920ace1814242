package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bz888/sagan/internal/logger"
	"github.com/gin-gonic/gin"
)

type Options struct {
	Addr string
	// BackendURL is the chat endpoint requests are forwarded to.
	BackendURL string
	// BackendTimeout bounds a whole backend call. Zero means no limit.
	BackendTimeout time.Duration
	Dev            bool
}

// Server is the chat proxy. It holds no per-request state.
type Server struct {
	opts    Options
	backend *http.Client
	engine  *gin.Engine
	log     *logger.Logger
}

func New(opts Options) *Server {
	s := &Server{
		opts:    opts,
		backend: &http.Client{Timeout: opts.BackendTimeout},
		log:     logger.NewLogger("proxy"),
	}
	s.engine = newEngine(opts.Dev, s.log)
	s.registerRoutes()
	return s
}

// Handler exposes the routes, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Proxy started on http://localhost"+s.opts.Addr+"/", "forwarding to", s.opts.BackendURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info("Shutting down proxy")
	return srv.Shutdown(shutdownCtx)
}

func newEngine(dev bool, log *logger.Logger) *gin.Engine {
	if dev {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.LoggerWithWriter(log.Writer()), gin.RecoveryWithWriter(log.Writer()))
	return engine
}

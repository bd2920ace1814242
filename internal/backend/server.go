package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bz888/sagan/internal/backend/provider"
	"github.com/bz888/sagan/internal/logger"
	"github.com/gin-gonic/gin"
)

type Options struct {
	Addr    string
	Catalog *Catalog
	// Providers overrides the clients built from the catalog, keyed by provider name.
	Providers map[string]provider.Provider
	Dev       bool
}

// Server answers chat requests with the streamed reply of an upstream model.
type Server struct {
	opts      Options
	catalog   *Catalog
	providers map[string]provider.Provider
	engine    *gin.Engine
	log       *logger.Logger
}

func New(opts Options) (*Server, error) {
	if opts.Catalog == nil {
		return nil, errors.New("backend needs a model catalog")
	}

	providers := opts.Providers
	if providers == nil {
		var err error
		providers, err = BuildProviders(opts.Catalog)
		if err != nil {
			return nil, err
		}
	}
	for id, m := range opts.Catalog.Models {
		if _, ok := providers[m.Provider]; !ok {
			return nil, fmt.Errorf("model %q: no client for provider %q", id, m.Provider)
		}
	}

	s := &Server{
		opts:      opts,
		catalog:   opts.Catalog,
		providers: providers,
		log:       logger.NewLogger("backend"),
	}
	s.engine = newEngine(opts.Dev, s.log)
	s.registerRoutes()
	return s, nil
}

// BuildProviders creates one upstream client per catalog provider.
func BuildProviders(cat *Catalog) (map[string]provider.Provider, error) {
	providers := make(map[string]provider.Provider, len(cat.Providers))
	for name, p := range cat.Providers {
		var (
			client provider.Provider
			err    error
		)
		switch p.Kind {
		case KindOpenAI:
			client, err = provider.NewOpenAIClient(provider.OpenAIConfig{
				Name:      name,
				BaseURL:   p.BaseURL,
				APIKeyEnv: p.APIKeyEnv,
			})
		case KindOllama:
			client, err = provider.NewOllamaClient(p.BaseURL)
		default:
			err = fmt.Errorf("unknown kind %q", p.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		providers[name] = client
	}
	return providers, nil
}

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
		s.log.Info("Backend started on http://localhost" + s.opts.Addr + "/")
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
	s.log.Info("Shutting down backend")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	api.POST("/chat", s.chatHandler)
	api.GET("/models", s.modelsHandler)
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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	ModeAll     = "all"
	ModeServer  = "server"
	ModeProxy   = "proxy"
	ModeBackend = "backend"
	ModeClient  = "client"
)

type Config struct {
	Mode    string
	Dev     bool
	LogPath string

	ProxyAddr      string
	BackendAddr    string
	BackendURL     string
	BackendTimeout time.Duration

	// ProxyURL is where the terminal client sends its requests.
	ProxyURL    string
	CatalogPath string
	Model       string
}

func Default() Config {
	return Config{
		Mode:        ModeAll,
		ProxyAddr:   ":3000",
		BackendAddr: ":8000",
		BackendURL:  "http://localhost:8000/api/chat",
		ProxyURL:    "http://localhost:3000",
		Model:       "groq",
	}
}

// Init loads .env into the environment and parses the command line.
func Init() (Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()
	return Parse(os.Args[1:])
}

func Parse(args []string) (Config, error) {
	cfg := Default()

	fs := pflag.NewFlagSet(filepath.Base(os.Args[0]), pflag.ContinueOnError)
	fs.SortFlags = false
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "Processes to run: all, server, proxy, backend, client")
	fs.BoolVar(&cfg.Dev, "dev", cfg.Dev, "Development mode")
	fs.StringVar(&cfg.LogPath, "log-path", cfg.LogPath, "Directory to save the log file")
	fs.StringVar(&cfg.ProxyAddr, "proxy-addr", cfg.ProxyAddr, "Listen address of the chat proxy")
	fs.StringVar(&cfg.BackendAddr, "backend-addr", cfg.BackendAddr, "Listen address of the model backend")
	fs.StringVar(&cfg.BackendURL, "backend-url", cfg.BackendURL, "Chat endpoint the proxy forwards to")
	fs.DurationVar(&cfg.BackendTimeout, "backend-timeout", cfg.BackendTimeout, "Limit for a whole backend call, 0 for none")
	fs.StringVar(&cfg.ProxyURL, "proxy-url", cfg.ProxyURL, "Proxy base URL used by the terminal client")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "Model catalog YAML file, empty for the built-in one")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Initial model of the terminal client")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeAll, ModeServer, ModeProxy, ModeBackend, ModeClient:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if c.BackendTimeout < 0 {
		return fmt.Errorf("backend timeout must not be negative, got %s", c.BackendTimeout)
	}
	return nil
}

func (c Config) RunsProxy() bool {
	return c.Mode == ModeAll || c.Mode == ModeServer || c.Mode == ModeProxy
}

func (c Config) RunsBackend() bool {
	return c.Mode == ModeAll || c.Mode == ModeServer || c.Mode == ModeBackend
}

func (c Config) RunsClient() bool {
	return c.Mode == ModeAll || c.Mode == ModeClient
}

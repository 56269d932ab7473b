package server

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/pkg/stringsutil"
)

const defaultPort = "8080"

type Config struct {
	Port        string
	UseHttp2    bool
	CorsOrigins []string
	// ShutdownTimeout bounds draining of in-flight requests.
	ShutdownTimeout time.Duration
}

// LoadConfig reads PORT, USE_HTTP2, CORS_ORIGINS and SHUTDOWN_TIMEOUT. The dotenv
// file has already been applied by the caller.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:            os.Getenv("PORT"),
		UseHttp2:        os.Getenv("USE_HTTP2") == "true",
		CorsOrigins:     stringsutil.SplitNonEmpty(os.Getenv("CORS_ORIGINS"), ","),
		ShutdownTimeout: GracefulShutdownTimeout,
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if n, err := strconv.Atoi(cfg.Port); err != nil || n < 1 || n > 65535 {
		return nil, fmt.Errorf("PORT %q is not a tcp port", cfg.Port)
	}
	if len(cfg.CorsOrigins) == 0 {
		cfg.CorsOrigins = []string{"*"}
	}
	if raw := os.Getenv("SHUTDOWN_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("SHUTDOWN_TIMEOUT %q is not a positive duration", raw)
		}
		cfg.ShutdownTimeout = d
	}
	return cfg, nil
}

package es

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
)

const DefaultMaxRetries = 3

// ClientConfig addresses the cluster that mirrors articles for search.
type ClientConfig struct {
	Addresses []string
	IndexName string
	Username  string
	Password  string
	// MaxRetries bounds transport retries on gateway errors; zero means DefaultMaxRetries.
	MaxRetries int
}

var errNoAddresses = errors.New("no elasticsearch addresses configured")

func newTypedClient(cfg ClientConfig) (*elasticsearch.TypedClient, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errNoAddresses
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}

	esCfg := elasticsearch.Config{
		Addresses:     cfg.Addresses,
		MaxRetries:    retries,
		RetryOnStatus: []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
	}
	// Basic auth is only sent as a full pair.
	if cfg.Username != "" && cfg.Password != "" {
		esCfg.Username, esCfg.Password = cfg.Username, cfg.Password
	}

	client, err := elasticsearch.NewTypedClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client for %v: %w", cfg.Addresses, err)
	}
	return client, nil
}

// Package testing starts throwaway backing services for integration tests.
package testing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/elasticsearch"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage = "postgres:17.5"
	elasticImage  = "docker.elastic.co/elasticsearch/elasticsearch:8.12.0"
	planetDB      = "planet_test_db"
)

// Postgres is a PostgreSQL server with every up migration under db/migrations applied.
type Postgres struct {
	Container *postgres.PostgresContainer
	DSN       string
}

// StartPostgres runs Postgres for the lifetime of tb.
func StartPostgres(ctx context.Context, tb testing.TB) *Postgres {
	tb.Helper()

	pg, err := RunPostgres(ctx, planetDB)
	if err != nil {
		tb.Fatalf("postgres test container: %v", err)
	}
	terminateOnCleanup(tb, pg.Container)
	return pg
}

// RunPostgres starts a server the caller must terminate.
func RunPostgres(ctx context.Context, database string) (*Postgres, error) {
	scripts, err := upMigrations()
	if err != nil {
		return nil, err
	}

	c, err := postgres.Run(ctx, image("PG_TEST_IMAGE", postgresImage),
		postgres.WithDatabase(database),
		postgres.WithUsername("planet"),
		postgres.WithPassword("planet"),
		postgres.WithInitScripts(scripts...),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, fmt.Errorf("run postgres: %w", err)
	}

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = testcontainers.TerminateContainer(c)
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}
	return &Postgres{Container: c, DSN: dsn}, nil
}

// Elasticsearch is a single search node reachable over plain http.
type Elasticsearch struct {
	Container *elasticsearch.ElasticsearchContainer
	URL       string
}

// StartElasticsearch runs a search node for the lifetime of tb.
func StartElasticsearch(ctx context.Context, tb testing.TB) *Elasticsearch {
	tb.Helper()

	c, err := elasticsearch.Run(ctx, image("ES_TEST_IMAGE", elasticImage),
		elasticsearch.WithPassword(""),
		testcontainers.WithEnv(map[string]string{"ES_JAVA_OPTS": "-Xms512m -Xmx512m"}),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/").WithPort("9200").WithStartupTimeout(90*time.Second),
		),
	)
	if err != nil {
		tb.Fatalf("elasticsearch test container: %v", err)
	}
	terminateOnCleanup(tb, c)

	url, err := c.PortEndpoint(ctx, "9200", "http")
	if err != nil {
		tb.Fatalf("elasticsearch endpoint: %v", err)
	}
	return &Elasticsearch{Container: c, URL: url}
}

func terminateOnCleanup(tb testing.TB, c testcontainers.Container) {
	tb.Cleanup(func() {
		if err := testcontainers.TerminateContainer(c); err != nil {
			tb.Logf("terminate %T: %v", c, err)
		}
	})
}

// upMigrations lists the schema scripts in apply order; the entrypoint runs them by name.
func upMigrations() ([]string, error) {
	_, self, _, _ := runtime.Caller(0)
	dir := filepath.Join(filepath.Dir(self), "..", "..", "db", "migrations")

	scripts, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations in %s: %w", dir, err)
	}
	if len(scripts) == 0 {
		return nil, fmt.Errorf("no up migrations in %s", dir)
	}
	sort.Strings(scripts)
	return scripts, nil
}

func image(envKey, fallback string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return fallback
}

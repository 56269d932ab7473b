package planet

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
	"github.com/DjordjeVuckovic/planet-sync/internal/storage/in_mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
kind: PlanetList
version: v1
metadata:
  name: "Friends"
planets:
  - name: "Go Blog"
    scheme: http
    feedUrl: "https://go.dev/blog/feed.atom"
  - scheme: ens
    ens: "vitalik.eth"
  - scheme: dnslink
    ens: "docs.ipfs.tech"
`

func TestSeedLoader_String_Load(t *testing.T) {
	// Arrange
	loader := NewSeedLoader(strings.NewReader(seedYAML))

	// Act
	list, err := loader.Load(true)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, SeedKind, list.Kind)
	assert.Equal(t, "v1", list.Version)
	assert.Equal(t, "Friends", list.Metadata.Name)
	require.Len(t, list.Planets, 3)
	assert.Equal(t, "https://go.dev/blog/feed.atom", list.Planets[0].FeedURL)
	assert.Equal(t, "vitalik.eth", list.Planets[1].ENS)
}

func TestSeedLoader_File_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	list, err := NewSeedLoader(file).Load(true)
	require.NoError(t, err)
	assert.Len(t, list.Planets, 3)
}

func TestSeedLoader_Validate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "wrong kind", yaml: "kind: DataMapping\nversion: v1\n"},
		{name: "missing version", yaml: "kind: PlanetList\n"},
		{name: "owned planet", yaml: "kind: PlanetList\nversion: v1\nplanets:\n  - scheme: planet\n"},
		{name: "bad feed url", yaml: "kind: PlanetList\nversion: v1\nplanets:\n  - scheme: http\n    feedUrl: ftp://x\n"},
		{name: "not an ens name", yaml: "kind: PlanetList\nversion: v1\nplanets:\n  - scheme: ens\n    ens: example.com\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSeedLoader(strings.NewReader(tt.yaml)).Load(true)
			assert.Error(t, err)

			_, err = NewSeedLoader(strings.NewReader(tt.yaml)).Load(false)
			assert.NoError(t, err)
		})
	}
}

func TestService_ApplySeedIsIdempotent(t *testing.T) {
	store := in_mem.NewInMemStorer()
	svc := NewService(store, nil)
	list, err := NewSeedLoader(strings.NewReader(seedYAML)).Load(true)
	require.NoError(t, err)

	created, err := svc.ApplySeed(context.Background(), list)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	created, err = svc.ApplySeed(context.Background(), list)
	require.NoError(t, err)
	assert.Zero(t, created)

	planets, err := store.ListPlanets(context.Background())
	require.NoError(t, err)
	require.Len(t, planets, 3)

	schemes := map[domain.Scheme]int{}
	for _, p := range planets {
		schemes[p.Scheme]++
	}
	assert.Equal(t, map[domain.Scheme]int{domain.SchemeHTTP: 1, domain.SchemeENS: 1, domain.SchemeDNSLink: 1}, schemes)
}

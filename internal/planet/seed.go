package planet

import (
	"fmt"
	"io"
	"strings"

	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
	"gopkg.in/yaml.v3"
)

const SeedKind = "PlanetList"

// PlanetList is the YAML seed file of followed planets.
type PlanetList struct {
	Kind     string       `yaml:"kind"`
	Version  string       `yaml:"version"`
	Metadata SeedMetadata `yaml:"metadata"`
	Planets  []SeedPlanet `yaml:"planets"`
}

type SeedMetadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type SeedPlanet struct {
	Name    string `yaml:"name"`
	Scheme  string `yaml:"scheme"`
	FeedURL string `yaml:"feedUrl"`
	// ENS holds the ENS name for "ens" planets and the domain for "dnslink" planets.
	ENS string `yaml:"ens"`
}

func (l *PlanetList) Validate() error {
	if l.Kind != SeedKind {
		return fmt.Errorf("kind must be %s, got %q", SeedKind, l.Kind)
	}
	if l.Version == "" {
		return fmt.Errorf("version is required")
	}
	for i, p := range l.Planets {
		if _, err := p.toPlanet(); err != nil {
			return fmt.Errorf("planets[%d]: %w", i, err)
		}
	}
	return nil
}

func (s SeedPlanet) toPlanet() (*domain.Planet, error) {
	scheme, err := domain.ParseScheme(s.Scheme)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case domain.SchemeHTTP:
		return domain.NewHTTPFeedPlanet(s.Name, s.FeedURL)
	case domain.SchemeENS:
		return domain.NewENSPlanet(s.ENS)
	case domain.SchemeDNSLink:
		return domain.NewDNSLinkPlanet(s.ENS)
	}
	return nil, fmt.Errorf("scheme %q cannot be seeded", s.Scheme)
}

// key identifies a seeded planet among existing ones.
func (s SeedPlanet) key() string {
	if s.FeedURL != "" {
		return s.FeedURL
	}
	return strings.ToLower(strings.TrimSpace(s.ENS))
}

type SeedLoader struct {
	reader io.Reader
}

func NewSeedLoader(reader io.Reader) *SeedLoader {
	return &SeedLoader{
		reader: reader,
	}
}

func (sl *SeedLoader) Load(validate bool) (*PlanetList, error) {
	decoder := yaml.NewDecoder(sl.reader)
	var list PlanetList
	if err := decoder.Decode(&list); err != nil {
		return nil, err
	}
	if validate {
		if err := list.Validate(); err != nil {
			return nil, err
		}
	}
	return &list, nil
}

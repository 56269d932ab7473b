package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Scheme identifies how a planet's content is addressed.
type Scheme string

const (
	// SchemeOwned is a planet this node authors and publishes under its own IPNS key.
	SchemeOwned Scheme = "planet"
	// SchemeENS is a followed planet whose content is found through an ENS name.
	SchemeENS Scheme = "ens"
	// SchemeHTTP is a followed plain RSS/Atom/JSON feed on the web.
	SchemeHTTP Scheme = "http"
	// SchemeDNSLink is reserved for followed planets addressed via DNSLink.
	SchemeDNSLink Scheme = "dnslink"
)

func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case SchemeOwned:
		return SchemeOwned, nil
	case SchemeENS:
		return SchemeENS, nil
	case SchemeHTTP:
		return SchemeHTTP, nil
	case SchemeDNSLink:
		return SchemeDNSLink, nil
	}
	return "", fmt.Errorf("unknown planet scheme %q", s)
}

// OwnedFields are populated only for planets published by this node.
type OwnedFields struct {
	KeyName          string     `json:"keyName"`
	KeyID            string     `json:"keyId"`
	IPNS             string     `json:"ipns"`
	LastPublishedCID string     `json:"lastPublishedCid,omitempty"`
	LastPublishedAt  *time.Time `json:"lastPublishedAt,omitempty"`
}

// ENSFields are populated only for planets followed through an ENS name.
type ENSFields struct {
	Name string `json:"name"`
	CID  string `json:"cid,omitempty"`
}

// FeedFields are populated only for planets followed through a web feed.
type FeedFields struct {
	Host     string `json:"host"`
	FeedURL  string `json:"feedUrl"`
	Checksum string `json:"checksum,omitempty"`
}

// Planet is a source of articles. Exactly one of Owned, ENS or Feed is set;
// DNSLink planets reuse ENSFields for their name and last resolved CID.
type Planet struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	About     string    `json:"about"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Scheme Scheme       `json:"scheme"`
	Owned  *OwnedFields `json:"owned,omitempty"`
	ENS    *ENSFields   `json:"ens,omitempty"`
	Feed   *FeedFields  `json:"feed,omitempty"`
}

var (
	ErrInvalidPlanet = errors.New("invalid planet")
)

func NewOwnedPlanet(name, about, keyName, keyID string) (*Planet, error) {
	if keyName == "" || keyID == "" {
		return nil, fmt.Errorf("%w: owned planet requires a key name and key id", ErrInvalidPlanet)
	}
	p := newPlanet(name, about, SchemeOwned)
	p.Owned = &OwnedFields{KeyName: keyName, KeyID: keyID, IPNS: keyID}
	return p, p.Validate()
}

func NewENSPlanet(ensName string) (*Planet, error) {
	ensName = strings.ToLower(strings.TrimSpace(ensName))
	if !strings.HasSuffix(ensName, ".eth") {
		return nil, fmt.Errorf("%w: %q is not an ENS name", ErrInvalidPlanet, ensName)
	}
	p := newPlanet(ensName, "", SchemeENS)
	p.ENS = &ENSFields{Name: ensName}
	return p, p.Validate()
}

func NewDNSLinkPlanet(domain string) (*Planet, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" || !strings.Contains(domain, ".") {
		return nil, fmt.Errorf("%w: %q is not a domain", ErrInvalidPlanet, domain)
	}
	p := newPlanet(domain, "", SchemeDNSLink)
	p.ENS = &ENSFields{Name: domain}
	return p, p.Validate()
}

func NewHTTPFeedPlanet(name, feedURL string) (*Planet, error) {
	host, err := hostOf(feedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlanet, err)
	}
	if name == "" {
		name = host
	}
	p := newPlanet(name, "", SchemeHTTP)
	p.Feed = &FeedFields{Host: host, FeedURL: feedURL}
	return p, p.Validate()
}

func newPlanet(name, about string, scheme Scheme) *Planet {
	now := time.Now().UTC()
	return &Planet{
		ID:        uuid.New(),
		Name:      name,
		About:     about,
		CreatedAt: now,
		UpdatedAt: now,
		Scheme:    scheme,
	}
}

// Validate checks that the variant fields match the scheme and nothing else is set.
func (p *Planet) Validate() error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("%w: missing id", ErrInvalidPlanet)
	}

	set := 0
	for _, present := range []bool{p.Owned != nil, p.ENS != nil, p.Feed != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: expected exactly one scheme variant, got %d", ErrInvalidPlanet, set)
	}

	switch p.Scheme {
	case SchemeOwned:
		if p.Owned == nil || p.Owned.KeyName == "" || p.Owned.KeyID == "" {
			return fmt.Errorf("%w: owned planet without signing key", ErrInvalidPlanet)
		}
	case SchemeENS, SchemeDNSLink:
		if p.ENS == nil || p.ENS.Name == "" {
			return fmt.Errorf("%w: %s planet without name", ErrInvalidPlanet, p.Scheme)
		}
	case SchemeHTTP:
		if p.Feed == nil || p.Feed.FeedURL == "" {
			return fmt.Errorf("%w: feed planet without feed url", ErrInvalidPlanet)
		}
	default:
		return fmt.Errorf("%w: unknown scheme %q", ErrInvalidPlanet, p.Scheme)
	}
	return nil
}

// IsOwned reports whether this node holds the signing key for the planet.
func (p *Planet) IsOwned() bool {
	return p.Owned != nil && p.Owned.KeyName != "" && p.Owned.KeyID != ""
}

// Pointer returns the IPNS name for owned planets, or the ENS/DNSLink name otherwise.
func (p *Planet) Pointer() string {
	switch {
	case p.Owned != nil:
		return p.Owned.IPNS
	case p.ENS != nil:
		return p.ENS.Name
	}
	return ""
}

// ContentAddress is the last resolved CID of a name-resolved planet.
func (p *Planet) ContentAddress() string {
	if p.ENS != nil {
		return p.ENS.CID
	}
	return ""
}

// UpdateMetadata applies non-empty values only.
func (p *Planet) UpdateMetadata(name, about string) bool {
	changed := false
	if name != "" && name != p.Name {
		p.Name = name
		changed = true
	}
	if about != "" && about != p.About {
		p.About = about
		changed = true
	}
	if changed {
		p.UpdatedAt = time.Now().UTC()
	}
	return changed
}

package ipfs

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/DjordjeVuckovic/planet-sync/internal/fetch"
)

const DefaultENSMetadataURL = "https://metadata.ens.domains/mainnet/avatar/"

// ENSAvatars fetches ENS avatar images from the ENS metadata service.
type ENSAvatars struct {
	fetcher fetch.Fetcher
	baseURL string
}

func NewENSAvatars(f fetch.Fetcher, baseURL string) *ENSAvatars {
	if baseURL == "" {
		baseURL = DefaultENSMetadataURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &ENSAvatars{fetcher: f, baseURL: baseURL}
}

// Avatar returns nil without error when the name has no avatar.
func (e *ENSAvatars) Avatar(ctx context.Context, name string) ([]byte, error) {
	body, status, err := e.fetcher.Get(ctx, e.baseURL+url.PathEscape(name))
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

// NameService combines kubo name resolution with ENS avatar lookup.
type NameService struct {
	*Kubo
	*ENSAvatars
}

func NewNameService(k *Kubo, avatars *ENSAvatars) *NameService {
	return &NameService{Kubo: k, ENSAvatars: avatars}
}

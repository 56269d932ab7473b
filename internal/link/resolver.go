package link

import (
	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
)

// Resolve builds the public URL of an article under the given gateway host.
// Feed planets return the article link verbatim and ignore the gateway.
func Resolve(planet *domain.Planet, article *domain.Article, gateway domain.Gateway) string {
	if gateway == "" {
		gateway = domain.DefaultGateway
	}
	path := article.Link

	switch planet.Scheme {
	case domain.SchemeHTTP:
		return article.Link
	case domain.SchemeENS:
		if cid := planet.ContentAddress(); cid != "" {
			return "https://" + string(gateway) + "/ipfs/" + cid + path
		}
	}
	return "https://" + string(gateway) + "/ipns/" + planet.Pointer() + path
}

// ForGateways resolves the same article under every public gateway, in gateway order.
func ForGateways(planet *domain.Planet, article *domain.Article) map[domain.Gateway]string {
	links := make(map[domain.Gateway]string, len(domain.Gateways()))
	for _, gw := range domain.Gateways() {
		links[gw] = Resolve(planet, article, gw)
	}
	return links
}

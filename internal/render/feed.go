package render

import (
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
)

const jsonFeedVersion = "https://jsonfeed.org/version/1.1"

type jsonFeed struct {
	Version     string         `json:"version"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Items       []jsonFeedItem `json:"items"`
}

type jsonFeedItem struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Title         string `json:"title"`
	ContentHTML   string `json:"content_html,omitempty"`
	Summary       string `json:"summary,omitempty"`
	DatePublished string `json:"date_published"`
}

// newJSONFeed uses article ids as item ids so followers can refresh by identity.
func newJSONFeed(planet *domain.Planet, articles []domain.Article) jsonFeed {
	items := make([]jsonFeedItem, 0, len(articles))
	for _, a := range articles {
		item := jsonFeedItem{
			ID:            a.ID.String(),
			URL:           a.Link,
			Title:         a.Title,
			Summary:       a.Summary,
			DatePublished: a.CreatedAt.UTC().Format(time.RFC3339),
		}
		if a.Content != nil {
			item.ContentHTML = *a.Content
		}
		items = append(items, item)
	}
	return jsonFeed{
		Version:     jsonFeedVersion,
		Title:       planet.Name,
		Description: planet.About,
		Items:       items,
	}
}

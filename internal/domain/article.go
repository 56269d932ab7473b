package domain

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

type Article struct {
	ID        uuid.UUID  `json:"id"`
	PlanetID  uuid.UUID  `json:"planetId"`
	Title     string     `json:"title"`
	Content   *string    `json:"content,omitempty"`
	Summary   string     `json:"summary,omitempty"`
	Link      string     `json:"link"`
	CreatedAt time.Time  `json:"createdAt"`
	Read      bool       `json:"read"`
	StarredAt *time.Time `json:"starredAt,omitempty"`
	HasVideo  bool       `json:"hasVideo"`
	HasAudio  bool       `json:"hasAudio"`
}

// FeedEntry is a parsed feed item before it becomes an Article. It is never persisted.
type FeedEntry struct {
	ID        string
	CreatedAt time.Time
	Title     string
	Content   string
	Summary   string
	Link      string
	HasVideo  bool
	HasAudio  bool
}

// OwnedArticleLink is the canonical link of an article on an owned planet.
func OwnedArticleLink(id uuid.UUID) string {
	return "/" + id.String() + "/"
}

// NewOwnedArticle creates an article authored on this node. The caller assigns the id
// so later edits overwrite it in place; any link supplied elsewhere is ignored.
func NewOwnedArticle(planet *Planet, id uuid.UUID, title, content string, createdAt time.Time) (*Article, error) {
	if planet == nil || !planet.IsOwned() {
		return nil, fmt.Errorf("%w: articles can only be authored on owned planets", ErrInvalidPlanet)
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	a := &Article{
		ID:        id,
		PlanetID:  planet.ID,
		Title:     title,
		Content:   &content,
		Link:      OwnedArticleLink(id),
		CreatedAt: createdAt,
		Read:      true,
	}
	return a, nil
}

// NewIngestedArticle builds an article for a followed planet from a feed entry.
// The id is synthesized unless keepID is set and the entry carries a uuid.
func NewIngestedArticle(planetID uuid.UUID, entry FeedEntry, keepID bool) Article {
	id := uuid.Nil
	if keepID {
		if parsed, err := uuid.Parse(entry.ID); err == nil {
			id = parsed
		}
	}
	if id == uuid.Nil {
		id = uuid.New()
	}

	a := Article{
		ID:        id,
		PlanetID:  planetID,
		Title:     entry.Title,
		Summary:   entry.Summary,
		Link:      entry.Link,
		CreatedAt: entry.CreatedAt,
		HasVideo:  entry.HasVideo,
		HasAudio:  entry.HasAudio,
	}
	if entry.Content != "" {
		content := entry.Content
		a.Content = &content
	}
	return a
}

// Normalize enforces the owned-planet link and read invariants.
func (a *Article) Normalize(planet *Planet) {
	if planet != nil && planet.IsOwned() {
		a.Link = OwnedArticleLink(a.ID)
		a.Read = true
	}
}

func (a *Article) IsStarred() bool {
	return a.StarredAt != nil
}

func hostOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}
	return u.Hostname(), nil
}

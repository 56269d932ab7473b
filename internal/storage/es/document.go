package es

import (
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
)

// ArticleDocument is the search-mirror shape of an article.
type ArticleDocument struct {
	ID           string     `json:"id"`
	PlanetID     string     `json:"planet_id"`
	PlanetName   string     `json:"planet_name"`
	PlanetScheme string     `json:"planet_scheme"`
	Title        string     `json:"title"`
	Summary      string     `json:"summary"`
	Content      string     `json:"content"`
	Link         string     `json:"link"`
	CreatedAt    time.Time  `json:"created_at"`
	Read         bool       `json:"read"`
	StarredAt    *time.Time `json:"starred_at,omitempty"`
	HasVideo     bool       `json:"has_video"`
	HasAudio     bool       `json:"has_audio"`
	IndexedAt    time.Time  `json:"indexed_at"`
}

type IndexBuilder struct {
	analyzer string
	now      func() time.Time
}

func NewIndexBuilder() *IndexBuilder {
	return &IndexBuilder{
		analyzer: "multilingual_analyzer",
		now:      time.Now,
	}
}

func (b *IndexBuilder) mapToESDocument(planet *domain.Planet, article domain.Article) ArticleDocument {
	doc := ArticleDocument{
		ID:        article.ID.String(),
		PlanetID:  article.PlanetID.String(),
		Title:     article.Title,
		Summary:   article.Summary,
		Link:      article.Link,
		CreatedAt: article.CreatedAt,
		Read:      article.Read,
		StarredAt: article.StarredAt,
		HasVideo:  article.HasVideo,
		HasAudio:  article.HasAudio,
		IndexedAt: b.now(),
	}
	if article.Content != nil {
		doc.Content = *article.Content
	}
	if planet != nil {
		doc.PlanetName = planet.Name
		doc.PlanetScheme = string(planet.Scheme)
	}
	return doc
}

func (b *IndexBuilder) buildSettings() types.IndexSettings {
	return types.IndexSettings{
		Analysis: &types.IndexSettingsAnalysis{
			Analyzer: map[string]types.Analyzer{
				b.analyzer: types.StandardAnalyzer{
					Stopwords: []string{"_none_"},
				},
			},
		},
	}
}

func (b *IndexBuilder) buildMapping() types.TypeMapping {
	return types.TypeMapping{
		Properties: map[string]types.Property{
			"id":            types.NewKeywordProperty(),
			"planet_id":     types.NewKeywordProperty(),
			"planet_name":   b.createTextPropertyWithKeyword(""),
			"planet_scheme": types.NewKeywordProperty(),
			"title":         b.createTextPropertyWithKeyword(b.analyzer),
			"summary":       b.createTextProperty(b.analyzer),
			"content":       b.createTextProperty(b.analyzer),
			"link":          types.NewKeywordProperty(),
			"created_at":    types.NewDateProperty(),
			"read":          types.NewBooleanProperty(),
			"starred_at":    types.NewDateProperty(),
			"has_video":     types.NewBooleanProperty(),
			"has_audio":     types.NewBooleanProperty(),
			"indexed_at":    types.NewDateProperty(),
		},
	}
}

func (b *IndexBuilder) createTextProperty(analyzer string) types.Property {
	textProp := types.NewTextProperty()
	if analyzer != "" {
		textProp.Analyzer = &analyzer
	}
	return textProp
}

func (b *IndexBuilder) createTextPropertyWithKeyword(analyzer string) types.Property {
	textProp := types.NewTextProperty()
	if analyzer != "" {
		textProp.Analyzer = &analyzer
	}
	textProp.Fields = map[string]types.Property{
		"keyword": types.NewKeywordProperty(),
	}
	return textProp
}

package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
	"github.com/microcosm-cc/bluemonday"
)

const (
	IndexFile = "index.html"
	FeedFile  = "feed.json"
)

var articleTemplate = template.Must(template.New("article").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Article.Title}} - {{.Planet.Name}}</title>
</head>
<body>
<article>
<h1>{{.Article.Title}}</h1>
<time datetime="{{.Published}}">{{.Published}}</time>
{{.Body}}
</article>
<p><a href="../">{{.Planet.Name}}</a></p>
</body>
</html>
`))

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Planet.Name}}</title>
<link rel="alternate" type="application/feed+json" href="feed.json">
</head>
<body>
<h1>{{.Planet.Name}}</h1>
{{if .Planet.About}}<p>{{.Planet.About}}</p>{{end}}
<ul>
{{range .Articles}}<li><a href=".{{.Link}}">{{.Title}}</a></li>
{{end}}</ul>
</body>
</html>
`))

// HTMLRenderer writes an owned planet as a static site: one directory per article,
// an index page and a JSON Feed that followers ingest.
type HTMLRenderer struct {
	policy *bluemonday.Policy
}

func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{policy: bluemonday.UGCPolicy()}
}

func (r *HTMLRenderer) Render(ctx context.Context, planet *domain.Planet, article domain.Article, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body := ""
	if article.Content != nil {
		body = r.policy.Sanitize(*article.Content)
	}

	var buf bytes.Buffer
	err := articleTemplate.Execute(&buf, struct {
		Planet    *domain.Planet
		Article   domain.Article
		Published string
		Body      template.HTML
	}{
		Planet:    planet,
		Article:   article,
		Published: article.CreatedAt.UTC().Format(time.RFC3339),
		Body:      template.HTML(body),
	})
	if err != nil {
		return fmt.Errorf("render article %s: %w", article.ID, err)
	}

	return writeFile(filepath.Join(dir, article.ID.String(), IndexFile), buf.Bytes())
}

// RenderIndex writes the planet index page and feed. Articles are listed in the given order.
func (r *HTMLRenderer) RenderIndex(ctx context.Context, planet *domain.Planet, articles []domain.Article, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	err := indexTemplate.Execute(&buf, struct {
		Planet   *domain.Planet
		Articles []domain.Article
	}{Planet: planet, Articles: articles})
	if err != nil {
		return fmt.Errorf("render index: %w", err)
	}
	if err := writeFile(filepath.Join(dir, IndexFile), buf.Bytes()); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(newJSONFeed(planet, articles), "", "  ")
	if err != nil {
		return fmt.Errorf("encode feed: %w", err)
	}
	return writeFile(filepath.Join(dir, FeedFile), raw)
}

// RemoveArticle deletes a rendered article directory. Missing directories are fine.
func (r *HTMLRenderer) RemoveArticle(dir string, article domain.Article) error {
	return os.RemoveAll(filepath.Join(dir, article.ID.String()))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".render-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

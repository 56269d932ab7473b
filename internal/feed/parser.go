package feed

import (
	"bytes"
	"errors"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/apperr"
	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
	"github.com/mmcdole/gofeed"
)

type Dialect string

const (
	DialectAtom Dialect = "atom"
	DialectRSS  Dialect = "rss"
	DialectJSON Dialect = "json"
)

var ErrUnknownDialect = errors.New("document is not an Atom, RSS or JSON feed")

// Document is the result of parsing one feed. Title, Description and IconURL are only
// filled for JSON Feed, where they drive planet metadata and avatar updates.
type Document struct {
	Dialect     Dialect
	Title       string
	Description string
	IconURL     string
	Entries     []domain.FeedEntry
	// Skipped counts entries dropped for missing a link or title.
	Skipped int
}

// Parser turns raw feed bytes into feed entries. It detects the dialect itself.
type Parser struct {
	now     func() time.Time
	content *contentInspector
}

type Option func(*Parser)

// WithClock sets the time used for entries without a publish date.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		p.now = now
	}
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{
		now:     time.Now,
		content: newContentInspector(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse never fails because of a single malformed entry; such entries are skipped.
// Only a document that cannot be read as a whole yields an error.
func (p *Parser) Parse(raw []byte) (*Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, apperr.NewParse(errors.New("empty document"))
	}

	var (
		doc *Document
		err error
	)
	switch gofeed.DetectFeedType(bytes.NewReader(raw)) {
	case gofeed.FeedTypeAtom:
		doc, err = p.parseAtom(raw)
	case gofeed.FeedTypeRSS:
		doc, err = p.parseRSS(raw)
	case gofeed.FeedTypeJSON:
		doc, err = p.parseJSON(raw)
	default:
		return nil, apperr.NewParse(ErrUnknownDialect)
	}
	if err != nil {
		return nil, apperr.NewParse(err)
	}
	return doc, nil
}

func (p *Parser) timestamp(candidates ...*time.Time) time.Time {
	for _, t := range candidates {
		if t != nil && !t.IsZero() {
			return t.UTC()
		}
	}
	return p.now().UTC()
}

func (p *Parser) entry(id, title, link, content string, created time.Time) domain.FeedEntry {
	summary, hasVideo, hasAudio := p.content.inspect(content)
	return domain.FeedEntry{
		ID:        id,
		CreatedAt: created,
		Title:     title,
		Content:   content,
		Summary:   summary,
		Link:      link,
		HasVideo:  hasVideo,
		HasAudio:  hasAudio,
	}
}

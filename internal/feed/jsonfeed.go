package feed

import (
	"bytes"
	"strings"
	"time"

	jsonfeed "github.com/mmcdole/gofeed/json"
)

func (p *Parser) parseJSON(raw []byte) (*Document, error) {
	parsed, err := (&jsonfeed.Parser{}).Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Dialect:     DialectJSON,
		Title:       strings.TrimSpace(parsed.Title),
		Description: strings.TrimSpace(parsed.Description),
		IconURL:     strings.TrimSpace(parsed.Icon),
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.URL)
		if title == "" || link == "" {
			doc.Skipped++
			continue
		}

		content := item.ContentText
		if strings.TrimSpace(content) == "" {
			content = item.ContentHTML
		}

		doc.Entries = append(doc.Entries, p.entry(
			item.ID, title, link, content,
			p.timestamp(parseJSONDate(item.DatePublished)),
		))
	}
	return doc, nil
}

func parseJSONDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

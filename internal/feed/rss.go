package feed

import (
	"bytes"
	"strings"

	"github.com/mmcdole/gofeed/rss"
)

func (p *Parser) parseRSS(raw []byte) (*Document, error) {
	parsed, err := (&rss.Parser{}).Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	doc := &Document{Dialect: DialectRSS}
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			doc.Skipped++
			continue
		}

		content := item.Content
		if strings.TrimSpace(content) == "" {
			content = item.Description
		}

		id := ""
		if item.GUID != nil {
			id = item.GUID.Value
		}

		entry := p.entry(id, title, link, content, p.timestamp(item.PubDateParsed))
		if item.Enclosure != nil {
			switch {
			case strings.HasPrefix(item.Enclosure.Type, "video/"):
				entry.HasVideo = true
			case strings.HasPrefix(item.Enclosure.Type, "audio/"):
				entry.HasAudio = true
			}
		}
		doc.Entries = append(doc.Entries, entry)
	}
	return doc, nil
}

package feed

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed/atom"
)

func (p *Parser) parseAtom(raw []byte) (*Document, error) {
	parsed, err := (&atom.Parser{}).Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	base := alternateHref(parsed.Links)
	doc := &Document{Dialect: DialectAtom}

	for _, e := range parsed.Entries {
		if e == nil {
			continue
		}
		title := strings.TrimSpace(e.Title)
		link := normalizeAtomLink(alternateHref(e.Links), base)
		if title == "" || link == "" {
			doc.Skipped++
			continue
		}

		content := ""
		if e.Content != nil {
			content = e.Content.Value
		}
		if strings.TrimSpace(content) == "" {
			content = e.Summary
		}

		doc.Entries = append(doc.Entries, p.entry(
			e.ID, title, link, content,
			p.timestamp(e.PublishedParsed, e.UpdatedParsed),
		))
	}
	return doc, nil
}

// alternateHref picks the rel="alternate" link, falling back to the first link with an href.
func alternateHref(links []*atom.Link) string {
	first := ""
	for _, l := range links {
		if l == nil || l.Href == "" {
			continue
		}
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
		if first == "" {
			first = l.Href
		}
	}
	return first
}

// normalizeAtomLink resolves href against base and reduces it to scheme://host/path.
// It returns "" when no absolute link can be produced.
func normalizeAtomLink(href, base string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !u.IsAbs() && base != "" {
		b, err := url.Parse(base)
		if err != nil {
			return ""
		}
		u = b.ResolveReference(u)
	}
	if u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + u.EscapedPath()
}

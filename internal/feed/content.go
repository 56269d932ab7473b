package feed

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

const summaryMaxRunes = 280

var videoHosts = []string{"youtube.com", "youtube-nocookie.com", "youtu.be", "vimeo.com"}

type contentInspector struct {
	strict *bluemonday.Policy
}

func newContentInspector() *contentInspector {
	return &contentInspector{strict: bluemonday.StrictPolicy()}
}

// inspect derives a plain-text summary and media flags from HTML or plain content.
func (ci *contentInspector) inspect(content string) (summary string, hasVideo, hasAudio bool) {
	if strings.TrimSpace(content) == "" {
		return "", false, false
	}

	text := html.UnescapeString(ci.strict.Sanitize(content))
	summary = truncateRunes(strings.Join(strings.Fields(text), " "), summaryMaxRunes)

	if !strings.Contains(content, "<") {
		return summary, false, false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return summary, false, false
	}

	hasVideo = doc.Find("video").Length() > 0
	if !hasVideo {
		doc.Find("iframe[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			src, _ := s.Attr("src")
			for _, host := range videoHosts {
				if strings.Contains(src, host) {
					hasVideo = true
					return false
				}
			}
			return true
		})
	}
	hasAudio = doc.Find("audio").Length() > 0

	return summary, hasVideo, hasAudio
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max])) + "…"
}

package ingest

import (
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	readability "github.com/go-shiori/go-readability"

	"kenny/internal/logging"
)

// normalizeHTML turns an HTML email or note body into plain readable text
// for the Storage Core's content column and FTS index. When sourceURI looks
// like a full page rather than a message body, readability's main-content
// extraction runs first so boilerplate (nav, footers, ads) doesn't pollute
// the index; the result (or the raw HTML if extraction fails) is then
// converted to markdown, which reads acceptably as plain text for FTS and
// snippet purposes.
func normalizeHTML(html, sourceURI string) (content, title string) {
	articleHTML := html

	if looksLikeFullPage(sourceURI) {
		if base, err := url.Parse(sourceURI); err == nil {
			if art, err := readability.FromReader(strings.NewReader(html), base); err == nil && strings.TrimSpace(art.Content) != "" {
				articleHTML = art.Content
				title = strings.TrimSpace(art.Title)
			}
		}
	}

	var opts []converter.Option
	if base := baseOrigin(sourceURI); base != "" {
		opts = append(opts, converter.WithDomain(base))
	}
	md, err := htmltomarkdown.ConvertString(articleHTML, opts...)
	if err != nil {
		logging.Ingest("html-to-markdown conversion failed, storing raw HTML: %v", err)
		return html, title
	}
	return strings.TrimSpace(md), title
}

func looksLikeFullPage(sourceURI string) bool {
	return strings.HasPrefix(sourceURI, "http://") || strings.HasPrefix(sourceURI, "https://")
}

func baseOrigin(sourceURI string) string {
	u, err := url.Parse(sourceURI)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

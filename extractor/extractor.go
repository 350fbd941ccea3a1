// Package extractor implements the ArticleExtractor capability, treated
// as an external collaborator: FromURL and FromHTML both reduce a page
// to title/description/date/author/language/body content. It is
// adapted from a two-stage cleaner pipeline (cleaner/pipeline.go,
// cleaner/readability.go, cleaner/extract.go): stage 1 runs go-readability
// with a raw-HTML fallback, stage 2 fills any metadata readability missed
// from Open Graph tags and a handful of goquery CSS metadata selectors.
package extractor

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/pageharvest/pageharvest/fetch"
)

// minContentLength mirrors readability-confidence threshold:
// below this many characters of extracted text, readability is assumed to
// have failed to find the main content.
const minContentLength = 50

// Article is the extractor's output: cleaned HTML content plus whatever
// metadata could be recovered. Content is HTML — Markdown conversion is the
// scrape engine's job, not the extractor's.
type Article struct {
	Title       string
	Description string
	Date        string
	Author      string
	Lang        string
	Content     string
	TextContent string
}

// Extractor fetches (static mode) and extracts article content.
type Extractor struct {
	fetcher *fetch.Client
}

// New builds an Extractor using fetcher for FromURL's static HTTP fetch.
func New(fetcher *fetch.Client) *Extractor {
	return &Extractor{fetcher: fetcher}
}

// FromURL fetches the URL statically (Chrome-TLS-fingerprinted GET, via the
// fetch package) and extracts its article content.
func (e *Extractor) FromURL(ctx context.Context, rawURL string, headers map[string]string) (Article, error) {
	body, status, err := e.fetcher.Get(ctx, rawURL, headers)
	if err != nil {
		return Article{}, fmt.Errorf("extractor: fetch %s: %w", rawURL, err)
	}
	if status >= 400 {
		return Article{}, &httpStatusError{url: rawURL, status: status}
	}
	return e.FromHTML(string(body), rawURL)
}

// FromHTML extracts article content from already-rendered HTML (the browser
// mode path: the caller has already navigated and read the DOM).
func (e *Extractor) FromHTML(html, sourceURL string) (Article, error) {
	article, _ := runReadability(html, sourceURL)

	a := Article{
		Title:       article.Title,
		Description: article.Excerpt,
		Author:      article.Byline,
		Lang:        article.Language,
		Content:     article.Content,
		TextContent: article.TextContent,
	}

	meta := extractMetadata(html)
	if a.Title == "" {
		a.Title = meta.title
	}
	if a.Description == "" {
		a.Description = meta.description
	}
	if a.Author == "" {
		a.Author = meta.author
	}
	if a.Lang == "" {
		a.Lang = meta.lang
	}
	a.Date = meta.date

	return a, nil
}

// runReadability runs go-readability and falls back to raw HTML when it
// errors, can't parse the source URL, or extracts implausibly little text —
// mirroring cleaner/readability.go's ExtractContent exactly.
func runReadability(rawHTML, sourceURL string) (readability.Article, bool) {
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return fallbackArticle(rawHTML), false
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsed)
	if err != nil {
		return fallbackArticle(rawHTML), false
	}
	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		return fallbackArticle(rawHTML), false
	}
	return article, true
}

func fallbackArticle(rawHTML string) readability.Article {
	return readability.Article{
		Content:     rawHTML,
		TextContent: rawHTML,
	}
}

type pageMetadata struct {
	title       string
	description string
	author      string
	lang        string
	date        string
}

// extractMetadata fills gaps readability leaves behind using Open Graph
// meta tags, <html lang>, and a few common published-date markers —
// generalizing cleaner/extract.go ExtractOGMetadata.
func extractMetadata(rawHTML string) pageMetadata {
	var m pageMetadata

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return m
	}

	if lang, ok := doc.Find("html").Attr("lang"); ok {
		m.lang = strings.TrimSpace(lang)
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, _ := s.Attr("content")
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		name, _ := s.Attr("name")
		prop, _ := s.Attr("property")
		switch {
		case prop == "og:title" && m.title == "":
			m.title = content
		case prop == "og:description" && m.description == "":
			m.description = content
		case strings.EqualFold(name, "description") && m.description == "":
			m.description = content
		case strings.EqualFold(name, "author") && m.author == "":
			m.author = content
		case (prop == "article:published_time" || strings.EqualFold(name, "date")) && m.date == "":
			m.date = content
		}
	})

	if m.date == "" {
		if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
			m.date = strings.TrimSpace(dt)
		}
	}

	return m
}

// httpStatusError carries the HTTP status code of a failed static fetch so
// fingerprint.ShouldRotate can apply its 403/429 rule.
type httpStatusError struct {
	url    string
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("extractor: http %d fetching %s", e.status, e.url)
}

func (e *httpStatusError) StatusCode() int { return e.status }

// Package extract turns fetched HTML into topic-matching sentences and
// outbound anchor targets.
package extract

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/topic-crawler/internal/crawler"
)

// Extractor implements crawler.Extractor. Compiled matchers are cached per
// topic, so one Extractor can serve every task of a run.
type Extractor struct {
	matchers sync.Map // topic -> *Matcher
}

var _ crawler.Extractor = (*Extractor)(nil)

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract parses the page body once and returns the sentences mentioning
// topic plus the page's absolute anchor targets.
func (e *Extractor) Extract(page crawler.Page, topic string) (crawler.Extraction, error) {
	matcher, err := e.matcher(topic)
	if err != nil {
		return crawler.Extraction{}, err
	}
	if len(bytes.TrimSpace(page.Body)) == 0 {
		return crawler.Extraction{}, nil
	}

	root, err := html.Parse(bytes.NewReader(page.Body))
	if err != nil {
		return crawler.Extraction{}, fmt.Errorf("parse html: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	text := ""
	if body := doc.Find("body").First(); body.Length() > 0 {
		text = VisibleText(body.Get(0))
	}

	return crawler.Extraction{
		Sentences: matcher.Filter(Sentences(text)),
		Links:     Links(doc, page.BaseURL()),
	}, nil
}

// MatchingSentences is a convenience wrapper that runs only the sentence
// half of Extract over raw HTML.
func MatchingSentences(body []byte, topic string) ([]string, error) {
	out, err := New().Extract(crawler.Page{Body: body}, topic)
	if err != nil {
		return nil, err
	}
	return out.Sentences, nil
}

func (e *Extractor) matcher(topic string) (*Matcher, error) {
	if m, ok := e.matchers.Load(topic); ok {
		return m.(*Matcher), nil
	}
	m, err := NewMatcher(topic)
	if err != nil {
		return nil, err
	}
	actual, _ := e.matchers.LoadOrStore(topic, m)
	return actual.(*Matcher), nil
}

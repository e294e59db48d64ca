package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/topic-crawler/internal/crawler"
)

const samplePage = `<!doctype html>
<html>
<head>
  <title>Testing title should be ignored.</title>
  <style>.test { color: red }</style>
</head>
<body>
  <h1>Welcome.</h1>
  <p>This is a Testing page. Nothing here! Tests are tested? Yes.</p>
  <div>Contest entries are not a match.</div><div>We test daily.</div>
  <script>var test = "test.";</script>
  <a href="/about#team">About</a>
  <a href="https://x.test/about#team">About again</a>
  <a href="contact">Contact</a>
  <a href="javascript:void(0)">Nope</a>
  <a href="mailto:me@x.test">Mail</a>
  <a href="">Empty</a>
  <a>No href</a>
</body>
</html>`

func TestExtract(t *testing.T) {
	t.Parallel()

	page := crawler.Page{URL: "https://x.test/docs/", Body: []byte(samplePage)}
	out, err := New().Extract(page, "test")
	require.NoError(t, err)

	require.Equal(t, []string{
		"This is a Testing page.",
		"Tests are tested?",
		"We test daily.",
	}, out.Sentences)
	require.Equal(t, []string{
		"https://x.test/about#team",
		"https://x.test/docs/contact",
	}, out.Links)
}

func TestExtractUsesFinalURLAndBaseHref(t *testing.T) {
	t.Parallel()

	body := `<html><head><base href="https://x.test/root/"></head><body><a href="page">p</a></body></html>`
	out, err := New().Extract(crawler.Page{URL: "https://x.test/", FinalURL: "https://x.test/moved/", Body: []byte(body)}, "go")
	require.NoError(t, err)
	require.Equal(t, []string{"https://x.test/root/page"}, out.Links)

	body = `<html><body><a href="page">p</a></body></html>`
	out, err = New().Extract(crawler.Page{URL: "https://x.test/", FinalURL: "https://x.test/moved/", Body: []byte(body)}, "go")
	require.NoError(t, err)
	require.Equal(t, []string{"https://x.test/moved/page"}, out.Links)
}

func TestExtractEmptyBodyAndTopic(t *testing.T) {
	t.Parallel()

	out, err := New().Extract(crawler.Page{URL: "https://x.test/"}, "go")
	require.NoError(t, err)
	require.Empty(t, out.Sentences)
	require.Empty(t, out.Links)

	_, err = New().Extract(crawler.Page{URL: "https://x.test/", Body: []byte("<p>hi</p>")}, "  ")
	require.ErrorIs(t, err, ErrEmptyTopic)
}

func TestMatcher(t *testing.T) {
	t.Parallel()

	m, err := NewMatcher("crawl")
	require.NoError(t, err)
	for _, s := range []string{"We crawl.", "It crawls.", "Crawling now.", "It CRAWLED."} {
		require.True(t, m.Match(s), s)
	}
	for _, s := range []string{"A crawler runs.", "Scrawl on paper.", "crawly things"} {
		require.False(t, m.Match(s), s)
	}

	dotted, err := NewMatcher("node.js")
	require.NoError(t, err)
	require.True(t, dotted.Match("We use Node.js daily"))
	require.False(t, dotted.Match("We use nodexjs daily"))
}

func TestSentences(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"One.", "Two!", "Three?", "Four"}, Sentences("One. Two! Three? Four"))
	require.Equal(t, []string{"Version 1.2 shipped."}, Sentences("Version 1.2 shipped."))
	require.Empty(t, Sentences("   "))
}

func TestVisibleTextSeparatesBlocks(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<body><p>one</p><p>two <b>bold</b></p><script>x()</script></body>`))
	require.NoError(t, err)
	require.Equal(t, "one two bold", VisibleText(doc.Find("body").Get(0)))
}

func TestMatchingSentences(t *testing.T) {
	t.Parallel()

	got, err := MatchingSentences([]byte(`<p>This is a Testing page.</p>`), "test")
	require.NoError(t, err)
	require.Equal(t, []string{"This is a Testing page."}, got)
}

func ExampleSentences() {
	for _, s := range Sentences("Crawlers crawl. Do they stop? Eventually!") {
		fmt.Println(s)
	}
	// Output:
	// Crawlers crawl.
	// Do they stop?
	// Eventually!
}

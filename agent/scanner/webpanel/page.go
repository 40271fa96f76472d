package webpanel

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Page is a parsed status page handed to each extraction strategy.
type Page struct {
	Doc       *goquery.Document
	translate func(string) string
	text      *string
}

// NewPage parses body. Malformed markup is repaired by the HTML5 parser; a
// nil page is returned only if the body cannot be read at all.
func NewPage(body []byte, translate func(string) string) *Page {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	if translate == nil {
		translate = func(s string) string { return s }
	}
	return &Page{Doc: doc, translate: translate}
}

// Translate maps a raw supply name to its canonical form.
func (p *Page) Translate(name string) string {
	return p.translate(name)
}

// Text returns the rendered body text with scripts and styles removed and
// whitespace collapsed. Block elements are separated by a space.
func (p *Page) Text() string {
	if p.text != nil {
		return *p.text
	}
	var b strings.Builder
	root := p.Doc.Find("body")
	if root.Length() == 0 {
		root = p.Doc.Selection
	}
	for _, n := range root.Nodes {
		renderText(&b, n)
	}
	s := strings.Join(strings.Fields(b.String()), " ")
	p.text = &s
	return s
}

// textOf returns trimmed text of the first match of selector within s.
func textOf(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}

var skipText = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "head": true,
}

var blockElements = map[string]bool{
	"address": true, "article": true, "br": true, "dd": true, "div": true,
	"dl": true, "dt": true, "fieldset": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "section": true, "table": true, "tbody": true,
	"td": true, "th": true, "thead": true, "tr": true, "ul": true,
}

func renderText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if skipText[n.Data] {
			return
		}
	case html.CommentNode:
		return
	}
	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(b, c)
	}
	if block {
		b.WriteByte(' ')
	}
}

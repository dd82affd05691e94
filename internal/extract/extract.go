// Package extract turns raw HTML into clean text plus an outbound-link list.
//
// Extraction prefers an explicit content region (main, article, etc.) and
// falls back to go-readability when no region yields text. Non-content
// elements (scripts, styles, navigation, footers, asides, frames) are
// stripped before text conversion.
package extract

import (
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page is the extraction result for one document.
type Page struct {
	Title string
	Text  string
	// Links are same-domain absolute URLs found in the content region,
	// in document order, deduplicated, with fragments stripped.
	Links []string
}

// contentSelectors is the ordered list of content-region candidates; the
// first match wins, falling back to <body>.
var contentSelectors = mustCompileAll(
	"main",
	"article",
	`[role="main"]`,
	".main-content",
	"#content",
)

var bodySelector = cascadia.MustCompile("body")

// strippedTags are removed from the tree before any text conversion.
var strippedTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Aside:    true,
	atom.Iframe:   true,
	atom.Noscript: true,
}

func mustCompileAll(sels ...string) []cascadia.Selector {
	out := make([]cascadia.Selector, len(sels))
	for i, s := range sels {
		out[i] = cascadia.MustCompile(s)
	}
	return out
}

// FromHTML extracts the title, cleaned text, and same-domain links of an HTML
// document. base is the document's own URL, used to resolve relative links
// and to decide which links count as same-domain.
func FromHTML(src string, base *url.URL) (Page, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return Page{}, err
	}

	page := Page{Title: findTitle(doc)}

	strip(doc)
	region := contentRegion(doc)
	page.Text = nodeText(region)
	page.Links = sameDomainLinks(region, base)

	// Selector extraction came up empty (single-page apps, odd markup).
	// go-readability is better at guessing in that case.
	if page.Text == "" {
		if article, err := readability.FromReader(strings.NewReader(src), base); err == nil {
			page.Text = strings.TrimSpace(article.TextContent)
			if page.Title == "" {
				page.Title = article.Title
			}
		}
	}
	return page, nil
}

// findTitle returns the document's <title> text, trimmed.
func findTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)
	return title
}

// strip removes non-content elements in place.
func strip(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.ElementNode && strippedTags[c.DataAtom] {
			n.RemoveChild(c)
			continue
		}
		strip(c)
	}
}

// contentRegion returns the first matching content candidate, the <body>,
// or the whole document when neither exists.
func contentRegion(doc *html.Node) *html.Node {
	for _, sel := range contentSelectors {
		if n := cascadia.Query(doc, sel); n != nil {
			return n
		}
	}
	if body := cascadia.Query(doc, bodySelector); body != nil {
		return body
	}
	return doc
}

// blockTags force a line break in the text conversion.
var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Tr: true, atom.Section: true,
	atom.Ul: true, atom.Ol: true, atom.Table: true, atom.Blockquote: true,
	atom.Pre: true, atom.Article: true, atom.Header: true,
}

// nodeText converts a subtree to plain text: one line per block element,
// whitespace collapsed, blank lines dropped. Anchor text is kept; link
// targets are handled separately by sameDomainLinks.
func nodeText(region *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && blockTags[n.DataAtom] {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.DataAtom] {
			b.WriteByte('\n')
		}
	}
	walk(region)

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if clean := strings.Join(strings.Fields(line), " "); clean != "" {
			lines = append(lines, clean)
		}
	}
	return strings.Join(lines, "\n")
}

// sameDomainLinks collects hrefs under region that resolve to absolute
// http(s) URLs on the same host as base, in document order, deduplicated,
// fragments removed.
func sameDomainLinks(region *html.Node, base *url.URL) []string {
	if base == nil {
		return nil
	}
	var links []string
	seen := make(map[string]bool)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if u := normalizeLink(attr.Val, base); u != "" && !seen[u] {
					seen[u] = true
					links = append(links, u)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(region)
	return links
}

// normalizeLink resolves href against base and returns it with the fragment
// stripped, or "" when it is not a same-domain http(s) link.
func normalizeLink(href string, base *url.URL) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	if !strings.EqualFold(resolved.Host, base.Host) {
		return ""
	}
	resolved.Fragment = ""
	if resolved.Path == "" {
		resolved.Path = "/"
	}
	return resolved.String()
}

// Package docpage extracts the documentation of one member, or of a whole
// compound, from a Doxygen generated HTML page and renders it as Markdown.
package docpage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// ErrAnchorNotFound is returned when the page has no member with the anchor.
var ErrAnchorNotFound = errors.New("docpage: anchor not found")

// ErrOutsideDir is returned for links that point above the HTML directory.
var ErrOutsideDir = errors.New("docpage: link resolves outside the html directory")

// Section is the extracted documentation.
type Section struct {
	Title     string `json:"title" yaml:"title"`
	Anchor    string `json:"anchor,omitempty" yaml:"anchor,omitempty"`
	Prototype string `json:"prototype,omitempty" yaml:"prototype,omitempty"`
	Markdown  string `json:"markdown" yaml:"markdown"`
}

var (
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	spaceRe      = regexp.MustCompile(`\s+`)
	charsetRe    = regexp.MustCompile(`(?i)<meta[^>]+charset=["']?([^"'\s>;]+)`)
)

// unwanted elements never carry member documentation.
var unwanted = []string{
	"script", "style", "noscript", "iframe", "svg",
	"span.permalink", "div.dynheader", "div.dyncontent img", ".memSeparator",
}

// Extract returns the member documented under anchor. With an empty anchor
// the page's main description is returned instead.
func Extract(html []byte, anchor string) (*Section, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(decodeHTML(html)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	for _, selector := range unwanted {
		doc.Find(selector).Remove()
	}

	if anchor == "" {
		return extractPage(doc)
	}
	return extractMember(doc, anchor)
}

func extractMember(doc *goquery.Document, anchor string) (*Section, error) {
	target := doc.Find(fmt.Sprintf(`a[id=%q], a[name=%q]`, anchor, anchor)).First()
	if target.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAnchorNotFound, anchor)
	}

	item := target.NextAllFiltered("div.memitem").First()
	if item.Length() == 0 {
		return nil, fmt.Errorf("%w: %s has no member documentation", ErrAnchorNotFound, anchor)
	}

	section := &Section{Anchor: anchor}
	section.Prototype = collapse(item.Find("div.memproto").First().Text())

	// Doxygen >= 1.8.10 puts the title in an h2 between anchor and item
	if title := target.NextAllFiltered("h2.memtitle").First(); title.Length() > 0 &&
		title.NextAllFiltered("div.memitem").First().IsSelection(item) {
		section.Title = collapse(title.Text())
	}
	if section.Title == "" {
		section.Title = section.Prototype
	}

	body := item.Find("div.memdoc").First()
	if body.Length() == 0 {
		return section, nil
	}
	markdown, err := toMarkdown(body)
	if err != nil {
		return nil, err
	}
	section.Markdown = markdown
	return section, nil
}

func extractPage(doc *goquery.Document) (*Section, error) {
	section := &Section{
		Title: collapse(doc.Find("div.header div.title, div.title").First().Text()),
	}
	if section.Title == "" {
		section.Title = collapse(doc.Find("title").First().Text())
	}

	body := doc.Find("div.textblock").First()
	if body.Length() == 0 {
		body = doc.Find("div.contents").First()
	}
	if body.Length() == 0 {
		return section, nil
	}
	markdown, err := toMarkdown(body)
	if err != nil {
		return nil, err
	}
	section.Markdown = markdown
	return section, nil
}

func toMarkdown(sel *goquery.Selection) (string, error) {
	html, err := sel.Html()
	if err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	markdown, err := md.NewConverter("", true, nil).ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert to markdown: %w", err)
	}

	markdown = blankLinesRe.ReplaceAllString(markdown, "\n\n")
	lines := strings.Split(markdown, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func collapse(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// LocalPath maps a search link, which is relative to the search directory,
// to the page file below htmlDir and the in-page anchor. Links that resolve
// outside htmlDir return ErrOutsideDir.
// Example: ("/doc/html", "../classjem_1_1Foo.html#a12") -> ("/doc/html/classjem_1_1Foo.html", "a12")
func LocalPath(htmlDir, linkURL string) (file, anchor string, err error) {
	ref := linkURL
	if i := strings.IndexByte(ref, '#'); i >= 0 {
		ref, anchor = ref[:i], ref[i+1:]
	}
	rel := path.Clean(path.Join("search", ref))
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", "", fmt.Errorf("%w: %s", ErrOutsideDir, linkURL)
	}
	return filepath.Join(htmlDir, filepath.FromSlash(rel)), anchor, nil
}

// decodeHTML converts the page to UTF-8 using the charset declared in its
// meta tags. Doxygen writes UTF-8 by default but honours DOXYFILE_ENCODING.
func decodeHTML(body []byte) string {
	if len(body) >= 3 && body[0] == 0xEF && body[1] == 0xBB && body[2] == 0xBF {
		return string(body[3:])
	}

	enc := encodingFromMeta(body)
	if enc == nil {
		return string(body)
	}
	reader := transform.NewReader(bytes.NewReader(body), enc.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

func encodingFromMeta(body []byte) encoding.Encoding {
	m := charsetRe.FindSubmatch(body)
	if len(m) < 2 {
		return nil
	}
	enc, err := htmlindex.Get(string(m[1]))
	if err != nil {
		return nil
	}
	return enc
}

package websearch

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// skipped elements contribute no visible text.
var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"nav": true, "footer": true, "header": true, "aside": true,
}

// ParsePage extracts the document title and the visible text from HTML,
// with whitespace collapsed.
func ParsePage(r io.Reader) (title, text string, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", err
	}
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skipElements[n.Data] {
				return
			}
			if n.Data == "title" && title == "" && n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
				return
			}
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	text = strings.TrimSpace(whitespaceRE.ReplaceAllString(sb.String(), " "))
	return title, text, nil
}

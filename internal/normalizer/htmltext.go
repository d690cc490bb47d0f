package normalizer

import (
	"strings"

	"golang.org/x/net/html"
)

// htmlToText extracts the text content of an HTML fragment, joining text
// nodes with newlines. The joining leaves spurious newlines directly before
// hashtag and mention markers, an artifact the caller repairs with two
// literal substitutions.
func htmlToText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	text := strings.Join(parts, "\n")
	text = strings.ReplaceAll(text, "#\n", "#")
	text = strings.ReplaceAll(text, "@\n", "@")
	return text
}

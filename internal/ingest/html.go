package ingest

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/persona/internal/security"
	"golang.org/x/net/html"
)

// Elements whose whole subtree is removed before text extraction.
var strippedElements = map[string]bool{
	"script": true,
	"style":  true,
	"iframe": true,
	"object": true,
	"embed":  true,
	"form":   true,
}

// Content-bearing elements whose text becomes one fragment each.
var contentElements = map[string]bool{
	"p":       true,
	"h1":      true,
	"h2":      true,
	"h3":      true,
	"h4":      true,
	"article": true,
	"section": true,
	"div":     true,
	"main":    true,
	"body":    true,
}

// decodeHTML extracts one sanitized fragment per content element in document
// order and joins them with a blank line. Nested elements each contribute
// their own fragment.
func (in *Ingestor) decodeHTML(data []byte) (string, error) {
	page, err := decodeUTF8(data)
	if err != nil {
		return "", err
	}
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	removeElements(root)

	var fragments []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && contentElements[n.Data] {
			if text := strippedText(n); text != "" {
				if clean := security.SanitizeText(text, in.maxLength); clean != "" {
					fragments = append(fragments, clean)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return strings.Join(fragments, "\n\n"), nil
}

func removeElements(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && strippedElements[c.Data] {
			n.RemoveChild(c)
		} else {
			removeElements(c)
		}
		c = next
	}
}

// strippedText concatenates every descendant text node with surrounding
// whitespace trimmed.
func strippedText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

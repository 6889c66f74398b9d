package format

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// blockTags are elements whose boundaries become line breaks in extracted
// text.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "li": true, "ul": true,
	"ol": true, "table": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "blockquote": true, "hr": true,
}

// skipTags are elements whose content never contributes visible text.
var skipTags = map[string]bool{
	"script": true, "style": true, "head": true, "title": true,
}

// HTMLToText extracts the visible text of an HTML email body. Script, style
// and head content is skipped, block-element boundaries become newlines and
// whitespace runs collapse to single spaces. Unparseable input is returned
// as-is.
func HTMLToText(htmlContent []byte) string {
	doc, err := html.Parse(bytes.NewReader(htmlContent))
	if err != nil {
		return string(htmlContent)
	}

	var b strings.Builder
	collectText(doc, &b)

	return tidyText(b.String())
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode && skipTags[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}

	isBlock := n.Type == html.ElementNode && blockTags[n.Data]
	if isBlock {
		b.WriteString("\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
	if isBlock {
		b.WriteString("\n")
	}
}

// tidyText collapses intra-line whitespace and squeezes blank-line runs.
func tidyText(raw string) string {
	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				cleaned = append(cleaned, "")
			}
			blank = true
			continue
		}
		cleaned = append(cleaned, line)
		blank = false
	}

	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

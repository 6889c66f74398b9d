// Package format prepares HTML email bodies for use as model prompt text.
package format

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// UnwrapTableLayout removes single-column layout tables from HTML email
// content. Marketing mail wraps its body in nested layout tables; unwrapping
// them keeps the extracted text readable. Semantic tables (headers, multiple
// columns, consistent data rows) are preserved.
func UnwrapTableLayout(htmlContent []byte) []byte {
	doc, err := html.Parse(bytes.NewReader(htmlContent))
	if err != nil {
		return htmlContent
	}

	// Unwrapping can expose new candidates; iterate until stable.
	maxIterations := 10
	for i := 0; i < maxIterations; i++ {
		if !simplifyNode(doc) {
			break
		}
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return htmlContent
	}

	return buf.Bytes()
}

// simplifyNode unwraps layout tables bottom-up and reports whether anything
// changed.
func simplifyNode(n *html.Node) bool {
	changed := false

	child := n.FirstChild
	for child != nil {
		next := child.NextSibling
		if simplifyNode(child) {
			changed = true
		}
		child = next
	}

	if n.Type == html.ElementNode && n.Data == "table" && isLayoutTable(n) {
		unwrapTable(n)
		changed = true
	}

	return changed
}

func isLayoutTable(table *html.Node) bool {
	if containsElement(table, "th") || containsElement(table, "thead") {
		return false
	}
	if maxColumnCount(table) > 1 {
		return false
	}

	// Structural IDs mark wrapper tables regardless of row count.
	for _, attr := range table.Attr {
		if attr.Key == "id" && (attr.Val == "main" || strings.Contains(attr.Val, "layout") || strings.Contains(attr.Val, "wrapper")) {
			return true
		}
	}

	// Many uniform single-column content rows suggest tabular data.
	counts := rowCellCounts(table)
	if len(counts) > 5 && allEqual(counts) {
		return false
	}

	return true
}

func containsElement(n *html.Node, tag string) bool {
	if n.Type == html.ElementNode && n.Data == tag {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if containsElement(c, tag) {
			return true
		}
	}
	return false
}

func maxColumnCount(table *html.Node) int {
	maxCols := 0
	for _, count := range rowCellCounts(table) {
		if count > maxCols {
			maxCols = count
		}
	}
	return maxCols
}

func rowCellCounts(table *html.Node) []int {
	var counts []int
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			cols := 0
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cols++
				}
			}
			counts = append(counts, cols)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return counts
}

func allEqual(counts []int) bool {
	if len(counts) < 2 {
		return false
	}
	for _, count := range counts[1:] {
		if count != counts[0] {
			return false
		}
	}
	return true
}

// unwrapTable replaces a table node with its extracted content, one line
// per row.
func unwrapTable(table *html.Node) {
	var content []*html.Node
	extractTableContent(table, &content)

	parent := table.Parent
	if parent == nil {
		return
	}
	for _, node := range content {
		parent.InsertBefore(node, table)
	}
	parent.RemoveChild(table)
}

func extractTableContent(n *html.Node, content *[]*html.Node) {
	switch {
	case n.Type == html.ElementNode && n.Data == "tr":
		initialLen := len(*content)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractTableContent(c, content)
		}
		if len(*content) > initialLen {
			*content = append(*content, &html.Node{Type: html.TextNode, Data: "\n"})
		}
	case n.Type == html.ElementNode && isTableElement(n.Data):
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractTableContent(c, content)
		}
	case n.Type == html.ElementNode:
		*content = append(*content, cloneNode(n))
	case n.Type == html.TextNode && strings.TrimSpace(n.Data) != "":
		*content = append(*content, &html.Node{Type: html.TextNode, Data: n.Data})
	}
}

func isTableElement(tag string) bool {
	switch tag {
	case "table", "tbody", "thead", "tfoot", "tr", "td", "th":
		return true
	}
	return false
}

func cloneNode(n *html.Node) *html.Node {
	clone := &html.Node{
		Type: n.Type,
		Data: n.Data,
		Attr: append([]html.Attribute{}, n.Attr...),
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		clone.AppendChild(cloneNode(c))
	}
	return clone
}

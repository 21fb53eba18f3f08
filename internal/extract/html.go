package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipped elements contribute no text.
var skipped = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
}

// block elements start on a new line.
var block = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Table: true, atom.Ul: true, atom.Ol: true, atom.Section: true, atom.Article: true,
	atom.Header: true, atom.Footer: true, atom.Blockquote: true, atom.Pre: true, atom.Hr: true,
	atom.Dt: true, atom.Dd: true,
}

// extractHTML renders the visible text of an HTML document. Block elements are separated
// by newlines, list items are prefixed with "* " and table cells are separated by tabs.
func extractHTML(content []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skipped[n.DataAtom] {
				return
			}
			if block[n.DataAtom] {
				b.WriteByte('\n')
			}
			switch n.DataAtom {
			case atom.Li:
				b.WriteString("* ")
			case atom.Td, atom.Th:
				b.WriteByte('\t')
			}
		case html.TextNode:
			b.WriteString(collapseSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && block[n.DataAtom] {
			b.WriteByte('\n')
		}
	}
	walk(doc)

	var out []string
	for _, l := range strings.Split(b.String(), "\n") {
		l = strings.Trim(spaceRun.ReplaceAllString(l, " "), " \t")
		l = strings.ReplaceAll(strings.ReplaceAll(l, " \t", "\t"), "\t ", "\t")
		if l != "" && l != "*" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n"), nil
}

var spaceRun = regexp.MustCompile(` {2,}`)

// collapseSpace replaces each run of whitespace (including newlines) with one space.
func collapseSpace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		b.WriteRune(r)
		space = false
	}
	return b.String()
}

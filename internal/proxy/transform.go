package proxy

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Transform mutates a parsed HTML document in place. Site-specific
// transforms are registered by name and bound to domain suffixes at
// configuration load time.
type Transform func(doc *html.Node)

var transforms = map[string]Transform{
	"shifted-alphabet": deobfuscateShiftedText,
}

// resolveTransforms binds domain suffixes to registered transforms,
// failing on unknown names so misconfiguration surfaces at startup.
func resolveTransforms(byDomain map[string]string) (map[string]Transform, error) {
	resolved := make(map[string]Transform, len(byDomain))
	for domain, name := range byDomain {
		t, ok := transforms[name]
		if !ok {
			return nil, fmt.Errorf("unknown deobfuscator %q for domain %q", name, domain)
		}
		resolved[domain] = t
	}
	return resolved, nil
}

// Some sites shift every character of article text by one code point to
// hinder scraping. The reverse table maps shifted characters back.
var shiftTable = func() map[rune]rune {
	const alphabet = "abcdefghijklmnopqrstuvwxyz" +
		"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
		"0123456789" +
		"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~" +
		"äöüÄÖÜß"
	table := make(map[rune]rune, len(alphabet))
	for _, r := range alphabet {
		table[r+1] = r
	}
	return table
}()

func unshift(s string) string {
	return strings.Map(func(r rune) rune {
		if orig, ok := shiftTable[r]; ok {
			return orig
		}
		return r
	}, s)
}

// deobfuscateShiftedText unshifts text inside elements carrying the
// "obfuscated" class. Link text is left alone, matching how the sites
// render it.
func deobfuscateShiftedText(doc *html.Node) {
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || !hasClass(n, "obfuscated") {
			return
		}
		unshiftTextNodes(n)
	})
}

func unshiftTextNodes(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			c.Data = unshift(c.Data)
			continue
		}
		if c.Type == html.ElementNode && c.Data != "a" {
			unshiftTextNodes(c)
		}
	}
}

// walk visits every node of the document in depth-first order.
func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

// absolutizeLinks resolves href/src attributes against the final fetch URL
// so the stored copy keeps working links.
func absolutizeLinks(doc *html.Node, base *url.URL) {
	if base == nil {
		return
	}
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		for i, a := range n.Attr {
			if a.Key != "href" && a.Key != "src" {
				continue
			}
			ref, err := url.Parse(a.Val)
			if err != nil {
				continue
			}
			n.Attr[i].Val = base.ResolveReference(ref).String()
		}
	})
}

// findTitle returns the document's <title> text, trimmed.
func findTitle(doc *html.Node) string {
	var title string
	walk(doc, func(n *html.Node) {
		if title != "" || n.Type != html.ElementNode || n.Data != "title" {
			return
		}
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			title = strings.TrimSpace(n.FirstChild.Data)
		}
	})
	return title
}

var unsafeElements = map[string]bool{
	"script": true, "style": true, "iframe": true, "frame": true,
	"frameset": true, "object": true, "embed": true, "form": true,
	"input": true, "button": true, "meta": true, "link": true,
}

var safeAttrs = map[string]bool{
	"abbr": true, "alt": true, "border": true, "charset": true,
	"cite": true, "cols": true, "colspan": true, "datetime": true,
	"dir": true, "download": true, "height": true, "href": true,
	"hreflang": true, "id": true, "label": true, "lang": true,
	"media": true, "name": true, "rows": true, "rowspan": true,
	"src": true, "summary": true, "tabindex": true, "title": true,
	"type": true, "value": true, "width": true,
}

// sanitize drops active content and comments and strips attributes outside
// the safe list.
func sanitize(doc *html.Node) {
	var prune []*html.Node
	walk(doc, func(n *html.Node) {
		switch n.Type {
		case html.CommentNode:
			prune = append(prune, n)
		case html.ElementNode:
			if unsafeElements[n.Data] {
				prune = append(prune, n)
				return
			}
			kept := n.Attr[:0]
			for _, a := range n.Attr {
				if safeAttrs[a.Key] {
					kept = append(kept, a)
				}
			}
			n.Attr = kept
		}
	})
	for _, n := range prune {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

// renderHTML serializes the document back to markup.
func renderHTML(doc *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return ""
	}
	return buf.String()
}

// Package document edits marker-delimited regions of a living text document.
//
// A block is the text between a start marker and an end marker, both HTML
// comments so they stay invisible in rendered markdown:
//
//	<!--install instruction start-->
//	...replaced on every sync...
//	<!--install instruction end-->
//
// Edits never mutate a Document in place; each returns a new value, so edits
// to non-overlapping blocks compose in any order.
package document

import (
	"regexp"
	"strings"
)

// Document is the full text of a living document.
type Document string

// Block names a region delimited by two literal markers.
type Block struct {
	Name  string
	Start string
	End   string
}

// Named returns the block delimited by <!--name start--> and <!--name end-->.
func Named(name string) Block {
	return Block{
		Name:  name,
		Start: "<!--" + name + " start-->",
		End:   "<!--" + name + " end-->",
	}
}

// Locate returns the byte range strictly between the markers of b.
// ok is false when either marker is missing or the end marker precedes the
// start marker.
func Locate(doc Document, b Block) (from, to int, ok bool) {
	s := strings.Index(string(doc), b.Start)
	e := strings.Index(string(doc), b.End)
	if s < 0 || e < 0 {
		return 0, 0, false
	}
	from = s + len(b.Start)
	if e < from {
		return 0, 0, false
	}
	return from, e, true
}

// ReplaceBlock replaces the contents of b with content, keeping both markers.
// When the block is not found the document is returned unchanged with
// found=false; callers decide whether that matters.
func ReplaceBlock(doc Document, b Block, content string) (out Document, found bool) {
	from, to, ok := Locate(doc, b)
	if !ok {
		return doc, false
	}
	var sb strings.Builder
	sb.Grow(len(doc) - (to - from) + len(content))
	sb.WriteString(string(doc[:from]))
	sb.WriteString(content)
	sb.WriteString(string(doc[to:]))
	return Document(sb.String()), true
}

// Contents returns the current text of b.
func Contents(doc Document, b Block) (string, bool) {
	from, to, ok := Locate(doc, b)
	if !ok {
		return "", false
	}
	return string(doc[from:to]), true
}

// FindBlocks returns, in document order, the names N of every start marker
// of the form <!--N{suffix} start-->. Duplicates are reported once.
func FindBlocks(doc Document, suffix string) []string {
	re := regexp.MustCompile(`<!--([^<>\n]+)` + regexp.QuoteMeta(suffix) + ` start-->`)
	var names []string
	seen := make(map[string]bool)
	for _, m := range re.FindAllStringSubmatch(string(doc), -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	return names
}

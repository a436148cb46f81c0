// Package patch rewrites the elements of an HTML document that match CSS
// selectors, replacing either their content or the elements themselves with
// HTML fragments.
package patch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// ErrSelector is returned for a fragment whose selector does not compile.
	ErrSelector = errors.New("invalid selector")
	// ErrParse is returned when the document cannot be parsed.
	ErrParse = errors.New("parse document")
)

// Fragment is rendered HTML bound to the selector it replaces.
type Fragment struct {
	Selector string
	HTML     string
	// Outer replaces each matched element. Otherwise only its children are
	// replaced.
	Outer bool
}

// Result is a patched document.
type Result struct {
	HTML string
	// Counts holds the number of elements each fragment replaced, in input
	// order.
	Counts []int
	// Applied is the sum of Counts.
	Applied int
}

// Patch applies fragments to document in order. Each fragment's selector is
// resolved against the tree produced by the fragments before it, so a later
// selector can match markup introduced by an earlier fragment.
//
// Every element matched by a selector receives the same fragment. A selector
// matching nothing is not an error. When no element is replaced the input is
// returned unchanged, byte for byte.
//
// Documents without a doctype or an <html>, <head> or <body> tag are treated
// as body fragments and serialized back without a synthesized html, head or
// body.
func Patch(document string, fragments ...Fragment) (Result, error) {
	res := Result{HTML: document, Counts: make([]int, len(fragments))}
	if len(fragments) == 0 {
		return res, nil
	}

	matchers := make([]cascadia.Selector, len(fragments))
	for i, f := range fragments {
		m, err := cascadia.Compile(f.Selector)
		if err != nil {
			return res, fmt.Errorf("%w %q: %w", ErrSelector, f.Selector, err)
		}

		matchers[i] = m
	}

	fragment := isFragment(document)

	tree, err := parse(document, fragment)
	if err != nil {
		return res, err
	}

	for i, f := range fragments {
		var n int

		tree, n = apply(tree, matchers[i], f)
		res.Counts[i] = n
		res.Applied += n
	}

	if res.Applied == 0 {
		return res, nil
	}

	out, err := tree.Html()
	if err != nil {
		return res, fmt.Errorf("render document: %w", err)
	}

	res.HTML = out

	return res, nil
}

// apply replaces every element in tree matched by m and returns the tree
// with the number of replaced elements. Matches nested inside another match
// are dropped with their ancestor's content and are not counted.
func apply(tree *goquery.Document, m cascadia.Selector, f Fragment) (*goquery.Document, int) {
	sel := outermost(tree.FindMatcher(m))

	n := sel.Length()
	if n == 0 {
		return tree, 0
	}

	if f.Outer {
		sel.ReplaceWithHtml(f.HTML)
	} else {
		sel.SetHtml(f.HTML)
	}

	return tree, n
}

// outermost filters sel to the elements that have no ancestor in sel.
func outermost(sel *goquery.Selection) *goquery.Selection {
	if sel.Length() < 2 {
		return sel
	}

	matched := make(map[*html.Node]struct{}, sel.Length())
	for _, n := range sel.Nodes {
		matched[n] = struct{}{}
	}

	return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		for p := s.Get(0).Parent; p != nil; p = p.Parent {
			if _, ok := matched[p]; ok {
				return false
			}
		}

		return true
	})
}

func isFragment(document string) bool {
	lower := strings.ToLower(document)
	if strings.Contains(lower, "<!doctype") {
		return false
	}

	for _, tag := range []string{"html", "head", "body"} {
		if hasTag(lower, tag) {
			return false
		}
	}

	return true
}

// hasTag reports whether the lowercased document contains a start tag for
// name, so that "<head" does not match "<header".
func hasTag(lower, name string) bool {
	open := "<" + name

	for i := strings.Index(lower, open); i >= 0; {
		end := i + len(open)
		if end == len(lower) {
			return true
		}

		switch lower[end] {
		case '>', '/', ' ', '\t', '\n', '\r', '\f':
			return true
		}

		next := strings.Index(lower[end:], open)
		if next < 0 {
			return false
		}

		i = end + next
	}

	return false
}

func parse(document string, fragment bool) (*goquery.Document, error) {
	if !fragment {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}

		return doc, nil
	}

	body := &html.Node{
		Type:     html.ElementNode,
		Data:     atom.Body.String(),
		DataAtom: atom.Body,
	}

	nodes, err := html.ParseFragment(strings.NewReader(document), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	for _, n := range nodes {
		body.AppendChild(n)
	}

	return goquery.NewDocumentFromNode(body), nil
}

package nfexml

import (
	"strings"
	"unicode"

	"github.com/beevik/etree"
)

// Lookups match on the local tag only: producers disagree on whether the
// fiscal namespace is declared as default or prefixed.

func child(e *etree.Element, name string) *etree.Element {
	if e == nil {
		return nil
	}
	for _, c := range e.ChildElements() {
		if c.Tag == name {
			return c
		}
	}
	return nil
}

func children(e *etree.Element, name string) []*etree.Element {
	if e == nil {
		return nil
	}
	var out []*etree.Element
	for _, c := range e.ChildElements() {
		if c.Tag == name {
			out = append(out, c)
		}
	}
	return out
}

func descend(e *etree.Element, path ...string) *etree.Element {
	for _, name := range path {
		e = child(e, name)
		if e == nil {
			return nil
		}
	}
	return e
}

func firstChild(e *etree.Element) *etree.Element {
	if e == nil {
		return nil
	}
	elems := e.ChildElements()
	if len(elems) == 0 {
		return nil
	}
	return elems[0]
}

// leafText returns the sanitized text of a nested leaf, or "" when any node
// on the path is absent.
func leafText(e *etree.Element, path ...string) string {
	target := descend(e, path...)
	if target == nil {
		return ""
	}
	return sanitizeText(target.Text())
}

func sanitizeText(s string) string {
	clean := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
	return strings.Join(strings.Fields(clean), " ")
}

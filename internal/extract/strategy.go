// Package extract turns listing cards and profile documents into member
// fields. Every field is produced by an ordered chain of strategies; the first
// strategy that yields a non-empty value wins and a field that nothing can
// resolve is the empty string. Extraction never fails as a whole.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Scope is the element a strategy reads from, plus the URL that relative links
// resolve against (nil leaves links as written).
type Scope struct {
	Sel  *goquery.Selection
	Base *url.URL
}

// Strategy produces one candidate value for a field.
type Strategy func(Scope) string

// Chain tries each strategy in order and returns the first non-empty trimmed
// value. A strategy that panics counts as empty.
func Chain(strategies ...Strategy) Strategy {
	return func(s Scope) string {
		for _, st := range strategies {
			if v := apply(st, s); v != "" {
				return v
			}
		}
		return ""
	}
}

func apply(st Strategy, s Scope) (v string) {
	defer func() {
		if recover() != nil {
			v = ""
		}
	}()
	if st == nil || s.Sel == nil {
		return ""
	}
	return strings.TrimSpace(st(s))
}

// Text reads the trimmed text of the first element matching selector.
func Text(selector string) Strategy {
	return func(s Scope) string {
		return strings.TrimSpace(s.Sel.Find(selector).First().Text())
	}
}

// Texts is one Text strategy per selector, in order.
func Texts(selectors ...string) []Strategy {
	out := make([]Strategy, 0, len(selectors))
	for _, sel := range selectors {
		out = append(out, Text(sel))
	}
	return out
}

// FullText reads the trimmed text of the scope element itself.
func FullText() Strategy {
	return func(s Scope) string {
		return strings.TrimSpace(s.Sel.Text())
	}
}

// Attr reads an attribute of the first element matching selector.
func Attr(selector, name string) Strategy {
	return func(s Scope) string {
		v, _ := s.Sel.Find(selector).First().Attr(name)
		return v
	}
}

// SchemeTarget reads the href of the first link using scheme (for example
// "tel:" or "mailto:") and strips the scheme prefix.
func SchemeTarget(scheme string) Strategy {
	return func(s Scope) string {
		href, _ := s.Sel.Find(`a[href^="` + scheme + `"]`).First().Attr("href")
		return strings.TrimPrefix(strings.TrimSpace(href), scheme)
	}
}

// Href reads the href of the first element matching selector without
// resolving it.
func Href(selector string) Strategy {
	return Attr(selector, "href")
}

// AbsHref reads the href of the first element matching selector and resolves
// it against the scope base.
func AbsHref(selector string) Strategy {
	return func(s Scope) string {
		href, ok := s.Sel.Find(selector).First().Attr("href")
		if !ok {
			return ""
		}
		return resolve(s.Base, href)
	}
}

// OwnHref resolves the href of the scope element itself.
func OwnHref() Strategy {
	return func(s Scope) string {
		href, ok := s.Sel.Attr("href")
		if !ok {
			return ""
		}
		return resolve(s.Base, href)
	}
}

// ExternalLink returns the first absolute http(s) link whose target is not a
// mailto: address.
func ExternalLink() Strategy {
	return func(s Scope) string {
		var found string
		s.Sel.Find(`a[href^="http"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if strings.Contains(href, "mailto:") {
				return true
			}
			found = resolve(s.Base, href)
			return false
		})
		return found
	}
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// SplitAddress reads city and province from a comma separated address: the
// last segment is the province and the one before it the city. Text without a
// comma yields two empty strings.
func SplitAddress(text string) (city, province string) {
	if !strings.Contains(text, ",") {
		return "", ""
	}
	parts := strings.Split(text, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}

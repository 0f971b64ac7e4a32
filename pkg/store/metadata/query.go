package metadata

import (
	"sort"
	"strings"

	"github.com/marmos91/dittovault/pkg/media"
)

const (
	// DefaultSearchSize is used when a query does not set Size
	DefaultSearchSize = 50

	// MaxSearchSize caps Query.Size
	MaxSearchSize = 1000
)

// Visibility restricts which records a caller may see.
//
// A record is visible when All is set, when it was created by Owner, or when
// IncludePublic is set and the record is PUBLIC. The zero value hides
// everything.
type Visibility struct {
	All           bool
	Owner         string
	IncludePublic bool
}

// Allows reports whether item is visible.
func (v Visibility) Allows(item *media.Item) bool {
	if v.All {
		return true
	}
	if v.Owner != "" && item.CreatedBy == v.Owner {
		return true
	}
	return v.IncludePublic && item.IsPublic()
}

// None reports whether the filter hides every record.
func (v Visibility) None() bool {
	return !v.All && v.Owner == "" && !v.IncludePublic
}

// Query is a search request.
//
// Text is split on whitespace; every term must appear (case-insensitively)
// in the record's title, content, filename, tags or prop values. Empty text
// and MatchAll match every record.
type Query struct {
	Text       string
	Size       int
	ActiveOnly bool
	Visibility Visibility
}

// Limit returns the effective result size.
func (q Query) Limit() int {
	switch {
	case q.Size <= 0:
		return DefaultSearchSize
	case q.Size > MaxSearchSize:
		return MaxSearchSize
	default:
		return q.Size
	}
}

// MatchAll is the wildcard query text. Clients send it for a blank search.
const MatchAll = "*"

// Terms returns the lower-cased search terms. A MatchAll term is dropped,
// so "*" matches like empty text.
func (q Query) Terms() []string {
	fields := strings.Fields(strings.ToLower(q.Text))
	terms := fields[:0]
	for _, f := range fields {
		if f != MatchAll {
			terms = append(terms, f)
		}
	}
	return terms
}

// Matches applies every predicate of q to item. In-process indexes use it
// while scanning so that filtering happens before the size cut.
func (q Query) Matches(item *media.Item) bool {
	if q.ActiveOnly && !item.Activated {
		return false
	}
	if !q.Visibility.Allows(item) {
		return false
	}
	terms := q.Terms()
	if len(terms) == 0 {
		return true
	}
	text := SearchText(item)
	for _, term := range terms {
		if !strings.Contains(text, term) {
			return false
		}
	}
	return true
}

// SearchText is the lower-cased text a record is searched by.
func SearchText(item *media.Item) string {
	var b strings.Builder
	add := func(s string) {
		if s == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.ToLower(s))
	}

	add(item.Title)
	add(item.Content)
	add(item.Filename)
	for _, t := range item.Tags {
		add(t)
	}
	for _, p := range item.Props {
		add(p.TextValue)
	}
	return b.String()
}

// SortResults orders records newest modification first, ties broken by id,
// so every index returns results in the same order.
func SortResults(items []*media.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.ModificationDate.Equal(b.ModificationDate) {
			return a.ModificationDate.After(b.ModificationDate)
		}
		return a.ID < b.ID
	})
}

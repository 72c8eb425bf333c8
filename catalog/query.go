package catalog

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/cppla/myresource/models"
)

// CategoryAll disables the category filter.
const CategoryAll = "all"

type SortKey string

const (
	SortNewest SortKey = "newest"
	SortOldest SortKey = "oldest"
	SortName   SortKey = "name"
	SortSize   SortKey = "size"
)

var ErrInvalidFilter = errors.New("catalog: invalid filter")

// Filter is the transient view state applied on every render. It is never persisted.
type Filter struct {
	Category string  `json:"category"`
	Search   string  `json:"search"`
	Sort     SortKey `json:"sort"`
}

// DefaultFilter shows everything, newest first.
func DefaultFilter() Filter {
	return Filter{Category: CategoryAll, Sort: SortNewest}
}

// ParseFilter validates raw query parameters. Empty values fall back to the defaults.
func ParseFilter(category, search, sort string) (Filter, error) {
	f := DefaultFilter()
	if category != "" {
		if category != CategoryAll && !models.Category(category).Valid() {
			return Filter{}, fmt.Errorf("%w: unknown category %q", ErrInvalidFilter, category)
		}
		f.Category = category
	}
	if sort != "" {
		switch SortKey(sort) {
		case SortNewest, SortOldest, SortName, SortSize:
			f.Sort = SortKey(sort)
		default:
			return Filter{}, fmt.Errorf("%w: unknown sort %q", ErrInvalidFilter, sort)
		}
	}
	f.Search = strings.TrimSpace(search)
	return f, nil
}

func (f Filter) cacheKey() string {
	return f.Category + "\x00" + strings.ToLower(strings.TrimSpace(f.Search)) + "\x00" + string(f.Sort)
}

// Apply returns a new slice holding the records that pass the category and
// search filters, sorted stably by f.Sort. The input is not modified.
// Names are compared with the collation rules of lang.
func Apply(list []models.Resource, f Filter, lang language.Tag) []models.Resource {
	term := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.Resource, 0, len(list))
	for _, r := range list {
		if f.Category != "" && f.Category != CategoryAll && string(r.Category) != f.Category {
			continue
		}
		if term != "" && !matches(r, term) {
			continue
		}
		out = append(out, r)
	}

	switch f.Sort {
	case SortNewest:
		slices.SortStableFunc(out, func(a, b models.Resource) int { return b.Date.Compare(a.Date) })
	case SortOldest:
		slices.SortStableFunc(out, func(a, b models.Resource) int { return a.Date.Compare(b.Date) })
	case SortName:
		// collate.Collator keeps internal buffers, one per call
		col := collate.New(lang)
		slices.SortStableFunc(out, func(a, b models.Resource) int { return col.CompareString(a.Name, b.Name) })
	case SortSize:
		slices.SortStableFunc(out, func(a, b models.Resource) int { return cmp.Compare(b.Size, a.Size) })
	}
	return out
}

func matches(r models.Resource, term string) bool {
	if strings.Contains(strings.ToLower(r.Name), term) {
		return true
	}
	if strings.Contains(strings.ToLower(r.Description), term) {
		return true
	}
	for _, tag := range r.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

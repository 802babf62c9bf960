package core

import (
	"net/url"
	"strconv"
	"time"
)

// DefaultPageSize is the number of expenses per list page.
const DefaultPageSize = 10

// Page is one slice of a paginated list.
type Page[T any] struct {
	Items      []T
	Number     int
	Size       int
	TotalPages int
	TotalItems int
}

func (p Page[T]) HasPrev() bool { return p.Number > 1 }
func (p Page[T]) HasNext() bool { return p.Number < p.TotalPages }
func (p Page[T]) Prev() int     { return p.Number - 1 }
func (p Page[T]) Next() int     { return p.Number + 1 }

// Numbers lists every page number, for pagination links.
func (p Page[T]) Numbers() []int {
	n := make([]int, p.TotalPages)
	for i := range n {
		n[i] = i + 1
	}
	return n
}

// Paginate returns items[(page-1)*size : page*size]. There is always at
// least one page and out-of-range page numbers are clamped.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(items)
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	lo := (page - 1) * size
	hi := min(lo+size, total)
	return Page[T]{
		Items:      items[lo:hi],
		Number:     page,
		Size:       size,
		TotalPages: pages,
		TotalItems: total,
	}
}

// ListQuery is the list view state carried between requests.
type ListQuery struct {
	Filter string // "all" or a payer name
	Preset Preset
	Start  string // custom range bounds, YYYY-MM-DD
	End    string
	Page   int
}

// DefaultListQuery shows everything from the first page.
func DefaultListQuery() ListQuery {
	return ListQuery{Filter: FilterAll, Preset: PresetAll, Page: 1}
}

// ParseListQuery reads list state from query parameters, tolerating junk.
func ParseListQuery(v url.Values) ListQuery {
	q := ListQuery{
		Filter: ParsePayerFilter(v.Get("filter")),
		Preset: ParsePreset(v.Get("range")),
		Page:   1,
	}
	if q.Preset == PresetCustom {
		q.Start = v.Get("start")
		q.End = v.Get("end")
	}
	if n, err := strconv.Atoi(v.Get("page")); err == nil && n > 0 {
		q.Page = n
	}
	return q
}

// WithFilter changes the payer filter and resets to the first page.
func (q ListQuery) WithFilter(filter string) ListQuery {
	q.Filter = ParsePayerFilter(filter)
	q.Page = 1
	return q
}

// WithPreset changes the date preset and resets to the first page.
func (q ListQuery) WithPreset(p Preset) ListQuery {
	q.Preset = p
	if p != PresetCustom {
		q.Start, q.End = "", ""
	}
	q.Page = 1
	return q
}

// WithCustomRange switches to a custom range and resets to the first page.
func (q ListQuery) WithCustomRange(start, end string) ListQuery {
	q.Preset = PresetCustom
	q.Start, q.End = start, end
	q.Page = 1
	return q
}

// WithPage moves to another page keeping filters.
func (q ListQuery) WithPage(page int) ListQuery {
	q.Page = page
	return q
}

// Range resolves the query's date bounds relative to now.
func (q ListQuery) Range(now time.Time) (DateRange, error) {
	if q.Preset == PresetCustom {
		return CustomRange(q.Start, q.End, now.Location())
	}
	return ResolvePreset(q.Preset, now), nil
}

// Values renders the query as URL parameters, omitting defaults.
func (q ListQuery) Values() url.Values {
	v := url.Values{}
	if q.Filter != "" && q.Filter != FilterAll {
		v.Set("filter", q.Filter)
	}
	if q.Preset != "" && q.Preset != PresetAll {
		v.Set("range", string(q.Preset))
	}
	if q.Preset == PresetCustom {
		if q.Start != "" {
			v.Set("start", q.Start)
		}
		if q.End != "" {
			v.Set("end", q.End)
		}
	}
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	return v
}

func (q ListQuery) Encode() string {
	return q.Values().Encode()
}

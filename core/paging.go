package core

const (
	DefaultPageSize = 25
	MaxPageSize     = 200
)

// Page selects a window of a list result. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

// Clean applies defaults and bounds.
func (p Page) Clean() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	} else if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) Limit() int  { return p.Clean().Size }
func (p Page) Offset() int { c := p.Clean(); return (c.Number - 1) * c.Size }

// PageResult is one page of a list plus the total number of matching rows.
type PageResult[T any] struct {
	Count    int `json:"count"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Results  []T `json:"results"`
}

func NewPageResult[T any](items []T, count int, page Page) PageResult[T] {
	page = page.Clean()
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{Count: count, Page: page.Number, PageSize: page.Size, Results: items}
}

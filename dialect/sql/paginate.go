package sql

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pagination defaults.
const (
	DefaultPage    = 1
	DefaultPerPage = 10
)

// PageOptions selects a window either by Page/PerPage or by Offset/Limit.
// Zero values are unset. When Page or PerPage is set, Offset and Limit are
// recomputed from them.
type PageOptions struct {
	Page    int
	PerPage int
	Offset  int
	Limit   int
}

// Pagination is the resolved LIMIT/OFFSET window.
type Pagination struct {
	page    int
	perPage int
	offset  int
	limit   int
}

// NewPagination resolves opts into a window.
func NewPagination(opts PageOptions) *Pagination {
	p := &Pagination{
		page:    positive(opts.Page, DefaultPage),
		perPage: positive(opts.PerPage, DefaultPerPage),
		offset:  max(opts.Offset, 0),
		limit:   positive(opts.Limit, DefaultPerPage),
	}
	switch {
	case opts.Page > 0 || opts.PerPage > 0:
		p.offset = (p.page - 1) * p.perPage
		p.limit = p.perPage
	default:
		// Offset/limit style: report the page containing offset.
		p.perPage = p.limit
		p.page = p.offset/p.limit + 1
	}
	return p
}

func positive(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// Page returns the 1-based page number.
func (p *Pagination) Page() int { return p.page }

// PerPage returns the page size.
func (p *Pagination) PerPage() int { return p.perPage }

// Offset returns the row offset.
func (p *Pagination) Offset() int { return p.offset }

// Limit returns the row limit.
func (p *Pagination) Limit() int { return p.limit }

// Build compiles "LIMIT ? OFFSET ?" with [limit, offset].
func (p *Pagination) Build() (string, []any) {
	return "LIMIT ? OFFSET ?", []any{p.limit, p.offset}
}

// Page is one window of a paginated result set.
type Page[T any] struct {
	Data     []T  `json:"data" yaml:"data"`
	Total    int  `json:"total" yaml:"total"`
	Page     int  `json:"page" yaml:"page"`
	PerPage  int  `json:"per_page" yaml:"per_page"`
	LastPage int  `json:"last_page" yaml:"last_page"`
	HasMore  bool `json:"has_more" yaml:"has_more"`
}

// NewPage computes LastPage = ceil(total/perPage) and HasMore = page < LastPage.
func NewPage[T any](data []T, total int, p *Pagination) *Page[T] {
	last := 0
	if total > 0 {
		last = (total + p.perPage - 1) / p.perPage
	}
	if data == nil {
		data = []T{}
	}
	return &Page[T]{
		Data:     data,
		Total:    total,
		Page:     p.page,
		PerPage:  p.perPage,
		LastPage: last,
		HasMore:  p.page < last,
	}
}

// Paginate runs the data and count fetches and assembles a Page. Both run
// concurrently unless sequential is set, which is required when they share
// a single connection.
func Paginate[T any](ctx context.Context, p *Pagination, data func(context.Context) ([]T, error), count func(context.Context) (int, error), sequential bool) (*Page[T], error) {
	var (
		rows  []T
		total int
	)
	if sequential {
		var err error
		if rows, err = data(ctx); err != nil {
			return nil, err
		}
		if total, err = count(ctx); err != nil {
			return nil, err
		}
		return NewPage(rows, total, p), nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rows, err = data(gctx)
		return err
	})
	g.Go(func() (err error) {
		total, err = count(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewPage(rows, total, p), nil
}

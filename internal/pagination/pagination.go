// Package pagination parses page/limit query parameters and describes pages
// of results.
package pagination

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/pgkit/internal/common"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is a validated page request.
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// FromQuery reads "page" and "limit". Missing values take the defaults and a
// limit above MaxLimit is clamped. Non-numeric or non-positive values are a
// validation error.
func FromQuery(q url.Values) (Params, error) {
	p := Params{Page: DefaultPage, Limit: DefaultLimit}
	var err error
	if p.Page, err = positive(q, "page", DefaultPage); err != nil {
		return Params{}, err
	}
	if p.Limit, err = positive(q, "limit", DefaultLimit); err != nil {
		return Params{}, err
	}
	return p.normalize(), nil
}

func positive(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", common.ErrValidation, name, raw)
	}
	return n, nil
}

func (p Params) normalize() Params {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset is the number of rows to skip.
func (p Params) Offset() int {
	p = p.normalize()
	return (p.Page - 1) * p.Limit
}

// Meta describes where a page sits in the full result.
type Meta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewMeta computes page metadata for total matching rows.
func NewMeta(p Params, total int) Meta {
	p = p.normalize()
	pages := 0
	if total > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Meta{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
	}
}

// Page is one page of items.
type Page[T any] struct {
	Items []T  `json:"items"`
	Meta  Meta `json:"meta"`
}

// NewPage pairs items with their metadata. A nil slice is rendered as [].
func NewPage[T any](items []T, p Params, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Meta: NewMeta(p, total)}
}

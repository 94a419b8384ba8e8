// Package pagination normalises page/per_page query values for list endpoints.
package pagination

import "github.com/Alijeyrad/medcenter_backend/internal/repo"

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

type Request struct {
	Page    int
	PerPage int
}

// Normalize clamps page to >= 1 and per_page to 1..MaxPerPage.
func (r Request) Normalize() Request {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PerPage < 1 {
		r.PerPage = DefaultPerPage
	}
	if r.PerPage > MaxPerPage {
		r.PerPage = MaxPerPage
	}
	return r
}

func (r Request) Repo() repo.Page {
	n := r.Normalize()
	return repo.Page{Limit: n.PerPage, Offset: (n.Page - 1) * n.PerPage}
}

type Result[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
}

func NewResult[T any](data []T, total int, req Request) *Result[T] {
	n := req.Normalize()
	if data == nil {
		data = []T{}
	}
	pages := 0
	if total > 0 {
		pages = (total + n.PerPage - 1) / n.PerPage
	}
	return &Result[T]{Data: data, Total: total, Page: n.Page, PerPage: n.PerPage, TotalPages: pages}
}

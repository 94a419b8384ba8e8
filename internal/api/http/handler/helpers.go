package handler

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/medcenter_backend/internal/service/pagination"
	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
)

// pageQuery is embedded in list query structs.
type pageQuery struct {
	Page    int `query:"page"`
	PerPage int `query:"per_page"`
}

func (q pageQuery) request() pagination.Request {
	return pagination.Request{Page: q.Page, PerPage: q.PerPage}
}

func scopeFrom(c fiber.Ctx) (*reqctx.CenterScope, bool) {
	return middleware.ScopeFromFiber(c)
}

func userIDFrom(c fiber.Ctx) (uuid.UUID, bool) {
	claims, found := middleware.ClaimsFromFiber(c)
	if !found {
		return uuid.UUID{}, false
	}
	return claims.UserID, true
}

func paramID(c fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

// optionalID parses a query value that may be empty.
func optionalID(s string) (*uuid.UUID, bool) {
	if s == "" {
		return nil, true
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, false
	}
	return &id, true
}

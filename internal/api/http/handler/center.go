package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/medcenter_backend/internal/service/center"
	"github.com/Alijeyrad/medcenter_backend/pkg/authorize"
)

type CenterHandler struct {
	svc    center.Service
	admins middleware.SuperAdmins
}

func NewCenterHandler(svc center.Service, admins middleware.SuperAdmins) *CenterHandler {
	return &CenterHandler{svc: svc, admins: admins}
}

func mapCenterError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, center.ErrCenterNotFound), errors.Is(err, center.ErrMemberNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, center.ErrSlugAlreadyExists), errors.Is(err, center.ErrAlreadyMember):
		return conflict(c, err.Error())
	case errors.Is(err, center.ErrCannotRemoveOwner):
		return unprocessable(c, err.Error())
	case errors.Is(err, center.ErrNameRequired),
		errors.Is(err, center.ErrInvalidRole),
		errors.Is(err, center.ErrInvalidEmail),
		errors.Is(err, center.ErrInvalidPhone):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// GET /api/v1/centers
// Superadmins see every center, everyone else the centers they belong to.
func (h *CenterHandler) List(c fiber.Ctx) error {
	userID, found := userIDFrom(c)
	if !found {
		return unauthorized(c)
	}

	var q pageQuery
	_ = c.Bind().Query(&q)

	filter := &userID
	if h.admins != nil && h.admins.IsSuperAdmin(c.Context(), authorize.GroupSubject(userID.String())) {
		filter = nil
	}

	result, err := h.svc.ListCenters(c.Context(), filter, q.request())
	if err != nil {
		return mapCenterError(c, err)
	}
	return ok(c, result)
}

// POST /api/v1/centers
func (h *CenterHandler) Create(c fiber.Ctx) error {
	userID, found := userIDFrom(c)
	if !found {
		return unauthorized(c)
	}

	var body center.CreateCenterRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	ct, err := h.svc.CreateCenter(c.Context(), userID, body)
	if err != nil {
		return mapCenterError(c, err)
	}
	return created(c, ct)
}

// GET /api/v1/centers/:id
func (h *CenterHandler) Get(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return forbidden(c)
	}

	ct, err := h.svc.GetCenter(c.Context(), scope.CenterID)
	if err != nil {
		return mapCenterError(c, err)
	}
	return ok(c, ct)
}

// PATCH /api/v1/centers/:id
func (h *CenterHandler) Update(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return forbidden(c)
	}

	var body center.UpdateCenterRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	ct, err := h.svc.UpdateCenter(c.Context(), scope.CenterID, body)
	if err != nil {
		return mapCenterError(c, err)
	}
	return ok(c, ct)
}

// DELETE /api/v1/centers/:id
func (h *CenterHandler) Delete(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return forbidden(c)
	}

	if err := h.svc.DeleteCenter(c.Context(), scope.CenterID); err != nil {
		return mapCenterError(c, err)
	}
	return noContent(c)
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

// GET /api/v1/centers/:id/members
func (h *CenterHandler) ListMembers(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return forbidden(c)
	}

	var q struct {
		pageQuery
		Role       string `query:"role"`
		ActiveOnly bool   `query:"active_only"`
	}
	_ = c.Bind().Query(&q)

	result, err := h.svc.ListMembers(c.Context(), scope.CenterID, center.ListMembersRequest{
		Request:    q.request(),
		Role:       q.Role,
		ActiveOnly: q.ActiveOnly,
	})
	if err != nil {
		return mapCenterError(c, err)
	}
	return ok(c, result)
}

// GET /api/v1/centers/:id/members/:memberId
func (h *CenterHandler) GetMember(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return forbidden(c)
	}
	memberID, valid := paramID(c, "memberId")
	if !valid {
		return badRequest(c, "invalid member id")
	}

	m, err := h.svc.GetMember(c.Context(), scope.CenterID, memberID)
	if err != nil {
		return mapCenterError(c, err)
	}
	return ok(c, m)
}

// POST /api/v1/centers/:id/members
func (h *CenterHandler) AddMember(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return forbidden(c)
	}

	var body center.AddMemberRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.svc.AddMember(c.Context(), scope.CenterID, body)
	if err != nil {
		return mapCenterError(c, err)
	}
	return created(c, res)
}

// PATCH /api/v1/centers/:id/members/:memberId
func (h *CenterHandler) UpdateMember(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return forbidden(c)
	}
	memberID, valid := paramID(c, "memberId")
	if !valid {
		return badRequest(c, "invalid member id")
	}

	var body center.UpdateMemberRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	m, err := h.svc.UpdateMember(c.Context(), scope.CenterID, memberID, body)
	if err != nil {
		return mapCenterError(c, err)
	}
	return ok(c, m)
}

// DELETE /api/v1/centers/:id/members/:memberId
func (h *CenterHandler) DeactivateMember(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return forbidden(c)
	}
	memberID, valid := paramID(c, "memberId")
	if !valid {
		return badRequest(c, "invalid member id")
	}

	if err := h.svc.DeactivateMember(c.Context(), scope.CenterID, memberID); err != nil {
		return mapCenterError(c, err)
	}
	return noContent(c)
}

package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/service/insurance"
)

type InsuranceHandler struct {
	svc insurance.Service
}

func NewInsuranceHandler(svc insurance.Service) *InsuranceHandler {
	return &InsuranceHandler{svc: svc}
}

func mapInsuranceError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, insurance.ErrRequestNotFound),
		errors.Is(err, insurance.ErrDocumentNotFound),
		errors.Is(err, insurance.ErrPatientNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, insurance.ErrNotPending):
		return conflict(c, err.Error())
	case errors.Is(err, insurance.ErrFileTooLarge):
		return fail(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, insurance.ErrUnsupportedFileType):
		return fail(c, fiber.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, insurance.ErrStorageUnavailable):
		return unavailable(c, err.Error())
	case errors.Is(err, insurance.ErrQueueItemMismatch),
		errors.Is(err, insurance.ErrProviderRequired),
		errors.Is(err, insurance.ErrInvalidStatus),
		errors.Is(err, insurance.ErrInvalidDecision),
		errors.Is(err, insurance.ErrInvalidAmount),
		errors.Is(err, insurance.ErrDocTypeRequired):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// GET /insurance-requests
func (h *InsuranceHandler) List(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var q struct {
		pageQuery
		PatientID string `query:"patient_id"`
		Status    string `query:"status"`
	}
	_ = c.Bind().Query(&q)

	req := insurance.ListRequest{Request: q.request(), Status: q.Status}
	var valid bool
	if req.PatientID, valid = optionalID(q.PatientID); !valid {
		return badRequest(c, "invalid patient_id")
	}

	result, err := h.svc.List(c.Context(), scope, req)
	if err != nil {
		return mapInsuranceError(c, err)
	}
	return ok(c, result)
}

// POST /insurance-requests
func (h *InsuranceHandler) Create(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var body insurance.CreateRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.PatientID == uuid.Nil {
		return badRequest(c, "patient_id is required")
	}

	req, err := h.svc.Create(c.Context(), scope, body)
	if err != nil {
		return mapInsuranceError(c, err)
	}
	return created(c, req)
}

// GET /insurance-requests/:id
func (h *InsuranceHandler) Get(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid insurance request id")
	}

	d, err := h.svc.Get(c.Context(), scope, id)
	if err != nil {
		return mapInsuranceError(c, err)
	}
	return ok(c, d)
}

// PATCH /insurance-requests/:id
func (h *InsuranceHandler) Update(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid insurance request id")
	}

	var body insurance.UpdateRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	req, err := h.svc.Update(c.Context(), scope, id, body)
	if err != nil {
		return mapInsuranceError(c, err)
	}
	return ok(c, req)
}

// POST /insurance-requests/:id/review
func (h *InsuranceHandler) Review(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid insurance request id")
	}

	var body insurance.ReviewRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	req, err := h.svc.Review(c.Context(), scope, id, body)
	if err != nil {
		return mapInsuranceError(c, err)
	}
	return ok(c, req)
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

// POST /insurance-requests/:id/documents
// Multipart form: file, doc_type.
func (h *InsuranceHandler) UploadDocument(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid insurance request id")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file field is required")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "cannot read uploaded file")
	}
	defer f.Close()

	doc, err := h.svc.UploadDocument(c.Context(), scope, id, insurance.UploadRequest{
		DocType:     c.FormValue("doc_type"),
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		return mapInsuranceError(c, err)
	}
	return created(c, doc)
}

// GET /insurance-documents/:id
// Redirects to a presigned download URL.
func (h *InsuranceHandler) DownloadDocument(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid document id")
	}

	url, err := h.svc.DocumentURL(c.Context(), scope, id)
	if err != nil {
		return mapInsuranceError(c, err)
	}
	return c.Redirect().To(url)
}

// DELETE /insurance-documents/:id
func (h *InsuranceHandler) DeleteDocument(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid document id")
	}

	if err := h.svc.DeleteDocument(c.Context(), scope, id); err != nil {
		return mapInsuranceError(c, err)
	}
	return noContent(c)
}

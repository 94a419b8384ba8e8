// Package insurance manages insurance coverage requests, their review and the
// supporting documents kept in object storage.
package insurance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/pagination"
	"github.com/Alijeyrad/medcenter_backend/pkg/events"
	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
	s3pkg "github.com/Alijeyrad/medcenter_backend/pkg/s3"
)

// MaxDocumentSize caps a single uploaded document.
const MaxDocumentSize = 10 << 20

var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type CreateRequest struct {
	PatientID         uuid.UUID  `json:"patient_id"`
	QueueItemID       *uuid.UUID `json:"queue_item_id"`
	Provider          string     `json:"provider"`
	PolicyNumber      *string    `json:"policy_number"`
	RequiredDocuments []string   `json:"required_documents"`
}

type UpdateRequest struct {
	Provider          *string  `json:"provider"`
	PolicyNumber      *string  `json:"policy_number"`
	RequiredDocuments []string `json:"required_documents"`
}

type ReviewRequest struct {
	Status         string  `json:"status"`
	ApprovedAmount int64   `json:"approved_amount"`
	Notes          *string `json:"notes"`
}

type ListRequest struct {
	pagination.Request
	PatientID *uuid.UUID
	Status    string
}

// Detail is a request with its documents.
type Detail struct {
	*repo.InsuranceRequest
	Documents        []*repo.InsuranceDocument `json:"documents"`
	MissingDocuments []string                  `json:"missing_documents"`
}

type UploadRequest struct {
	DocType     string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Blobs is the document storage; *s3.Client satisfies it.
type Blobs interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	PresignDownload(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Store is the persistence the service needs.
type Store interface {
	Patient(ctx context.Context, centerID, id uuid.UUID) (*repo.Patient, error)
	QueueItem(ctx context.Context, centerID, id uuid.UUID) (*repo.QueueItem, error)
	PatientVisible(ctx context.Context, centerID, patientID, doctorID uuid.UUID) (bool, error)
	CreateRequest(ctx context.Context, req *repo.InsuranceRequest) error
	GetRequest(ctx context.Context, centerID, id uuid.UUID) (*repo.InsuranceRequest, error)
	ListRequests(ctx context.Context, centerID uuid.UUID, f repo.InsuranceFilter, p repo.Page) ([]*repo.InsuranceRequest, int, error)
	UpdateRequest(ctx context.Context, centerID, id uuid.UUID, in repo.InsuranceUpdate) error
	Review(ctx context.Context, centerID, id uuid.UUID, status string, approvedAmount int64, reviewer *uuid.UUID, notes *string) error
	AddDocument(ctx context.Context, d *repo.InsuranceDocument) error
	GetDocument(ctx context.Context, centerID, id uuid.UUID) (*repo.InsuranceDocument, error)
	ListDocuments(ctx context.Context, centerID, requestID uuid.UUID) ([]*repo.InsuranceDocument, error)
	DeleteDocument(ctx context.Context, centerID, id uuid.UUID) error
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	Create(ctx context.Context, scope *reqctx.CenterScope, req CreateRequest) (*repo.InsuranceRequest, error)
	Get(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*Detail, error)
	List(ctx context.Context, scope *reqctx.CenterScope, req ListRequest) (*pagination.Result[*repo.InsuranceRequest], error)
	Update(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID, req UpdateRequest) (*repo.InsuranceRequest, error)
	Review(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID, req ReviewRequest) (*repo.InsuranceRequest, error)

	UploadDocument(ctx context.Context, scope *reqctx.CenterScope, requestID uuid.UUID, req UploadRequest) (*repo.InsuranceDocument, error)
	DocumentURL(ctx context.Context, scope *reqctx.CenterScope, documentID uuid.UUID) (string, error)
	DeleteDocument(ctx context.Context, scope *reqctx.CenterScope, documentID uuid.UUID) error
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type insuranceService struct {
	store  Store
	blobs  Blobs
	events events.Publisher
}

// New wires the service. blobs may be nil when storage is not configured;
// document operations then fail with ErrStorageUnavailable.
func New(store Store, blobs Blobs, pub events.Publisher) Service {
	return &insuranceService{store: store, blobs: blobs, events: pub}
}

func (s *insuranceService) Create(ctx context.Context, scope *reqctx.CenterScope, req CreateRequest) (*repo.InsuranceRequest, error) {
	provider := strings.TrimSpace(req.Provider)
	if provider == "" {
		return nil, ErrProviderRequired
	}
	if _, err := s.store.Patient(ctx, scope.CenterID, req.PatientID); err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	if req.QueueItemID != nil {
		item, err := s.store.QueueItem(ctx, scope.CenterID, *req.QueueItemID)
		if err != nil && !repo.IsNotFound(err) {
			return nil, fmt.Errorf("get queue item: %w", err)
		}
		if item == nil || item.PatientID != req.PatientID {
			return nil, ErrQueueItemMismatch
		}
	}

	ir := &repo.InsuranceRequest{
		CenterID:          scope.CenterID,
		PatientID:         req.PatientID,
		QueueItemID:       req.QueueItemID,
		Provider:          provider,
		PolicyNumber:      req.PolicyNumber,
		RequiredDocuments: normalizeDocTypes(req.RequiredDocuments),
	}
	if err := s.store.CreateRequest(ctx, ir); err != nil {
		return nil, fmt.Errorf("create insurance request: %w", err)
	}
	return ir, nil
}

func (s *insuranceService) Get(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*Detail, error) {
	ir, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.ListDocuments(ctx, scope.CenterID, id)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if docs == nil {
		docs = []*repo.InsuranceDocument{}
	}
	have := make(map[string]bool, len(docs))
	for _, d := range docs {
		have[d.DocType] = true
	}
	missing := []string{}
	for _, t := range ir.RequiredDocuments {
		if !have[t] {
			missing = append(missing, t)
		}
	}
	return &Detail{InsuranceRequest: ir, Documents: docs, MissingDocuments: missing}, nil
}

func (s *insuranceService) List(ctx context.Context, scope *reqctx.CenterScope, req ListRequest) (*pagination.Result[*repo.InsuranceRequest], error) {
	if req.Status != "" && !validStatus(req.Status) {
		return nil, ErrInvalidStatus
	}
	page := req.Normalize()
	f := repo.InsuranceFilter{PatientID: req.PatientID, Status: req.Status}
	if doctorOnly(scope) {
		f.DoctorID = &scope.MemberID
	}
	list, total, err := s.store.ListRequests(ctx, scope.CenterID, f, page.Repo())
	if err != nil {
		return nil, fmt.Errorf("list insurance requests: %w", err)
	}
	return pagination.NewResult(list, total, page), nil
}

func (s *insuranceService) Update(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID, req UpdateRequest) (*repo.InsuranceRequest, error) {
	ir, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if ir.Status != repo.InsurancePending {
		return nil, ErrNotPending
	}
	in := repo.InsuranceUpdate{PolicyNumber: req.PolicyNumber}
	if req.Provider != nil {
		p := strings.TrimSpace(*req.Provider)
		if p == "" {
			return nil, ErrProviderRequired
		}
		in.Provider = &p
	}
	if req.RequiredDocuments != nil {
		in.RequiredDocuments = normalizeDocTypes(req.RequiredDocuments)
	}
	if err := s.store.UpdateRequest(ctx, scope.CenterID, id, in); err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotPending
		}
		return nil, fmt.Errorf("update insurance request: %w", err)
	}
	return s.load(ctx, scope, id)
}

func (s *insuranceService) Review(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID, req ReviewRequest) (*repo.InsuranceRequest, error) {
	if req.Status != repo.InsuranceApproved && req.Status != repo.InsuranceRejected {
		return nil, ErrInvalidDecision
	}
	if req.ApprovedAmount < 0 {
		return nil, ErrInvalidAmount
	}
	amount := req.ApprovedAmount
	if req.Status == repo.InsuranceRejected {
		amount = 0
	}
	ir, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if ir.Status != repo.InsurancePending {
		return nil, ErrNotPending
	}

	if err := s.store.Review(ctx, scope.CenterID, id, req.Status, amount, scope.Actor(), req.Notes); err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotPending
		}
		return nil, fmt.Errorf("review insurance request: %w", err)
	}
	ir, err = s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	data := map[string]any{
		"patient_id":      ir.PatientID.String(),
		"status":          ir.Status,
		"approved_amount": ir.ApprovedAmount,
		"provider":        ir.Provider,
	}
	if ir.QueueItemID != nil {
		data["queue_item_id"] = ir.QueueItemID.String()
	}
	events.PublishBestEffort(ctx, s.events, events.Event{
		Type:     events.InsuranceReviewed,
		CenterID: scope.CenterID,
		EntityID: ir.ID,
		ActorID:  scope.Actor(),
		Data:     data,
	})
	return ir, nil
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

func (s *insuranceService) UploadDocument(ctx context.Context, scope *reqctx.CenterScope, requestID uuid.UUID, req UploadRequest) (*repo.InsuranceDocument, error) {
	if s.blobs == nil {
		return nil, ErrStorageUnavailable
	}
	docType := normalizeDocType(req.DocType)
	if docType == "" {
		return nil, ErrDocTypeRequired
	}
	if req.Size <= 0 || req.Size > MaxDocumentSize {
		return nil, ErrFileTooLarge
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(req.ContentType, ";", 2)[0]))
	if !allowedContentTypes[contentType] {
		return nil, ErrUnsupportedFileType
	}
	if _, err := s.load(ctx, scope, requestID); err != nil {
		return nil, err
	}

	key := s3pkg.InsuranceDocumentKey(scope.CenterID, requestID, req.FileName)
	if err := s.blobs.Upload(ctx, key, contentType, req.Body, req.Size); err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}

	d := &repo.InsuranceDocument{
		CenterID:    scope.CenterID,
		RequestID:   requestID,
		DocType:     docType,
		FileKey:     key,
		FileName:    req.FileName,
		ContentType: contentType,
		Size:        req.Size,
		UploadedBy:  scope.Actor(),
	}
	if err := s.store.AddDocument(ctx, d); err != nil {
		if derr := s.blobs.Delete(ctx, key); derr != nil {
			slog.WarnContext(ctx, "remove orphaned document", "key", key, "error", derr)
		}
		return nil, fmt.Errorf("save document: %w", err)
	}
	return d, nil
}

func (s *insuranceService) DocumentURL(ctx context.Context, scope *reqctx.CenterScope, documentID uuid.UUID) (string, error) {
	if s.blobs == nil {
		return "", ErrStorageUnavailable
	}
	d, err := s.document(ctx, scope, documentID)
	if err != nil {
		return "", err
	}
	url, err := s.blobs.PresignDownload(ctx, d.FileKey)
	if err != nil {
		return "", fmt.Errorf("presign: %w", err)
	}
	return url, nil
}

func (s *insuranceService) DeleteDocument(ctx context.Context, scope *reqctx.CenterScope, documentID uuid.UUID) error {
	if s.blobs == nil {
		return ErrStorageUnavailable
	}
	d, err := s.document(ctx, scope, documentID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, scope.CenterID, documentID); err != nil {
		if repo.IsNotFound(err) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("delete document: %w", err)
	}
	// The row is gone; a leftover object is only logged.
	if err := s.blobs.Delete(ctx, d.FileKey); err != nil {
		slog.WarnContext(ctx, "delete document object", "key", d.FileKey, "error", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *insuranceService) load(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*repo.InsuranceRequest, error) {
	ir, err := s.store.GetRequest(ctx, scope.CenterID, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("get insurance request: %w", err)
	}
	if err := s.visible(ctx, scope, ir.PatientID); err != nil {
		return nil, err
	}
	return ir, nil
}

func (s *insuranceService) document(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*repo.InsuranceDocument, error) {
	d, err := s.store.GetDocument(ctx, scope.CenterID, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	if doctorOnly(scope) {
		if _, err := s.load(ctx, scope, d.RequestID); err != nil {
			if errors.Is(err, ErrRequestNotFound) {
				return nil, ErrDocumentNotFound
			}
			return nil, err
		}
	}
	return d, nil
}

// visible hides patients a doctor caller has not been handed.
func (s *insuranceService) visible(ctx context.Context, scope *reqctx.CenterScope, patientID uuid.UUID) error {
	if !doctorOnly(scope) {
		return nil
	}
	ok, err := s.store.PatientVisible(ctx, scope.CenterID, patientID, scope.MemberID)
	if err != nil {
		return fmt.Errorf("check patient visibility: %w", err)
	}
	if !ok {
		return ErrRequestNotFound
	}
	return nil
}

func doctorOnly(scope *reqctx.CenterScope) bool {
	return !scope.IsSuperAdmin && scope.Role == repo.RoleDoctor
}

func normalizeDocType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// normalizeDocTypes lower-cases, trims and de-duplicates document types.
func normalizeDocTypes(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, t := range in {
		t = normalizeDocType(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func validStatus(s string) bool {
	switch s {
	case repo.InsurancePending, repo.InsuranceApproved, repo.InsuranceRejected:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Repository adapter
// ---------------------------------------------------------------------------

// RepoStore backs Store with the repository client.
type RepoStore struct {
	*repo.InsuranceRepo
	DB *repo.Client
}

func NewRepoStore(db *repo.Client) *RepoStore {
	return &RepoStore{InsuranceRepo: db.Insurance, DB: db}
}

func (r *RepoStore) Patient(ctx context.Context, centerID, id uuid.UUID) (*repo.Patient, error) {
	return r.DB.Patient.Get(ctx, centerID, id)
}

func (r *RepoStore) QueueItem(ctx context.Context, centerID, id uuid.UUID) (*repo.QueueItem, error) {
	return r.DB.Queue.Get(ctx, centerID, id)
}

func (r *RepoStore) PatientVisible(ctx context.Context, centerID, patientID, doctorID uuid.UUID) (bool, error) {
	return r.DB.Patient.VisibleToDoctor(ctx, centerID, patientID, doctorID)
}

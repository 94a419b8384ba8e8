package patient

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/pagination"
	"github.com/Alijeyrad/medcenter_backend/pkg/crypto"
	"github.com/Alijeyrad/medcenter_backend/pkg/phone"
	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
	"github.com/Alijeyrad/medcenter_backend/pkg/util/codes"
)

const maxFileNumberAttempts = 3

var reNationalID = regexp.MustCompile(`^\d{10}$`)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type ListPatientsRequest struct {
	pagination.Request
	Search string
	Status string
}

type CreatePatientRequest struct {
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	NationalID        *string    `json:"national_id"`
	Phone             *string    `json:"phone"`
	Email             *string    `json:"email"`
	BirthDate         *time.Time `json:"birth_date"`
	Gender            *string    `json:"gender"`
	InsuranceProvider *string    `json:"insurance_provider"`
	InsuranceNumber   *string    `json:"insurance_number"`
	UsesInsurance     bool       `json:"uses_insurance"`
	Notes             *string    `json:"notes"`
}

type UpdatePatientRequest struct {
	FirstName         *string    `json:"first_name"`
	LastName          *string    `json:"last_name"`
	NationalID        *string    `json:"national_id"`
	Phone             *string    `json:"phone"`
	Email             *string    `json:"email"`
	BirthDate         *time.Time `json:"birth_date"`
	Gender            *string    `json:"gender"`
	InsuranceProvider *string    `json:"insurance_provider"`
	InsuranceNumber   *string    `json:"insurance_number"`
	UsesInsurance     *bool      `json:"uses_insurance"`
	Status            *string    `json:"status"`
	Notes             *string    `json:"notes"`
}

// Record is a patient with the national ID opened for display.
type Record struct {
	*repo.Patient
	NationalID *string `json:"national_id,omitempty"`
}

// Store is the patient persistence the service needs; *repo.PatientRepo satisfies it.
type Store interface {
	Create(ctx context.Context, p *repo.Patient) error
	Get(ctx context.Context, centerID, id uuid.UUID) (*repo.Patient, error)
	VisibleToDoctor(ctx context.Context, centerID, patientID, doctorID uuid.UUID) (bool, error)
	NationalIDTaken(ctx context.Context, centerID uuid.UUID, hash string, excludeID *uuid.UUID) (bool, error)
	List(ctx context.Context, centerID uuid.UUID, f repo.PatientFilter, p repo.Page) ([]*repo.Patient, int, error)
	Update(ctx context.Context, centerID, id uuid.UUID, in repo.PatientUpdate) error
	SoftDelete(ctx context.Context, centerID, id uuid.UUID) error
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

// Every method takes the caller's center scope. Doctors only reach patients
// that were confirmed to them.
type Service interface {
	Create(ctx context.Context, scope *reqctx.CenterScope, req CreatePatientRequest) (*Record, error)
	Get(ctx context.Context, scope *reqctx.CenterScope, patientID uuid.UUID) (*Record, error)
	List(ctx context.Context, scope *reqctx.CenterScope, req ListPatientsRequest) (*pagination.Result[*repo.Patient], error)
	Update(ctx context.Context, scope *reqctx.CenterScope, patientID uuid.UUID, req UpdatePatientRequest) (*Record, error)
	Delete(ctx context.Context, scope *reqctx.CenterScope, patientID uuid.UUID) error
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type patientService struct {
	store  Store
	cipher *crypto.FieldCipher
	phones *phone.Normalizer
}

func New(store Store, cipher *crypto.FieldCipher, phones *phone.Normalizer) Service {
	return &patientService{store: store, cipher: cipher, phones: phones}
}

// ---------------------------------------------------------------------------
// Patient CRUD
// ---------------------------------------------------------------------------

func (s *patientService) Create(ctx context.Context, scope *reqctx.CenterScope, req CreatePatientRequest) (*Record, error) {
	p := &repo.Patient{
		CenterID:          scope.CenterID,
		FirstName:         strings.TrimSpace(req.FirstName),
		LastName:          strings.TrimSpace(req.LastName),
		Email:             trimmed(req.Email),
		BirthDate:         req.BirthDate,
		InsuranceProvider: trimmed(req.InsuranceProvider),
		InsuranceNumber:   trimmed(req.InsuranceNumber),
		UsesInsurance:     req.UsesInsurance,
		Notes:             req.Notes,
	}
	if p.FirstName == "" || p.LastName == "" {
		return nil, ErrNameRequired
	}
	if err := validateGender(req.Gender); err != nil {
		return nil, err
	}
	p.Gender = req.Gender

	var err error
	if p.Phone, err = s.phones.Optional(req.Phone); err != nil {
		return nil, ErrInvalidPhone
	}

	var plainNationalID *string
	if nid := trimmed(req.NationalID); nid != nil {
		sealed, hash, err := s.sealNationalID(ctx, scope.CenterID, *nid, nil)
		if err != nil {
			return nil, err
		}
		p.NationalID, p.NationalIDHash, plainNationalID = &sealed, &hash, nid
	}

	for attempt := 0; ; attempt++ {
		if p.FileNumber, err = codes.GenerateFileNumber(); err != nil {
			return nil, fmt.Errorf("generate file number: %w", err)
		}
		p.ID = uuid.Nil
		err = s.store.Create(ctx, p)
		if err == nil {
			break
		}
		if !repo.IsConflict(err) || attempt+1 >= maxFileNumberAttempts {
			if repo.IsConflict(err) && p.NationalIDHash != nil {
				return nil, ErrNationalIDExists
			}
			return nil, fmt.Errorf("create patient: %w", err)
		}
	}

	return &Record{Patient: p, NationalID: plainNationalID}, nil
}

func (s *patientService) Get(ctx context.Context, scope *reqctx.CenterScope, patientID uuid.UUID) (*Record, error) {
	p, err := s.load(ctx, scope, patientID)
	if err != nil {
		return nil, err
	}
	return s.record(p), nil
}

func (s *patientService) List(ctx context.Context, scope *reqctx.CenterScope, req ListPatientsRequest) (*pagination.Result[*repo.Patient], error) {
	if req.Status != "" && !validStatus(req.Status) {
		return nil, ErrInvalidStatus
	}
	f := repo.PatientFilter{Search: strings.TrimSpace(req.Search), Status: req.Status}
	if isDoctor(scope) {
		f.DoctorID = &scope.MemberID
	}
	// Searching by phone works for any spelling of the number.
	if f.Search != "" {
		if e164, err := s.phones.E164(f.Search); err == nil {
			f.Search = e164
		}
	}

	page := req.Normalize()
	list, total, err := s.store.List(ctx, scope.CenterID, f, page.Repo())
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return pagination.NewResult(list, total, page), nil
}

func (s *patientService) Update(ctx context.Context, scope *reqctx.CenterScope, patientID uuid.UUID, req UpdatePatientRequest) (*Record, error) {
	if _, err := s.load(ctx, scope, patientID); err != nil {
		return nil, err
	}

	in := repo.PatientUpdate{
		Email:             trimmed(req.Email),
		BirthDate:         req.BirthDate,
		InsuranceProvider: req.InsuranceProvider,
		InsuranceNumber:   req.InsuranceNumber,
		UsesInsurance:     req.UsesInsurance,
		Notes:             req.Notes,
	}
	for _, name := range []struct {
		in  *string
		out **string
	}{{req.FirstName, &in.FirstName}, {req.LastName, &in.LastName}} {
		if name.in == nil {
			continue
		}
		v := strings.TrimSpace(*name.in)
		if v == "" {
			return nil, ErrNameRequired
		}
		*name.out = &v
	}
	if err := validateGender(req.Gender); err != nil {
		return nil, err
	}
	in.Gender = req.Gender
	if req.Status != nil && !validStatus(*req.Status) {
		return nil, ErrInvalidStatus
	}
	in.Status = req.Status

	if req.Phone != nil {
		p, err := s.phones.Optional(req.Phone)
		if err != nil {
			return nil, ErrInvalidPhone
		}
		if p == nil {
			empty := ""
			p = &empty
		}
		in.Phone = p
	}
	if nid := trimmed(req.NationalID); nid != nil {
		sealed, hash, err := s.sealNationalID(ctx, scope.CenterID, *nid, &patientID)
		if err != nil {
			return nil, err
		}
		in.NationalID, in.NationalIDHash = &sealed, &hash
	}

	if err := s.store.Update(ctx, scope.CenterID, patientID, in); err != nil {
		switch {
		case repo.IsNotFound(err):
			return nil, ErrPatientNotFound
		case repo.IsConflict(err):
			return nil, ErrNationalIDExists
		}
		return nil, fmt.Errorf("update patient: %w", err)
	}
	return s.Get(ctx, scope, patientID)
}

func (s *patientService) Delete(ctx context.Context, scope *reqctx.CenterScope, patientID uuid.UUID) error {
	if err := s.store.SoftDelete(ctx, scope.CenterID, patientID); err != nil {
		if repo.IsNotFound(err) {
			return ErrPatientNotFound
		}
		return fmt.Errorf("delete patient: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *patientService) load(ctx context.Context, scope *reqctx.CenterScope, patientID uuid.UUID) (*repo.Patient, error) {
	p, err := s.store.Get(ctx, scope.CenterID, patientID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	if isDoctor(scope) {
		ok, err := s.store.VisibleToDoctor(ctx, scope.CenterID, patientID, scope.MemberID)
		if err != nil {
			return nil, fmt.Errorf("check doctor visibility: %w", err)
		}
		if !ok {
			return nil, ErrAccessDenied
		}
	}
	return p, nil
}

func (s *patientService) sealNationalID(ctx context.Context, centerID uuid.UUID, nid string, exclude *uuid.UUID) (sealed, hash string, err error) {
	if !reNationalID.MatchString(nid) {
		return "", "", ErrInvalidNationalID
	}
	hash = crypto.Hash(nid)
	taken, err := s.store.NationalIDTaken(ctx, centerID, hash, exclude)
	if err != nil {
		return "", "", fmt.Errorf("check national id: %w", err)
	}
	if taken {
		return "", "", ErrNationalIDExists
	}
	if sealed, err = s.cipher.Seal(nid); err != nil {
		return "", "", fmt.Errorf("encrypt national id: %w", err)
	}
	return sealed, hash, nil
}

func (s *patientService) record(p *repo.Patient) *Record {
	r := &Record{Patient: p}
	if p.NationalID != nil && *p.NationalID != "" {
		if v, err := s.cipher.Open(*p.NationalID); err == nil {
			r.NationalID = &v
		}
	}
	return r
}

func isDoctor(scope *reqctx.CenterScope) bool {
	return !scope.IsSuperAdmin && scope.Role == repo.RoleDoctor
}

func validStatus(s string) bool {
	return s == repo.PatientStatusActive || s == repo.PatientStatusArchived
}

func validateGender(g *string) error {
	if g == nil {
		return nil
	}
	switch *g {
	case "male", "female", "other":
		return nil
	}
	return ErrInvalidGender
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

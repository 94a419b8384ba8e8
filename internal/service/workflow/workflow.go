// Package workflow stores the per-center step lists that describe how a
// patient moves between roles (reception, insurance, accounting, doctor).
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/pagination"
)

// Step is one stage of a workflow, owned by a member role.
type Step struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Role string `json:"role"`
}

var stepRoles = map[string]bool{
	repo.RoleOwner:            true,
	repo.RoleAdmin:            true,
	repo.RoleDoctor:           true,
	repo.RoleReceptionist:     true,
	repo.RoleAccountant:       true,
	repo.RoleInsuranceOfficer: true,
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type CreateRequest struct {
	Name     string `json:"name"`
	Trigger  string `json:"trigger"`
	Steps    []Step `json:"steps"`
	IsActive *bool  `json:"is_active"`
}

type UpdateRequest struct {
	Name     *string `json:"name"`
	Trigger  *string `json:"trigger"`
	Steps    []Step  `json:"steps"`
	IsActive *bool   `json:"is_active"`
}

type ListRequest struct {
	pagination.Request
	Trigger string
}

// Store is the persistence the service needs; *repo.WorkflowRepo satisfies it.
type Store interface {
	Create(ctx context.Context, w *repo.Workflow) error
	Get(ctx context.Context, centerID, id uuid.UUID) (*repo.Workflow, error)
	List(ctx context.Context, centerID uuid.UUID, trigger string, p repo.Page) ([]*repo.Workflow, int, error)
	Update(ctx context.Context, centerID, id uuid.UUID, in repo.WorkflowUpdate) error
	Delete(ctx context.Context, centerID, id uuid.UUID) error
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	List(ctx context.Context, centerID uuid.UUID, req ListRequest) (*pagination.Result[*repo.Workflow], error)
	Get(ctx context.Context, centerID, id uuid.UUID) (*repo.Workflow, error)
	Create(ctx context.Context, centerID uuid.UUID, req CreateRequest) (*repo.Workflow, error)
	Update(ctx context.Context, centerID, id uuid.UUID, req UpdateRequest) (*repo.Workflow, error)
	Delete(ctx context.Context, centerID, id uuid.UUID) error
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type workflowService struct {
	store Store
}

func New(store Store) Service {
	return &workflowService{store: store}
}

func (s *workflowService) List(ctx context.Context, centerID uuid.UUID, req ListRequest) (*pagination.Result[*repo.Workflow], error) {
	list, total, err := s.store.List(ctx, centerID, strings.TrimSpace(req.Trigger), req.Repo())
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	return pagination.NewResult(list, total, req.Request), nil
}

func (s *workflowService) Get(ctx context.Context, centerID, id uuid.UUID) (*repo.Workflow, error) {
	w, err := s.store.Get(ctx, centerID, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return w, nil
}

func (s *workflowService) Create(ctx context.Context, centerID uuid.UUID, req CreateRequest) (*repo.Workflow, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	trigger := strings.TrimSpace(req.Trigger)
	if trigger == "" {
		return nil, ErrTriggerRequired
	}
	steps, err := encodeSteps(req.Steps)
	if err != nil {
		return nil, err
	}
	w := &repo.Workflow{
		CenterID: centerID,
		Name:     name,
		Trigger:  trigger,
		Steps:    steps,
		IsActive: req.IsActive == nil || *req.IsActive,
	}
	if err := s.store.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}
	return w, nil
}

func (s *workflowService) Update(ctx context.Context, centerID, id uuid.UUID, req UpdateRequest) (*repo.Workflow, error) {
	var in repo.WorkflowUpdate
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		in.Name = &name
	}
	if req.Trigger != nil {
		trigger := strings.TrimSpace(*req.Trigger)
		if trigger == "" {
			return nil, ErrTriggerRequired
		}
		in.Trigger = &trigger
	}
	if req.Steps != nil {
		steps, err := encodeSteps(req.Steps)
		if err != nil {
			return nil, err
		}
		in.Steps = steps
	}
	in.IsActive = req.IsActive

	if err := s.store.Update(ctx, centerID, id, in); err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update workflow: %w", err)
	}
	return s.Get(ctx, centerID, id)
}

func (s *workflowService) Delete(ctx context.Context, centerID, id uuid.UUID) error {
	if err := s.store.Delete(ctx, centerID, id); err != nil {
		if repo.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete workflow: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// encodeSteps validates steps and returns their stored JSON form.
func encodeSteps(steps []Step) (json.RawMessage, error) {
	if len(steps) == 0 {
		return nil, ErrInvalidSteps
	}
	seen := make(map[string]bool, len(steps))
	clean := make([]Step, 0, len(steps))
	for _, st := range steps {
		st.Key = strings.TrimSpace(st.Key)
		st.Name = strings.TrimSpace(st.Name)
		st.Role = strings.TrimSpace(st.Role)
		if st.Key == "" {
			return nil, ErrInvalidSteps
		}
		if seen[st.Key] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStep, st.Key)
		}
		seen[st.Key] = true
		if !stepRoles[st.Role] {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRole, st.Role)
		}
		if st.Name == "" {
			st.Name = st.Key
		}
		clean = append(clean, st)
	}
	b, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("encode steps: %w", err)
	}
	return b, nil
}

package patient

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ehr/carechat/pkg/pagination"
)

type Service struct {
	repo     Repository
	validate *validator.Validate
	deleted  []func(ctx context.Context, id uuid.UUID)
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: newValidator()}
}

func (s *Service) CreatePatient(ctx context.Context, in Input) (*Patient, error) {
	if err := check(s.validate, in, true); err != nil {
		return nil, err
	}
	dob, _ := parseDOB(*in.DOB)
	p := &Patient{
		Name:         *in.Name,
		Email:        *in.Email,
		Phone:        *in.Phone,
		DOB:          dob,
		MedicalNotes: in.MedicalNotes,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetPatient returns ErrNotFound for unknown ids.
func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdatePatient applies only the fields present in in.
func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, in Input) (*Patient, error) {
	if err := check(s.validate, in, false); err != nil {
		return nil, err
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Email != nil {
		p.Email = *in.Email
	}
	if in.Phone != nil {
		p.Phone = *in.Phone
	}
	if in.DOB != nil {
		p.DOB, _ = parseDOB(*in.DOB)
	}
	if in.MedicalNotes != nil {
		p.MedicalNotes = in.MedicalNotes
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// AfterDelete registers fn to run once a patient has been removed. Hooks are
// registered at startup and are not safe to add concurrently with deletes.
func (s *Service) AfterDelete(fn func(ctx context.Context, id uuid.UUID)) {
	s.deleted = append(s.deleted, fn)
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	for _, fn := range s.deleted {
		fn(ctx, id)
	}
	return nil
}

func (s *Service) ListPatients(ctx context.Context, pg pagination.Params) (*Page, error) {
	patients, total, err := s.repo.List(ctx, pg.Limit, pg.Offset())
	if err != nil {
		return nil, err
	}
	return &Page{
		Patients:   patients,
		Total:      total,
		Page:       pg.Page,
		TotalPages: pg.TotalPages(total),
	}, nil
}

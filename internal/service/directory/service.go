package directory

import (
	"context"

	"github.com/google/uuid"

	apperrors "github.com/medichain/medichain-api/pkg/errors"

	"github.com/medichain/medichain-api/internal/model"
	"github.com/medichain/medichain-api/internal/repository"
)

// Service serves the admin directory views over the local store. Access
// relations are not part of this view; those live on-chain.
type Service struct {
	users repository.UserRepository
}

func NewService(users repository.UserRepository) *Service {
	return &Service{users: users}
}

func (s *Service) ListDoctors(ctx context.Context) ([]*model.DoctorListing, error) {
	doctors, err := s.users.List(ctx, model.RoleDoctor)
	if err != nil {
		return nil, err
	}

	listings := make([]*model.DoctorListing, 0, len(doctors))
	for _, d := range doctors {
		profile, err := s.users.GetDoctorProfile(ctx, d.ID)
		if err != nil && apperrors.CodeOf(err) != apperrors.ErrNotFound {
			return nil, err
		}
		listings = append(listings, &model.DoctorListing{User: d, Profile: profile})
	}
	return listings, nil
}

func (s *Service) ListPatients(ctx context.Context) ([]*model.PatientListing, error) {
	patients, err := s.users.List(ctx, model.RolePatient)
	if err != nil {
		return nil, err
	}

	listings := make([]*model.PatientListing, 0, len(patients))
	for _, p := range patients {
		profile, err := s.users.GetPatientProfile(ctx, p.ID)
		if err != nil && apperrors.CodeOf(err) != apperrors.ErrNotFound {
			return nil, err
		}
		listings = append(listings, &model.PatientListing{User: p, Profile: profile})
	}
	return listings, nil
}

// SetDoctorActive flips the active flag of a doctor. Identities are never
// hard-deleted; deactivation only blocks login.
func (s *Service) SetDoctorActive(ctx context.Context, id uuid.UUID, active bool) (*model.User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != model.RoleDoctor {
		return nil, apperrors.NotFound("doctor", nil)
	}

	if err := s.users.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	user.IsActive = active
	return user, nil
}

func (s *Service) GetDoctorProfile(ctx context.Context, doctorID uuid.UUID) (*model.DoctorListing, error) {
	user, err := s.users.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if user.Role != model.RoleDoctor {
		return nil, apperrors.NotFound("doctor", nil)
	}

	profile, err := s.users.GetDoctorProfile(ctx, doctorID)
	if err != nil && apperrors.CodeOf(err) != apperrors.ErrNotFound {
		return nil, err
	}
	return &model.DoctorListing{User: user, Profile: profile}, nil
}

func (s *Service) UpdateDoctorProfile(ctx context.Context, doctorID uuid.UUID, req *model.UpdateDoctorProfileRequest) (*model.DoctorProfile, error) {
	user, err := s.users.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if user.Role != model.RoleDoctor {
		return nil, apperrors.NotFound("doctor", nil)
	}

	profile, err := s.users.GetDoctorProfile(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	if req.Specialization != nil {
		profile.Specialization = *req.Specialization
	}
	if req.LicenseNumber != nil {
		profile.LicenseNumber = *req.LicenseNumber
	}
	if req.ExperienceYears != nil {
		profile.ExperienceYears = req.ExperienceYears
	}

	if err := s.users.UpdateDoctorProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Service) GetPatientProfile(ctx context.Context, patientID uuid.UUID) (*model.PatientListing, error) {
	user, err := s.users.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if user.Role != model.RolePatient {
		return nil, apperrors.NotFound("patient", nil)
	}

	profile, err := s.users.GetPatientProfile(ctx, patientID)
	if err != nil && apperrors.CodeOf(err) != apperrors.ErrNotFound {
		return nil, err
	}
	return &model.PatientListing{User: user, Profile: profile}, nil
}

func (s *Service) UpdatePatientProfile(ctx context.Context, patientID uuid.UUID, req *model.UpdatePatientProfileRequest) (*model.PatientProfile, error) {
	user, err := s.users.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if user.Role != model.RolePatient {
		return nil, apperrors.NotFound("patient", nil)
	}

	profile, err := s.users.GetPatientProfile(ctx, patientID)
	if err != nil {
		return nil, err
	}

	if req.Age != nil {
		profile.Age = req.Age
	}
	if req.Gender != nil {
		profile.Gender = req.Gender
	}
	if req.Allergies != nil {
		profile.Allergies = req.Allergies
	}
	if req.ChronicConditions != nil {
		profile.ChronicConditions = req.ChronicConditions
	}

	if err := s.users.UpdatePatientProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

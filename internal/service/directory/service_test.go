package directory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/medichain/medichain-api/pkg/errors"

	"github.com/medichain/medichain-api/internal/model"
)

type fakeUsers struct {
	byID            map[uuid.UUID]*model.User
	doctorProfiles  map[uuid.UUID]*model.DoctorProfile
	patientProfiles map[uuid.UUID]*model.PatientProfile
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byID:            map[uuid.UUID]*model.User{},
		doctorProfiles:  map[uuid.UUID]*model.DoctorProfile{},
		patientProfiles: map[uuid.UUID]*model.PatientProfile{},
	}
}

func (f *fakeUsers) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, apperrors.NotFound("user", nil)
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, apperrors.NotFound("user", nil)
}

func (f *fakeUsers) GetByWallet(ctx context.Context, wallet string) (*model.User, error) {
	return nil, apperrors.NotFound("user", nil)
}

func (f *fakeUsers) List(ctx context.Context, role model.Role) ([]*model.User, error) {
	var out []*model.User
	for _, u := range f.byID {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) Create(ctx context.Context, user *model.User) error {
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUsers) CreateWithDoctorProfile(ctx context.Context, user *model.User, profile *model.DoctorProfile) error {
	f.byID[user.ID] = user
	f.doctorProfiles[user.ID] = profile
	return nil
}

func (f *fakeUsers) CreateWithPatientProfile(ctx context.Context, user *model.User, profile *model.PatientProfile) error {
	f.byID[user.ID] = user
	f.patientProfiles[user.ID] = profile
	return nil
}

func (f *fakeUsers) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	u, ok := f.byID[id]
	if !ok {
		return apperrors.NotFound("user", nil)
	}
	u.IsActive = active
	return nil
}

func (f *fakeUsers) GetDoctorProfile(ctx context.Context, userID uuid.UUID) (*model.DoctorProfile, error) {
	if p, ok := f.doctorProfiles[userID]; ok {
		return p, nil
	}
	return nil, apperrors.NotFound("doctor profile", nil)
}

func (f *fakeUsers) GetPatientProfile(ctx context.Context, userID uuid.UUID) (*model.PatientProfile, error) {
	if p, ok := f.patientProfiles[userID]; ok {
		return p, nil
	}
	return nil, apperrors.NotFound("patient profile", nil)
}

func (f *fakeUsers) UpdateDoctorProfile(ctx context.Context, profile *model.DoctorProfile) error {
	f.doctorProfiles[profile.UserID] = profile
	return nil
}

func (f *fakeUsers) UpdatePatientProfile(ctx context.Context, profile *model.PatientProfile) error {
	f.patientProfiles[profile.UserID] = profile
	return nil
}

func (f *fakeUsers) ListUnregistered(ctx context.Context) ([]*model.User, error) { return nil, nil }

func seedDoctor(f *fakeUsers, withProfile bool) *model.User {
	u := &model.User{
		ID: uuid.New(), Email: uuid.New().String() + "@example.com",
		Role: model.RoleDoctor, IsActive: true,
	}
	f.byID[u.ID] = u
	if withProfile {
		f.doctorProfiles[u.ID] = &model.DoctorProfile{
			UserID: u.ID, Specialization: "cardiology", LicenseNumber: "LIC-1",
		}
	}
	return u
}

func seedPatient(f *fakeUsers) *model.User {
	u := &model.User{
		ID: uuid.New(), Email: uuid.New().String() + "@example.com",
		Role: model.RolePatient, IsActive: true,
	}
	f.byID[u.ID] = u
	age := 40
	f.patientProfiles[u.ID] = &model.PatientProfile{
		UserID: u.ID, Age: &age, Allergies: pq.StringArray{"penicillin"},
	}
	return u
}

func TestListDoctorsIncludesProfilelessEntries(t *testing.T) {
	users := newFakeUsers()
	withProfile := seedDoctor(users, true)
	withoutProfile := seedDoctor(users, false)
	seedPatient(users)

	listings, err := NewService(users).ListDoctors(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 2)

	byID := map[uuid.UUID]*model.DoctorListing{}
	for _, l := range listings {
		byID[l.User.ID] = l
	}
	require.NotNil(t, byID[withProfile.ID].Profile)
	assert.Equal(t, "cardiology", byID[withProfile.ID].Profile.Specialization)
	assert.Nil(t, byID[withoutProfile.ID].Profile)
}

func TestSetDoctorActiveRejectsNonDoctor(t *testing.T) {
	users := newFakeUsers()
	patient := seedPatient(users)

	_, err := NewService(users).SetDoctorActive(context.Background(), patient.ID, false)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
	assert.True(t, users.byID[patient.ID].IsActive, "non-doctor must be untouched")
}

func TestSetDoctorActiveFlipsFlag(t *testing.T) {
	users := newFakeUsers()
	doctor := seedDoctor(users, true)

	updated, err := NewService(users).SetDoctorActive(context.Background(), doctor.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.False(t, users.byID[doctor.ID].IsActive)
}

func TestUpdatePatientProfileIsPartial(t *testing.T) {
	users := newFakeUsers()
	patient := seedPatient(users)

	gender := "f"
	updated, err := NewService(users).UpdatePatientProfile(context.Background(), patient.ID,
		&model.UpdatePatientProfileRequest{
			Gender:    &gender,
			Allergies: []string{"penicillin", "latex"},
		})
	require.NoError(t, err)

	require.NotNil(t, updated.Age)
	assert.Equal(t, 40, *updated.Age, "unset fields keep their values")
	assert.Equal(t, pq.StringArray{"penicillin", "latex"}, updated.Allergies)
	require.NotNil(t, updated.Gender)
	assert.Equal(t, "f", *updated.Gender)
}

func TestUpdateDoctorProfileIsPartial(t *testing.T) {
	users := newFakeUsers()
	doctor := seedDoctor(users, true)

	years := 12
	updated, err := NewService(users).UpdateDoctorProfile(context.Background(), doctor.ID,
		&model.UpdateDoctorProfileRequest{ExperienceYears: &years})
	require.NoError(t, err)

	assert.Equal(t, "cardiology", updated.Specialization)
	assert.Equal(t, "LIC-1", updated.LicenseNumber)
	require.NotNil(t, updated.ExperienceYears)
	assert.Equal(t, 12, *updated.ExperienceYears)
}

func TestGetDoctorProfileRejectsPatientID(t *testing.T) {
	users := newFakeUsers()
	patient := seedPatient(users)

	_, err := NewService(users).GetDoctorProfile(context.Background(), patient.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

package prescription

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/medichain/medichain-api/pkg/errors"
	"github.com/medichain/medichain-api/pkg/logger"

	"github.com/medichain/medichain-api/internal/blockchain"
	"github.com/medichain/medichain-api/internal/model"
)

type fakeUsers struct {
	byID map[uuid.UUID]*model.User
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
	return nil, nil
}

func (f *fakeUsers) Create(ctx context.Context, user *model.User) error {
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUsers) CreateWithDoctorProfile(ctx context.Context, user *model.User, profile *model.DoctorProfile) error {
	return f.Create(ctx, user)
}

func (f *fakeUsers) CreateWithPatientProfile(ctx context.Context, user *model.User, profile *model.PatientProfile) error {
	return f.Create(ctx, user)
}

func (f *fakeUsers) SetActive(ctx context.Context, id uuid.UUID, active bool) error { return nil }

func (f *fakeUsers) GetDoctorProfile(ctx context.Context, userID uuid.UUID) (*model.DoctorProfile, error) {
	return nil, apperrors.NotFound("doctor profile", nil)
}

func (f *fakeUsers) GetPatientProfile(ctx context.Context, userID uuid.UUID) (*model.PatientProfile, error) {
	return nil, apperrors.NotFound("patient profile", nil)
}

func (f *fakeUsers) UpdateDoctorProfile(ctx context.Context, profile *model.DoctorProfile) error {
	return nil
}

func (f *fakeUsers) UpdatePatientProfile(ctx context.Context, profile *model.PatientProfile) error {
	return nil
}

func (f *fakeUsers) ListUnregistered(ctx context.Context) ([]*model.User, error) { return nil, nil }

type fakePrescriptions struct {
	rows  []*model.Prescription
	files []*model.MedicalFile
}

func (f *fakePrescriptions) Create(ctx context.Context, p *model.Prescription) error {
	f.rows = append(f.rows, p)
	return nil
}

func (f *fakePrescriptions) ListForPatient(ctx context.Context, patientWallet string) ([]*model.Prescription, error) {
	var out []*model.Prescription
	for _, p := range f.rows {
		if p.PatientWallet == patientWallet {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePrescriptions) ListForPair(ctx context.Context, patientWallet, doctorWallet string) ([]*model.Prescription, error) {
	var out []*model.Prescription
	for _, p := range f.rows {
		if p.PatientWallet == patientWallet && p.DoctorWallet == doctorWallet {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePrescriptions) CreateFile(ctx context.Context, file *model.MedicalFile) error {
	f.files = append(f.files, file)
	return nil
}

type fakeEvents struct {
	events []*model.BlockchainEvent
}

func (f *fakeEvents) Create(ctx context.Context, event *model.BlockchainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEvents) List(ctx context.Context) ([]*model.BlockchainEvent, error) {
	return f.events, nil
}

func (f *fakeEvents) ListBySaga(ctx context.Context, sagaID uuid.UUID) ([]*model.BlockchainEvent, error) {
	return nil, nil
}

type fakeRelayer struct {
	calls []blockchain.Call
}

func (f *fakeRelayer) Submit(ctx context.Context, call blockchain.Call) (*blockchain.Confirmation, error) {
	f.calls = append(f.calls, call)
	return &blockchain.Confirmation{TxHash: fmt.Sprintf("0xtx%04d", len(f.calls)), BlockNumber: uint64(len(f.calls))}, nil
}

type fakeReader struct {
	access bool
	err    error
}

func (f *fakeReader) IsDoctor(ctx context.Context, wallet string) (bool, error)  { return true, nil }
func (f *fakeReader) IsPatient(ctx context.Context, wallet string) (bool, error) { return true, nil }
func (f *fakeReader) HasAccess(ctx context.Context, patientWallet, doctorWallet string) (bool, error) {
	return f.access, f.err
}

type fakePinner struct {
	pinned int
	hash   string
}

func (f *fakePinner) Pin(ctx context.Context, content io.Reader, filename string) (string, error) {
	f.pinned++
	return f.hash, nil
}

func (f *fakePinner) GatewayURL(hash string) string { return "http://gateway/" + hash }

func quietLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.FatalLevel,
		TimeFormat: time.RFC3339,
		Output:     io.Discard,
	})
}

type fixture struct {
	svc     *Service
	presc   *fakePrescriptions
	events  *fakeEvents
	relayer *fakeRelayer
	reader  *fakeReader
	pinner  *fakePinner
	doctor  *model.User
	patient *model.User
}

func setup(access bool) *fixture {
	doctor := &model.User{
		ID: uuid.New(), Role: model.RoleDoctor,
		Wallet: "0x1111111111111111111111111111111111111111", IsActive: true,
	}
	patient := &model.User{
		ID: uuid.New(), Role: model.RolePatient,
		Wallet: "0x2222222222222222222222222222222222222222", IsActive: true,
	}
	users := &fakeUsers{byID: map[uuid.UUID]*model.User{doctor.ID: doctor, patient.ID: patient}}

	f := &fixture{
		presc:   &fakePrescriptions{},
		events:  &fakeEvents{},
		relayer: &fakeRelayer{},
		reader:  &fakeReader{access: access},
		pinner:  &fakePinner{hash: "Qmabc123"},
		doctor:  doctor,
		patient: patient,
	}
	f.svc = NewService(users, f.presc, f.events, f.relayer, f.reader, f.pinner, quietLogger())
	return f
}

func createReq(patientID uuid.UUID) *model.CreatePrescriptionRequest {
	return &model.CreatePrescriptionRequest{
		PatientID:      patientID.String(),
		MedicationName: "amoxicillin",
		Dosage:         "500mg",
		Schedule:       "3x daily",
	}
}

func TestCreateWithAccess(t *testing.T) {
	f := setup(true)

	p, tx, err := f.svc.Create(context.Background(), f.doctor.ID, createReq(f.patient.ID), nil, "")
	require.NoError(t, err)
	assert.Equal(t, "amoxicillin", p.MedicationName)
	assert.Nil(t, p.ContentHash)
	assert.NotNil(t, tx)

	require.Len(t, f.relayer.calls, 1)
	assert.Equal(t, "addPrescriptionByRelayer", f.relayer.calls[0].Method)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, model.EventPrescriptionCreated, f.events.events[0].EventName)

	assert.Len(t, f.presc.rows, 1)
	assert.Empty(t, f.presc.files)
	assert.Zero(t, f.pinner.pinned)
}

func TestCreateWithAttachmentPinsFirst(t *testing.T) {
	f := setup(true)

	p, _, err := f.svc.Create(context.Background(), f.doctor.ID, createReq(f.patient.ID),
		strings.NewReader("scan bytes"), "scan.pdf")
	require.NoError(t, err)

	require.NotNil(t, p.ContentHash)
	assert.Equal(t, "Qmabc123", *p.ContentHash)
	assert.Equal(t, 1, f.pinner.pinned)

	require.Len(t, f.presc.files, 1)
	assert.Equal(t, "Qmabc123", f.presc.files[0].ContentHash)
	assert.Equal(t, f.patient.ID, f.presc.files[0].PatientID)
}

func TestCreateDeniedWithoutAccess(t *testing.T) {
	f := setup(false)

	_, _, err := f.svc.Create(context.Background(), f.doctor.ID, createReq(f.patient.ID), nil, "")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))
	assert.Empty(t, f.relayer.calls, "no transaction may be submitted for a denied pair")
	assert.Empty(t, f.presc.rows)
}

func TestCreateChainReadFailureIsTransient(t *testing.T) {
	f := setup(true)
	f.reader.err = fmt.Errorf("rpc unavailable")

	_, _, err := f.svc.Create(context.Background(), f.doctor.ID, createReq(f.patient.ID), nil, "")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrChainTransient, apperrors.CodeOf(err))
}

func TestListForDoctorGatedOnCurrentFlag(t *testing.T) {
	f := setup(true)

	_, _, err := f.svc.Create(context.Background(), f.doctor.ID, createReq(f.patient.ID), nil, "")
	require.NoError(t, err)

	rows, err := f.svc.ListForDoctor(context.Background(), f.doctor.ID, f.patient.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	// Revoked since the last call: listing must be refused now.
	f.reader.access = false
	_, err = f.svc.ListForDoctor(context.Background(), f.doctor.ID, f.patient.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))
}

func TestListForPatientNeedsNoAccessFlag(t *testing.T) {
	f := setup(true)

	_, _, err := f.svc.Create(context.Background(), f.doctor.ID, createReq(f.patient.ID), nil, "")
	require.NoError(t, err)

	// The patient sees their own records regardless of any doctor's flag.
	f.reader.access = false
	rows, err := f.svc.ListForPatient(context.Background(), f.patient.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

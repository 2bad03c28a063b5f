package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/medichain/medichain-api/internal/model"
	"github.com/medichain/medichain-api/internal/repository"
)

type prescriptionRepository struct {
	BaseRepository
}

func NewPrescriptionRepository(db *sqlx.DB) repository.PrescriptionRepository {
	return &prescriptionRepository{NewBaseRepository(db)}
}

func (r *prescriptionRepository) Create(ctx context.Context, p *model.Prescription) error {
	query := `
		INSERT INTO prescriptions (id, patient_wallet, doctor_wallet, medication_name, dosage, schedule, content_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		p.ID, p.PatientWallet, p.DoctorWallet, p.MedicationName,
		p.Dosage, p.Schedule, p.ContentHash, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepository) ListForPatient(ctx context.Context, patientWallet string) ([]*model.Prescription, error) {
	var prescriptions []*model.Prescription
	query := `SELECT * FROM prescriptions WHERE patient_wallet = $1 ORDER BY created_at DESC`
	if err := r.GetDB().SelectContext(ctx, &prescriptions, query, patientWallet); err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	return prescriptions, nil
}

func (r *prescriptionRepository) ListForPair(ctx context.Context, patientWallet, doctorWallet string) ([]*model.Prescription, error) {
	var prescriptions []*model.Prescription
	query := `
		SELECT * FROM prescriptions
		WHERE patient_wallet = $1 AND doctor_wallet = $2
		ORDER BY created_at DESC
	`
	if err := r.GetDB().SelectContext(ctx, &prescriptions, query, patientWallet, doctorWallet); err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	return prescriptions, nil
}

func (r *prescriptionRepository) CreateFile(ctx context.Context, f *model.MedicalFile) error {
	query := `
		INSERT INTO medical_files (id, patient_id, doctor_id, content_hash, file_type, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		f.ID, f.PatientID, f.DoctorID, f.ContentHash, f.FileType, f.Metadata, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record medical file: %w", err)
	}
	return nil
}

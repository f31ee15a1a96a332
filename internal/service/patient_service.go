package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborhealth/clinicdesk/internal/domain"
	"github.com/harborhealth/clinicdesk/internal/domain/appointment"
	"github.com/harborhealth/clinicdesk/internal/domain/patient"
	"github.com/harborhealth/clinicdesk/pkg/metrics"
)

type PatientService struct {
	repo     patient.Repository
	apptRepo appointment.Repository
	auditSvc *AuditService
	metrics  *metrics.Collector // optional
	log      *zap.Logger
}

func NewPatientService(repo patient.Repository, apptRepo appointment.Repository, auditSvc *AuditService, mc *metrics.Collector, log *zap.Logger) *PatientService {
	return &PatientService{
		repo:     repo,
		apptRepo: apptRepo,
		auditSvc: auditSvc,
		metrics:  mc,
		log:      log,
	}
}

func (s *PatientService) CreatePatient(ctx context.Context, cmd *patient.CreateCommand, caller Caller) (*patient.Patient, error) {
	if err := validateCreatePatient(cmd); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByNationalID(ctx, strings.TrimSpace(cmd.NationalID))
	if err != nil {
		s.log.Error("failed to check national ID uniqueness", zap.Error(err))
		return nil, fmt.Errorf("checking uniqueness: %w", err)
	}
	if exists {
		return nil, patient.ErrPatientAlreadyExists
	}

	p := &patient.Patient{
		FirstName:   strings.TrimSpace(cmd.FirstName),
		LastName:    strings.TrimSpace(cmd.LastName),
		DateOfBirth: cmd.DateOfBirth,
		NationalID:  strings.TrimSpace(cmd.NationalID),
		ContactInfo: patient.ContactInfo{
			Phone:   strings.TrimSpace(cmd.Phone),
			Email:   strings.ToLower(strings.TrimSpace(cmd.Email)),
			Address: cmd.Address,
			City:    cmd.City,
			ZipCode: cmd.ZipCode,
		},
		Notes:     cmd.Notes,
		Status:    patient.StatusActive,
		CreatedBy: cmd.CreatedBy,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if err == patient.ErrPatientAlreadyExists {
			return nil, err
		}
		s.log.Error("failed to create patient", zap.Error(err))
		return nil, fmt.Errorf("creating patient: %w", err)
	}

	if s.metrics != nil {
		s.metrics.PatientsCreatedTotal.Inc()
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller.UserID,
		UserRole:     string(caller.Role),
		Action:       "create",
		ResourceType: "patient",
		ResourceID:   p.ID.String(),
		IPAddress:    caller.IP,
	})

	s.log.Info("patient created",
		zap.String("patient_id", p.ID.String()),
		zap.String("created_by", caller.UserID.String()),
	)

	return p, nil
}

func (s *PatientService) GetPatient(ctx context.Context, id uuid.UUID, caller Caller) (*patient.Patient, error) {
	// Patients can only read their own record
	if caller.Role == domain.RolePatient {
		if caller.PatientID == nil || *caller.PatientID != id {
			return nil, ErrForbidden
		}
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller.UserID,
		UserRole:     string(caller.Role),
		Action:       "read",
		ResourceType: "patient",
		ResourceID:   id.String(),
		IPAddress:    caller.IP,
	})

	return p, nil
}

// DeletePatient removes the patient row and cascades to their appointments.
// Staff only.
func (s *PatientService) DeletePatient(ctx context.Context, id uuid.UUID, caller Caller) error {
	if !caller.Role.CanSeeAllAppointments() {
		return ErrForbidden
	}

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}

	if err := s.apptRepo.DeleteByPatient(ctx, id); err != nil {
		return fmt.Errorf("deleting patient appointments: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller.UserID,
		UserRole:     string(caller.Role),
		Action:       "delete",
		ResourceType: "patient",
		ResourceID:   id.String(),
		IPAddress:    caller.IP,
	})

	return nil
}

func (s *PatientService) ListPatients(ctx context.Context, q *patient.ListQuery, caller Caller) ([]*patient.Patient, error) {
	if caller.Role == domain.RolePatient {
		return nil, ErrForbidden
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	return s.repo.List(ctx, q)
}

func validateCreatePatient(cmd *patient.CreateCommand) error {
	var errs []string

	if strings.TrimSpace(cmd.FirstName) == "" {
		errs = append(errs, "first_name is required")
	}
	if strings.TrimSpace(cmd.LastName) == "" {
		errs = append(errs, "last_name is required")
	}
	if cmd.DateOfBirth.IsZero() {
		errs = append(errs, "date_of_birth is required")
	}
	if cmd.DateOfBirth.After(time.Now()) {
		errs = append(errs, "date_of_birth cannot be in the future")
	}
	if strings.TrimSpace(cmd.NationalID) == "" {
		errs = append(errs, "national_id is required")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

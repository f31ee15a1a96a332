package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborhealth/clinicdesk/internal/config"
	"github.com/harborhealth/clinicdesk/internal/domain"
	"github.com/harborhealth/clinicdesk/internal/domain/appointment"
	"github.com/harborhealth/clinicdesk/internal/domain/patient"
	"github.com/harborhealth/clinicdesk/internal/domain/provider"
	"github.com/harborhealth/clinicdesk/pkg/metrics"
)

// Caller identifies the authenticated actor for role scoping and auditing.
type Caller struct {
	UserID     uuid.UUID
	Role       domain.Role
	PatientID  *uuid.UUID
	ProviderID *uuid.UUID
	IP         string
}

type SchedulingService struct {
	repo         appointment.Repository
	patientRepo  patient.Repository
	providerRepo provider.Repository
	auditSvc     *AuditService
	metrics      *metrics.Collector // optional
	cfg          config.SchedulingConfig
	log          *zap.Logger
}

func NewSchedulingService(
	repo appointment.Repository,
	patientRepo patient.Repository,
	providerRepo provider.Repository,
	auditSvc *AuditService,
	mc *metrics.Collector,
	cfg config.SchedulingConfig,
	log *zap.Logger,
) *SchedulingService {
	return &SchedulingService{
		repo:         repo,
		patientRepo:  patientRepo,
		providerRepo: providerRepo,
		auditSvc:     auditSvc,
		metrics:      mc,
		cfg:          cfg,
		log:          log,
	}
}

// Schedule books a new appointment. Validation order: required fields, time
// range, then the conflict check (patient before provider) fused with the
// insert inside the repository transaction.
func (s *SchedulingService) Schedule(ctx context.Context, cmd *appointment.CreateCommand, caller Caller) (*appointment.Appointment, error) {
	if err := s.validateCreate(cmd, caller); err != nil {
		return nil, err
	}

	p, err := s.patientRepo.GetByID(ctx, cmd.PatientID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive() {
		return nil, patient.ErrPatientInactive
	}

	if cmd.ProviderID != nil {
		if _, err := s.providerRepo.GetByID(ctx, *cmd.ProviderID); err != nil {
			return nil, err
		}
	}

	status := cmd.Status
	if status == "" {
		status = appointment.StatusScheduled
	}

	a := &appointment.Appointment{
		PatientID:     cmd.PatientID,
		ProviderID:    cmd.ProviderID,
		StartAt:       cmd.StartAt,
		EndAt:         cmd.EndAt,
		Status:        status,
		Reason:        cmd.Reason,
		Notes:         cmd.Notes,
		ProcedureCode: cmd.ProcedureCode,
		Amount:        cmd.Amount,
		CreatedBy:     cmd.CreatedBy,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		switch err {
		case appointment.ErrPatientSlotTaken:
			s.countConflict(appointment.ConflictPatient)
			return nil, err
		case appointment.ErrProviderSlotTaken:
			s.countConflict(appointment.ConflictProvider)
			return nil, err
		}
		s.log.Error("failed to create appointment", zap.Error(err))
		return nil, fmt.Errorf("creating appointment: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AppointmentsBooked.Inc()
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller.UserID,
		UserRole:     string(caller.Role),
		Action:       "create",
		ResourceType: "appointment",
		ResourceID:   a.ID.String(),
		IPAddress:    caller.IP,
	})

	return a, nil
}

func (s *SchedulingService) Get(ctx context.Context, id uuid.UUID, caller Caller) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeRecordAccess(a, caller); err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: caller.UserID, UserRole: string(caller.Role),
		Action: "read", ResourceType: "appointment", ResourceID: id.String(), IPAddress: caller.IP,
	})

	return a, nil
}

// Update applies a partial update. Status changes go through the transition
// table; time changes re-run the conflict check unless the deployment has
// opted out via SCHED_REVALIDATE_ON_UPDATE.
func (s *SchedulingService) Update(ctx context.Context, id uuid.UUID, cmd *appointment.UpdateCommand, caller Caller) (*appointment.Appointment, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeRecordAccess(current, caller); err != nil {
		return nil, err
	}

	if err := validateUpdate(current, cmd); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, cmd, s.cfg.RevalidateOnUpdate)
	if err != nil {
		switch err {
		case appointment.ErrPatientSlotTaken:
			s.countConflict(appointment.ConflictPatient)
		case appointment.ErrProviderSlotTaken:
			s.countConflict(appointment.ConflictProvider)
		}
		return nil, err
	}

	if s.metrics != nil && cmd.Status != nil && *cmd.Status != current.Status {
		s.metrics.AppointmentsByStatus.WithLabelValues(string(*cmd.Status)).Inc()
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: caller.UserID, UserRole: string(caller.Role),
		Action: "update", ResourceType: "appointment", ResourceID: id.String(), IPAddress: caller.IP,
	})

	return updated, nil
}

func (s *SchedulingService) Cancel(ctx context.Context, id uuid.UUID, reason string, caller Caller) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeRecordAccess(a, caller); err != nil {
		return nil, err
	}

	if err := a.Cancel(reason, caller.UserID); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, a); err != nil {
		return nil, fmt.Errorf("updating appointment status: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AppointmentsByStatus.WithLabelValues(string(appointment.StatusCanceled)).Inc()
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: caller.UserID, UserRole: string(caller.Role),
		Action: "update", ResourceType: "appointment", ResourceID: id.String(), IPAddress: caller.IP,
		Changes: fmt.Sprintf(`{"status":"canceled","reason":%q}`, reason),
	})

	return a, nil
}

// Delete removes the row outright. Staff only.
func (s *SchedulingService) Delete(ctx context.Context, id uuid.UUID, caller Caller) error {
	if !caller.Role.CanSeeAllAppointments() {
		return ErrForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: caller.UserID, UserRole: string(caller.Role),
		Action: "delete", ResourceType: "appointment", ResourceID: id.String(), IPAddress: caller.IP,
	})

	return nil
}

// List runs a filtered query scoped to what the caller may see: patients and
// doctors are pinned to their own appointments, staff see everything.
func (s *SchedulingService) List(ctx context.Context, q *appointment.ListQuery, caller Caller) ([]*appointment.Appointment, error) {
	switch {
	case caller.Role == domain.RolePatient:
		if caller.PatientID == nil {
			return nil, ErrForbidden
		}
		q.PatientID = caller.PatientID
	case caller.Role == domain.RoleDoctor:
		if caller.ProviderID == nil {
			return nil, ErrForbidden
		}
		q.ProviderID = caller.ProviderID
	case caller.Role.CanSeeAllAppointments():
		// unrestricted
	default:
		return nil, ErrForbidden
	}

	if q.Limit <= 0 || q.Limit > s.cfg.MaxListLimit {
		q.Limit = s.cfg.MaxListLimit
	}

	return s.repo.List(ctx, q)
}

// Upcoming feeds the external reminder dispatcher.
func (s *SchedulingService) Upcoming(ctx context.Context, withinHours int) ([]*appointment.Appointment, error) {
	if withinHours <= 0 {
		withinHours = 24
	}
	return s.repo.GetUpcoming(ctx, withinHours)
}

func (s *SchedulingService) countConflict(kind appointment.ConflictKind) {
	if s.metrics != nil {
		s.metrics.BookingConflicts.WithLabelValues(string(kind)).Inc()
	}
}

// authorizeRecordAccess enforces record-level visibility: a patient may only
// touch their own appointments, a doctor only ones assigned to them.
func (s *SchedulingService) authorizeRecordAccess(a *appointment.Appointment, caller Caller) error {
	switch caller.Role {
	case domain.RolePatient:
		if caller.PatientID == nil || *caller.PatientID != a.PatientID {
			return ErrForbidden
		}
	case domain.RoleDoctor:
		if caller.ProviderID == nil || a.ProviderID == nil || *caller.ProviderID != *a.ProviderID {
			return ErrForbidden
		}
	}
	return nil
}

func (s *SchedulingService) validateCreate(cmd *appointment.CreateCommand, caller Caller) error {
	var errs []string

	if cmd.PatientID == uuid.Nil {
		errs = append(errs, "patient_id is required")
	}
	if cmd.StartAt.IsZero() {
		errs = append(errs, "start is required")
	}
	if cmd.EndAt.IsZero() {
		errs = append(errs, "end is required")
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}

	if !cmd.EndAt.After(cmd.StartAt) {
		return appointment.ErrInvalidTimeRange
	}
	if cmd.Status != "" && !cmd.Status.IsValid() {
		return appointment.ErrInvalidStatus
	}
	if !s.cfg.AllowPastBooking && cmd.EndAt.Before(time.Now()) {
		return &ValidationError{Fields: []string{"appointment cannot end in the past"}}
	}

	// Patients may only book for themselves.
	if caller.Role == domain.RolePatient {
		if caller.PatientID == nil || *caller.PatientID != cmd.PatientID {
			return ErrForbidden
		}
	}

	return nil
}

func validateUpdate(current *appointment.Appointment, cmd *appointment.UpdateCommand) error {
	start := current.StartAt
	end := current.EndAt
	if cmd.StartAt != nil {
		start = *cmd.StartAt
	}
	if cmd.EndAt != nil {
		end = *cmd.EndAt
	}
	if !end.After(start) {
		return appointment.ErrInvalidTimeRange
	}

	if cmd.Status != nil && *cmd.Status != current.Status {
		if !cmd.Status.IsValid() {
			return appointment.ErrInvalidStatus
		}
		if !current.CanTransitionTo(*cmd.Status) {
			return appointment.ErrInvalidStatusTransition
		}
	}

	return nil
}

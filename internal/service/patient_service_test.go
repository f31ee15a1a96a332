package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harborhealth/clinicdesk/internal/domain"
	"github.com/harborhealth/clinicdesk/internal/domain/appointment"
	"github.com/harborhealth/clinicdesk/internal/domain/patient"
	"github.com/harborhealth/clinicdesk/internal/repository/memory"
)

func newPatientFixture(t *testing.T) (*PatientService, *memory.PatientRepository, *memory.AppointmentRepository) {
	t.Helper()
	patients := memory.NewPatientRepository()
	appts := memory.NewAppointmentRepository()
	auditSvc := NewAuditService(memory.NewAuditRepository(), nil, zap.NewNop())
	t.Cleanup(auditSvc.Shutdown)
	return NewPatientService(patients, appts, auditSvc, nil, zap.NewNop()), patients, appts
}

func TestCreatePatient(t *testing.T) {
	svc, _, _ := newPatientFixture(t)
	staff := Caller{UserID: uuid.New(), Role: domain.RoleStaff}

	p, err := svc.CreatePatient(context.Background(), &patient.CreateCommand{
		FirstName:   "  Ada ",
		LastName:    "Byron",
		DateOfBirth: time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC),
		NationalID:  "N-100",
		Email:       "Ada.Byron@Example.com",
		CreatedBy:   staff.UserID,
	}, staff)

	require.NoError(t, err)
	assert.Equal(t, "Ada", p.FirstName)
	assert.Equal(t, "ada.byron@example.com", p.Email)
	assert.Equal(t, patient.StatusActive, p.Status)
}

func TestCreatePatient_Validation(t *testing.T) {
	svc, _, _ := newPatientFixture(t)
	staff := Caller{UserID: uuid.New(), Role: domain.RoleStaff}

	var validErr *ValidationError
	_, err := svc.CreatePatient(context.Background(), &patient.CreateCommand{}, staff)
	require.ErrorAs(t, err, &validErr)
	assert.Contains(t, validErr.Fields, "first_name is required")
	assert.Contains(t, validErr.Fields, "national_id is required")

	_, err = svc.CreatePatient(context.Background(), &patient.CreateCommand{
		FirstName:   "Ada",
		LastName:    "Byron",
		DateOfBirth: time.Now().AddDate(1, 0, 0),
		NationalID:  "N-101",
	}, staff)
	require.ErrorAs(t, err, &validErr)
	assert.Contains(t, validErr.Fields, "date_of_birth cannot be in the future")
}

func TestCreatePatient_DuplicateNationalID(t *testing.T) {
	svc, patients, _ := newPatientFixture(t)
	staff := Caller{UserID: uuid.New(), Role: domain.RoleStaff}
	patients.Add(&patient.Patient{FirstName: "Ada", LastName: "Byron", NationalID: "N-100"})

	_, err := svc.CreatePatient(context.Background(), &patient.CreateCommand{
		FirstName:   "Ada",
		LastName:    "Byron",
		DateOfBirth: time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC),
		NationalID:  "N-100",
	}, staff)
	assert.ErrorIs(t, err, patient.ErrPatientAlreadyExists)
}

func TestGetPatient_SelfAccessOnly(t *testing.T) {
	svc, patients, _ := newPatientFixture(t)
	pid := patients.Add(&patient.Patient{FirstName: "Ada", LastName: "Byron", NationalID: "N-100"})
	other := patients.Add(&patient.Patient{FirstName: "Tom", LastName: "Quinn", NationalID: "N-200"})

	caller := Caller{UserID: uuid.New(), Role: domain.RolePatient, PatientID: &pid}

	p, err := svc.GetPatient(context.Background(), pid, caller)
	require.NoError(t, err)
	assert.Equal(t, pid, p.ID)

	_, err = svc.GetPatient(context.Background(), other, caller)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDeletePatient_CascadesToAppointments(t *testing.T) {
	svc, patients, appts := newPatientFixture(t)
	staff := Caller{UserID: uuid.New(), Role: domain.RoleStaff}
	pid := patients.Add(&patient.Patient{FirstName: "Ada", LastName: "Byron", NationalID: "N-100"})

	start := time.Now().AddDate(0, 0, 1)
	a := &appointment.Appointment{
		PatientID: pid, StartAt: start, EndAt: start.Add(30 * time.Minute), Status: appointment.StatusScheduled,
	}
	require.NoError(t, appts.Create(context.Background(), a))

	require.NoError(t, svc.DeletePatient(context.Background(), pid, staff))

	_, err := appts.GetByID(context.Background(), a.ID)
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)

	_, err = patients.GetByID(context.Background(), pid)
	assert.ErrorIs(t, err, patient.ErrPatientNotFound)
}

func TestDeletePatient_StaffOnly(t *testing.T) {
	svc, patients, _ := newPatientFixture(t)
	pid := patients.Add(&patient.Patient{FirstName: "Ada", LastName: "Byron", NationalID: "N-100"})

	caller := Caller{UserID: uuid.New(), Role: domain.RolePatient, PatientID: &pid}
	err := svc.DeletePatient(context.Background(), pid, caller)
	assert.ErrorIs(t, err, ErrForbidden)

	doctor := Caller{UserID: uuid.New(), Role: domain.RoleDoctor}
	err = svc.DeletePatient(context.Background(), pid, doctor)
	assert.ErrorIs(t, err, ErrForbidden)
}

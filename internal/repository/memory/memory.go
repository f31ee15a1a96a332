// Package memory provides in-memory repository implementations used by unit
// tests and local development. Each write method holds the store lock across
// its read-check-write sequence, mirroring the advisory-lock transactions of
// the Postgres repositories.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harborhealth/clinicdesk/internal/domain"
	"github.com/harborhealth/clinicdesk/internal/domain/appointment"
	"github.com/harborhealth/clinicdesk/internal/domain/patient"
	"github.com/harborhealth/clinicdesk/internal/domain/provider"
)

type AppointmentRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]*appointment.Appointment
}

func NewAppointmentRepository() *AppointmentRepository {
	return &AppointmentRepository{items: make(map[uuid.UUID]*appointment.Appointment)}
}

func (r *AppointmentRepository) conflictLocked(patientID uuid.UUID, providerID *uuid.UUID, start, end time.Time, excludeID *uuid.UUID) appointment.ConflictKind {
	for _, a := range r.items {
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if !a.CountsForConflict() {
			continue
		}
		if a.PatientID == patientID && appointment.Overlaps(a.StartAt, a.EndAt, start, end) {
			return appointment.ConflictPatient
		}
	}
	if providerID != nil {
		for _, a := range r.items {
			if excludeID != nil && a.ID == *excludeID {
				continue
			}
			if !a.CountsForConflict() || a.ProviderID == nil {
				continue
			}
			if *a.ProviderID == *providerID && appointment.Overlaps(a.StartAt, a.EndAt, start, end) {
				return appointment.ConflictProvider
			}
		}
	}
	return appointment.ConflictNone
}

func conflictErr(kind appointment.ConflictKind) error {
	switch kind {
	case appointment.ConflictPatient:
		return appointment.ErrPatientSlotTaken
	case appointment.ConflictProvider:
		return appointment.ErrProviderSlotTaken
	}
	return nil
}

func (r *AppointmentRepository) Create(ctx context.Context, a *appointment.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if kind := r.conflictLocked(a.PatientID, a.ProviderID, a.StartAt, a.EndAt, nil); kind != appointment.ConflictNone {
		return conflictErr(kind)
	}

	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *AppointmentRepository) Update(ctx context.Context, id uuid.UUID, cmd *appointment.UpdateCommand, checkConflict bool) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.items[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	next := *a

	if cmd.ProviderID != nil {
		next.ProviderID = *cmd.ProviderID
	}
	if cmd.StartAt != nil {
		next.StartAt = *cmd.StartAt
	}
	if cmd.EndAt != nil {
		next.EndAt = *cmd.EndAt
	}
	if cmd.Status != nil {
		next.Status = *cmd.Status
	}
	if cmd.Reason != nil {
		next.Reason = *cmd.Reason
	}
	if cmd.Notes != nil {
		next.Notes = *cmd.Notes
	}
	if cmd.ProcedureCode != nil {
		next.ProcedureCode = *cmd.ProcedureCode
	}
	if cmd.Amount != nil {
		next.Amount = cmd.Amount
	}

	if checkConflict && cmd.ChangesTime() && next.CountsForConflict() {
		if kind := r.conflictLocked(next.PatientID, next.ProviderID, next.StartAt, next.EndAt, &id); kind != appointment.ConflictNone {
			return nil, conflictErr(kind)
		}
	}

	next.UpdatedAt = time.Now()
	r.items[id] = &next
	cp := next
	return &cp, nil
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, a *appointment.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.items[a.ID]
	if !ok {
		return appointment.ErrAppointmentNotFound
	}
	existing.Status = a.Status
	existing.CanceledAt = a.CanceledAt
	existing.CancellationReason = a.CancellationReason
	existing.CanceledBy = a.CanceledBy
	return nil
}

func (r *AppointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return appointment.ErrAppointmentNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *AppointmentRepository) DeleteByPatient(ctx context.Context, patientID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.items {
		if a.PatientID == patientID {
			delete(r.items, id)
		}
	}
	return nil
}

func (r *AppointmentRepository) List(ctx context.Context, q *appointment.ListQuery) ([]*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*appointment.Appointment
	for _, a := range r.items {
		if q.PatientID != nil && a.PatientID != *q.PatientID {
			continue
		}
		if q.ProviderID != nil && (a.ProviderID == nil || *a.ProviderID != *q.ProviderID) {
			continue
		}
		if q.Status != nil && a.Status != *q.Status {
			continue
		}
		if q.Date != nil {
			day := q.Date.UTC().Truncate(24 * time.Hour)
			if a.StartAt.Before(day) || !a.StartAt.Before(day.Add(24*time.Hour)) {
				continue
			}
		}
		if q.DateFrom != nil && a.StartAt.Before(*q.DateFrom) {
			continue
		}
		if q.DateTo != nil && !a.StartAt.Before(*q.DateTo) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if q.Descending {
			return out[i].StartAt.After(out[j].StartAt)
		}
		return out[i].StartAt.Before(out[j].StartAt)
	})

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *AppointmentRepository) FindConflict(ctx context.Context, patientID uuid.UUID, providerID *uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (appointment.ConflictKind, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conflictLocked(patientID, providerID, start, end, excludeID), nil
}

func (r *AppointmentRepository) GetUpcoming(ctx context.Context, withinHours int) ([]*appointment.Appointment, error) {
	now := time.Now()
	to := now.Add(time.Duration(withinHours) * time.Hour)
	scheduled := appointment.StatusScheduled
	return r.List(ctx, &appointment.ListQuery{Status: &scheduled, DateFrom: &now, DateTo: &to})
}

type PatientRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]*patient.Patient
}

func NewPatientRepository() *PatientRepository {
	return &PatientRepository{items: make(map[uuid.UUID]*patient.Patient)}
}

// Add seeds a patient directly, bypassing validation.
func (r *PatientRepository) Add(p *patient.Patient) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = patient.StatusActive
	}
	r.items[p.ID] = p
	return p.ID
}

func (r *PatientRepository) Create(ctx context.Context, p *patient.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.NationalID == p.NationalID {
			return patient.ErrPatientAlreadyExists
		}
	}
	p.ID = uuid.New()
	r.items[p.ID] = p
	return nil
}

func (r *PatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *PatientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return patient.ErrPatientNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *PatientRepository) List(ctx context.Context, q *patient.ListQuery) ([]*patient.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*patient.Patient
	for _, p := range r.items {
		if q.Status != nil && p.Status != *q.Status {
			continue
		}
		if q.Search != "" && !strings.Contains(
			strings.ToLower(p.FirstName+" "+p.LastName), strings.ToLower(q.Search)) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastName < out[j].LastName
	})
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *PatientRepository) ExistsByNationalID(ctx context.Context, nationalID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.NationalID == nationalID {
			return true, nil
		}
	}
	return false, nil
}

type ProviderRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]*provider.Provider
}

func NewProviderRepository() *ProviderRepository {
	return &ProviderRepository{items: make(map[uuid.UUID]*provider.Provider)}
}

// Add seeds a provider directly.
func (r *ProviderRepository) Add(p *provider.Provider) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.items[p.ID] = p
	return p.ID
}

func (r *ProviderRepository) Create(ctx context.Context, p *provider.Provider) error {
	r.Add(p)
	return nil
}

func (r *ProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*provider.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, provider.ErrProviderNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *ProviderRepository) List(ctx context.Context, activeOnly bool) ([]*provider.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*provider.Provider
	for _, p := range r.items {
		if activeOnly && !p.IsActive {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

type UserRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{items: make(map[uuid.UUID]*domain.User)}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.items[u.ID] = u
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.items {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepository) UpdateLoginAttempt(ctx context.Context, id uuid.UUID, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	if success {
		u.FailedLoginCount = 0
		u.LockedUntil = nil
		now := time.Now()
		u.LastLoginAt = &now
	} else {
		u.FailedLoginCount++
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

type AuditRepository struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *AuditRepository) Entries() []*domain.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.AuditLog, len(r.entries))
	copy(out, r.entries)
	return out
}

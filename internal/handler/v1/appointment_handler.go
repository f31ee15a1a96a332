package v1

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/harborhealth/clinicdesk/internal/domain/appointment"
	"github.com/harborhealth/clinicdesk/internal/service"
)

type AppointmentHandler struct {
	svc *service.SchedulingService
}

func NewAppointmentHandler(svc *service.SchedulingService) *AppointmentHandler {
	return &AppointmentHandler{svc: svc}
}

type createAppointmentRequest struct {
	PatientID     uuid.UUID  `json:"patientId" binding:"required"`
	ProviderID    *uuid.UUID `json:"providerId"`
	Start         time.Time  `json:"start" binding:"required"`
	End           time.Time  `json:"end" binding:"required"`
	Reason        string     `json:"reason"`
	Notes         string     `json:"notes"`
	Status        string     `json:"status"`
	ProcedureCode string     `json:"procedureCode"`
	Amount        *float64   `json:"amount"`
}

type updateAppointmentRequest struct {
	// Raw so that an absent field (unchanged) and an explicit null
	// (unassign) stay distinguishable after decoding.
	ProviderID    json.RawMessage `json:"providerId"`
	Start         *time.Time      `json:"start"`
	End           *time.Time      `json:"end"`
	Status        *string         `json:"status"`
	Reason        *string         `json:"reason"`
	Notes         *string         `json:"notes"`
	ProcedureCode *string         `json:"procedureCode"`
	Amount        *float64        `json:"amount"`
}

type cancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type appointmentResponse struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patientId"`
	ProviderID    *uuid.UUID `json:"providerId,omitempty"`
	Start         time.Time  `json:"start"`
	End           time.Time  `json:"end"`
	Duration      int        `json:"duration"` // minutes
	Status        string     `json:"status"`
	Reason        string     `json:"reason,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	ProcedureCode string     `json:"procedureCode,omitempty"`
	Amount        *float64   `json:"amount,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func toAppointmentResponse(a *appointment.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:            a.ID,
		PatientID:     a.PatientID,
		ProviderID:    a.ProviderID,
		Start:         a.StartAt,
		End:           a.EndAt,
		Duration:      a.DurationMins(),
		Status:        string(a.Status),
		Reason:        a.Reason,
		Notes:         a.Notes,
		ProcedureCode: a.ProcedureCode,
		Amount:        a.Amount,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func toAppointmentResponses(appts []*appointment.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

// Create handles POST /appointments.
func (h *AppointmentHandler) Create(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}

	var req createAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &appointment.CreateCommand{
		PatientID:     req.PatientID,
		ProviderID:    req.ProviderID,
		StartAt:       req.Start,
		EndAt:         req.End,
		Status:        appointment.Status(req.Status),
		Reason:        req.Reason,
		Notes:         req.Notes,
		ProcedureCode: req.ProcedureCode,
		Amount:        req.Amount,
		CreatedBy:     caller.UserID,
	}

	a, err := h.svc.Schedule(c.Request.Context(), cmd, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, gin.H{"id": a.ID})
}

// Get handles GET /appointments/:id.
func (h *AppointmentHandler) Get(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	a, err := h.svc.Get(c.Request.Context(), id, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, toAppointmentResponse(a))
}

// Update handles PUT and PATCH /appointments/:id.
func (h *AppointmentHandler) Update(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req updateAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	// Cancellation populates the tracking fields, so it takes the cancel path.
	if req.Status != nil && appointment.Status(*req.Status) == appointment.StatusCanceled {
		reason := ""
		if req.Reason != nil {
			reason = *req.Reason
		}
		if _, err := h.svc.Cancel(c.Request.Context(), id, reason, caller); err != nil {
			respondServiceError(c, err)
			return
		}
		respondNoContent(c)
		return
	}

	cmd := &appointment.UpdateCommand{
		StartAt:       req.Start,
		EndAt:         req.End,
		Reason:        req.Reason,
		Notes:         req.Notes,
		ProcedureCode: req.ProcedureCode,
		Amount:        req.Amount,
		UpdatedBy:     caller.UserID,
	}
	if len(req.ProviderID) > 0 {
		var pid *uuid.UUID
		if err := json.Unmarshal(req.ProviderID, &pid); err != nil {
			respondServiceError(c, &service.ValidationError{Fields: []string{"providerId must be a valid UUID or null"}})
			return
		}
		cmd.ProviderID = &pid
	}
	if req.Status != nil {
		st := appointment.Status(*req.Status)
		cmd.Status = &st
	}

	if _, err := h.svc.Update(c.Request.Context(), id, cmd, caller); err != nil {
		respondServiceError(c, err)
		return
	}

	respondNoContent(c)
}

// Cancel handles POST /appointments/:id/cancel.
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req cancelAppointmentRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	if _, err := h.svc.Cancel(c.Request.Context(), id, req.Reason, caller); err != nil {
		respondServiceError(c, err)
		return
	}

	respondNoContent(c)
}

// Delete handles DELETE /appointments/:id.
func (h *AppointmentHandler) Delete(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id, caller); err != nil {
		respondServiceError(c, err)
		return
	}

	respondNoContent(c)
}

// List handles GET /appointments with optional filters.
func (h *AppointmentHandler) List(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}

	q := &appointment.ListQuery{}

	if raw := c.Query("date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondServiceError(c, &service.ValidationError{Fields: []string{"date must be YYYY-MM-DD"}})
			return
		}
		q.Date = &d
	}
	if raw := c.Query("startDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondServiceError(c, &service.ValidationError{Fields: []string{"startDate must be RFC 3339"}})
			return
		}
		q.DateFrom = &t
	}
	if raw := c.Query("endDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondServiceError(c, &service.ValidationError{Fields: []string{"endDate must be RFC 3339"}})
			return
		}
		q.DateTo = &t
	}
	if raw := c.Query("status"); raw != "" {
		st := appointment.Status(raw)
		if !st.IsValid() {
			respondServiceError(c, appointment.ErrInvalidStatus)
			return
		}
		q.Status = &st
	}
	if raw := c.Query("providerId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondServiceError(c, &service.ValidationError{Fields: []string{"providerId must be a valid UUID"}})
			return
		}
		q.ProviderID = &id
	}
	if raw := c.Query("patientId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondServiceError(c, &service.ValidationError{Fields: []string{"patientId must be a valid UUID"}})
			return
		}
		q.PatientID = &id
	}
	q.Limit = parseQueryInt(c, "limit", 0)

	appts, err := h.svc.List(c.Request.Context(), q, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{"appointments": toAppointmentResponses(appts)})
}

// ListMine handles the role-scoped dashboard endpoints
// (/patient/appointments, /doctor/appointments, /staff/appointments):
// recent activity first, bounded by limit.
func (h *AppointmentHandler) ListMine(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}

	q := &appointment.ListQuery{
		Descending: true,
		Limit:      parseQueryInt(c, "limit", 0),
	}

	appts, err := h.svc.List(c.Request.Context(), q, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{"appointments": toAppointmentResponses(appts)})
}

package v1

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harborhealth/clinicdesk/internal/domain/patient"
	"github.com/harborhealth/clinicdesk/internal/service"
)

type PatientHandler struct {
	svc *service.PatientService
}

func NewPatientHandler(svc *service.PatientService) *PatientHandler {
	return &PatientHandler{svc: svc}
}

type createPatientRequest struct {
	FirstName   string    `json:"firstName" binding:"required"`
	LastName    string    `json:"lastName" binding:"required"`
	DateOfBirth time.Time `json:"dateOfBirth" binding:"required"`
	NationalID  string    `json:"nationalId" binding:"required"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	ZipCode     string    `json:"zipCode"`
	Notes       string    `json:"notes"`
}

func (h *PatientHandler) Create(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}

	var req createPatientRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &patient.CreateCommand{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: req.DateOfBirth,
		NationalID:  req.NationalID,
		Phone:       req.Phone,
		Email:       req.Email,
		Address:     req.Address,
		City:        req.City,
		ZipCode:     req.ZipCode,
		Notes:       req.Notes,
		CreatedBy:   caller.UserID,
	}

	p, err := h.svc.CreatePatient(c.Request.Context(), cmd, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, gin.H{"id": p.ID})
}

func (h *PatientHandler) Get(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.svc.GetPatient(c.Request.Context(), id, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, p)
}

// Delete removes a patient and all their appointments. Staff only.
func (h *PatientHandler) Delete(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.DeletePatient(c.Request.Context(), id, caller); err != nil {
		respondServiceError(c, err)
		return
	}

	respondNoContent(c)
}

func (h *PatientHandler) List(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}

	q := &patient.ListQuery{
		Search: c.Query("search"),
		Limit:  parseQueryInt(c, "limit", 0),
	}
	if raw := c.Query("status"); raw != "" {
		st := patient.Status(raw)
		q.Status = &st
	}

	patients, err := h.svc.ListPatients(c.Request.Context(), q, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{"patients": patients})
}

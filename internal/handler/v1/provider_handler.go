package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/harborhealth/clinicdesk/internal/domain/provider"
)

type ProviderHandler struct {
	repo provider.Repository
}

func NewProviderHandler(repo provider.Repository) *ProviderHandler {
	return &ProviderHandler{repo: repo}
}

type createProviderRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Specialty string `json:"specialty"`
}

func (h *ProviderHandler) Create(c *gin.Context) {
	var req createProviderRequest
	if !bindJSON(c, &req) {
		return
	}

	p := &provider.Provider{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Specialty: req.Specialty,
		IsActive:  true,
	}

	if err := h.repo.Create(c.Request.Context(), p); err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, gin.H{"id": p.ID})
}

func (h *ProviderHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, p)
}

func (h *ProviderHandler) List(c *gin.Context) {
	activeOnly := c.Query("all") == ""
	providers, err := h.repo.List(c.Request.Context(), activeOnly)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{"providers": providers})
}

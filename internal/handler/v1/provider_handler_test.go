package v1

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/harborhealth/clinicdesk/internal/domain"
	"github.com/harborhealth/clinicdesk/internal/domain/provider"
)

func TestCreateProviderEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	body := map[string]any{
		"firstName": "Nadia",
		"lastName":  "Osei",
		"specialty": "cardiology",
	}

	rec := f.do(t, http.MethodPost, "/api/v1/providers", f.staffToken(t), body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp createdResponse
	decodeBody(t, rec, &resp)
	require.NotEqual(t, uuid.Nil, resp.Data.ID)

	p, err := f.providers.GetByID(context.Background(), resp.Data.ID)
	require.NoError(t, err)
	require.Equal(t, "Nadia Osei", p.FullName())
	require.True(t, p.IsActive)

	t.Run("missing name rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/providers", f.staffToken(t), map[string]any{"firstName": "Nadia"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("patient role forbidden", func(t *testing.T) {
		token := f.tokenFor(t, domain.RolePatient, &f.patientID, nil)
		rec := f.do(t, http.MethodPost, "/api/v1/providers", token, body)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestGetProviderEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	token := f.tokenFor(t, domain.RolePatient, &f.patientID, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/providers/"+f.doctorID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data provider.Provider `json:"data"`
	}
	decodeBody(t, rec, &resp)
	require.Equal(t, f.doctorID, resp.Data.ID)

	t.Run("unknown provider", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/providers/"+uuid.NewString(), token, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListProvidersEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	inactive := domainProvider("Ivo", "Rell")
	inactive.IsActive = false
	f.providers.Add(inactive)

	token := f.tokenFor(t, domain.RoleDoctor, nil, &f.doctorID)

	rec := f.do(t, http.MethodGet, "/api/v1/providers", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Providers []*provider.Provider `json:"providers"`
		} `json:"data"`
	}
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Data.Providers, 1)
	require.Equal(t, f.doctorID, resp.Data.Providers[0].ID)

	t.Run("all includes inactive", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/providers?all=1", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		decodeBody(t, rec, &resp)
		require.Len(t, resp.Data.Providers, 2)
	})
}

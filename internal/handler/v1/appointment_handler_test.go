package v1

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborhealth/clinicdesk/internal/domain"
)

func futureSlot(hour, min, durMin int) (time.Time, time.Time) {
	start := time.Now().AddDate(0, 0, 1).Truncate(time.Hour).
		Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
	return start, start.Add(time.Duration(durMin) * time.Minute)
}

type createdResponse struct {
	Data struct {
		ID uuid.UUID `json:"id"`
	} `json:"data"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (f *apiFixture) book(t *testing.T, token string, patientID uuid.UUID, providerID *uuid.UUID, start, end time.Time) (uuid.UUID, *createdResponse, int) {
	t.Helper()
	body := map[string]any{
		"patientId": patientID,
		"start":     start.Format(time.RFC3339Nano),
		"end":       end.Format(time.RFC3339Nano),
		"reason":    "checkup",
	}
	if providerID != nil {
		body["providerId"] = *providerID
	}
	rec := f.do(t, http.MethodPost, "/api/v1/appointments", token, body)
	var resp createdResponse
	if rec.Code == http.StatusCreated {
		decodeBody(t, rec, &resp)
	}
	return resp.Data.ID, &resp, rec.Code
}

func TestCreateAppointment(t *testing.T) {
	f := newAPIFixture(t)
	start, end := futureSlot(9, 0, 30)

	id, _, code := f.book(t, f.staffToken(t), f.patientID, &f.doctorID, start, end)
	require.Equal(t, http.StatusCreated, code)
	assert.NotEqual(t, uuid.Nil, id)

	a, err := f.appts.GetByID(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, f.patientID, a.PatientID)
}

func TestCreateAppointment_ConflictCodes(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.staffToken(t)
	otherDoctor := f.providers.Add(domainProvider("Max", "Orion"))
	otherPatient := f.patients.Add(domainPatient("Tom", "Quinn", "N-2"))

	start, end := futureSlot(9, 0, 30)
	_, _, code := f.book(t, staff, f.patientID, &f.doctorID, start, end)
	require.Equal(t, http.StatusCreated, code)

	// same patient, different provider
	rec := f.do(t, http.MethodPost, "/api/v1/appointments", staff, map[string]any{
		"patientId":  f.patientID,
		"providerId": otherDoctor,
		"start":      start.Add(15 * time.Minute).Format(time.RFC3339Nano),
		"end":        end.Add(15 * time.Minute).Format(time.RFC3339Nano),
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	var eb errorBody
	decodeBody(t, rec, &eb)
	assert.Equal(t, "patient_conflict", eb.Code)

	// different patient, same provider
	rec = f.do(t, http.MethodPost, "/api/v1/appointments", staff, map[string]any{
		"patientId":  otherPatient,
		"providerId": f.doctorID,
		"start":      start.Add(15 * time.Minute).Format(time.RFC3339Nano),
		"end":        end.Add(15 * time.Minute).Format(time.RFC3339Nano),
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	decodeBody(t, rec, &eb)
	assert.Equal(t, "provider_conflict", eb.Code)
}

func TestCreateAppointment_InvalidRange(t *testing.T) {
	f := newAPIFixture(t)
	start, end := futureSlot(9, 0, 30)

	_, _, code := f.book(t, f.staffToken(t), f.patientID, nil, end, start)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetAppointment(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.staffToken(t)
	start, end := futureSlot(9, 0, 30)

	id, _, code := f.book(t, staff, f.patientID, &f.doctorID, start, end)
	require.Equal(t, http.StatusCreated, code)

	rec := f.do(t, http.MethodGet, "/api/v1/appointments/"+id.String(), staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			ID       uuid.UUID `json:"id"`
			Duration int       `json:"duration"`
			Status   string    `json:"status"`
		} `json:"data"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, id, resp.Data.ID)
	assert.Equal(t, 30, resp.Data.Duration)
	assert.Equal(t, "scheduled", resp.Data.Status)

	rec = f.do(t, http.MethodGet, "/api/v1/appointments/"+uuid.NewString(), staff, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/appointments/not-a-uuid", staff, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAppointment_RecordAccess(t *testing.T) {
	f := newAPIFixture(t)
	start, end := futureSlot(9, 0, 30)

	id, _, code := f.book(t, f.staffToken(t), f.patientID, &f.doctorID, start, end)
	require.Equal(t, http.StatusCreated, code)

	// the appointment's own patient may read it
	own := f.tokenFor(t, domain.RolePatient, &f.patientID, nil)
	rec := f.do(t, http.MethodGet, "/api/v1/appointments/"+id.String(), own, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// an unrelated patient may not
	strangerID := f.patients.Add(domainPatient("Tom", "Quinn", "N-2"))
	stranger := f.tokenFor(t, domain.RolePatient, &strangerID, nil)
	rec = f.do(t, http.MethodGet, "/api/v1/appointments/"+id.String(), stranger, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateAppointment_Status(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.staffToken(t)
	start, end := futureSlot(9, 0, 30)

	id, _, code := f.book(t, staff, f.patientID, &f.doctorID, start, end)
	require.Equal(t, http.StatusCreated, code)

	rec := f.do(t, http.MethodPatch, "/api/v1/appointments/"+id.String(), staff, map[string]any{
		"status": "checked_in",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	a, err := f.appts.GetByID(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, "checked_in", string(a.Status))

	// checked_in cannot jump back to no_show
	rec = f.do(t, http.MethodPatch, "/api/v1/appointments/"+id.String(), staff, map[string]any{
		"status": "no_show",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAppointment_RescheduleConflict(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.staffToken(t)

	s1, e1 := futureSlot(9, 0, 30)
	_, _, code := f.book(t, staff, f.patientID, &f.doctorID, s1, e1)
	require.Equal(t, http.StatusCreated, code)

	s2, e2 := futureSlot(11, 0, 30)
	id2, _, code := f.book(t, staff, f.patientID, &f.doctorID, s2, e2)
	require.Equal(t, http.StatusCreated, code)

	rec := f.do(t, http.MethodPut, "/api/v1/appointments/"+id2.String(), staff, map[string]any{
		"start": s1.Format(time.RFC3339Nano),
		"end":   e1.Format(time.RFC3339Nano),
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	var eb errorBody
	decodeBody(t, rec, &eb)
	assert.Equal(t, "patient_conflict", eb.Code)
}

func TestDeleteAppointment_StaffOnly(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.staffToken(t)
	start, end := futureSlot(9, 0, 30)

	id, _, code := f.book(t, staff, f.patientID, &f.doctorID, start, end)
	require.Equal(t, http.StatusCreated, code)

	patientTok := f.tokenFor(t, domain.RolePatient, &f.patientID, nil)
	rec := f.do(t, http.MethodDelete, "/api/v1/appointments/"+id.String(), patientTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/appointments/"+id.String(), staff, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/appointments/"+id.String(), staff, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboardEndpoints_RoleGated(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.staffToken(t)
	otherPatient := f.patients.Add(domainPatient("Tom", "Quinn", "N-2"))

	s1, e1 := futureSlot(9, 0, 30)
	_, _, code := f.book(t, staff, f.patientID, &f.doctorID, s1, e1)
	require.Equal(t, http.StatusCreated, code)
	s2, e2 := futureSlot(10, 0, 30)
	_, _, code = f.book(t, staff, otherPatient, &f.doctorID, s2, e2)
	require.Equal(t, http.StatusCreated, code)

	patientTok := f.tokenFor(t, domain.RolePatient, &f.patientID, nil)
	doctorTok := f.tokenFor(t, domain.RoleDoctor, nil, &f.doctorID)

	// wrong role for the endpoint
	rec := f.do(t, http.MethodGet, "/api/v1/patient/appointments", doctorTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/v1/doctor/appointments", patientTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var resp struct {
		Data struct {
			Appointments []struct {
				PatientID uuid.UUID `json:"patientId"`
				Start     time.Time `json:"start"`
			} `json:"appointments"`
		} `json:"data"`
	}

	rec = f.do(t, http.MethodGet, "/api/v1/patient/appointments", patientTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Data.Appointments, 1)
	assert.Equal(t, f.patientID, resp.Data.Appointments[0].PatientID)

	// doctor view covers both patients, most recent first
	rec = f.do(t, http.MethodGet, "/api/v1/doctor/appointments", doctorTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Data.Appointments, 2)
	assert.True(t, resp.Data.Appointments[0].Start.After(resp.Data.Appointments[1].Start))

	rec = f.do(t, http.MethodGet, "/api/v1/staff/appointments", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Len(t, resp.Data.Appointments, 2)
}

func TestListAppointments_Filters(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.staffToken(t)

	s1, e1 := futureSlot(9, 0, 30)
	_, _, code := f.book(t, staff, f.patientID, &f.doctorID, s1, e1)
	require.Equal(t, http.StatusCreated, code)
	s2, e2 := futureSlot(11, 0, 30)
	_, _, code = f.book(t, staff, f.patientID, nil, s2, e2)
	require.Equal(t, http.StatusCreated, code)

	var resp struct {
		Data struct {
			Appointments []struct {
				ProviderID *uuid.UUID `json:"providerId"`
			} `json:"appointments"`
		} `json:"data"`
	}

	rec := f.do(t, http.MethodGet, "/api/v1/appointments?providerId="+f.doctorID.String(), staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Data.Appointments, 1)

	rec = f.do(t, http.MethodGet, "/api/v1/appointments?status=scheduled", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Len(t, resp.Data.Appointments, 2)

	rec = f.do(t, http.MethodGet, "/api/v1/appointments?status=bogus", staff, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/appointments?limit=1", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Len(t, resp.Data.Appointments, 1)
}

func TestCancelAppointment(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.staffToken(t)
	start, end := futureSlot(9, 0, 30)

	id, _, code := f.book(t, staff, f.patientID, &f.doctorID, start, end)
	require.Equal(t, http.StatusCreated, code)

	rec := f.do(t, http.MethodPost, "/api/v1/appointments/"+id.String()+"/cancel", staff,
		map[string]any{"reason": "patient called in"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	a, err := f.appts.GetByID(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, "canceled", string(a.Status))
	require.NotNil(t, a.CanceledAt)
	assert.Equal(t, "patient called in", a.CancellationReason)
	require.NotNil(t, a.CanceledBy)

	t.Run("canceled is terminal", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/appointments/"+id.String()+"/cancel", staff, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("slot is released", func(t *testing.T) {
		_, _, code := f.book(t, staff, f.patientID, &f.doctorID, start, end)
		assert.Equal(t, http.StatusCreated, code)
	})

	t.Run("stranger cannot cancel", func(t *testing.T) {
		s, e := futureSlot(14, 0, 30)
		other, _, code := f.book(t, staff, f.patientID, &f.doctorID, s, e)
		require.Equal(t, http.StatusCreated, code)

		strangerID := uuid.New()
		token := f.tokenFor(t, domain.RolePatient, &strangerID, nil)
		rec := f.do(t, http.MethodPost, "/api/v1/appointments/"+other.String()+"/cancel", token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestUpdateAppointment_StatusCanceledTracksCancellation(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.staffToken(t)
	start, end := futureSlot(10, 0, 30)

	id, _, code := f.book(t, staff, f.patientID, &f.doctorID, start, end)
	require.Equal(t, http.StatusCreated, code)

	rec := f.do(t, http.MethodPatch, "/api/v1/appointments/"+id.String(), staff,
		map[string]any{"status": "canceled", "reason": "clinic closure"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	a, err := f.appts.GetByID(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, "canceled", string(a.Status))
	require.NotNil(t, a.CanceledAt)
	assert.Equal(t, "clinic closure", a.CancellationReason)
}

func TestUpdateAppointment_ProviderAssignment(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.staffToken(t)
	start, end := futureSlot(9, 0, 30)

	id, _, code := f.book(t, staff, f.patientID, &f.doctorID, start, end)
	require.Equal(t, http.StatusCreated, code)

	// explicit null unassigns
	rec := f.do(t, http.MethodPatch, "/api/v1/appointments/"+id.String(), staff,
		map[string]any{"providerId": nil})
	require.Equal(t, http.StatusNoContent, rec.Code)

	a, err := f.appts.GetByID(t.Context(), id)
	require.NoError(t, err)
	assert.Nil(t, a.ProviderID)

	// an absent field leaves the assignment alone
	notes := "follow-up booked"
	rec = f.do(t, http.MethodPatch, "/api/v1/appointments/"+id.String(), staff,
		map[string]any{"notes": notes})
	require.Equal(t, http.StatusNoContent, rec.Code)

	a, err = f.appts.GetByID(t.Context(), id)
	require.NoError(t, err)
	assert.Nil(t, a.ProviderID)
	assert.Equal(t, notes, a.Notes)

	// reassign
	rec = f.do(t, http.MethodPatch, "/api/v1/appointments/"+id.String(), staff,
		map[string]any{"providerId": f.doctorID})
	require.Equal(t, http.StatusNoContent, rec.Code)

	a, err = f.appts.GetByID(t.Context(), id)
	require.NoError(t, err)
	require.NotNil(t, a.ProviderID)
	assert.Equal(t, f.doctorID, *a.ProviderID)

	t.Run("malformed provider id", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/v1/appointments/"+id.String(), staff,
			map[string]any{"providerId": "not-a-uuid"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

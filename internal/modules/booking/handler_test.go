package booking

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clinicbook/internal/catalog"
	"clinicbook/internal/domain"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func setupRouter(t *testing.T, store *MockReservationStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	slots := mustCatalog("09:00", "09:30")
	resolver := NewResolver(store, ResolverConfig{Catalog: slots, Policy: testPolicy()})
	writer := NewWriter(store, WriterConfig{Catalog: slots, Window: testWindow(), Policy: testPolicy()})
	sessions := NewSessionRegistry(resolver, writer, SessionConfig{Window: testWindow(), ResetDelay: time.Hour}, time.Hour, nil)
	h := NewHandler(resolver, writer, sessions, ClinicInfo{
		ConsultationFee: 50,
		Currency:        "USD",
		HorizonDays:     30,
		WorkingDays:     catalog.DefaultWorkingDays().Names(),
		TimeSlots:       slots.Slots(),
		Timezone:        "UTC",
	}, nil)

	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHandler_GetClinic(t *testing.T) {
	r := setupRouter(t, new(MockReservationStore))

	w, env := doJSON(t, r, http.MethodGet, "/api/v1/clinic", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var info ClinicInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, 50.0, info.ConsultationFee)
	assert.Equal(t, []string{"09:00", "09:30"}, info.TimeSlots)
	assert.Contains(t, info.WorkingDays, "monday")
}

func TestHandler_GetSlots(t *testing.T) {
	store := new(MockReservationStore)
	store.On("ListActiveTimes", mock.Anything, "2025-06-10", 2).Return([]string{"09:00"}, nil)
	r := setupRouter(t, store)

	w, env := doJSON(t, r, http.MethodGet, "/api/v1/slots?date=2025-06-10", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var a Availability
	require.NoError(t, json.Unmarshal(env.Data, &a))
	assert.Equal(t, []domain.TimeSlot{{Time: "09:00", Available: false}, {Time: "09:30", Available: true}}, a.Slots)
	assert.False(t, a.Degraded)
}

func TestHandler_GetSlots_BadDate(t *testing.T) {
	r := setupRouter(t, new(MockReservationStore))

	w, env := doJSON(t, r, http.MethodGet, "/api/v1/slots", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/slots?date=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_CreateReservation(t *testing.T) {
	tests := []struct {
		name     string
		storeErr error
		body     CreateReservationInput
		wantCode int
		wantErr  string
	}{
		{name: "created", body: validInput(), wantCode: http.StatusCreated},
		{name: "conflict", storeErr: domain.ErrDuplicateSlot, body: validInput(), wantCode: http.StatusConflict, wantErr: "SLOT_ALREADY_BOOKED"},
		{name: "store down", storeErr: errors.New("dial tcp: i/o timeout"), body: validInput(), wantCode: http.StatusServiceUnavailable, wantErr: "TRY_AGAIN"},
		{
			name:     "invalid",
			body:     CreateReservationInput{PatientName: "A", Date: "2025-08-01", Time: "09:30"},
			wantCode: http.StatusBadRequest,
			wantErr:  "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockReservationStore)
			store.On("Insert", mock.Anything, mock.Anything).Return(tt.storeErr).Maybe()
			r := setupRouter(t, store)

			w, env := doJSON(t, r, http.MethodPost, "/api/v1/reservations", tt.body)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, env.Error.Code)
			if tt.wantErr == "" {
				assert.True(t, env.Success)
				assert.Contains(t, string(env.Data), `"id":"`)
				assert.NotContains(t, string(env.Data), "degraded")
			}
			if tt.wantErr == "VALIDATION_ERROR" {
				assert.Contains(t, env.Error.Details, "patient_email")
				assert.Contains(t, env.Error.Details, "appointment_date")
			}
		})
	}
}

func TestHandler_CreateReservation_MalformedBody(t *testing.T) {
	r := setupRouter(t, new(MockReservationStore))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestHandler_SessionFlow(t *testing.T) {
	store := new(MockReservationStore)
	store.On("ListActiveTimes", mock.Anything, "2025-06-12", 2).Return([]string{"09:00"}, nil)
	store.On("Insert", mock.Anything, mock.Anything).Return(nil)
	r := setupRouter(t, store)

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/booking/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Session Snapshot `json:"session"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	base := "/api/v1/booking/sessions/" + created.Session.ID

	w, _ = doJSON(t, r, http.MethodPut, base+"/date", SelectDateRequest{Date: "2025-06-12"})
	require.Equal(t, http.StatusOK, w.Code)

	w, env = doJSON(t, r, http.MethodPut, base+"/slot", SelectSlotRequest{Time: "09:00"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SLOT_UNAVAILABLE", env.Error.Code)

	w, _ = doJSON(t, r, http.MethodPut, base+"/slot", SelectSlotRequest{Time: "09:30"})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodPut, base+"/details", SetDetailsRequest{
		PatientName:  "Amal Haddad",
		PatientEmail: "amal@example.com",
		PatientPhone: "+971500000001",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, env = doJSON(t, r, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var submitted struct {
		Session Snapshot `json:"session"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &submitted))
	assert.Equal(t, StepSucceeded, submitted.Session.Step)
	require.NotNil(t, submitted.Session.Reservation)
	assert.NotEmpty(t, submitted.Session.Reservation.ID)

	w, _ = doJSON(t, r, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, env = doJSON(t, r, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", env.Error.Code)
}

package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clinicbook/internal/domain"
	"clinicbook/internal/middleware"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func setupRouter(t *testing.T, f *fixture, feed LiveFeed) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewHandler(f.svc, f.jwt, feed, nil, nil)
	r := gin.New()
	public := r.Group("/api/v1/admin")
	protected := r.Group("/api/v1/admin", middleware.JWTAuth(f.jwt), middleware.AdminOnly())
	h.RegisterRoutes(public, protected)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func adminToken(t *testing.T, f *fixture) string {
	t.Helper()
	token, err := f.jwt.GenerateToken(testEmail, middleware.RoleAdmin)
	require.NoError(t, err)
	return token
}

func TestHandler_Login(t *testing.T) {
	f := newFixture(t, passwordHash(t))
	r := setupRouter(t, f, nil)

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/admin/login", "", LoginRequest{Email: testEmail, Password: testPassword})
	assert.Equal(t, http.StatusOK, w.Code)
	var res LoginResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.NotEmpty(t, res.Token)

	w, env = doJSON(t, r, http.MethodPost, "/api/v1/admin/login", "", LoginRequest{Email: testEmail, Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)

	w, env = doJSON(t, r, http.MethodPost, "/api/v1/admin/login", "", gin.H{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestHandler_RequiresAdminToken(t *testing.T) {
	f := newFixture(t, "")
	r := setupRouter(t, f, nil)

	w, env := doJSON(t, r, http.MethodGet, "/api/v1/admin/reservations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_HEADER_MISSING", env.Error.Code)

	patient, err := f.jwt.GenerateToken("someone@example.com", "patient")
	require.NoError(t, err)
	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/admin/reservations", patient, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandler_ListReservations(t *testing.T) {
	f := newFixture(t, "")
	f.repo.On("List", mock.Anything, domain.ReservationFilter{Date: "2025-06-12", Limit: 20, Offset: 40}).
		Return([]domain.Reservation{{ID: "r1"}}, int64(41), nil)
	r := setupRouter(t, f, nil)

	w, env := doJSON(t, r, http.MethodGet, "/api/v1/admin/reservations?date=2025-06-12&limit=20&offset=40", adminToken(t, f), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var page ReservationPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, int64(41), page.Total)
	require.Len(t, page.Reservations, 1)

	w, env = doJSON(t, r, http.MethodGet, "/api/v1/admin/reservations?status=archived", adminToken(t, f), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestHandler_GetStats(t *testing.T) {
	f := newFixture(t, "")
	f.repo.On("Stats", mock.Anything, "2025-06-10").Return(&domain.ReservationStats{Total: 7, Pending: 2}, nil)
	r := setupRouter(t, f, nil)

	w, env := doJSON(t, r, http.MethodGet, "/api/v1/admin/reservations/stats", adminToken(t, f), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var stats domain.ReservationStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(7), stats.Total)
}

func TestHandler_GetReservation_NotFound(t *testing.T) {
	f := newFixture(t, "")
	f.repo.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrNotFound)
	r := setupRouter(t, f, nil)

	w, env := doJSON(t, r, http.MethodGet, "/api/v1/admin/reservations/missing", adminToken(t, f), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestHandler_UpdateStatus(t *testing.T) {
	tests := []struct {
		name     string
		repoErr  error
		wantCode int
		wantErr  string
	}{
		{name: "updated", wantCode: http.StatusOK},
		{name: "conflict", repoErr: domain.ErrDuplicateSlot, wantCode: http.StatusConflict, wantErr: "SLOT_CONFLICT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "")
			r1 := &domain.Reservation{ID: "r1", Date: "2025-06-12", Status: domain.StatusPending}
			if tt.repoErr != nil {
				f.repo.On("UpdateStatus", mock.Anything, "r1", domain.StatusPending).Return(nil, tt.repoErr)
			} else {
				f.repo.On("UpdateStatus", mock.Anything, "r1", domain.StatusPending).Return(r1, nil)
				f.cache.On("Invalidate", mock.Anything, "2025-06-12").Return(nil)
				f.events.On("ReservationUpdated", r1).Return()
			}
			r := setupRouter(t, f, nil)

			w, env := doJSON(t, r, http.MethodPatch, "/api/v1/admin/reservations/r1/status", adminToken(t, f), UpdateStatusRequest{Status: "pending"})
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, env.Error.Code)
		})
	}
}

func TestHandler_UpdateNotes(t *testing.T) {
	f := newFixture(t, "")
	r1 := &domain.Reservation{ID: "r1", Date: "2025-06-12", Notes: "late"}
	f.repo.On("UpdateNotes", mock.Anything, "r1", "late").Return(r1, nil)
	f.cache.On("Invalidate", mock.Anything, "2025-06-12").Return(nil)
	f.events.On("ReservationUpdated", r1).Return()
	r := setupRouter(t, f, nil)

	w, env := doJSON(t, r, http.MethodPatch, "/api/v1/admin/reservations/r1/notes", adminToken(t, f), UpdateNotesRequest{Notes: "late"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"notes":"late"`)
}

func TestHandler_LiveFeed(t *testing.T) {
	f := newFixture(t, "")
	feed := &chanFeed{served: make(chan struct{}, 1)}
	srv := httptest.NewServer(setupRouter(t, f, feed))
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/admin/ws"

	_, resp, err := websocket.DefaultDialer.Dial(base+"?token=bad", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base+"?token="+adminToken(t, f), nil)
	require.NoError(t, err)
	defer conn.Close()
	select {
	case <-feed.served:
	case <-time.After(time.Second):
		t.Fatal("feed was not served")
	}
}

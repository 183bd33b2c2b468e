package httpgin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mbiandou/parkflow/internal/service/admin"
	"github.com/mbiandou/parkflow/internal/service/auth"
	"github.com/mbiandou/parkflow/internal/service/entry"
	"github.com/mbiandou/parkflow/internal/service/query"
	"github.com/stretchr/testify/assert"
)

func runRespondErr(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	respondErr(c, err)
	return w
}

func TestRespondErrMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"parking full", entry.ErrParkingFull, http.StatusConflict},
		{"duplicate entry", entry.ErrDuplicateActiveEntry, http.StatusConflict},
		{"entry not found", entry.ErrEntryNotFound, http.StatusNotFound},
		{"no active entry", entry.ErrNoActiveEntry, http.StatusNotFound},
		{"already completed", entry.ErrAlreadyCompleted, http.StatusConflict},
		{"card inactive", entry.ErrCardInactive, http.StatusConflict},
		{"no tariff", entry.ErrTariffNotFound, http.StatusUnprocessableEntity},
		{"exit before entry", entry.ErrInvalidExitTime, http.StatusBadRequest},
		{"rate limited", entry.ErrRateLimited, http.StatusTooManyRequests},
		{"bad credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{"username taken", auth.ErrUsernameTaken, http.StatusConflict},
		{"capacity too small", admin.ErrCapacityTooSmall, http.StatusConflict},
		{"vehicle in use", admin.ErrVehicleInUse, http.StatusConflict},
		{"plate conflict", admin.ErrPlateConflict, http.StatusConflict},
		{"bad vehicle type", admin.ErrInvalidVehicleType, http.StatusBadRequest},
		{"query parking missing", query.ErrParkingNotFound, http.StatusNotFound},
		{"bad range", query.ErrInvalidRange, http.StatusBadRequest},
		{"unknown error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := runRespondErr(tt.err)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), `"success":false`)
		})
	}
}

func TestRespondErrRateLimitedSetsRetryAfter(t *testing.T) {
	w := runRespondErr(entry.ErrRateLimited)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestGateMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{entry.ErrCardNotFound, "unknown card"},
		{entry.ErrCardInactive, "card deactivated"},
		{entry.ErrParkingFull, "parking full"},
		{entry.ErrDuplicateActiveEntry, "vehicle already inside"},
		{entry.ErrNoActiveEntry, "no entry in progress"},
		{entry.ErrRateLimited, "too many scans, wait"},
		{assert.AnError, "internal error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, gateMessage(tt.err))
	}
}

func TestDenyAlwaysAnswers200(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/hardware/entry", nil)

	deny(c, "parking full")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"action":"DENY"`)
	assert.Contains(t, w.Body.String(), "parking full")
}

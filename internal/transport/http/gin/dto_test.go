package httpgin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindSetTariff(t *testing.T, body string) (SetTariffRequest, error) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var req SetTariffRequest
	err := c.ShouldBindJSON(&req)
	return req, err
}

func TestSetTariffRequestBinding(t *testing.T) {
	t.Run("free tariff is accepted", func(t *testing.T) {
		req, err := bindSetTariff(t, `{"vehicle_type":"MOTO","price_per_hour":0}`)
		require.NoError(t, err)
		require.NotNil(t, req.PricePerHour)
		assert.Equal(t, int64(0), *req.PricePerHour)
	})

	t.Run("missing price is rejected", func(t *testing.T) {
		_, err := bindSetTariff(t, `{"vehicle_type":"MOTO"}`)
		assert.Error(t, err)
	})

	t.Run("negative price is rejected", func(t *testing.T) {
		_, err := bindSetTariff(t, `{"vehicle_type":"MOTO","price_per_hour":-500}`)
		assert.Error(t, err)
	})
}

package httpgin

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mbiandou/parkflow/internal/domain"
	"github.com/mbiandou/parkflow/internal/notify"
	redisrepo "github.com/mbiandou/parkflow/internal/repository/redis"
	"github.com/mbiandou/parkflow/internal/service"
	"github.com/mbiandou/parkflow/internal/service/admin"
	"github.com/mbiandou/parkflow/internal/service/auth"
	"github.com/mbiandou/parkflow/internal/service/entry"
	"github.com/mbiandou/parkflow/internal/service/query"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RouterConfig carries the transport-level knobs.
type RouterConfig struct {
	HardwareAPIKey string
	BarrierPulse   time.Duration
}

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	hub *notify.Hub,
	logger *slog.Logger,
	cfg RouterConfig,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/auth/login", handleLogin(svcs))

	if hub != nil {
		r.GET("/ws", hub.Handler())
	}

	// Staff API, both roles
	staff := r.Group("/", AuthMiddleware(svcs.Auth))
	{
		staff.POST("/entries", handleCreateEntry(svcs, idem))
		staff.GET("/entries", handleListEntries(svcs))
		staff.GET("/entries/:id", handleGetEntry(svcs))
		staff.POST("/entries/:id/exit", handleExitEntry(svcs))
		staff.POST("/entries/:id/cancel", handleCancelEntry(svcs))

		staff.GET("/parkings", handleListParkings(svcs))
		staff.GET("/parkings/:id", handleGetParking(svcs))
		staff.GET("/parkings/:id/occupancy", handleOccupancy(svcs))
		staff.GET("/parkings/:id/tariffs", handleListTariffs(svcs))
		staff.GET("/parkings/:id/revenue", handleRevenue(svcs))

		staff.GET("/vehicles", handleListVehicles(svcs))
		staff.GET("/vehicles/:id", handleGetVehicle(svcs))
		staff.GET("/vehicles/:id/cards", handleListVehicleCards(svcs))

		staff.GET("/audit/ledger", handleAuditLedger(svcs))
	}

	// Admin API, SUPER_ADMIN only
	adm := r.Group("/admin", AuthMiddleware(svcs.Auth), RequireRole(domain.RoleSuperAdmin))
	{
		adm.POST("/parkings", handleCreateParking(svcs))
		adm.PUT("/parkings/:id", handleUpdateParking(svcs))
		adm.PUT("/parkings/:id/capacity", handleResizeParking(svcs))
		adm.DELETE("/parkings/:id", handleDeleteParking(svcs))
		adm.PUT("/parkings/:id/tariffs", handleSetTariff(svcs))

		adm.POST("/vehicles", handleCreateVehicle(svcs))
		adm.PUT("/vehicles/:id", handleUpdateVehicle(svcs))
		adm.DELETE("/vehicles/:id", handleDeleteVehicle(svcs))

		adm.POST("/cards", handleCreateCard(svcs))
		adm.PATCH("/cards/:id/active", handleSetCardActive(svcs))
		adm.DELETE("/cards/:id", handleDeleteCard(svcs))

		adm.DELETE("/tariffs/:id", handleDeleteTariff(svcs))

		adm.POST("/users", handleCreateUser(svcs))
		adm.GET("/users", handleListUsers(svcs))
		adm.DELETE("/users/:id", handleDeleteUser(svcs))
	}

	// Hardware lane, pre-shared key
	hw := r.Group("/hardware", APIKeyMiddleware(cfg.HardwareAPIKey))
	{
		hw.POST("/entry", handleGateEntry(svcs, cfg.BarrierPulse))
		hw.POST("/exit", handleGateExit(svcs, cfg.BarrierPulse))
	}

	return r
}

// --- Auth ---

// @Summary  Staff login
// @Param    req body  LoginRequest true "credentials"
// @Success  200 {object} Response{data=LoginResponse}
// @Failure  401 {object} ErrorResponse
// @Router   /auth/login [post]
func handleLogin(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		token, user, err := svcs.Auth.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "authenticated", LoginResponse{Token: token, User: user})
	}
}

// --- Entry lifecycle (staff) ---

// @Summary  Open an entry (idempotent)
// @Param    req body  CreateEntryRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} Response{data=domain.EntryDetails}
// @Failure  409 {object} ErrorResponse "parking full / duplicate entry"
// @Router   /entries [post]
func handleCreateEntry(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateEntryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemEntry(req.ParkingID, idemKey)

			if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
				return
			}

			locked, err := idem.AcquireLock(c.Request.Context(), idemStorageKey, 60*time.Second)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Message: "idempotency key in progress"})
				return
			}
		}

		details, err := svcs.Entry.Create(c.Request.Context(), req.ParkingID, req.VehicleID, req.CardID)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := Response{Success: true, Message: "entry created", Data: details}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  List entries
// @Param    parking_id query int    false "filter by parking"
// @Param    status     query string false "IN_PROGRESS|COMPLETED|CANCELLED"
// @Param    limit      query int    false "page size"
// @Param    offset     query int    false "offset"
// @Success  200 {object} Response{data=[]domain.EntryDetails}
// @Router   /entries [get]
func handleListEntries(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		parkingID := int64(parseIntDefault(c.Query("parking_id"), 0))
		status := domain.EntryStatus(c.Query("status"))
		limit := parseIntDefault(c.Query("limit"), 50)
		offset := parseIntDefault(c.Query("offset"), 0)

		entries, err := svcs.Query.ListEntries(c.Request.Context(), parkingID, status, limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "", entries)
	}
}

// @Summary  Get entry with details
// @Param    id  path  string  true  "Entry ID (uuid)"
// @Success  200 {object} Response{data=domain.EntryDetails}
// @Failure  404 {object} ErrorResponse
// @Router   /entries/{id} [get]
func handleGetEntry(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		entryID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		d, err := svcs.Query.GetEntry(c.Request.Context(), entryID)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "", d)
	}
}

// @Summary  Complete an entry and bill it
// @Param    id  path  string  true  "Entry ID (uuid)"
// @Param    req body  ExitEntryRequest true "payload"
// @Success  200 {object} Response{data=domain.EntryDetails}
// @Failure  409 {object} ErrorResponse "already completed"
// @Router   /entries/{id}/exit [post]
func handleExitEntry(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		entryID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		// body is optional: empty means pay cash, exit now
		var req ExitEntryRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, err.Error())
			return
		}

		var exitAt *time.Time
		if req.ExitTime != "" {
			t, err := parseRFC3339(req.ExitTime)
			if err != nil {
				badRequest(c, "invalid exit_time (RFC3339)")
				return
			}
			exitAt = &t
		}

		d, err := svcs.Entry.Exit(
			c.Request.Context(),
			entryID,
			exitAt,
			domain.PaymentMethod(req.PaymentMethod),
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "entry completed", d)
	}
}

// @Summary  Cancel an entry
// @Param    id  path  string  true  "Entry ID (uuid)"
// @Success  200 {object} Response{data=domain.Entry}
// @Failure  409 {object} ErrorResponse "already finalized"
// @Router   /entries/{id}/cancel [post]
func handleCancelEntry(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		entryID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		e, err := svcs.Entry.Cancel(c.Request.Context(), entryID)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "entry cancelled", e)
	}
}

// --- Dashboard / query (staff) ---

// @Summary  List parkings
// @Success  200 {object} Response{data=[]domain.Parking}
// @Router   /parkings [get]
func handleListParkings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		parkings, err := svcs.Query.ListParkings(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "", parkings)
	}
}

// @Summary  Get parking
// @Param    id  path  int  true  "Parking ID"
// @Success  200 {object} Response{data=domain.Parking}
// @Failure  404 {object} ErrorResponse
// @Router   /parkings/{id} [get]
func handleGetParking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		parkingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		p, err := svcs.Query.GetParking(c.Request.Context(), parkingID)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "", p)
	}
}

// @Summary  Occupancy snapshot
// @Param    id  path  int  true  "Parking ID"
// @Success  200 {object} domain.Occupancy
// @Router   /parkings/{id}/occupancy [get]
func handleOccupancy(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		parkingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		o, err := svcs.Query.Occupancy(c.Request.Context(), parkingID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 10s, matching the cache TTL
		writeJSONWithCache(c, http.StatusOK, o, "public, max-age=10", true)
	}
}

// @Summary  Price grid for a parking
// @Param    id  path  int  true  "Parking ID"
// @Success  200 {array} domain.Tariff
// @Router   /parkings/{id}/tariffs [get]
func handleListTariffs(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		parkingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		tariffs, err := svcs.Query.ListTariffs(c.Request.Context(), parkingID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, tariffs, "public, max-age=60", true)
	}
}

// @Summary  Daily revenue for a parking
// @Param    id   path  int     true  "Parking ID"
// @Param    from query string  true  "RFC3339"
// @Param    to   query string  true  "RFC3339"
// @Success  200 {object} Response{data=[]domain.RevenuePoint}
// @Router   /parkings/{id}/revenue [get]
func handleRevenue(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		parkingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		from, err := parseRFC3339(c.Query("from"))
		if err != nil {
			badRequest(c, "invalid from (RFC3339)")
			return
		}
		to, err := parseRFC3339(c.Query("to"))
		if err != nil {
			badRequest(c, "invalid to (RFC3339)")
			return
		}
		points, err := svcs.Query.RevenueByDay(c.Request.Context(), parkingID, from, to)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "", points)
	}
}

// @Summary  List vehicles
// @Param    limit  query int false "page size"
// @Param    offset query int false "offset"
// @Success  200 {object} Response{data=[]domain.Vehicle}
// @Router   /vehicles [get]
func handleListVehicles(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := parseIntDefault(c.Query("limit"), 50)
		offset := parseIntDefault(c.Query("offset"), 0)

		vehicles, err := svcs.Query.ListVehicles(c.Request.Context(), limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "", vehicles)
	}
}

// @Summary  Get vehicle
// @Param    id  path  int  true  "Vehicle ID"
// @Success  200 {object} Response{data=domain.Vehicle}
// @Router   /vehicles/{id} [get]
func handleGetVehicle(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicleID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		v, err := svcs.Query.GetVehicle(c.Request.Context(), vehicleID)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "", v)
	}
}

// @Summary  List a vehicle's RFID cards
// @Param    id  path  int  true  "Vehicle ID"
// @Success  200 {object} Response{data=[]domain.Card}
// @Router   /vehicles/{id}/cards [get]
func handleListVehicleCards(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicleID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		cards, err := svcs.Query.ListVehicleCards(c.Request.Context(), vehicleID)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "", cards)
	}
}

// @Summary  Ledger drift audit
// @Success  200 {object} Response{data=query.DriftReport}
// @Router   /audit/ledger [get]
func handleAuditLedger(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svcs.Query.AuditLedger(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "", report)
	}
}

// --- Admin ---

// @Summary  Create parking
// @Param    req body  CreateParkingRequest true "payload"
// @Success  201 {object} Response{data=domain.Parking}
// @Router   /admin/parkings [post]
func handleCreateParking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateParkingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		p, err := svcs.Admin.CreateParking(
			c.Request.Context(),
			req.Name,
			req.Location,
			req.Description,
			req.TotalCapacity,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusCreated, "parking created", p)
	}
}

// @Summary  Update parking info
// @Param    id  path  int  true  "Parking ID"
// @Param    req body  UpdateParkingRequest true "payload"
// @Success  200 {object} Response{data=domain.Parking}
// @Router   /admin/parkings/{id} [put]
func handleUpdateParking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		parkingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req UpdateParkingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		p, err := svcs.Admin.UpdateParkingInfo(
			c.Request.Context(),
			parkingID,
			req.Name,
			req.Location,
			req.Description,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "parking updated", p)
	}
}

// @Summary  Change parking capacity
// @Param    id  path  int  true  "Parking ID"
// @Param    req body  ResizeParkingRequest true "payload"
// @Success  200 {object} Response{data=domain.Parking}
// @Failure  409 {object} ErrorResponse "below current occupancy"
// @Router   /admin/parkings/{id}/capacity [put]
func handleResizeParking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		parkingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req ResizeParkingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		p, err := svcs.Admin.ResizeParking(c.Request.Context(), parkingID, req.TotalCapacity)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "capacity updated", p)
	}
}

// @Summary  Delete parking
// @Param    id  path  int  true  "Parking ID"
// @Success  200 {object} Response
// @Failure  409 {object} ErrorResponse "entries in progress"
// @Router   /admin/parkings/{id} [delete]
func handleDeleteParking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		parkingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Admin.DeleteParking(c.Request.Context(), parkingID); err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "parking deleted", nil)
	}
}

// @Summary  Set tariff for a vehicle type
// @Param    id  path  int  true  "Parking ID"
// @Param    req body  SetTariffRequest true "payload"
// @Success  200 {object} Response{data=domain.Tariff}
// @Router   /admin/parkings/{id}/tariffs [put]
func handleSetTariff(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		parkingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req SetTariffRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		t, err := svcs.Admin.SetTariff(
			c.Request.Context(),
			parkingID,
			domain.VehicleType(req.VehicleType),
			*req.PricePerHour,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "tariff set", t)
	}
}

// @Summary  Delete tariff
// @Param    id  path  int  true  "Tariff ID"
// @Success  200 {object} Response
// @Router   /admin/tariffs/{id} [delete]
func handleDeleteTariff(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		tariffID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Admin.DeleteTariff(c.Request.Context(), tariffID); err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "tariff deleted", nil)
	}
}

// @Summary  Register vehicle
// @Param    req body  VehicleRequest true "payload"
// @Success  201 {object} Response{data=domain.Vehicle}
// @Router   /admin/vehicles [post]
func handleCreateVehicle(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VehicleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		v, err := svcs.Admin.CreateVehicle(c.Request.Context(), &domain.Vehicle{
			PlateNumber: req.PlateNumber,
			VehicleType: domain.VehicleType(req.VehicleType),
			Brand:       req.Brand,
			Model:       req.Model,
			Color:       req.Color,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusCreated, "vehicle created", v)
	}
}

// @Summary  Update vehicle
// @Param    id  path  int  true  "Vehicle ID"
// @Param    req body  VehicleRequest true "payload"
// @Success  200 {object} Response{data=domain.Vehicle}
// @Router   /admin/vehicles/{id} [put]
func handleUpdateVehicle(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicleID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req VehicleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		v, err := svcs.Admin.UpdateVehicle(c.Request.Context(), &domain.Vehicle{
			ID:          vehicleID,
			PlateNumber: req.PlateNumber,
			VehicleType: domain.VehicleType(req.VehicleType),
			Brand:       req.Brand,
			Model:       req.Model,
			Color:       req.Color,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "vehicle updated", v)
	}
}

// @Summary  Delete vehicle
// @Param    id  path  int  true  "Vehicle ID"
// @Success  200 {object} Response
// @Failure  409 {object} ErrorResponse "entry in progress"
// @Router   /admin/vehicles/{id} [delete]
func handleDeleteVehicle(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicleID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Admin.DeleteVehicle(c.Request.Context(), vehicleID); err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "vehicle deleted", nil)
	}
}

// @Summary  Register RFID card
// @Param    req body  CreateCardRequest true "payload"
// @Success  201 {object} Response{data=domain.Card}
// @Router   /admin/cards [post]
func handleCreateCard(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateCardRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		card, err := svcs.Admin.CreateCard(c.Request.Context(), req.CardNumber, req.VehicleID)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusCreated, "card created", card)
	}
}

// @Summary  Activate or deactivate a card
// @Param    id  path  int  true  "Card ID"
// @Param    req body  SetCardActiveRequest true "payload"
// @Success  200 {object} Response{data=domain.Card}
// @Router   /admin/cards/{id}/active [patch]
func handleSetCardActive(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		cardID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req SetCardActiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		card, err := svcs.Admin.SetCardActive(c.Request.Context(), cardID, *req.IsActive)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "card updated", card)
	}
}

// @Summary  Delete card
// @Param    id  path  int  true  "Card ID"
// @Success  200 {object} Response
// @Router   /admin/cards/{id} [delete]
func handleDeleteCard(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		cardID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Admin.DeleteCard(c.Request.Context(), cardID); err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "card deleted", nil)
	}
}

// @Summary  Create staff account
// @Param    req body  CreateUserRequest true "payload"
// @Success  201 {object} Response{data=domain.User}
// @Router   /admin/users [post]
func handleCreateUser(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		u, err := svcs.Auth.CreateUser(
			c.Request.Context(),
			req.Username,
			req.Password,
			domain.Role(req.Role),
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusCreated, "user created", u)
	}
}

// @Summary  List staff accounts
// @Success  200 {object} Response{data=[]domain.User}
// @Router   /admin/users [get]
func handleListUsers(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := svcs.Auth.ListUsers(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "", users)
	}
}

// @Summary  Delete staff account
// @Param    id  path  int  true  "User ID"
// @Success  200 {object} Response
// @Router   /admin/users/{id} [delete]
func handleDeleteUser(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Auth.DeleteUser(c.Request.Context(), userID); err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, "user deleted", nil)
	}
}

// --- Hardware lane ---

// @Summary  Badge scan at an entry lane
// @Param    req body  GateRequest true "payload"
// @Success  200 {object} GateResponse
// @Router   /hardware/entry [post]
func handleGateEntry(svcs *service.Services, pulse time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			deny(c, "invalid request")
			return
		}

		at, ok := parseGateTimestamp(c, req.Timestamp)
		if !ok {
			return
		}

		details, err := svcs.Entry.CreateAuto(
			c.Request.Context(),
			req.CardNumber,
			req.ParkingID,
			at,
			gateRLKey(req),
		)
		if err != nil {
			deny(c, gateMessage(err))
			return
		}

		c.JSON(http.StatusOK, GateResponse{
			Action:     actionOpenBarrier,
			DurationMS: pulse.Milliseconds(),
			Message:    "entry recorded",
			Data:       details,
		})
	}
}

// @Summary  Badge scan at an exit lane
// @Param    req body  GateRequest true "payload"
// @Success  200 {object} GateResponse
// @Router   /hardware/exit [post]
func handleGateExit(svcs *service.Services, pulse time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			deny(c, "invalid request")
			return
		}

		at, ok := parseGateTimestamp(c, req.Timestamp)
		if !ok {
			return
		}

		details, err := svcs.Entry.ExitAuto(
			c.Request.Context(),
			req.CardNumber,
			req.ParkingID,
			at,
			gateRLKey(req),
		)
		if err != nil {
			deny(c, gateMessage(err))
			return
		}

		c.JSON(http.StatusOK, GateResponse{
			Action:     actionOpenBarrier,
			DurationMS: pulse.Milliseconds(),
			Message:    "exit recorded",
			Data:       details,
		})
	}
}

func parseGateTimestamp(c *gin.Context, s string) (*time.Time, bool) {
	if s == "" {
		return nil, true
	}
	t, err := parseRFC3339(s)
	if err != nil {
		deny(c, "invalid timestamp (RFC3339)")
		return nil, false
	}
	return &t, true
}

func gateRLKey(req GateRequest) string {
	if req.SensorID != "" {
		return "sensor:" + req.SensorID
	}
	return "card:" + req.CardNumber
}

// gateMessage maps lifecycle errors to barrier display text. The action is
// always DENY; only the reason varies.
func gateMessage(err error) string {
	switch {
	case errors.Is(err, entry.ErrCardNotFound):
		return "unknown card"
	case errors.Is(err, entry.ErrCardInactive):
		return "card deactivated"
	case errors.Is(err, entry.ErrParkingNotFound):
		return "unknown parking"
	case errors.Is(err, entry.ErrParkingFull):
		return "parking full"
	case errors.Is(err, entry.ErrDuplicateActiveEntry):
		return "vehicle already inside"
	case errors.Is(err, entry.ErrNoActiveEntry):
		return "no entry in progress"
	case errors.Is(err, entry.ErrTariffNotFound):
		return "no tariff configured, see staff"
	case errors.Is(err, entry.ErrRateLimited):
		return "too many scans, wait"
	}
	return "internal error"
}

func deny(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, GateResponse{Action: actionDeny, Message: msg})
}

// --- Helpers ---

func respondOK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Message: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	// auth service
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "invalid username or password"})
		return
	case errors.Is(err, auth.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "invalid or expired token"})
		return
	case errors.Is(err, auth.ErrUsernameTaken):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "username already taken"})
		return
	case errors.Is(err, auth.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "user not found"})
		return
	case errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, auth.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	// entry service
	case errors.Is(err, entry.ErrParkingNotFound),
		errors.Is(err, entry.ErrVehicleNotFound),
		errors.Is(err, entry.ErrCardNotFound),
		errors.Is(err, entry.ErrEntryNotFound),
		errors.Is(err, entry.ErrNoActiveEntry):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
		return
	case errors.Is(err, entry.ErrParkingFull),
		errors.Is(err, entry.ErrDuplicateActiveEntry),
		errors.Is(err, entry.ErrAlreadyCompleted),
		errors.Is(err, entry.ErrAlreadyFinalized),
		errors.Is(err, entry.ErrCardInactive),
		errors.Is(err, entry.ErrCardVehicleMismatch):
		c.JSON(http.StatusConflict, ErrorResponse{Message: err.Error()})
		return
	case errors.Is(err, entry.ErrTariffNotFound):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Message: "no tariff configured for this vehicle type"})
		return
	case errors.Is(err, entry.ErrInvalidExitTime):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "exit time is before entry time"})
		return
	case errors.Is(err, entry.ErrRateLimited):
		c.Header("Retry-After", "60")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Message: "rate limited"})
		return
	// admin service
	case errors.Is(err, admin.ErrParkingNotFound),
		errors.Is(err, admin.ErrVehicleNotFound),
		errors.Is(err, admin.ErrCardNotFound),
		errors.Is(err, admin.ErrTariffNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
		return
	case errors.Is(err, admin.ErrParkingHasEntries),
		errors.Is(err, admin.ErrCapacityTooSmall),
		errors.Is(err, admin.ErrVehicleInUse),
		errors.Is(err, admin.ErrPlateConflict),
		errors.Is(err, admin.ErrCardConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Message: err.Error()})
		return
	case errors.Is(err, admin.ErrInvalidCapacity),
		errors.Is(err, admin.ErrInvalidVehicleType),
		errors.Is(err, admin.ErrInvalidPrice):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	// query service
	case errors.Is(err, query.ErrParkingNotFound),
		errors.Is(err, query.ErrVehicleNotFound),
		errors.Is(err, query.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
		return
	case errors.Is(err, query.ErrInvalidStatus),
		errors.Is(err, query.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
}

package httpgin

import (
	"time"

	"github.com/mbiandou/parkflow/internal/domain"
)

// Response is the staff API envelope.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type CreateEntryRequest struct {
	ParkingID int64  `json:"parking_id" binding:"required"`
	VehicleID int64  `json:"vehicle_id" binding:"required"`
	CardID    *int64 `json:"card_id"`
}

type ExitEntryRequest struct {
	PaymentMethod string `json:"payment_method"`
	ExitTime      string `json:"exit_time"`
}

// GateRequest is what an RFID lane controller posts on a badge scan.
type GateRequest struct {
	CardNumber string `json:"card_number" binding:"required"`
	ParkingID  int64  `json:"parking_id" binding:"required"`
	SensorID   string `json:"sensor_id"`
	Timestamp  string `json:"timestamp"`
}

// GateResponse tells the barrier what to do. Every failure is a DENY; the
// controller never sees HTTP error codes.
type GateResponse struct {
	Action     string `json:"action"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Message    string `json:"message,omitempty"`
	Data       any    `json:"data,omitempty"`
}

const (
	actionOpenBarrier = "OPEN_BARRIER"
	actionDeny        = "DENY"
)

type CreateParkingRequest struct {
	Name          string `json:"name" binding:"required"`
	Location      string `json:"location"`
	Description   string `json:"description"`
	TotalCapacity int    `json:"total_capacity" binding:"required,gt=0"`
}

type UpdateParkingRequest struct {
	Name        string `json:"name" binding:"required"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

type ResizeParkingRequest struct {
	TotalCapacity int `json:"total_capacity" binding:"required,gt=0"`
}

type VehicleRequest struct {
	PlateNumber string `json:"plate_number" binding:"required"`
	VehicleType string `json:"vehicle_type" binding:"required"`
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	Color       string `json:"color"`
}

type CreateCardRequest struct {
	CardNumber string `json:"card_number" binding:"required"`
	VehicleID  int64  `json:"vehicle_id" binding:"required"`
}

type SetCardActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// PricePerHour is a pointer so a free tariff (price 0) passes the required
// check while an omitted price is still rejected.
type SetTariffRequest struct {
	VehicleType  string `json:"vehicle_type" binding:"required"`
	PricePerHour *int64 `json:"price_per_hour" binding:"required,gte=0"`
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

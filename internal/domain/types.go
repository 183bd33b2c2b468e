package domain

import (
	"time"

	"github.com/google/uuid"
	"gopkg.in/guregu/null.v4"
)

type EntryStatus string

const (
	EntryInProgress EntryStatus = "IN_PROGRESS"
	EntryCompleted  EntryStatus = "COMPLETED"
	EntryCancelled  EntryStatus = "CANCELLED"
)

type VehicleType string

const (
	VehicleMoto    VehicleType = "MOTO"
	VehicleVoiture VehicleType = "VOITURE"
	VehicleCamion  VehicleType = "CAMION"
	VehicleAutre   VehicleType = "AUTRE"
)

// ValidVehicleType reports whether t is one of the four supported types.
func ValidVehicleType(t VehicleType) bool {
	switch t {
	case VehicleMoto, VehicleVoiture, VehicleCamion, VehicleAutre:
		return true
	}
	return false
}

type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleGerant     Role = "GERANT"
)

type PaymentMethod string

const (
	PaymentEspeces     PaymentMethod = "ESPECES"
	PaymentCarte       PaymentMethod = "CARTE"
	PaymentMobileMoney PaymentMethod = "MOBILE_MONEY"
	PaymentAutomatique PaymentMethod = "AUTOMATIQUE"
)

type Parking struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Location        string    `json:"location"`
	Description     string    `json:"description"`
	TotalCapacity   int       `json:"total_capacity"`
	AvailableSpaces int       `json:"available_spaces"`
	CreatedAt       time.Time `json:"created_at"`
}

// Tariff is the hourly price for one vehicle type at one parking.
// (parking_id, vehicle_type) is unique. Prices are in whole francs per hour.
type Tariff struct {
	ID           int64       `json:"id"`
	ParkingID    int64       `json:"parking_id"`
	VehicleType  VehicleType `json:"vehicle_type"`
	PricePerHour int64       `json:"price_per_hour"`
}

type Vehicle struct {
	ID          int64       `json:"id"`
	PlateNumber string      `json:"plate_number"`
	VehicleType VehicleType `json:"vehicle_type"`
	Brand       string      `json:"brand"`
	Model       string      `json:"model"`
	Color       string      `json:"color"`
	CreatedAt   time.Time   `json:"created_at"`
}

type Card struct {
	ID         int64     `json:"id"`
	CardNumber string    `json:"card_number"`
	VehicleID  int64     `json:"vehicle_id"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// Entry is one parking session, from arrival to departure or cancellation.
// Duration is in minutes and, together with Amount and PaymentMethod, stays
// null until the entry leaves IN_PROGRESS.
type Entry struct {
	ID            uuid.UUID   `json:"id"`
	ParkingID     int64       `json:"parking_id"`
	VehicleID     int64       `json:"vehicle_id"`
	CardID        null.Int    `json:"card_id"`
	EntryTime     time.Time   `json:"entry_time"`
	ExitTime      null.Time   `json:"exit_time"`
	Duration      null.Int    `json:"duration"`
	Amount        null.Int    `json:"amount"`
	Status        EntryStatus `json:"status"`
	PaymentMethod null.String `json:"payment_method"`
	CreatedAt     time.Time   `json:"created_at"`
}

// EntryDetails is an Entry with its collaborators joined, the shape both the
// staff API and the billing export consume.
type EntryDetails struct {
	Entry
	Parking *Parking `json:"parking,omitempty"`
	Vehicle *Vehicle `json:"vehicle,omitempty"`
	Card    *Card    `json:"card,omitempty"`
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Occupancy is the dashboard snapshot for one parking. Derived is counted from
// IN_PROGRESS entries and must equal TotalCapacity-AvailableSpaces; both are
// reported so ledger drift is visible instead of silently corrected.
type Occupancy struct {
	ParkingID       int64 `json:"parking_id"`
	TotalCapacity   int   `json:"total_capacity"`
	AvailableSpaces int   `json:"available_spaces"`
	Occupied        int   `json:"occupied"`
	Derived         int   `json:"derived_occupied"`
}

// RevenuePoint is one day of completed-entry revenue for a parking.
type RevenuePoint struct {
	Day     time.Time `json:"day"`
	Entries int64     `json:"entries"`
	Amount  int64     `json:"amount"`
}

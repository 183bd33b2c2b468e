package admin

import "errors"

var (
	ErrParkingNotFound    = errors.New("parking not found")
	ErrParkingHasEntries  = errors.New("parking still has entries in progress")
	ErrCapacityTooSmall   = errors.New("new capacity is below current occupancy")
	ErrInvalidCapacity    = errors.New("capacity must be positive")
	ErrVehicleNotFound    = errors.New("vehicle not found")
	ErrPlateConflict      = errors.New("plate number already registered")
	ErrVehicleInUse       = errors.New("vehicle has an entry in progress")
	ErrInvalidVehicleType = errors.New("unknown vehicle type")
	ErrCardNotFound       = errors.New("card not found")
	ErrCardConflict       = errors.New("card number already registered")
	ErrTariffNotFound     = errors.New("tariff not found")
	ErrInvalidPrice       = errors.New("price per hour must not be negative")
)

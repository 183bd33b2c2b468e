package repository

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrParkingFull          = errors.New("no available spaces")
	ErrDuplicateActiveEntry = errors.New("vehicle already has an active entry")
	ErrEntryNotActive       = errors.New("entry is not in progress")
	ErrCapacityDrift        = errors.New("available spaces would exceed total capacity")
	ErrCapacityTooSmall     = errors.New("total capacity below current occupancy")
	ErrVehicleInUse         = errors.New("vehicle has an active entry")
)

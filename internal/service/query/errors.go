package query

import "errors"

var (
	ErrParkingNotFound = errors.New("parking not found")
	ErrVehicleNotFound = errors.New("vehicle not found")
	ErrEntryNotFound   = errors.New("entry not found")
	ErrInvalidStatus   = errors.New("unknown entry status")
	ErrInvalidRange    = errors.New("date range end is before start")
)

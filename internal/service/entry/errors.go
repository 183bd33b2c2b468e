package entry

import "errors"

var (
	ErrParkingNotFound      = errors.New("parking not found")
	ErrVehicleNotFound      = errors.New("vehicle not found")
	ErrCardNotFound         = errors.New("card not found")
	ErrEntryNotFound        = errors.New("entry not found")
	ErrParkingFull          = errors.New("parking is full")
	ErrDuplicateActiveEntry = errors.New("vehicle already has an entry in progress")
	ErrCardInactive         = errors.New("card is deactivated")
	ErrCardVehicleMismatch  = errors.New("card does not belong to this vehicle")
	ErrTariffNotFound       = errors.New("no tariff configured for this vehicle type")
	ErrAlreadyCompleted     = errors.New("entry is already completed")
	ErrAlreadyFinalized     = errors.New("entry is already finalized")
	ErrNoActiveEntry        = errors.New("no entry in progress for this card at this parking")
	ErrInvalidExitTime      = errors.New("exit time is before entry time")
	ErrRateLimited          = errors.New("rate limited")
)

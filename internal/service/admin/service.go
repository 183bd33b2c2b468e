// Package admin manages the lifecycle's collaborator stores: parkings,
// vehicles, RFID cards and tariffs. It owns the administrative capacity edit,
// the one ledger mutation that does not go through the entry lifecycle.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/mbiandou/parkflow/internal/domain"
	"github.com/mbiandou/parkflow/internal/repository"
	postgresrepo "github.com/mbiandou/parkflow/internal/repository/postgres"
	redisrepo "github.com/mbiandou/parkflow/internal/repository/redis"
)

type Service struct {
	store  *postgresrepo.Store
	cache  *redisrepo.Cache
	pubsub *redisrepo.EventsPubSub
}

func New(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.EventsPubSub,
) *Service {
	return &Service{store: store, cache: cache, pubsub: pubsub}
}

// --- Parkings ---

func (s *Service) CreateParking(
	ctx context.Context,
	name, location, description string,
	totalCapacity int,
) (*domain.Parking, error) {
	const op = "service.admin.CreateParking"

	if totalCapacity <= 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidCapacity)
	}

	p, err := s.store.Parkings().Create(ctx, name, location, description, totalCapacity)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return p, nil
}

func (s *Service) UpdateParkingInfo(
	ctx context.Context,
	id int64,
	name, location, description string,
) (*domain.Parking, error) {
	const op = "service.admin.UpdateParkingInfo"

	p, err := s.store.Parkings().UpdateInfo(ctx, id, name, location, description)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrParkingNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return p, nil
}

// ResizeParking changes total capacity. Available spaces are recomputed from
// the current occupancy; shrinking below the number of parked vehicles is
// refused.
//
// Returns:
//   - error: ErrCapacityTooSmall, ErrInvalidCapacity, ErrParkingNotFound.
func (s *Service) ResizeParking(ctx context.Context, id int64, newTotal int) (*domain.Parking, error) {
	const op = "service.admin.ResizeParking"

	if newTotal <= 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidCapacity)
	}

	p, err := s.store.Parkings().Resize(ctx, id, newTotal)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%s:%w", op, ErrParkingNotFound)
		case errors.Is(err, repository.ErrCapacityTooSmall):
			return nil, fmt.Errorf("%s:%w", op, ErrCapacityTooSmall)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	_ = s.cache.InvalidateParking(ctx, id)
	_ = s.pubsub.PublishParkingUpdate(ctx, id, p.AvailableSpaces)

	return p, nil
}

func (s *Service) DeleteParking(ctx context.Context, id int64) error {
	const op = "service.admin.DeleteParking"

	if err := s.store.Parkings().Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("%s:%w", op, ErrParkingNotFound)
		case errors.Is(err, repository.ErrConflict):
			return fmt.Errorf("%s:%w", op, ErrParkingHasEntries)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	_ = s.cache.InvalidateParking(ctx, id)

	return nil
}

// --- Vehicles ---

func (s *Service) CreateVehicle(ctx context.Context, v *domain.Vehicle) (*domain.Vehicle, error) {
	const op = "service.admin.CreateVehicle"

	if !domain.ValidVehicleType(v.VehicleType) {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidVehicleType)
	}

	created, err := s.store.Vehicles().Create(ctx, v)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%s:%w", op, ErrPlateConflict)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return created, nil
}

func (s *Service) UpdateVehicle(ctx context.Context, v *domain.Vehicle) (*domain.Vehicle, error) {
	const op = "service.admin.UpdateVehicle"

	if !domain.ValidVehicleType(v.VehicleType) {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidVehicleType)
	}

	updated, err := s.store.Vehicles().Update(ctx, v)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%s:%w", op, ErrVehicleNotFound)
		case errors.Is(err, repository.ErrConflict):
			return nil, fmt.Errorf("%s:%w", op, ErrPlateConflict)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return updated, nil
}

// DeleteVehicle refuses while the vehicle is parked somewhere.
func (s *Service) DeleteVehicle(ctx context.Context, id int64) error {
	const op = "service.admin.DeleteVehicle"

	if err := s.store.Vehicles().Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("%s:%w", op, ErrVehicleNotFound)
		case errors.Is(err, repository.ErrVehicleInUse):
			return fmt.Errorf("%s:%w", op, ErrVehicleInUse)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// --- Cards ---

func (s *Service) CreateCard(ctx context.Context, cardNumber string, vehicleID int64) (*domain.Card, error) {
	const op = "service.admin.CreateCard"

	if _, err := s.store.Vehicles().Get(ctx, vehicleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrVehicleNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	c, err := s.store.Cards().Create(ctx, cardNumber, vehicleID)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%s:%w", op, ErrCardConflict)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return c, nil
}

func (s *Service) SetCardActive(ctx context.Context, id int64, active bool) (*domain.Card, error) {
	const op = "service.admin.SetCardActive"

	c, err := s.store.Cards().SetActive(ctx, id, active)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrCardNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return c, nil
}

func (s *Service) DeleteCard(ctx context.Context, id int64) error {
	const op = "service.admin.DeleteCard"

	if err := s.store.Cards().Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrCardNotFound)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// --- Tariffs ---

// SetTariff creates or updates the hourly price for (parking, vehicle type).
func (s *Service) SetTariff(
	ctx context.Context,
	parkingID int64,
	vehicleType domain.VehicleType,
	pricePerHour int64,
) (*domain.Tariff, error) {
	const op = "service.admin.SetTariff"

	if !domain.ValidVehicleType(vehicleType) {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidVehicleType)
	}

	if pricePerHour < 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidPrice)
	}

	if _, err := s.store.Parkings().Get(ctx, parkingID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrParkingNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	t, err := s.store.Tariffs().Upsert(ctx, parkingID, vehicleType, pricePerHour)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	_ = s.cache.InvalidateParking(ctx, parkingID)

	return t, nil
}

func (s *Service) DeleteTariff(ctx context.Context, id int64) error {
	const op = "service.admin.DeleteTariff"

	if err := s.store.Tariffs().Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrTariffNotFound)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

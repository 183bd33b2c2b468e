// Package query serves the read side: dashboard occupancy, entry history,
// revenue aggregates and the ledger audit. It never writes to Postgres and
// leans on the Redis cache for the hot dashboard keys.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mbiandou/parkflow/internal/domain"
	"github.com/mbiandou/parkflow/internal/repository"
	postgresrepo "github.com/mbiandou/parkflow/internal/repository/postgres"
	redisrepo "github.com/mbiandou/parkflow/internal/repository/redis"
)

const (
	occupancyTTL = 10 * time.Second
	tariffsTTL   = 5 * time.Minute
	revenueTTL   = time.Minute
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// DriftReport flags parkings whose stored available_spaces disagrees with the
// IN_PROGRESS entry count.
type DriftReport struct {
	CheckedAt time.Time          `json:"checked_at"`
	Drifted   []domain.Occupancy `json:"drifted"`
}

type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache) *Service {
	return &Service{store: store, cache: cache}
}

func (s *Service) GetParking(ctx context.Context, id int64) (*domain.Parking, error) {
	const op = "service.query.GetParking"

	p, err := s.store.Parkings().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrParkingNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return p, nil
}

func (s *Service) ListParkings(ctx context.Context) ([]domain.Parking, error) {
	const op = "service.query.ListParkings"

	parkings, err := s.store.Parkings().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return parkings, nil
}

// Occupancy returns the dashboard snapshot for one parking, cached briefly and
// invalidated on every lifecycle commit.
func (s *Service) Occupancy(ctx context.Context, parkingID int64) (*domain.Occupancy, error) {
	const op = "service.query.Occupancy"

	o, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyParkingOccupancy(parkingID),
		occupancyTTL,
		func(ctx context.Context) (*domain.Occupancy, error) {
			return s.store.Stats().Occupancy(ctx, parkingID)
		},
	)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrParkingNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return o, nil
}

// AuditLedger compares the counter against the derived count for every
// parking. It reads Postgres directly; a stale cache must not mask drift.
func (s *Service) AuditLedger(ctx context.Context) (*DriftReport, error) {
	const op = "service.query.AuditLedger"

	parkings, err := s.store.Parkings().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	report := &DriftReport{CheckedAt: time.Now(), Drifted: []domain.Occupancy{}}
	for _, p := range parkings {
		o, err := s.store.Stats().Occupancy(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if o.Occupied != o.Derived {
			report.Drifted = append(report.Drifted, *o)
		}
	}

	return report, nil
}

func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (*domain.EntryDetails, error) {
	const op = "service.query.GetEntry"

	d, err := s.store.Entries().GetDetails(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEntryNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return d, nil
}

// ListEntries pages the history, newest first. parkingID 0 and an empty status
// mean no filter.
func (s *Service) ListEntries(
	ctx context.Context,
	parkingID int64,
	status domain.EntryStatus,
	limit, offset int,
) ([]domain.EntryDetails, error) {
	const op = "service.query.ListEntries"

	if status != "" {
		switch status {
		case domain.EntryInProgress, domain.EntryCompleted, domain.EntryCancelled:
		default:
			return nil, fmt.Errorf("%s:%w", op, ErrInvalidStatus)
		}
	}

	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	entries, err := s.store.Entries().List(ctx, parkingID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return entries, nil
}

// ListTariffs returns the price grid for one parking, cached.
func (s *Service) ListTariffs(ctx context.Context, parkingID int64) ([]domain.Tariff, error) {
	const op = "service.query.ListTariffs"

	if _, err := s.store.Parkings().Get(ctx, parkingID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrParkingNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	tariffs, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyParkingTariffs(parkingID),
		tariffsTTL,
		func(ctx context.Context) ([]domain.Tariff, error) {
			return s.store.Tariffs().ListByParking(ctx, parkingID)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return tariffs, nil
}

// RevenueByDay aggregates completed-entry revenue per day over [from, to).
func (s *Service) RevenueByDay(
	ctx context.Context,
	parkingID int64,
	from, to time.Time,
) ([]domain.RevenuePoint, error) {
	const op = "service.query.RevenueByDay"

	if !to.After(from) {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidRange)
	}

	if _, err := s.store.Parkings().Get(ctx, parkingID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrParkingNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	cacheKey := redisrepo.KeyParkingRevenue(
		parkingID,
		from.UTC().Format("2006-01-02")+"_"+to.UTC().Format("2006-01-02"),
	)

	points, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		cacheKey,
		revenueTTL,
		func(ctx context.Context) ([]domain.RevenuePoint, error) {
			return s.store.Stats().RevenueByDay(ctx, parkingID, from, to)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return points, nil
}

func (s *Service) GetVehicle(ctx context.Context, id int64) (*domain.Vehicle, error) {
	const op = "service.query.GetVehicle"

	v, err := s.store.Vehicles().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrVehicleNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return v, nil
}

func (s *Service) ListVehicles(ctx context.Context, limit, offset int) ([]domain.Vehicle, error) {
	const op = "service.query.ListVehicles"

	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	vehicles, err := s.store.Vehicles().List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return vehicles, nil
}

func (s *Service) ListVehicleCards(ctx context.Context, vehicleID int64) ([]domain.Card, error) {
	const op = "service.query.ListVehicleCards"

	if _, err := s.store.Vehicles().Get(ctx, vehicleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrVehicleNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	cards, err := s.store.Cards().ListByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return cards, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

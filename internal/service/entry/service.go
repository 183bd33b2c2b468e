package entry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mbiandou/parkflow/internal/billing"
	"github.com/mbiandou/parkflow/internal/domain"
	"github.com/mbiandou/parkflow/internal/repository"
	postgresrepo "github.com/mbiandou/parkflow/internal/repository/postgres"
	redisrepo "github.com/mbiandou/parkflow/internal/repository/redis"
	"github.com/mbiandou/parkflow/internal/uow"
	"gopkg.in/guregu/null.v4"
)

// Service drives the entry lifecycle: IN_PROGRESS -> COMPLETED | CANCELLED.
// Every transition that touches the capacity ledger runs inside one
// transaction; notifications and cache invalidation run only after commit.
type Service struct {
	store   Store
	cache   Cache
	pubsub  Publisher
	limiter Limiter
	uow     TxRunner
}

func New(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.EventsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
) *Service {
	s := &Service{
		store:  pgStore{s: store},
		cache:  cache,
		pubsub: pubsub,
		uow:    uow.NewUoW(store),
	}
	// Keep the nil check in allow meaningful; a typed nil pointer in the
	// interface would not compare equal to nil.
	if limiter != nil {
		s.limiter = limiter
	}
	return s
}

// Create opens an entry from the staff console.
//
// Validation order: parking, capacity, vehicle, duplicate entry, card. All
// checks run before any write; the conditional space decrement and the
// partial unique index re-enforce the capacity and single-active-entry
// invariants against concurrent requests that passed the same checks.
//
// Returns:
//   - error: ErrParkingNotFound, ErrVehicleNotFound, ErrCardNotFound,
//     ErrParkingFull, ErrDuplicateActiveEntry, ErrCardInactive,
//     ErrCardVehicleMismatch.
func (s *Service) Create(
	ctx context.Context,
	parkingID, vehicleID int64,
	cardID *int64,
) (*domain.EntryDetails, error) {
	const op = "service.entry.Create"

	var details *domain.EntryDetails

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		parking, err := s.store.Parkings(tx).Get(ctx, parkingID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrParkingNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if parking.AvailableSpaces <= 0 {
			return fmt.Errorf("%s:%w", op, ErrParkingFull)
		}

		if _, err := s.store.Vehicles(tx).Get(ctx, vehicleID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrVehicleNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if _, err := s.store.Entries(tx).FindActiveByVehicle(ctx, vehicleID); err == nil {
			return fmt.Errorf("%s:%w", op, ErrDuplicateActiveEntry)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, err)
		}

		var entryCard null.Int
		if cardID != nil {
			card, err := s.store.Cards(tx).Get(ctx, *cardID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("%s:%w", op, ErrCardNotFound)
				}
				return fmt.Errorf("%s:%w", op, err)
			}
			if !card.IsActive {
				return fmt.Errorf("%s:%w", op, ErrCardInactive)
			}
			if card.VehicleID != vehicleID {
				return fmt.Errorf("%s:%w", op, ErrCardVehicleMismatch)
			}
			entryCard = null.IntFrom(card.ID)
		}

		d, remaining, err := s.openEntry(ctx, tx, parkingID, vehicleID, entryCard, time.Now())
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		details = d
		s.afterEntryCreated(after, d, parkingID, remaining)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return details, nil
}

// CreateAuto opens an entry from the hardware lane, keyed by the scanned
// card number. rlKey (usually the sensor ID) is throttled when a limiter is
// configured.
//
// Returns:
//   - error: ErrCardNotFound, ErrCardInactive, ErrParkingNotFound,
//     ErrParkingFull, ErrDuplicateActiveEntry, ErrRateLimited.
func (s *Service) CreateAuto(
	ctx context.Context,
	cardNumber string,
	parkingID int64,
	at *time.Time,
	rlKey string,
) (*domain.EntryDetails, error) {
	const op = "service.entry.CreateAuto"

	if err := s.allow(ctx, rlKey); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	entryTime := time.Now()
	if at != nil {
		entryTime = *at
	}

	var details *domain.EntryDetails

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		card, err := s.store.Cards(tx).GetByNumber(ctx, cardNumber)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrCardNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if !card.IsActive {
			return fmt.Errorf("%s:%w", op, ErrCardInactive)
		}

		parking, err := s.store.Parkings(tx).Get(ctx, parkingID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrParkingNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if parking.AvailableSpaces <= 0 {
			return fmt.Errorf("%s:%w", op, ErrParkingFull)
		}

		if _, err := s.store.Entries(tx).FindActiveByVehicle(ctx, card.VehicleID); err == nil {
			return fmt.Errorf("%s:%w", op, ErrDuplicateActiveEntry)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, err)
		}

		d, remaining, err := s.openEntry(ctx, tx, parkingID, card.VehicleID, null.IntFrom(card.ID), entryTime)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		details = d
		s.afterEntryCreated(after, d, parkingID, remaining)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return details, nil
}

// Exit completes an entry and bills it. Billing is blocked entirely when no
// tariff is configured for the vehicle type; money is never computed with a
// guessed rate.
//
// Returns:
//   - error: ErrEntryNotFound, ErrAlreadyCompleted, ErrTariffNotFound,
//     ErrInvalidExitTime.
func (s *Service) Exit(
	ctx context.Context,
	entryID uuid.UUID,
	exitAt *time.Time,
	paymentMethod domain.PaymentMethod,
) (*domain.EntryDetails, error) {
	const op = "service.entry.Exit"

	if paymentMethod == "" {
		paymentMethod = domain.PaymentEspeces
	}

	var details *domain.EntryDetails

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		current, err := s.store.Entries(tx).GetDetails(ctx, entryID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrEntryNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		d, err := s.closeEntry(ctx, tx, after, current, exitAt, paymentMethod)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		details = d

		return nil
	})
	if err != nil {
		return nil, err
	}

	return details, nil
}

// ExitAuto completes the active entry for a scanned card at one parking.
// Payment method is fixed to AUTOMATIQUE.
//
// Returns:
//   - error: ErrCardNotFound, ErrCardInactive, ErrNoActiveEntry,
//     ErrTariffNotFound, ErrRateLimited.
func (s *Service) ExitAuto(
	ctx context.Context,
	cardNumber string,
	parkingID int64,
	at *time.Time,
	rlKey string,
) (*domain.EntryDetails, error) {
	const op = "service.entry.ExitAuto"

	if err := s.allow(ctx, rlKey); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var details *domain.EntryDetails

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		card, err := s.store.Cards(tx).GetByNumber(ctx, cardNumber)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrCardNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if !card.IsActive {
			return fmt.Errorf("%s:%w", op, ErrCardInactive)
		}

		active, err := s.store.Entries(tx).FindActiveAtParking(ctx, card.VehicleID, parkingID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrNoActiveEntry)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		current, err := s.store.Entries(tx).GetDetails(ctx, active.ID)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		d, err := s.closeEntry(ctx, tx, after, current, at, domain.PaymentAutomatique)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		details = d

		return nil
	})
	if err != nil {
		return nil, err
	}

	return details, nil
}

// Cancel voids an IN_PROGRESS entry and returns its space. No amount is ever
// recorded; cancellation corrects an operator mistake, it is not a stay.
//
// Returns:
//   - error: ErrEntryNotFound, ErrAlreadyFinalized.
func (s *Service) Cancel(ctx context.Context, entryID uuid.UUID) (*domain.Entry, error) {
	const op = "service.entry.Cancel"

	var cancelled *domain.Entry

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		e, err := s.store.Entries(tx).Cancel(ctx, entryID)
		if err != nil {
			switch {
			case errors.Is(err, repository.ErrNotFound):
				return fmt.Errorf("%s:%w", op, ErrEntryNotFound)
			case errors.Is(err, repository.ErrEntryNotActive):
				return fmt.Errorf("%s:%w", op, ErrAlreadyFinalized)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		available, err := s.store.Parkings(tx).ReleaseSpace(ctx, e.ParkingID)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		cancelled = e

		after(func(ctx context.Context) {
			_ = s.cache.InvalidateParking(ctx, e.ParkingID)
			_ = s.pubsub.PublishEntryCancelled(ctx, e)
			_ = s.pubsub.PublishParkingUpdate(ctx, e.ParkingID, available)
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return cancelled, nil
}

// openEntry performs the atomic reserve+insert pair shared by both lanes.
// Must run inside the caller's transaction.
func (s *Service) openEntry(
	ctx context.Context,
	tx postgresrepo.DB,
	parkingID, vehicleID int64,
	cardID null.Int,
	entryTime time.Time,
) (*domain.EntryDetails, int, error) {
	remaining, err := s.store.Parkings(tx).ReserveSpace(ctx, parkingID)
	if err != nil {
		if errors.Is(err, repository.ErrParkingFull) {
			return nil, 0, ErrParkingFull
		}
		return nil, 0, err
	}

	created, err := s.store.Entries(tx).Insert(ctx, parkingID, vehicleID, cardID, entryTime)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateActiveEntry) {
			return nil, 0, ErrDuplicateActiveEntry
		}
		return nil, 0, err
	}

	details, err := s.store.Entries(tx).GetDetails(ctx, created.ID)
	if err != nil {
		return nil, 0, err
	}

	return details, remaining, nil
}

// closeEntry computes the bill and performs the atomic complete+release pair.
// Must run inside the caller's transaction.
func (s *Service) closeEntry(
	ctx context.Context,
	tx postgresrepo.DB,
	after func(uow.AfterCommit),
	current *domain.EntryDetails,
	exitAt *time.Time,
	paymentMethod domain.PaymentMethod,
) (*domain.EntryDetails, error) {
	if current.Status != domain.EntryInProgress {
		return nil, ErrAlreadyCompleted
	}

	exitTime := time.Now()
	if exitAt != nil {
		exitTime = *exitAt
	}

	duration, err := billing.CalculateDuration(current.EntryTime, exitTime)
	if err != nil {
		return nil, ErrInvalidExitTime
	}

	tariff, err := s.store.Tariffs(tx).Resolve(ctx, current.ParkingID, current.Vehicle.VehicleType)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTariffNotFound
		}
		return nil, err
	}

	amount := billing.CalculateAmount(duration, tariff.PricePerHour)

	if _, err := s.store.Entries(tx).Complete(
		ctx, current.ID, exitTime, duration, amount, paymentMethod,
	); err != nil {
		if errors.Is(err, repository.ErrEntryNotActive) {
			return nil, ErrAlreadyCompleted
		}
		return nil, err
	}

	available, err := s.store.Parkings(tx).ReleaseSpace(ctx, current.ParkingID)
	if err != nil {
		return nil, err
	}

	details, err := s.store.Entries(tx).GetDetails(ctx, current.ID)
	if err != nil {
		return nil, err
	}

	after(func(ctx context.Context) {
		_ = s.cache.InvalidateParking(ctx, details.ParkingID)
		_ = s.pubsub.PublishEntryCompleted(ctx, details)
		_ = s.pubsub.PublishParkingUpdate(ctx, details.ParkingID, available)
	})

	return details, nil
}

func (s *Service) afterEntryCreated(
	after func(uow.AfterCommit),
	details *domain.EntryDetails,
	parkingID int64,
	remaining int,
) {
	after(func(ctx context.Context) {
		_ = s.cache.InvalidateParking(ctx, parkingID)
		_ = s.pubsub.PublishEntryCreated(ctx, details)
		_ = s.pubsub.PublishParkingUpdate(ctx, parkingID, remaining)
		if remaining == 0 {
			_ = s.pubsub.PublishCapacityAlert(ctx, parkingID)
		}
	})
}

func (s *Service) allow(ctx context.Context, rlKey string) error {
	if s.limiter == nil || rlKey == "" {
		return nil
	}

	ok, _, _, err := s.limiter.Allow(ctx, rlKey)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRateLimited
	}

	return nil
}

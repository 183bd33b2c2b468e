package entry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mbiandou/parkflow/internal/domain"
	postgresrepo "github.com/mbiandou/parkflow/internal/repository/postgres"
	"github.com/mbiandou/parkflow/internal/uow"
	"gopkg.in/guregu/null.v4"
)

// The lifecycle depends on narrow slices of the persistence layer instead of
// the concrete store, so the transitions can be exercised without a database.

type ParkingStore interface {
	Get(ctx context.Context, id int64) (*domain.Parking, error)
	ReserveSpace(ctx context.Context, id int64) (int, error)
	ReleaseSpace(ctx context.Context, id int64) (int, error)
}

type VehicleStore interface {
	Get(ctx context.Context, id int64) (*domain.Vehicle, error)
}

type CardStore interface {
	Get(ctx context.Context, id int64) (*domain.Card, error)
	GetByNumber(ctx context.Context, cardNumber string) (*domain.Card, error)
}

type TariffStore interface {
	Resolve(ctx context.Context, parkingID int64, vehicleType domain.VehicleType) (*domain.Tariff, error)
}

type EntryStore interface {
	Insert(ctx context.Context, parkingID, vehicleID int64, cardID null.Int, entryTime time.Time) (*domain.Entry, error)
	FindActiveByVehicle(ctx context.Context, vehicleID int64) (*domain.Entry, error)
	FindActiveAtParking(ctx context.Context, vehicleID, parkingID int64) (*domain.Entry, error)
	Complete(ctx context.Context, id uuid.UUID, exitTime time.Time, durationMinutes, amount int64, paymentMethod domain.PaymentMethod) (*domain.Entry, error)
	Cancel(ctx context.Context, id uuid.UUID) (*domain.Entry, error)
	GetDetails(ctx context.Context, id uuid.UUID) (*domain.EntryDetails, error)
}

// Store hands out repositories bound to the transaction tx.
type Store interface {
	Parkings(tx postgresrepo.DB) ParkingStore
	Vehicles(tx postgresrepo.DB) VehicleStore
	Cards(tx postgresrepo.DB) CardStore
	Tariffs(tx postgresrepo.DB) TariffStore
	Entries(tx postgresrepo.DB) EntryStore
}

// TxRunner runs fn in one transaction and fires the collected after-commit
// hooks only when it commits.
type TxRunner interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error) error
}

type Cache interface {
	InvalidateParking(ctx context.Context, parkingID int64) error
}

type Publisher interface {
	PublishParkingUpdate(ctx context.Context, parkingID int64, availableSpaces int) error
	PublishEntryCreated(ctx context.Context, entry *domain.EntryDetails) error
	PublishEntryCompleted(ctx context.Context, entry *domain.EntryDetails) error
	PublishEntryCancelled(ctx context.Context, entry *domain.Entry) error
	PublishCapacityAlert(ctx context.Context, parkingID int64) error
}

type Limiter interface {
	Allow(ctx context.Context, id string) (allowed bool, current int64, retryAfter time.Duration, err error)
}

// pgStore adapts *postgresrepo.Store to Store.
type pgStore struct {
	s *postgresrepo.Store
}

func (a pgStore) Parkings(tx postgresrepo.DB) ParkingStore { return a.s.Parkings().With(tx) }
func (a pgStore) Vehicles(tx postgresrepo.DB) VehicleStore { return a.s.Vehicles().With(tx) }
func (a pgStore) Cards(tx postgresrepo.DB) CardStore       { return a.s.Cards().With(tx) }
func (a pgStore) Tariffs(tx postgresrepo.DB) TariffStore   { return a.s.Tariffs().With(tx) }
func (a pgStore) Entries(tx postgresrepo.DB) EntryStore    { return a.s.Entries().With(tx) }

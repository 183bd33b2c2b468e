package entry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mbiandou/parkflow/internal/domain"
	"github.com/mbiandou/parkflow/internal/repository"
	postgresrepo "github.com/mbiandou/parkflow/internal/repository/postgres"
	"github.com/mbiandou/parkflow/internal/uow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"
)

// fakeState is an in-memory stand-in for the postgres store. The fakes mirror
// the repository error contract: sentinel errors from the repository package,
// conditional transitions on entry status, conditional space accounting.
type fakeState struct {
	parkings map[int64]*domain.Parking
	vehicles map[int64]*domain.Vehicle
	cards    map[int64]*domain.Card
	tariffs  map[string]*domain.Tariff
	entries  map[uuid.UUID]*domain.Entry
}

func newFakeState() *fakeState {
	return &fakeState{
		parkings: make(map[int64]*domain.Parking),
		vehicles: make(map[int64]*domain.Vehicle),
		cards:    make(map[int64]*domain.Card),
		tariffs:  make(map[string]*domain.Tariff),
		entries:  make(map[uuid.UUID]*domain.Entry),
	}
}

func tariffKey(parkingID int64, vt domain.VehicleType) string {
	return fmt.Sprintf("%d/%s", parkingID, vt)
}

func (st *fakeState) snapshot() *fakeState {
	snap := newFakeState()
	for k, v := range st.parkings {
		cp := *v
		snap.parkings[k] = &cp
	}
	for k, v := range st.vehicles {
		cp := *v
		snap.vehicles[k] = &cp
	}
	for k, v := range st.cards {
		cp := *v
		snap.cards[k] = &cp
	}
	for k, v := range st.tariffs {
		cp := *v
		snap.tariffs[k] = &cp
	}
	for k, v := range st.entries {
		cp := *v
		snap.entries[k] = &cp
	}
	return snap
}

func (st *fakeState) restore(snap *fakeState) {
	st.parkings = snap.parkings
	st.vehicles = snap.vehicles
	st.cards = snap.cards
	st.tariffs = snap.tariffs
	st.entries = snap.entries
}

type fakeParkings struct{ st *fakeState }

func (f fakeParkings) Get(_ context.Context, id int64) (*domain.Parking, error) {
	p, ok := f.st.parkings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f fakeParkings) ReserveSpace(_ context.Context, id int64) (int, error) {
	p, ok := f.st.parkings[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if p.AvailableSpaces <= 0 {
		return 0, repository.ErrParkingFull
	}
	p.AvailableSpaces--
	return p.AvailableSpaces, nil
}

func (f fakeParkings) ReleaseSpace(_ context.Context, id int64) (int, error) {
	p, ok := f.st.parkings[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if p.AvailableSpaces >= p.TotalCapacity {
		return 0, repository.ErrCapacityDrift
	}
	p.AvailableSpaces++
	return p.AvailableSpaces, nil
}

type fakeVehicles struct{ st *fakeState }

func (f fakeVehicles) Get(_ context.Context, id int64) (*domain.Vehicle, error) {
	v, ok := f.st.vehicles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

type fakeCards struct{ st *fakeState }

func (f fakeCards) Get(_ context.Context, id int64) (*domain.Card, error) {
	c, ok := f.st.cards[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f fakeCards) GetByNumber(_ context.Context, cardNumber string) (*domain.Card, error) {
	for _, c := range f.st.cards {
		if c.CardNumber == cardNumber {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeTariffs struct{ st *fakeState }

func (f fakeTariffs) Resolve(_ context.Context, parkingID int64, vt domain.VehicleType) (*domain.Tariff, error) {
	t, ok := f.st.tariffs[tariffKey(parkingID, vt)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

type fakeEntries struct{ st *fakeState }

func (f fakeEntries) Insert(
	_ context.Context,
	parkingID, vehicleID int64,
	cardID null.Int,
	entryTime time.Time,
) (*domain.Entry, error) {
	for _, e := range f.st.entries {
		if e.VehicleID == vehicleID && e.Status == domain.EntryInProgress {
			return nil, repository.ErrDuplicateActiveEntry
		}
	}
	e := &domain.Entry{
		ID:        uuid.New(),
		ParkingID: parkingID,
		VehicleID: vehicleID,
		CardID:    cardID,
		EntryTime: entryTime,
		Status:    domain.EntryInProgress,
		CreatedAt: time.Now(),
	}
	f.st.entries[e.ID] = e
	cp := *e
	return &cp, nil
}

func (f fakeEntries) FindActiveByVehicle(_ context.Context, vehicleID int64) (*domain.Entry, error) {
	for _, e := range f.st.entries {
		if e.VehicleID == vehicleID && e.Status == domain.EntryInProgress {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f fakeEntries) FindActiveAtParking(_ context.Context, vehicleID, parkingID int64) (*domain.Entry, error) {
	for _, e := range f.st.entries {
		if e.VehicleID == vehicleID && e.ParkingID == parkingID && e.Status == domain.EntryInProgress {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f fakeEntries) Complete(
	_ context.Context,
	id uuid.UUID,
	exitTime time.Time,
	durationMinutes, amount int64,
	paymentMethod domain.PaymentMethod,
) (*domain.Entry, error) {
	e, ok := f.st.entries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if e.Status != domain.EntryInProgress {
		return nil, repository.ErrEntryNotActive
	}
	e.ExitTime = null.TimeFrom(exitTime)
	e.Duration = null.IntFrom(durationMinutes)
	e.Amount = null.IntFrom(amount)
	e.PaymentMethod = null.StringFrom(string(paymentMethod))
	e.Status = domain.EntryCompleted
	cp := *e
	return &cp, nil
}

func (f fakeEntries) Cancel(_ context.Context, id uuid.UUID) (*domain.Entry, error) {
	e, ok := f.st.entries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if e.Status != domain.EntryInProgress {
		return nil, repository.ErrEntryNotActive
	}
	e.Status = domain.EntryCancelled
	cp := *e
	return &cp, nil
}

func (f fakeEntries) GetDetails(_ context.Context, id uuid.UUID) (*domain.EntryDetails, error) {
	e, ok := f.st.entries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d := &domain.EntryDetails{Entry: *e}
	if p, ok := f.st.parkings[e.ParkingID]; ok {
		cp := *p
		d.Parking = &cp
	}
	if v, ok := f.st.vehicles[e.VehicleID]; ok {
		cp := *v
		d.Vehicle = &cp
	}
	if e.CardID.Valid {
		if c, ok := f.st.cards[e.CardID.Int64]; ok {
			cp := *c
			d.Card = &cp
		}
	}
	return d, nil
}

type fakeStore struct{ st *fakeState }

func (f fakeStore) Parkings(postgresrepo.DB) ParkingStore { return fakeParkings{f.st} }
func (f fakeStore) Vehicles(postgresrepo.DB) VehicleStore { return fakeVehicles{f.st} }
func (f fakeStore) Cards(postgresrepo.DB) CardStore       { return fakeCards{f.st} }
func (f fakeStore) Tariffs(postgresrepo.DB) TariffStore   { return fakeTariffs{f.st} }
func (f fakeStore) Entries(postgresrepo.DB) EntryStore    { return fakeEntries{f.st} }

// fakeTx mimics the unit of work: rolls the state back on error, fires the
// after-commit hooks on success.
type fakeTx struct{ st *fakeState }

func (r fakeTx) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error,
) error {
	snap := r.st.snapshot()
	var hooks []uow.AfterCommit
	if err := fn(ctx, nil, func(h uow.AfterCommit) { hooks = append(hooks, h) }); err != nil {
		r.st.restore(snap)
		return err
	}
	for _, h := range hooks {
		h(ctx)
	}
	return nil
}

type fakeCache struct{ invalidated []int64 }

func (c *fakeCache) InvalidateParking(_ context.Context, parkingID int64) error {
	c.invalidated = append(c.invalidated, parkingID)
	return nil
}

type fakePublisher struct {
	events        []string
	lastAvailable int
}

func (p *fakePublisher) PublishParkingUpdate(_ context.Context, _ int64, availableSpaces int) error {
	p.events = append(p.events, "parking:update")
	p.lastAvailable = availableSpaces
	return nil
}

func (p *fakePublisher) PublishEntryCreated(_ context.Context, _ *domain.EntryDetails) error {
	p.events = append(p.events, "entry:created")
	return nil
}

func (p *fakePublisher) PublishEntryCompleted(_ context.Context, _ *domain.EntryDetails) error {
	p.events = append(p.events, "entry:completed")
	return nil
}

func (p *fakePublisher) PublishEntryCancelled(_ context.Context, _ *domain.Entry) error {
	p.events = append(p.events, "entry:cancelled")
	return nil
}

func (p *fakePublisher) PublishCapacityAlert(_ context.Context, _ int64) error {
	p.events = append(p.events, "capacity:alert")
	return nil
}

type fakeLimiter struct {
	allowed    bool
	retryAfter time.Duration
}

func (l fakeLimiter) Allow(context.Context, string) (bool, int64, time.Duration, error) {
	return l.allowed, 1, l.retryAfter, nil
}

type lifecycleFixture struct {
	st     *fakeState
	cache  *fakeCache
	events *fakePublisher
	svc    *Service
}

func newLifecycle(t *testing.T) *lifecycleFixture {
	t.Helper()

	st := newFakeState()
	fc := &fakeCache{}
	fp := &fakePublisher{}
	svc := &Service{
		store:  fakeStore{st: st},
		cache:  fc,
		pubsub: fp,
		uow:    fakeTx{st: st},
	}
	return &lifecycleFixture{st: st, cache: fc, events: fp, svc: svc}
}

func (f *lifecycleFixture) seedParking(id int64, total, available int) {
	f.st.parkings[id] = &domain.Parking{
		ID: id, Name: fmt.Sprintf("P%d", id),
		TotalCapacity: total, AvailableSpaces: available,
	}
}

func (f *lifecycleFixture) seedVehicle(id int64, vt domain.VehicleType) {
	f.st.vehicles[id] = &domain.Vehicle{
		ID: id, PlateNumber: fmt.Sprintf("LT-%03d-AA", id), VehicleType: vt,
	}
}

func (f *lifecycleFixture) seedCard(id, vehicleID int64, number string, active bool) {
	f.st.cards[id] = &domain.Card{
		ID: id, CardNumber: number, VehicleID: vehicleID, IsActive: active,
	}
}

func (f *lifecycleFixture) seedTariff(parkingID int64, vt domain.VehicleType, price int64) {
	f.st.tariffs[tariffKey(parkingID, vt)] = &domain.Tariff{
		ParkingID: parkingID, VehicleType: vt, PricePerHour: price,
	}
}

func (f *lifecycleFixture) seedActiveEntry(parkingID, vehicleID int64, at time.Time) uuid.UUID {
	e := &domain.Entry{
		ID:        uuid.New(),
		ParkingID: parkingID,
		VehicleID: vehicleID,
		EntryTime: at,
		Status:    domain.EntryInProgress,
	}
	f.st.entries[e.ID] = e
	return e.ID
}

func TestCreateOpensEntryAndReservesSpace(t *testing.T) {
	f := newLifecycle(t)
	f.seedParking(1, 5, 5)
	f.seedVehicle(7, domain.VehicleVoiture)

	d, err := f.svc.Create(context.Background(), 1, 7, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.EntryInProgress, d.Status)
	assert.Equal(t, int64(1), d.ParkingID)
	assert.Equal(t, int64(7), d.VehicleID)
	assert.False(t, d.CardID.Valid)

	assert.Equal(t, 4, f.st.parkings[1].AvailableSpaces)
	assert.Equal(t, []string{"entry:created", "parking:update"}, f.events.events)
	assert.Equal(t, 4, f.events.lastAvailable)
	assert.Equal(t, []int64{1}, f.cache.invalidated)
}

func TestCreateLastSpaceRaisesCapacityAlert(t *testing.T) {
	f := newLifecycle(t)
	f.seedParking(1, 5, 1)
	f.seedVehicle(7, domain.VehicleVoiture)

	_, err := f.svc.Create(context.Background(), 1, 7, nil)
	require.NoError(t, err)

	assert.Contains(t, f.events.events, "capacity:alert")
	assert.Equal(t, 0, f.st.parkings[1].AvailableSpaces)
}

func TestCreateFullParkingWritesNothing(t *testing.T) {
	f := newLifecycle(t)
	f.seedParking(1, 5, 0)
	f.seedVehicle(7, domain.VehicleVoiture)

	_, err := f.svc.Create(context.Background(), 1, 7, nil)
	require.ErrorIs(t, err, ErrParkingFull)

	assert.Empty(t, f.st.entries)
	assert.Equal(t, 0, f.st.parkings[1].AvailableSpaces)
	assert.Empty(t, f.events.events)
	assert.Empty(t, f.cache.invalidated)
}

func TestCreateRefusesSecondActiveEntry(t *testing.T) {
	f := newLifecycle(t)
	f.seedParking(1, 5, 3)
	f.seedParking(2, 5, 5)
	f.seedVehicle(7, domain.VehicleVoiture)
	f.seedActiveEntry(1, 7, time.Now().Add(-time.Hour))

	// Same vehicle, different parking: still one active entry fleet-wide.
	_, err := f.svc.Create(context.Background(), 2, 7, nil)
	require.ErrorIs(t, err, ErrDuplicateActiveEntry)

	assert.Len(t, f.st.entries, 1)
	assert.Equal(t, 5, f.st.parkings[2].AvailableSpaces)
	assert.Empty(t, f.events.events)
}

func TestCreateCardChecksBlockBeforeAnyWrite(t *testing.T) {
	tests := []struct {
		name    string
		card    func(f *lifecycleFixture)
		cardID  int64
		wantErr error
	}{
		{
			name:    "inactive card",
			card:    func(f *lifecycleFixture) { f.seedCard(3, 7, "CARD-3", false) },
			cardID:  3,
			wantErr: ErrCardInactive,
		},
		{
			name:    "card bound to another vehicle",
			card:    func(f *lifecycleFixture) { f.seedCard(3, 99, "CARD-3", true) },
			cardID:  3,
			wantErr: ErrCardVehicleMismatch,
		},
		{
			name:    "unknown card",
			card:    func(*lifecycleFixture) {},
			cardID:  3,
			wantErr: ErrCardNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLifecycle(t)
			f.seedParking(1, 5, 5)
			f.seedVehicle(7, domain.VehicleVoiture)
			tt.card(f)

			_, err := f.svc.Create(context.Background(), 1, 7, &tt.cardID)
			require.ErrorIs(t, err, tt.wantErr)

			assert.Empty(t, f.st.entries)
			assert.Equal(t, 5, f.st.parkings[1].AvailableSpaces)
			assert.Empty(t, f.events.events)
		})
	}
}

func TestExitBillsAndReleasesSpace(t *testing.T) {
	f := newLifecycle(t)
	f.seedParking(1, 5, 4)
	f.seedVehicle(7, domain.VehicleVoiture)
	f.seedTariff(1, domain.VehicleVoiture, 1000)

	entered := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	id := f.seedActiveEntry(1, 7, entered)

	exitAt := entered.Add(91 * time.Minute)
	d, err := f.svc.Exit(context.Background(), id, &exitAt, "")
	require.NoError(t, err)

	assert.Equal(t, domain.EntryCompleted, d.Status)
	assert.Equal(t, int64(91), d.Duration.Int64)
	assert.Equal(t, int64(2000), d.Amount.Int64)
	assert.Equal(t, string(domain.PaymentEspeces), d.PaymentMethod.String)

	assert.Equal(t, 5, f.st.parkings[1].AvailableSpaces)
	assert.Equal(t, []string{"entry:completed", "parking:update"}, f.events.events)
	assert.Equal(t, []int64{1}, f.cache.invalidated)
}

func TestExitWithoutTariffLeavesEntryOpen(t *testing.T) {
	f := newLifecycle(t)
	f.seedParking(1, 5, 4)
	f.seedVehicle(7, domain.VehicleCamion)

	id := f.seedActiveEntry(1, 7, time.Now().Add(-time.Hour))

	_, err := f.svc.Exit(context.Background(), id, nil, domain.PaymentCarte)
	require.ErrorIs(t, err, ErrTariffNotFound)

	e := f.st.entries[id]
	assert.Equal(t, domain.EntryInProgress, e.Status)
	assert.False(t, e.Amount.Valid)
	assert.False(t, e.ExitTime.Valid)
	assert.Equal(t, 4, f.st.parkings[1].AvailableSpaces)
	assert.Empty(t, f.events.events)
}

func TestExitTerminalEntryIsRefused(t *testing.T) {
	f := newLifecycle(t)
	f.seedParking(1, 5, 4)
	f.seedVehicle(7, domain.VehicleVoiture)
	f.seedTariff(1, domain.VehicleVoiture, 1000)

	id := f.seedActiveEntry(1, 7, time.Now().Add(-time.Hour))
	_, err := f.svc.Exit(context.Background(), id, nil, "")
	require.NoError(t, err)

	_, err = f.svc.Exit(context.Background(), id, nil, "")
	require.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Equal(t, 5, f.st.parkings[1].AvailableSpaces)
}

func TestExitBeforeEntryTimeIsRejected(t *testing.T) {
	f := newLifecycle(t)
	f.seedParking(1, 5, 4)
	f.seedVehicle(7, domain.VehicleVoiture)
	f.seedTariff(1, domain.VehicleVoiture, 1000)

	entered := time.Now()
	id := f.seedActiveEntry(1, 7, entered)

	before := entered.Add(-time.Minute)
	_, err := f.svc.Exit(context.Background(), id, &before, "")
	require.ErrorIs(t, err, ErrInvalidExitTime)
	assert.Equal(t, domain.EntryInProgress, f.st.entries[id].Status)
}

func TestCancelReleasesSpaceAndNeverBills(t *testing.T) {
	f := newLifecycle(t)
	f.seedParking(1, 5, 4)
	f.seedVehicle(7, domain.VehicleVoiture)
	f.seedTariff(1, domain.VehicleVoiture, 1000)

	id := f.seedActiveEntry(1, 7, time.Now().Add(-2*time.Hour))

	e, err := f.svc.Cancel(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, domain.EntryCancelled, e.Status)
	assert.False(t, e.Amount.Valid)
	assert.False(t, e.Duration.Valid)
	assert.False(t, e.ExitTime.Valid)
	assert.False(t, e.PaymentMethod.Valid)

	assert.Equal(t, 5, f.st.parkings[1].AvailableSpaces)
	assert.Equal(t, []string{"entry:cancelled", "parking:update"}, f.events.events)
	assert.NotContains(t, f.events.events, "entry:completed")
}

func TestCancelTerminalEntryIsRefused(t *testing.T) {
	f := newLifecycle(t)
	f.seedParking(1, 5, 4)
	f.seedVehicle(7, domain.VehicleVoiture)

	id := f.seedActiveEntry(1, 7, time.Now())
	_, err := f.svc.Cancel(context.Background(), id)
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), id)
	require.ErrorIs(t, err, ErrAlreadyFinalized)
	assert.Equal(t, 5, f.st.parkings[1].AvailableSpaces)
}

func TestCreateAutoRateLimited(t *testing.T) {
	f := newLifecycle(t)
	f.seedParking(1, 5, 5)
	f.seedVehicle(7, domain.VehicleMoto)
	f.seedCard(3, 7, "CARD-3", true)
	f.svc.limiter = fakeLimiter{allowed: false, retryAfter: time.Minute}

	_, err := f.svc.CreateAuto(context.Background(), "CARD-3", 1, nil, "sensor-A")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Empty(t, f.st.entries)
}

func TestCreateAutoLinksScannedCard(t *testing.T) {
	f := newLifecycle(t)
	f.seedParking(1, 5, 5)
	f.seedVehicle(7, domain.VehicleMoto)
	f.seedCard(3, 7, "CARD-3", true)
	f.svc.limiter = fakeLimiter{allowed: true}

	d, err := f.svc.CreateAuto(context.Background(), "CARD-3", 1, nil, "sensor-A")
	require.NoError(t, err)

	require.True(t, d.CardID.Valid)
	assert.Equal(t, int64(3), d.CardID.Int64)
	assert.Equal(t, int64(7), d.VehicleID)
	assert.Equal(t, 4, f.st.parkings[1].AvailableSpaces)
}

func TestExitAutoPaysAutomatique(t *testing.T) {
	f := newLifecycle(t)
	f.seedParking(1, 5, 4)
	f.seedVehicle(7, domain.VehicleMoto)
	f.seedCard(3, 7, "CARD-3", true)
	f.seedTariff(1, domain.VehicleMoto, 500)
	f.seedActiveEntry(1, 7, time.Now().Add(-30*time.Minute))

	d, err := f.svc.ExitAuto(context.Background(), "CARD-3", 1, nil, "sensor-B")
	require.NoError(t, err)

	assert.Equal(t, domain.EntryCompleted, d.Status)
	assert.Equal(t, string(domain.PaymentAutomatique), d.PaymentMethod.String)
	assert.Equal(t, int64(500), d.Amount.Int64)
}

func TestExitAutoWithoutActiveEntry(t *testing.T) {
	f := newLifecycle(t)
	f.seedParking(1, 5, 5)
	f.seedVehicle(7, domain.VehicleMoto)
	f.seedCard(3, 7, "CARD-3", true)

	_, err := f.svc.ExitAuto(context.Background(), "CARD-3", 1, nil, "")
	require.ErrorIs(t, err, ErrNoActiveEntry)
}

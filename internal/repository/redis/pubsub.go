package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mbiandou/parkflow/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Lifecycle event types carried on the shared channel. Browsers subscribed to
// the WebSocket hub receive the same frames.
const (
	EventParkingUpdate  = "parking:update"
	EventEntryCreated   = "entry:created"
	EventEntryCompleted = "entry:completed"
	EventEntryCancelled = "entry:cancelled"
	EventCapacityAlert  = "capacity:alert"
)

// EventsPubSub publishes lifecycle events after the owning transaction has
// committed. Delivery is fire-and-forget: a lost frame never rolls anything
// back, so publish errors are for logging only.
type EventsPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewEventsPubSub(rdb *redis.Client) *EventsPubSub {
	return &EventsPubSub{
		rdb:     rdb,
		channel: ChannelLifecycleEvents(),
	}
}

// EventFrame is the wire shape shared by the redis channel and the WebSocket
// broadcast.
type EventFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	TsUnix  int64           `json:"ts_unix"`
}

type ParkingUpdatePayload struct {
	ParkingID       int64 `json:"parking_id"`
	AvailableSpaces int   `json:"available_spaces"`
}

type CapacityAlertPayload struct {
	ParkingID int64  `json:"parking_id"`
	Message   string `json:"message"`
}

func (p *EventsPubSub) publish(ctx context.Context, eventType string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	frame := EventFrame{
		Type:    eventType,
		Payload: b,
		TsUnix:  time.Now().Unix(),
	}

	fb, _ := json.Marshal(frame)

	return p.rdb.Publish(ctx, p.channel, fb).Err()
}

func (p *EventsPubSub) PublishParkingUpdate(ctx context.Context, parkingID int64, availableSpaces int) error {
	return p.publish(ctx, EventParkingUpdate, ParkingUpdatePayload{
		ParkingID:       parkingID,
		AvailableSpaces: availableSpaces,
	})
}

func (p *EventsPubSub) PublishEntryCreated(ctx context.Context, entry *domain.EntryDetails) error {
	return p.publish(ctx, EventEntryCreated, entry)
}

func (p *EventsPubSub) PublishEntryCompleted(ctx context.Context, entry *domain.EntryDetails) error {
	return p.publish(ctx, EventEntryCompleted, entry)
}

func (p *EventsPubSub) PublishEntryCancelled(ctx context.Context, entry *domain.Entry) error {
	return p.publish(ctx, EventEntryCancelled, entry)
}

func (p *EventsPubSub) PublishCapacityAlert(ctx context.Context, parkingID int64) error {
	return p.publish(ctx, EventCapacityAlert, CapacityAlertPayload{
		ParkingID: parkingID,
		Message:   fmt.Sprintf("parking %d is full", parkingID),
	})
}

// Subscribe pumps raw frames to handler until ctx is cancelled. Frames that do
// not parse are dropped.
func (p *EventsPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, frame EventFrame)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var frame EventFrame
			if err := json.Unmarshal([]byte(m.Payload), &frame); err == nil && frame.Type != "" {
				handler(ctx, frame)
			}
		}
	}
}

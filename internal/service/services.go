// Package service wires the individual services into one bundle the transport
// layer depends on.
package service

import (
	"time"

	postgresrepo "github.com/mbiandou/parkflow/internal/repository/postgres"
	redisrepo "github.com/mbiandou/parkflow/internal/repository/redis"
	"github.com/mbiandou/parkflow/internal/service/admin"
	"github.com/mbiandou/parkflow/internal/service/auth"
	"github.com/mbiandou/parkflow/internal/service/entry"
	"github.com/mbiandou/parkflow/internal/service/query"
)

type Services struct {
	Entry *entry.Service
	Admin *admin.Service
	Query *query.Service
	Auth  *auth.Service
}

type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
}

func NewServices(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.EventsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	cfg Config,
) *Services {
	return &Services{
		Entry: entry.New(store, cache, pubsub, limiter),
		Admin: admin.New(store, cache, pubsub),
		Query: query.New(store, cache),
		Auth:  auth.New(store.Users(), cfg.JWTSecret, cfg.TokenTTL),
	}
}

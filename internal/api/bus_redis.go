package api

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus mirrors room publishes over Redis Pub/Sub so that multiple server
// processes can share one logical room space. Single-process deployments
// never construct it; the in-process router alone already satisfies the
// at-most-once, no-replay contract, and this bridge does not strengthen it.
type RedisBus struct {
	rdb    *redis.Client
	origin string // instance id, used to skip our own messages
	router *EventRouter
	log    *zap.SugaredLogger
}

const redisChanPrefix = "fleetops:room:"

type busFrame struct {
	Origin string `json:"origin"`
	Event  string `json:"event"`
	Data   any    `json:"data,omitempty"`
}

func NewRedisBus(url string, router *EventRouter, log *zap.SugaredLogger) (*RedisBus, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisBus{
		rdb:    redis.NewClient(opt),
		origin: uuid.New().String(),
		router: router,
		log:    log,
	}, nil
}

// Start consumes remote publishes and replays them into the local router.
// Returns after the subscription is confirmed.
func (b *RedisBus) Start(ctx context.Context) error {
	ps := b.rdb.PSubscribe(ctx, redisChanPrefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	go func() {
		for msg := range ps.Channel() {
			var f busFrame
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				continue
			}
			if f.Origin == b.origin {
				continue
			}
			room := strings.TrimPrefix(msg.Channel, redisChanPrefix)
			b.router.fanOut(room, Event{Name: f.Event, Data: f.Data})
		}
	}()
	return nil
}

// Forward publishes a locally-originated event to the shared channel.
// Fire-and-forget: a Redis hiccup must not fail the caller.
func (b *RedisBus) Forward(room string, evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(busFrame{Origin: b.origin, Event: evt.Name, Data: evt.Data})
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, redisChanPrefix+room, data).Err(); err != nil {
		b.log.Warnw("redis forward failed", "room", room, "err", err)
	}
}

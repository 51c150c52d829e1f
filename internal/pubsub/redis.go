package pubsub

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/soniclabs/native-recorder/internal/config"
	"github.com/soniclabs/native-recorder/internal/pubsub/redis"
)

var _ PubSub = (*Redis)(nil)

type Redis struct {
	config config.Redis
	pubsub *redis.PubSub
	ctx    context.Context
	cancel context.CancelFunc
}

func (r *Redis) Subscribe(channel string, handler PubSubHandler, onStart func() error) error {
	return r.pubsub.ListenChannels(r.ctx, onStart,
		func(channel string, message []byte) error {
			handler(r.ctx, message)
			return nil
		},
		channel)
}

func (r *Redis) Publish(channel string, message []byte) {
	if err := r.pubsub.Publish(channel, message); err != nil {
		log.Errorf("failed to publish to %s: %s", channel, err)
	}
}

func (r *Redis) Check() error {
	return r.pubsub.Check()
}

func (r *Redis) Close() error {
	r.cancel()
	return nil
}

func NewRedis(cfg config.Redis) *Redis {
	r := &Redis{config: cfg}
	if p, err := redis.NewPubSub(cfg.Network, cfg.Address, cfg.Password); err != nil {
		log.Fatalf("failed to start redis pubsub: %s", err)
	} else {
		r.ctx, r.cancel = context.WithCancel(context.Background())
		r.pubsub = p
	}
	return r
}

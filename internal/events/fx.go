package events

import (
	"context"

	"github.com/smallbiznis/tuitionledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(New),
)

// New connects to AMQP_URL when set. An unreachable broker degrades to the
// no-op publisher so the ledger keeps accepting writes. Either way the
// publisher is wrapped in a Dispatcher that drains on stop.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Publisher {
	var inner Publisher
	switch {
	case cfg.AMQPURL == "":
		log.Info("event publishing disabled")
		inner = NewNoop()
	default:
		publisher, err := NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.Error("event publisher unavailable, events will be dropped", zap.Error(err))
			inner = NewNoop()
		} else {
			inner = publisher
		}
	}

	dispatcher := NewDispatcher(inner, log)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			return dispatcher.Close()
		},
	})
	return dispatcher
}

type asyncPublisher interface {
	PublishAsync(routingKey string, payload any)
}

// PublishAsync publishes in the background when the publisher tracks its own
// in-flight work, and inline otherwise. Failures are only logged.
func PublishAsync(publisher Publisher, log *zap.Logger, routingKey string, payload any) {
	if publisher == nil {
		return
	}
	if async, ok := publisher.(asyncPublisher); ok {
		async.PublishAsync(routingKey, payload)
		return
	}
	if err := publisher.Publish(context.Background(), routingKey, payload); err != nil {
		log.Warn("failed to publish event", zap.String("routing_key", routingKey), zap.Error(err))
	}
}

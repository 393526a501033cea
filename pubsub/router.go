package pubsub

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"clubtickets/pubsub/bus"
	"clubtickets/pubsub/command"
	"clubtickets/pubsub/event"
)

func NewWatermillRouter(
	rdb *redis.Client,
	eventHandler event.Handler,
	commandHandler command.Handler,
	watermillLogger watermill.LoggerAdapter,
) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("could not create router: %w", err)
	}

	useMiddlewares(router, watermillLogger)

	if err := bus.RegisterEventHandlers(rdb, router, eventHandler.All(), watermillLogger); err != nil {
		return nil, err
	}

	if err := bus.RegisterCommandHandlers(rdb, router, commandHandler.All(), watermillLogger); err != nil {
		return nil, err
	}

	return router, nil
}

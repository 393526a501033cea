package bus

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
)

const consumerGroupPrefix = "svc-clubtickets."

var marshaler = cqrs.JSONMarshaler{
	GenerateName: cqrs.StructName,
}

func EventTopic(eventName string) string {
	return "events." + eventName
}

func CommandTopic(commandName string) string {
	return "commands." + commandName
}

func NewEventBus(pub message.Publisher) (*cqrs.EventBus, error) {
	return cqrs.NewEventBusWithConfig(pub, cqrs.EventBusConfig{
		GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
			return EventTopic(params.EventName), nil
		},
		Marshaler: marshaler,
	})
}

func NewCommandBus(pub message.Publisher) (*cqrs.CommandBus, error) {
	return cqrs.NewCommandBusWithConfig(pub, cqrs.CommandBusConfig{
		GeneratePublishTopic: func(params cqrs.CommandBusGeneratePublishTopicParams) (string, error) {
			return CommandTopic(params.CommandName), nil
		},
		Marshaler: marshaler,
	})
}

// RegisterEventHandlers subscribes each handler with its own consumer group so every handler
// sees every event once.
func RegisterEventHandlers(
	rdb *redis.Client,
	router *message.Router,
	handlers []cqrs.EventHandler,
	logger watermill.LoggerAdapter,
) error {
	ep, err := cqrs.NewEventProcessorWithConfig(
		router,
		cqrs.EventProcessorConfig{
			SubscriberConstructor: func(params cqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
				return redisstream.NewSubscriber(redisstream.SubscriberConfig{
					Client:        rdb,
					ConsumerGroup: consumerGroupPrefix + params.HandlerName,
				}, logger)
			},
			GenerateSubscribeTopic: func(params cqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
				return EventTopic(params.EventName), nil
			},
			Marshaler: marshaler,
			Logger:    logger,
		})
	if err != nil {
		return fmt.Errorf("could not create event processor: %w", err)
	}

	err = ep.AddHandlers(handlers...)
	if err != nil {
		return fmt.Errorf("could not add handlers to event processor: %w", err)
	}
	return nil
}

func RegisterCommandHandlers(
	rdb *redis.Client,
	router *message.Router,
	handlers []cqrs.CommandHandler,
	logger watermill.LoggerAdapter,
) error {
	cp, err := cqrs.NewCommandProcessorWithConfig(
		router,
		cqrs.CommandProcessorConfig{
			SubscriberConstructor: func(params cqrs.CommandProcessorSubscriberConstructorParams) (message.Subscriber, error) {
				return redisstream.NewSubscriber(redisstream.SubscriberConfig{
					Client:        rdb,
					ConsumerGroup: consumerGroupPrefix + params.HandlerName,
				}, logger)
			},
			GenerateSubscribeTopic: func(params cqrs.CommandProcessorGenerateSubscribeTopicParams) (string, error) {
				return CommandTopic(params.CommandName), nil
			},
			Marshaler: marshaler,
			Logger:    logger,
		},
	)
	if err != nil {
		return fmt.Errorf("could not create command processor: %w", err)
	}

	err = cp.AddHandlers(handlers...)
	if err != nil {
		return fmt.Errorf("could not add handlers to command processor: %w", err)
	}
	return nil
}

package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"tube-server/internal/interfaces"
	"tube-server/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Compile-time check to ensure rabbitMQCleanupPublisher implements CleanupPublisher
var _ interfaces.CleanupPublisher = (*rabbitMQCleanupPublisher)(nil)

type rabbitMQCleanupPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQCleanupPublisher opens a channel on the given connection and
// declares the cleanup queue. Паблишер создает очередь, если она не
// существует - параметры должны совпадать с консьюмером.
func NewRabbitMQCleanupPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (interfaces.CleanupPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("cleanup publisher: failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("cleanup publisher: failed to declare queue '%s': %w", queueName, err)
	}

	return &rabbitMQCleanupPublisher{
		channel:   ch,
		queueName: queueName,
		logger:    logger.Named("CleanupPublisher"),
	}, nil
}

// PublishMediaCleanup publishes a media cleanup event to the queue.
func (p *rabbitMQCleanupPublisher) PublishMediaCleanup(ctx context.Context, event models.MediaCleanupEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal media cleanup event", zap.Error(err))
		return fmt.Errorf("failed to marshal cleanup event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",          // exchange (default)
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Error("Failed to publish media cleanup event", zap.Error(err), zap.String("url", event.URL))
		return fmt.Errorf("failed to publish cleanup event: %w", err)
	}

	p.logger.Debug("Media cleanup event published", zap.String("url", event.URL), zap.String("kind", event.Kind))
	return nil
}

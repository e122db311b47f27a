package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Routing keys for the state transitions other systems care about.
const (
	KeyBookingCreated    = "booking.created"
	KeyBookingPaid       = "booking.paid"
	KeyBookingCheckedIn  = "booking.checked_in"
	KeyBookingCheckedOut = "booking.checked_out"
	KeyBookingCancelled  = "booking.cancelled"
	KeyBookingCompleted  = "booking.completed"
	KeyDisputeOpened     = "dispute.opened"
	KeyDisputeResolved   = "dispute.resolved"
	KeyPayoutCompleted   = "payout.completed"
	KeyPayoutFailed      = "payout.failed"
	KeyDepositRefunded   = "deposit.refunded"
)

// Notifier is fire-and-forget: publish failures are logged and swallowed,
// they never roll back the financial transition that triggered them.
type Notifier interface {
	Publish(ctx context.Context, routingKey string, payload any)
	Close()
}

// AMQPNotifier publishes JSON events to a topic exchange.
type AMQPNotifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      *zap.Logger
	mu       sync.Mutex
}

func NewAMQPNotifier(url, exchange string, log *zap.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return &AMQPNotifier{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		log:      log.With(zap.String("notifier", "amqp")),
	}, nil
}

func (n *AMQPNotifier) Publish(ctx context.Context, routingKey string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		n.log.Error("Failed to encode event payload",
			zap.Error(err),
			zap.String("routing_key", routingKey),
		)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	err = n.channel.PublishWithContext(ctx, n.exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        body,
	})
	if err != nil {
		n.log.Error("Failed to publish event",
			zap.Error(err),
			zap.String("routing_key", routingKey),
		)
		return
	}

	n.log.Debug("Published event", zap.String("routing_key", routingKey))
}

func (n *AMQPNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		n.conn.Close()
	}
}

// NopNotifier is used when no broker is configured.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, string, any) {}
func (NopNotifier) Close()                               {}

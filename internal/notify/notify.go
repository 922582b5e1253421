// Package notify publishes order lifecycle events to RabbitMQ. Publishing is
// fire-and-forget: a confirmed order must never fail because the broker is
// down, so failures are logged and dropped.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/feastbox/checkout-api/internal/domain/order"
)

const (
	orderConfirmedQueue = "order.confirmed"
	publishTimeout      = 3 * time.Second
)

var _ order.Notifier = (*Publisher)(nil)

// Publisher sends order events over an AMQP channel.
type Publisher struct {
	ch *amqp.Channel
}

// NewPublisher opens a channel on the given connection and declares the
// order event queue.
func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "open channel")
	}

	if _, err := ch.QueueDeclare(orderConfirmedQueue, true, false, false, false, nil); err != nil {
		return nil, errors.Wrapf(err, "declare %s", orderConfirmedQueue)
	}

	return &Publisher{ch: ch}, nil
}

// Close closes the underlying channel.
func (p *Publisher) Close() error {
	return p.ch.Close()
}

type orderConfirmedEvent struct {
	EventType       string              `json:"event_type"`
	OrderID         string              `json:"order_id"`
	TotalMinorUnits int64               `json:"total_minor_units"`
	Currency        string              `json:"currency"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	Fee             decimal.Decimal     `json:"fee"`
	Method          string              `json:"fulfillment_method"`
	RequestedDate   string              `json:"requested_date"`
	Manual          bool                `json:"manual"`
	Items           []orderedItem       `json:"items"`
	Redemptions     []redeemedInstrument `json:"redemptions,omitempty"`
	Timestamp       time.Time           `json:"timestamp"`
}

type orderedItem struct {
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type redeemedInstrument struct {
	Instrument string          `json:"instrument"`
	Code       string          `json:"code"`
	Amount     decimal.Decimal `json:"amount"`
}

// OrderConfirmed publishes the confirmed order to the order event queue.
func (p *Publisher) OrderConfirmed(ctx context.Context, o *order.Order) {
	ev := orderConfirmedEvent{
		EventType:       "OrderConfirmed",
		OrderID:         o.ID,
		TotalMinorUnits: o.TotalMinorUnits,
		Currency:        o.Currency,
		Subtotal:        o.Subtotal,
		Fee:             o.Fee,
		Method:          string(o.Fulfillment.Method),
		RequestedDate:   o.Fulfillment.RequestedDate.Format("2006-01-02"),
		Manual:          o.Manual,
		Timestamp:       time.Now().UTC(),
	}
	for _, it := range o.Items {
		ev.Items = append(ev.Items, orderedItem{
			ItemID:   it.ItemID,
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.UnitPrice,
		})
	}
	for _, red := range o.Redemptions {
		ev.Redemptions = append(ev.Redemptions, redeemedInstrument{
			Instrument: red.Instrument,
			Code:       red.Code,
			Amount:     red.Amount,
		})
	}

	body, err := json.Marshal(ev)
	if err != nil {
		zctx.From(ctx).Error("Marshal order event", zap.String("order_id", o.ID), zap.Error(err))
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(pubCtx, "", orderConfirmedQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		zctx.From(ctx).Error("Publish order event", zap.String("order_id", o.ID), zap.Error(err))
	}
}

// Noop is a Notifier that drops events. Used when no broker is configured.
type Noop struct{}

// OrderConfirmed does nothing.
func (Noop) OrderConfirmed(context.Context, *order.Order) {}

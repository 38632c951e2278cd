package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/accounts"
)

const (
	DefaultExchange = "account.events"

	RoutingKeySyncAbandoned = "account.replica.sync_abandoned"

	// Minimum window to wait for Return / Confirm.
	publishWait = 500 * time.Millisecond

	defaultPublishTimeout = 2 * time.Second
)

// Publisher announces replica syncs that were given up on so an out-of-band
// worker can re-sync the record. Messages are persistent, mandatory and
// publisher-confirmed.
type Publisher struct {
	url      string
	exchange string

	mu sync.Mutex

	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

var _ accounts.SyncFailureSink = (*Publisher)(nil)

func NewPublisher(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	p := &Publisher{
		url:      url,
		exchange: exchange,
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resetConn()
	return nil
}

// SyncAbandonedEvent is the message body.
type SyncAbandonedEvent struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Op         string    `json:"op"`
	Attempts   int       `json:"attempts"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (p *Publisher) ReplicaSyncAbandoned(ctx context.Context, f accounts.SyncFailure) error {
	return p.publishJSON(ctx, RoutingKeySyncAbandoned, f.UserID, newSyncAbandonedEvent(f))
}

func newSyncAbandonedEvent(f accounts.SyncFailure) SyncAbandonedEvent {
	at := f.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return SyncAbandonedEvent{
		UserID:     f.UserID,
		Email:      f.Email,
		Op:         f.Op,
		Attempts:   f.Attempts,
		Reason:     f.Reason,
		OccurredAt: at,
	}
}

// newPublishing builds the persistent JSON message. MessageId lets consumers
// drop duplicates.
func newPublishing(messageID string, payload any, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal payload: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
		MessageId:    messageID,
		Body:         body,
	}, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}

	// Declare topic exchange (idempotent).
	if err := ch.ExchangeDeclare(
		p.exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("exchange declare: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("confirm mode: %w", err)
	}

	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))

	p.conn = conn
	p.ch = ch
	return nil
}

func (p *Publisher) ensureConnected() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil {
		return nil
	}
	p.resetConn()
	return p.connect()
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey, messageID string, payload any) error {
	msg, err := newPublishing(messageID, payload, time.Now().UTC())
	if err != nil {
		return err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultPublishTimeout)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureConnected(); err != nil {
		return err
	}

	// Drain stale confirm / return messages so results are not mixed up.
drain:
	for {
		select {
		case <-p.confirmCh:
		case <-p.returnCh:
		default:
			break drain
		}
	}

	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, true, false, msg); err != nil {
		p.resetConn()
		return fmt.Errorf("publish failed: %w", err)
	}

	timer := time.NewTimer(publishWait)
	defer timer.Stop()

	// The broker sends basic.return before basic.ack for an unroutable
	// mandatory message, so a Return seen first decides the outcome.
	select {
	case ret := <-p.returnCh:
		select {
		case <-p.confirmCh:
		case <-timer.C:
		}
		return fmt.Errorf("rabbitmq unroutable: key=%s code=%d text=%s",
			routingKey, ret.ReplyCode, ret.ReplyText)

	case conf := <-p.confirmCh:
		select {
		case ret := <-p.returnCh:
			return fmt.Errorf("rabbitmq unroutable: key=%s code=%d text=%s",
				routingKey, ret.ReplyCode, ret.ReplyText)
		default:
		}
		if !conf.Ack {
			return fmt.Errorf("rabbitmq nack: key=%s deliveryTag=%d", routingKey, conf.DeliveryTag)
		}
		return nil

	case <-timer.C:
		return fmt.Errorf("rabbitmq publish timeout: key=%s", routingKey)

	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) resetConn() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Package docconvert invokes the remote document-conversion worker over a
// RabbitMQ request/reply queue.
package docconvert

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

const DefaultRequestQueue = "docconvert.requests"

// Converter turns a document URL into plain text. Calls are idempotent on URL+revision.
type Converter interface {
	Convert(ctx context.Context, url, revision string) (string, error)
}

var ErrDisabled = errors.New("document conversion is not configured")

type Request struct {
	URL      string `json:"url"`
	Revision string `json:"revision,omitempty"`
}

type Reply struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// MessageID is deterministic so the worker can dedupe redelivered requests.
func MessageID(url, revision string) string {
	sum := sha256.Sum256([]byte(url + "\x00" + revision))
	return hex.EncodeToString(sum[:])
}

func DecodeReply(body []byte) (string, error) {
	var r Reply
	if err := json.Unmarshal(body, &r); err != nil {
		return "", fmt.Errorf("decode conversion reply: %w", err)
	}
	if r.Error != "" {
		return "", fmt.Errorf("conversion failed: %s", r.Error)
	}
	return r.Text, nil
}

type RPCClient struct {
	log          *logger.Logger
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	requestQueue string
	replyQueue   string
	timeout      time.Duration

	mu      sync.Mutex
	pending map[string]chan amqp091.Delivery
	closed  chan struct{}
}

func Dial(log *logger.Logger, rabbitURI, requestQueue string, timeout time.Duration) (*RPCClient, error) {
	if rabbitURI == "" {
		return nil, ErrDisabled
	}
	if requestQueue == "" {
		requestQueue = DefaultRequestQueue
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	conn, err := amqp091.Dial(rabbitURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if _, err := channel.QueueDeclare(
		requestQueue, // name
		true,         // durable
		false,        // delete when unused
		false,        // exclusive
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare request queue: %w", err)
	}

	reply, err := channel.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare reply queue: %w", err)
	}

	msgs, err := channel.Consume(
		reply.Name, // queue
		"",         // consumer
		true,       // auto-ack
		true,       // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to consume replies: %w", err)
	}

	c := &RPCClient{
		log:          log.With("client", "DocConvertRPC"),
		conn:         conn,
		channel:      channel,
		requestQueue: requestQueue,
		replyQueue:   reply.Name,
		timeout:      timeout,
		pending:      map[string]chan amqp091.Delivery{},
		closed:       make(chan struct{}),
	}
	go c.dispatch(msgs)
	return c, nil
}

func (c *RPCClient) dispatch(msgs <-chan amqp091.Delivery) {
	for msg := range msgs {
		c.mu.Lock()
		ch, ok := c.pending[msg.CorrelationId]
		delete(c.pending, msg.CorrelationId)
		c.mu.Unlock()
		if !ok {
			c.log.Warn("Dropping unmatched conversion reply", "correlation_id", msg.CorrelationId)
			continue
		}
		ch <- msg
	}
	close(c.closed)
}

func (c *RPCClient) Convert(ctx context.Context, url, revision string) (string, error) {
	body, err := json.Marshal(Request{URL: url, Revision: revision})
	if err != nil {
		return "", err
	}
	correlationID := uuid.NewString()
	replyCh := make(chan amqp091.Delivery, 1)
	c.mu.Lock()
	c.pending[correlationID] = replyCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, correlationID)
		c.mu.Unlock()
	}()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err = c.channel.PublishWithContext(
		callCtx,
		"",             // exchange
		c.requestQueue, // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			Timestamp:     time.Now(),
			MessageId:     MessageID(url, revision),
			CorrelationId: correlationID,
			ReplyTo:       c.replyQueue,
			Body:          body,
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to publish conversion request: %w", err)
	}

	select {
	case msg := <-replyCh:
		return DecodeReply(msg.Body)
	case <-c.closed:
		return "", errors.New("conversion reply channel closed")
	case <-callCtx.Done():
		return "", callCtx.Err()
	}
}

func (c *RPCClient) Close() error {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

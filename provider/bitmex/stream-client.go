package bitmex

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/recws-org/recws"
)

const (
	bitmexDefaultWebsocketEndpoint = "wss://www.bitmex.com/realtime"
	keepAliveTimeout               = time.Minute
)

// SubscribeRequest is the single outbound control message of the stream
// protocol: {"op": "subscribe", "args": ["<channel>:<symbol>", ...]}.
type SubscribeRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// StreamMessage is one unit of the inbound stream. Reset marks the start of
// a new subscription cycle. It travels through the same channel as data so
// the consumer applies the reset in arrival order, on the goroutine that
// processes data messages; the connection's own goroutines never touch the
// book state.
type StreamMessage struct {
	Reset bool
	Data  []byte
}

// BitmexStreamClient owns the realtime websocket connection. The connection
// reconnects on its own; after every (re)connect the subscribe handler
// enqueues a reset marker and re-sends the subscription for the configured
// channel x symbol set.
type BitmexStreamClient struct {
	conn     *recws.RecConn
	endpoint string
	channels []string
	symbols  []string

	messages chan StreamMessage
	done     chan struct{}
}

func NewBitmexStreamClient(endpoint string, channels, symbols []string) *BitmexStreamClient {
	if endpoint == "" {
		endpoint = bitmexDefaultWebsocketEndpoint
	}
	return &BitmexStreamClient{
		endpoint: endpoint,
		channels: channels,
		symbols:  symbols,
		messages: make(chan StreamMessage, 256),
		done:     make(chan struct{}),
	}
}

func (c *BitmexStreamClient) Connect() error {
	conn := &recws.RecConn{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 5 * time.Second,
		KeepAliveTimeout: keepAliveTimeout,
		NonVerbose:       false,
	}
	conn.SubscribeHandler = c.subscribe

	conn.Dial(c.endpoint, nil)
	c.conn = conn
	log.Infof("connected to the bitmex realtime websocket")

	go c.read()
	return nil
}

// Messages is the inbound stream, in arrival order. Reset markers interleave
// with data messages at the position of their subscription cycle.
func (c *BitmexStreamClient) Messages() <-chan StreamMessage {
	return c.messages
}

// Resubscribe drops the current subscriptions and starts a new cycle, which
// makes the venue re-send the partial for every book channel.
func (c *BitmexStreamClient) Resubscribe() error {
	if err := c.conn.WriteJSON(SubscribeRequest{Op: "unsubscribe", Args: c.topics()}); err != nil {
		return fmt.Errorf("failed to send unsubscribe msg: %w", err)
	}
	return c.subscribe()
}

func (c *BitmexStreamClient) Close() error {
	close(c.done)

	err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.Warnf("failed to write close frame: %v", err)
	}

	c.conn.Close()
	return nil
}

func (c *BitmexStreamClient) subscribe() error {
	// The marker is enqueued before the subscribe op is written, so it
	// reaches the consumer ahead of any data of the new cycle.
	c.enqueue(StreamMessage{Reset: true})

	topics := c.topics()
	log.Infof("subscribing to %d topics", len(topics))

	return c.conn.WriteJSON(SubscribeRequest{Op: "subscribe", Args: topics})
}

func (c *BitmexStreamClient) topics() []string {
	topics := make([]string, 0, len(c.channels)*len(c.symbols))
	for _, channel := range c.channels {
		for _, symbol := range c.symbols {
			topics = append(topics, fmt.Sprintf("%s:%s", channel, symbol))
		}
	}
	return topics
}

func (c *BitmexStreamClient) read() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			log.Warnf("error while reading from connection: %v", err)
			continue
		}

		c.enqueue(StreamMessage{Data: msg})
	}
}

func (c *BitmexStreamClient) enqueue(msg StreamMessage) {
	select {
	case c.messages <- msg:
	case <-c.done:
	}
}

package jetstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// Callbacks are the three hooks the ingestion service registers before
// connecting: record events, identity events, and transport errors.
type Callbacks struct {
	OnRecord   func(ctx context.Context, event *RecordEvent)
	OnIdentity func(ctx context.Context, event *IdentityEvent)
	OnError    func(err error)
}

// Connector owns the WebSocket subscription to the upstream indexer.
// It reconnects with exponential backoff and replays subscription options
// (wanted repos) after every reconnect. Implements UpstreamClient.
type Connector struct {
	wsURL     string
	adminPass string
	callbacks Callbacks

	mu        sync.Mutex
	conn      *websocket.Conn
	wanted    map[string]bool
	cursor    int64
	destroyed bool
}

// NewConnector creates a connector for the given upstream URL.
// adminPass authorizes subscription changes; empty disables the header.
func NewConnector(wsURL, adminPass string) *Connector {
	return &Connector{
		wsURL:     wsURL,
		adminPass: adminPass,
		wanted:    make(map[string]bool),
	}
}

// SetCallbacks registers the event hooks. Must be called before Start.
func (c *Connector) SetCallbacks(cb Callbacks) {
	c.callbacks = cb
}

// SetCursor sets the resume position sent on the next dial.
func (c *Connector) SetCursor(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursor = id
}

// Start runs the connection loop until ctx is cancelled or Destroy is
// called. Transport errors are reported through OnError and retried with
// exponential backoff; they never abort the loop.
func (c *Connector) Start(ctx context.Context) error {
	log.Printf("Starting firehose connector: %s", c.wsURL)

	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = time.Minute
	policy.MaxElapsedTime = 0 // retry forever

	for {
		select {
		case <-ctx.Done():
			log.Println("Firehose connector shutting down")
			return ctx.Err()
		default:
		}
		if c.isDestroyed() {
			return nil
		}

		if err := c.connect(ctx); err != nil {
			if c.callbacks.OnError != nil {
				c.callbacks.OnError(err)
			}
			wait := policy.NextBackOff()
			log.Printf("Firehose connection error: %v. Retrying in %s...", err, wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		// A clean session still means the stream dropped; reset backoff
		// since we held a connection.
		policy.Reset()
	}
}

// connect establishes the WebSocket connection and processes events until
// the connection drops.
func (c *Connector) connect(ctx context.Context) error {
	dialURL, err := c.buildURL()
	if err != nil {
		return err
	}

	header := http.Header{}
	if c.adminPass != "" {
		header.Set("Authorization", "Bearer "+c.adminPass)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, dialURL, header)
	if err != nil {
		return fmt.Errorf("failed to connect to firehose: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			log.Printf("Failed to close WebSocket connection: %v", closeErr)
		}
	}()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	log.Println("Connected to firehose")

	if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
	}
	conn.SetPongHandler(func(string) error {
		if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			log.Printf("Failed to set read deadline in pong handler: %v", err)
		}
		return nil
	})

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	done := make(chan struct{})
	var closeOnce sync.Once

	// Ping goroutine keeps the connection alive.
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					log.Printf("Failed to send ping: %v", err)
					closeOnce.Do(func() { close(done) })
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			closeOnce.Do(func() { close(done) })
			return nil
		case <-done:
			return fmt.Errorf("connection closed by ping failure")
		default:
		}
		if c.isDestroyed() {
			closeOnce.Do(func() { close(done) })
			return nil
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			closeOnce.Do(func() { close(done) })
			return fmt.Errorf("read error: %w", err)
		}

		if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			log.Printf("Failed to set read deadline: %v", err)
		}

		var event StreamEvent
		if err := json.Unmarshal(message, &event); err != nil {
			log.Printf("Failed to parse firehose event: %v", err)
			continue
		}

		switch {
		case event.Kind == "record" && event.Record != nil:
			if c.callbacks.OnRecord != nil {
				c.callbacks.OnRecord(ctx, event.Record)
			}
		case event.Kind == "identity" && event.Identity != nil:
			if c.callbacks.OnIdentity != nil {
				c.callbacks.OnIdentity(ctx, event.Identity)
			}
		}
	}
}

// buildURL composes the dial URL with the wanted-repo set and the resume
// cursor.
func (c *Connector) buildURL() (string, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return "", fmt.Errorf("invalid firehose URL: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	q := u.Query()
	for did := range c.wanted {
		q.Add("wantedDids", did)
	}
	if c.cursor > 0 {
		q.Set("cursor", strconv.FormatInt(c.cursor, 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// optionsUpdate is the control message mutating the wanted-repo set on a
// live connection.
type optionsUpdate struct {
	Type    string `json:"type"`
	Payload struct {
		WantedDIDs []string `json:"wantedDids"`
	} `json:"payload"`
}

// AddRepos adds repos to the subscription. Buffered locally so reconnects
// re-request them; pushed to the live connection when one exists.
func (c *Connector) AddRepos(ctx context.Context, dids []string) error {
	c.mu.Lock()
	for _, did := range dids {
		c.wanted[did] = true
	}
	c.mu.Unlock()
	return c.pushOptions()
}

// RemoveRepos removes repos from the subscription.
func (c *Connector) RemoveRepos(ctx context.Context, dids []string) error {
	c.mu.Lock()
	for _, did := range dids {
		delete(c.wanted, did)
	}
	c.mu.Unlock()
	return c.pushOptions()
}

// pushOptions sends the current wanted set over the live connection, if any.
func (c *Connector) pushOptions() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		// Not connected; the next dial carries the set in the URL.
		return nil
	}

	var msg optionsUpdate
	msg.Type = "options_update"
	msg.Payload.WantedDIDs = make([]string, 0, len(c.wanted))
	for did := range c.wanted {
		msg.Payload.WantedDIDs = append(msg.Payload.WantedDIDs, did)
	}

	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to push subscription options: %w", err)
	}
	return nil
}

// Destroy tears the connection down permanently. Idempotent.
func (c *Connector) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed = true
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			log.Printf("Failed to close WebSocket connection: %v", err)
		}
		c.conn = nil
	}
}

func (c *Connector) isDestroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}
